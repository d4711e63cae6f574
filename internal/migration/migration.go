// Package migration holds the SQL used to create a fresh database.
package migration

// Create builds every table. Records and analysis blobs are JSON.
const Create = `
CREATE TABLE MusicGroup (
  name TEXT PRIMARY KEY,
  from_year INTEGER NOT NULL,
  to_year INTEGER NOT NULL,
  created DATETIME
);

CREATE TABLE Member (
  group_name TEXT,
  member_id TEXT,
  position INTEGER NOT NULL,
  joined DATETIME,
  FOREIGN KEY (group_name) REFERENCES MusicGroup(name),
  PRIMARY KEY (group_name, member_id)
);

CREATE TABLE Records (
  group_name TEXT PRIMARY KEY,
  version INTEGER NOT NULL,
  data BLOB NOT NULL,
  updated DATETIME,
  FOREIGN KEY (group_name) REFERENCES MusicGroup(name)
);

CREATE TABLE Analysis (
  group_name TEXT PRIMARY KEY,
  id TEXT NOT NULL,
  version INTEGER NOT NULL,
  records_version INTEGER NOT NULL,
  computed DATETIME,
  data BLOB NOT NULL,
  FOREIGN KEY (group_name) REFERENCES MusicGroup(name)
);

CREATE TABLE RawFetch (
  member_id TEXT,
  kind TEXT,
  key TEXT,
  data BLOB NOT NULL,
  fetched DATETIME,
  PRIMARY KEY (member_id, kind, key)
);
`
