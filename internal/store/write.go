package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/ademuri/outtamusic/internal/analysis"
	"github.com/ademuri/outtamusic/internal/records"
)

// CreateGroup registers a new group covering the inclusive year range.
func (s *Store) CreateGroup(name string, fromYear, toYear int) error {
	if name == "" {
		return fmt.Errorf("group name must not be empty")
	}
	if fromYear > toYear {
		return fmt.Errorf("invalid year range %d-%d", fromYear, toYear)
	}

	row := s.db.QueryRow("SELECT name FROM MusicGroup WHERE name = ?", name)
	var existing string
	err := row.Scan(&existing)
	if err == nil {
		return fmt.Errorf("%q: %w", name, ErrGroupExists)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("checking group %q: %w", name, err)
	}

	_, err = s.db.Exec("INSERT INTO MusicGroup (name, from_year, to_year, created) VALUES (?, ?, ?, ?)",
		name, fromYear, toYear, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting group %q: %w", name, err)
	}
	return nil
}

// DeleteGroup removes a group with its members, records and analysis.
func (s *Store) DeleteGroup(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM MusicGroup WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting group %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%q: %w", name, ErrGroupNotFound)
	}
	for _, table := range []string{"Member", "Records", "Analysis"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE group_name = ?", table), name); err != nil {
			return fmt.Errorf("deleting %s for %q: %w", table, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveGroupState writes new records and the snapshot computed from them in
// one transaction. expectedVersion is the records version that was loaded;
// if another writer got there first the call fails with
// ErrConcurrentUpdate and nothing is written. It returns the new version.
func (s *Store) SaveGroupState(name string, r records.Records, expectedVersion int, snap *analysis.Snapshot) (int, error) {
	recordsData, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("encoding records: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkRecordsVersion(tx, name, expectedVersion); err != nil {
		return 0, err
	}
	version := expectedVersion + 1
	now := time.Now().UTC()
	_, err = tx.Exec(`INSERT INTO Records (group_name, version, data, updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(group_name) DO UPDATE SET version = excluded.version, data = excluded.data, updated = excluded.updated`,
		name, version, recordsData, now)
	if err != nil {
		return 0, fmt.Errorf("writing records for %q: %w", name, err)
	}

	for i, member := range r.MemberIDs() {
		_, err := tx.Exec("INSERT OR IGNORE INTO Member (group_name, member_id, position, joined) VALUES (?, ?, ?, ?)",
			name, member, i, now)
		if err != nil {
			return 0, fmt.Errorf("adding member %q to %q: %w", member, name, err)
		}
	}

	if snap != nil {
		if err := writeSnapshot(tx, name, version, snap); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return version, nil
}

// SaveSnapshot replaces the group's analysis, provided the records it was
// computed from are still current.
func (s *Store) SaveSnapshot(name string, recordsVersion int, snap *analysis.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkRecordsVersion(tx, name, recordsVersion); err != nil {
		return err
	}
	if err := writeSnapshot(tx, name, recordsVersion, snap); err != nil {
		return err
	}
	return tx.Commit()
}

func checkRecordsVersion(tx *sql.Tx, name string, expected int) error {
	var groupName string
	err := tx.QueryRow("SELECT name FROM MusicGroup WHERE name = ?", name).Scan(&groupName)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%q: %w", name, ErrGroupNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking group %q: %w", name, err)
	}

	var current int
	err = tx.QueryRow("SELECT version FROM Records WHERE group_name = ?", name).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("reading records version for %q: %w", name, err)
	}
	if current != expected {
		return fmt.Errorf("%q at version %d, expected %d: %w", name, current, expected, ErrConcurrentUpdate)
	}
	return nil
}

func writeSnapshot(tx *sql.Tx, name string, recordsVersion int, snap *analysis.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO Analysis (group_name, id, version, records_version, computed, data, match_score) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_name) DO UPDATE SET id = excluded.id, version = excluded.version,
		records_version = excluded.records_version, computed = excluded.computed, data = excluded.data,
		match_score = excluded.match_score`,
		name, snap.ID, snap.Version, recordsVersion, snap.ComputedAt, data, snap.MatchScore)
	if err != nil {
		return fmt.Errorf("writing analysis for %q: %w", name, err)
	}
	return nil
}

// PutRawFetch caches one raw fetch result.
func (s *Store) PutRawFetch(memberID, kind, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s %q: %w", kind, key, err)
	}
	_, err = s.db.Exec("INSERT OR REPLACE INTO RawFetch (member_id, kind, key, data, fetched) VALUES (?, ?, ?, ?, ?)",
		memberID, kind, key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("caching %s %q for %q: %w", kind, key, memberID, err)
	}
	return nil
}

// DeleteRawFetches drops everything cached for a member.
func (s *Store) DeleteRawFetches(memberID string) error {
	if _, err := s.db.Exec("DELETE FROM RawFetch WHERE member_id = ?", memberID); err != nil {
		return fmt.Errorf("clearing cache for %q: %w", memberID, err)
	}
	return nil
}
