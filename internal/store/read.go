package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/ademuri/outtamusic/internal/analysis"
	"github.com/ademuri/outtamusic/internal/records"
)

type Group struct {
	Name     string
	FromYear int
	ToYear   int
	Created  time.Time
	// Members in join order.
	Members []string
}

func (s *Store) GetGroup(name string) (Group, error) {
	g := Group{Name: name}
	var created sql.NullTime
	row := s.db.QueryRow("SELECT from_year, to_year, created FROM MusicGroup WHERE name = ?", name)
	err := row.Scan(&g.FromYear, &g.ToYear, &created)
	if err == sql.ErrNoRows {
		return Group{}, fmt.Errorf("%q: %w", name, ErrGroupNotFound)
	}
	if err != nil {
		return Group{}, fmt.Errorf("getting group %q: %w", name, err)
	}
	g.Created = created.Time

	g.Members, err = s.members(name)
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

func (s *Store) ListGroups() ([]Group, error) {
	rows, err := s.db.Query("SELECT name FROM MusicGroup ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(names))
	for _, n := range names {
		g, err := s.GetGroup(n)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (s *Store) members(group string) ([]string, error) {
	rows, err := s.db.Query("SELECT member_id FROM Member WHERE group_name = ? ORDER BY position", group)
	if err != nil {
		return nil, fmt.Errorf("listing members of %q: %w", group, err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// LoadRecords returns the group's records and their version. A group nobody
// has joined yet gets empty records over its year range at version 0.
func (s *Store) LoadRecords(name string) (records.Records, int, error) {
	g, err := s.GetGroup(name)
	if err != nil {
		return records.Records{}, 0, err
	}

	var (
		version int
		data    []byte
	)
	err = s.db.QueryRow("SELECT version, data FROM Records WHERE group_name = ?", name).Scan(&version, &data)
	if err == sql.ErrNoRows {
		r, err := records.New(g.FromYear, g.ToYear)
		return r, 0, err
	}
	if err != nil {
		return records.Records{}, 0, fmt.Errorf("loading records for %q: %w", name, err)
	}

	var r records.Records
	if err := json.Unmarshal(data, &r); err != nil {
		return records.Records{}, 0, fmt.Errorf("decoding records for %q: %w", name, err)
	}
	return r, version, nil
}

// LoadSnapshot returns the group's latest analysis, or nil if none was
// computed yet.
func (s *Store) LoadSnapshot(name string) (*analysis.Snapshot, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM Analysis WHERE group_name = ?", name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading analysis for %q: %w", name, err)
	}

	snap := &analysis.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("decoding analysis for %q: %w", name, err)
	}
	return snap, nil
}

// GetRawFetch decodes a cached fetch result into v and reports whether it
// was present.
func (s *Store) GetRawFetch(memberID, kind, key string, v any) (bool, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM RawFetch WHERE member_id = ? AND kind = ? AND key = ?",
		memberID, kind, key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading cached %s %q: %w", kind, key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding cached %s %q: %w", kind, key, err)
	}
	return true, nil
}
