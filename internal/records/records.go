package records

import (
	"fmt"
	"slices"
)

// Records is the per-group feature store: three parallel entity tables, the
// genre dictionary and each member's per-year track references.
//
// A Records value is treated as immutable once returned from Ingest. Use
// Clone before changing anything.
type Records struct {
	FromYear  int               `json:"from_year"`
	ToYear    int               `json:"to_year"`
	Tracks    TrackTable        `json:"tracks"`
	Albums    AlbumTable        `json:"albums"`
	Artists   ArtistTable       `json:"artists"`
	Genres    []string          `json:"genres"`
	Playlists []MemberPlaylists `json:"playlists"`
}

type TrackTable struct {
	IDs  []string   `json:"ids"`
	Rows []TrackRow `json:"rows"`
}

type AlbumTable struct {
	IDs  []string   `json:"ids"`
	Rows []AlbumRow `json:"rows"`
}

type ArtistTable struct {
	IDs  []string    `json:"ids"`
	Rows []ArtistRow `json:"rows"`
}

// Ref is a reference triple into the entity tables.
type Ref struct {
	Track   int   `json:"track"`
	Album   int   `json:"album"`
	Artists []int `json:"artists"`
}

// MemberPlaylists holds a member's favorites per year, in platform rank
// order (index 0 is the most favored track).
type MemberPlaylists struct {
	MemberID string        `json:"member_id"`
	Years    map[int][]Ref `json:"years"`
}

// New returns an empty store covering the inclusive year range.
func New(fromYear, toYear int) (Records, error) {
	if fromYear > toYear {
		return Records{}, fmt.Errorf("invalid year range %d-%d", fromYear, toYear)
	}
	return Records{FromYear: fromYear, ToYear: toYear}, nil
}

// Years returns every year of the group's range in ascending order.
func (r Records) Years() []int {
	if r.ToYear < r.FromYear {
		return nil
	}
	years := make([]int, 0, r.ToYear-r.FromYear+1)
	for y := r.FromYear; y <= r.ToYear; y++ {
		years = append(years, y)
	}
	return years
}

func (r Records) InRange(year int) bool {
	return year >= r.FromYear && year <= r.ToYear
}

// MemberIndex returns the store position of a member, or -1.
func (r Records) MemberIndex(memberID string) int {
	for i, p := range r.Playlists {
		if p.MemberID == memberID {
			return i
		}
	}
	return -1
}

func (r Records) MemberIDs() []string {
	ids := make([]string, len(r.Playlists))
	for i, p := range r.Playlists {
		ids[i] = p.MemberID
	}
	return ids
}

// Clone returns a deep copy.
func (r Records) Clone() Records {
	out := Records{
		FromYear: r.FromYear,
		ToYear:   r.ToYear,
		Tracks: TrackTable{
			IDs:  slices.Clone(r.Tracks.IDs),
			Rows: slices.Clone(r.Tracks.Rows),
		},
		Albums: AlbumTable{
			IDs:  slices.Clone(r.Albums.IDs),
			Rows: slices.Clone(r.Albums.Rows),
		},
		Artists: ArtistTable{
			IDs:  slices.Clone(r.Artists.IDs),
			Rows: make([]ArtistRow, len(r.Artists.Rows)),
		},
		Genres:    slices.Clone(r.Genres),
		Playlists: make([]MemberPlaylists, len(r.Playlists)),
	}
	for i, row := range r.Artists.Rows {
		row.Genres = slices.Clone(row.Genres)
		out.Artists.Rows[i] = row
	}
	for i, p := range r.Playlists {
		out.Playlists[i] = p.clone()
	}
	return out
}

func (p MemberPlaylists) clone() MemberPlaylists {
	out := MemberPlaylists{MemberID: p.MemberID, Years: make(map[int][]Ref, len(p.Years))}
	for year, refs := range p.Years {
		cp := make([]Ref, len(refs))
		for i, ref := range refs {
			ref.Artists = slices.Clone(ref.Artists)
			cp[i] = ref
		}
		out.Years[year] = cp
	}
	return out
}

// Validate checks the structural invariants: parallel table lengths, unique
// IDs, and reference indices in range.
func (r Records) Validate() error {
	if len(r.Tracks.IDs) != len(r.Tracks.Rows) {
		return fmt.Errorf("track table has %d ids and %d rows", len(r.Tracks.IDs), len(r.Tracks.Rows))
	}
	if len(r.Albums.IDs) != len(r.Albums.Rows) {
		return fmt.Errorf("album table has %d ids and %d rows", len(r.Albums.IDs), len(r.Albums.Rows))
	}
	if len(r.Artists.IDs) != len(r.Artists.Rows) {
		return fmt.Errorf("artist table has %d ids and %d rows", len(r.Artists.IDs), len(r.Artists.Rows))
	}
	for name, ids := range map[string][]string{"track": r.Tracks.IDs, "album": r.Albums.IDs, "artist": r.Artists.IDs} {
		if dup, ok := firstDuplicate(ids); ok {
			return fmt.Errorf("duplicate %s id %q", name, dup)
		}
	}
	for _, row := range r.Artists.Rows {
		for _, g := range row.Genres {
			if g < 0 || g >= len(r.Genres) {
				return fmt.Errorf("genre index %d out of range", g)
			}
		}
	}
	for _, p := range r.Playlists {
		for year, refs := range p.Years {
			for i, ref := range refs {
				if err := r.checkRef(ref); err != nil {
					return fmt.Errorf("member %q year %d ref %d: %w", p.MemberID, year, i, err)
				}
			}
		}
	}
	return nil
}

func (r Records) checkRef(ref Ref) error {
	if ref.Track < 0 || ref.Track >= len(r.Tracks.IDs) {
		return fmt.Errorf("track index %d out of range", ref.Track)
	}
	if ref.Album < 0 || ref.Album >= len(r.Albums.IDs) {
		return fmt.Errorf("album index %d out of range", ref.Album)
	}
	for _, a := range ref.Artists {
		if a < 0 || a >= len(r.Artists.IDs) {
			return fmt.Errorf("artist index %d out of range", a)
		}
	}
	return nil
}

func firstDuplicate(ids []string) (string, bool) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id, true
		}
		seen[id] = struct{}{}
	}
	return "", false
}
