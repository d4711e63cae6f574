// Package recordstest provides an in-memory records.Fetcher for tests.
package recordstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ademuri/outtamusic/internal/records"
)

// Fetcher serves canned platform data. Playlists are keyed by member then
// year; features and artists are keyed by id.
type Fetcher struct {
	Playlists  map[string]map[int][]records.Track
	Features   map[string]records.AudioFeatures
	ArtistInfo map[string]records.Artist

	// DropFeatures makes AudioFeatures return one entry fewer for that year's
	// playlist.
	DropFeatures map[int]bool
	// ArtistErr, when set, is returned from every Artists call.
	ArtistErr error

	mu          sync.Mutex
	ArtistCalls [][]string
}

func New() *Fetcher {
	return &Fetcher{
		Playlists:  make(map[string]map[int][]records.Track),
		Features:   make(map[string]records.AudioFeatures),
		ArtistInfo: make(map[string]records.Artist),
	}
}

func playlistID(member string, year int) string {
	return fmt.Sprintf("%s/%d", member, year)
}

// AddTrack appends a track to the member's playlist for year, registering
// its features and artists.
func (f *Fetcher) AddTrack(member string, year int, t records.Track, feat records.AudioFeatures, artists ...records.Artist) {
	if f.Playlists[member] == nil {
		f.Playlists[member] = make(map[int][]records.Track)
	}
	for _, a := range artists {
		t.Artists = append(t.Artists, records.ArtistRef{ID: a.ID, Name: a.Name})
		f.ArtistInfo[a.ID] = a
	}
	f.Playlists[member][year] = append(f.Playlists[member][year], t)
	feat.ID = t.ID
	f.Features[t.ID] = feat
}

func (f *Fetcher) FavoritePlaylists(_ context.Context, memberID string) (map[int]records.PlaylistRef, error) {
	out := make(map[int]records.PlaylistRef)
	for year := range f.Playlists[memberID] {
		out[year] = records.PlaylistRef{
			ID:   playlistID(memberID, year),
			Name: fmt.Sprintf("Your Top Songs %d", year),
			Year: year,
		}
	}
	return out, nil
}

func (f *Fetcher) Tracks(_ context.Context, p records.PlaylistRef) ([]records.Track, error) {
	for member, years := range f.Playlists {
		for year, tracks := range years {
			if playlistID(member, year) == p.ID {
				return append([]records.Track(nil), tracks...), nil
			}
		}
	}
	return nil, fmt.Errorf("unknown playlist %q", p.ID)
}

func (f *Fetcher) AudioFeatures(_ context.Context, ids []string) ([]records.AudioFeatures, error) {
	out := make([]records.AudioFeatures, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.Features[id])
	}
	if len(out) > 0 && f.dropsFor(ids[0]) {
		out = out[:len(out)-1]
	}
	return out, nil
}

// dropsFor reports whether the playlist starting with trackID belongs to a
// year listed in DropFeatures.
func (f *Fetcher) dropsFor(trackID string) bool {
	for _, years := range f.Playlists {
		for year, tracks := range years {
			if f.DropFeatures[year] && len(tracks) > 0 && tracks[0].ID == trackID {
				return true
			}
		}
	}
	return false
}

func (f *Fetcher) Artists(_ context.Context, ids []string) ([]records.Artist, error) {
	f.mu.Lock()
	f.ArtistCalls = append(f.ArtistCalls, append([]string(nil), ids...))
	f.mu.Unlock()
	if f.ArtistErr != nil {
		return nil, f.ArtistErr
	}
	out := make([]records.Artist, 0, len(ids))
	for _, id := range ids {
		if a, ok := f.ArtistInfo[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}
