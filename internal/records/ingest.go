package records

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type IngestOptions struct {
	Logger *zerolog.Logger

	// MaxConcurrentFetches bounds the per-year fetch fan-out. Zero means one
	// goroutine per year.
	MaxConcurrentFetches int
}

func (o IngestOptions) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// yearFetch is the raw data fetched for one playlist-year.
type yearFetch struct {
	year     int
	tracks   []Track
	features []AudioFeatures
}

// Ingest merges one member's favorites into a copy of prev and returns it.
// prev is never modified. Any fetch failure or feature count mismatch aborts
// the whole ingestion; artist lookups degrade instead (see
// ErrArtistFetchFailed).
//
// Ingesting a member that is already present replaces that member's lists
// in place, so repeating an ingestion with the same raw data is a no-op.
func Ingest(ctx context.Context, prev Records, memberID string, f Fetcher, opts IngestOptions) (Records, error) {
	log := opts.logger().With().Str("member", memberID).Logger()
	if memberID == "" {
		return Records{}, errors.New("ingest: empty member id")
	}

	playlists, err := f.FavoritePlaylists(ctx, memberID)
	if err != nil {
		return Records{}, fmt.Errorf("fetching favorite playlists: %w", err)
	}
	var years []int
	for year := range playlists {
		if prev.InRange(year) {
			years = append(years, year)
		}
	}
	if len(years) == 0 {
		return Records{}, fmt.Errorf("member %q: %w", memberID, ErrNoPlaylistsFound)
	}
	slices.Sort(years)
	log.Debug().Ints("years", years).Msg("found favorite playlists")

	fetched, err := fetchYears(ctx, f, playlists, years, opts.MaxConcurrentFetches)
	if err != nil {
		return Records{}, err
	}

	next := prev.Clone()
	m := newMerger(&next)
	oldTracks := len(next.Tracks.IDs)
	for _, yf := range fetched {
		m.extend(yf.tracks)
	}
	m.grow()

	written := make(map[int]bool)
	var queue []int
	queued := make(map[int]bool)
	for _, yf := range fetched {
		for i, t := range yf.tracks {
			idx := m.tracks[t.ID]
			if idx >= oldTracks && !written[idx] {
				written[idx] = true
				next.Tracks.Rows[idx] = trackRow(t, yf.features[i])
				m.writeAlbum(t.Album)
			}
			for _, a := range t.Artists {
				ai, ok := m.artists[a.ID]
				if !ok || queued[ai] || next.Artists.Rows[ai].Fetched {
					continue
				}
				queued[ai] = true
				queue = append(queue, ai)
			}
		}
	}

	failed := m.resolveArtists(ctx, f, queue, log)

	member := MemberPlaylists{MemberID: memberID, Years: make(map[int][]Ref, len(fetched))}
	for _, yf := range fetched {
		refs := make([]Ref, 0, len(yf.tracks))
		for _, t := range yf.tracks {
			refs = append(refs, m.ref(t))
		}
		member.Years[yf.year] = refs
	}
	if i := next.MemberIndex(memberID); i >= 0 {
		next.Playlists[i] = member
	} else {
		next.Playlists = append(next.Playlists, member)
	}
	next.Genres = m.genres.names

	log.Info().
		Int("new_tracks", len(next.Tracks.IDs)-oldTracks).
		Int("tracks", len(next.Tracks.IDs)).
		Int("albums", len(next.Albums.IDs)).
		Int("artists", len(next.Artists.IDs)).
		Int("unfetched_artists", failed).
		Msg("ingested member")
	return next, nil
}

func fetchYears(ctx context.Context, f Fetcher, playlists map[int]PlaylistRef, years []int, limit int) ([]yearFetch, error) {
	out := make([]yearFetch, len(years))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, year := range years {
		i, year := i, year
		g.Go(func() error {
			raw, err := f.Tracks(gctx, playlists[year])
			if err != nil {
				return fmt.Errorf("fetching tracks for %d: %w", year, err)
			}
			tracks := playable(raw)
			var features []AudioFeatures
			if len(tracks) > 0 {
				ids := make([]string, len(tracks))
				for j, t := range tracks {
					ids[j] = t.ID
				}
				features, err = f.AudioFeatures(gctx, ids)
				if err != nil {
					return fmt.Errorf("fetching audio features for %d: %w", year, err)
				}
			}
			if len(features) != len(tracks) {
				return &FeatureCountMismatchError{Year: year, Tracks: len(tracks), Got: len(features)}
			}
			out[i] = yearFetch{year: year, tracks: tracks, features: features}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// playable drops local files and tracks the platform can't identify.
func playable(tracks []Track) []Track {
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if t.IsLocal || t.ID == "" || t.Album.ID == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// merger owns the id->row lookups for one ingestion.
type merger struct {
	r       *Records
	tracks  map[string]int
	albums  map[string]int
	artists map[string]int
	genres  *genreDict
}

func newMerger(r *Records) *merger {
	return &merger{
		r:       r,
		tracks:  indexOf(r.Tracks.IDs),
		albums:  indexOf(r.Albums.IDs),
		artists: indexOf(r.Artists.IDs),
		genres:  newGenreDict(r.Genres),
	}
}

func indexOf(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

// extend appends unseen ids to the tables, preserving first-seen order.
func (m *merger) extend(tracks []Track) {
	for _, t := range tracks {
		m.r.Tracks.IDs = appendNew(m.tracks, m.r.Tracks.IDs, t.ID)
		m.r.Albums.IDs = appendNew(m.albums, m.r.Albums.IDs, t.Album.ID)
		for _, a := range t.Artists {
			if a.ID == "" {
				continue
			}
			m.r.Artists.IDs = appendNew(m.artists, m.r.Artists.IDs, a.ID)
		}
	}
}

func appendNew(index map[string]int, ids []string, id string) []string {
	if _, ok := index[id]; ok {
		return ids
	}
	index[id] = len(ids)
	return append(ids, id)
}

// grow sizes every row slice to its id slice with zero rows.
func (m *merger) grow() {
	m.r.Tracks.Rows = append(m.r.Tracks.Rows, make([]TrackRow, len(m.r.Tracks.IDs)-len(m.r.Tracks.Rows))...)
	m.r.Albums.Rows = append(m.r.Albums.Rows, make([]AlbumRow, len(m.r.Albums.IDs)-len(m.r.Albums.Rows))...)
	m.r.Artists.Rows = append(m.r.Artists.Rows, make([]ArtistRow, len(m.r.Artists.IDs)-len(m.r.Artists.Rows))...)
}

func (m *merger) writeAlbum(a AlbumObject) {
	idx := m.albums[a.ID]
	if m.r.Albums.Rows[idx].Written {
		return
	}
	m.r.Albums.Rows[idx] = AlbumRow{
		ReleaseYear: releaseYear(a.ReleaseDate),
		ReleaseType: ParseAlbumType(a.AlbumType),
		Written:     true,
	}
}

// resolveArtists fetches queued artist rows in batches and returns how many
// rows remain unfetched.
func (m *merger) resolveArtists(ctx context.Context, f ArtistFetcher, queue []int, log zerolog.Logger) int {
	missing := 0
	for start := 0; start < len(queue); start += ArtistBatchSize {
		batch := queue[start:min(start+ArtistBatchSize, len(queue))]
		ids := make([]string, len(batch))
		for i, idx := range batch {
			ids[i] = m.r.Artists.IDs[idx]
		}

		artists, err := f.Artists(ctx, ids)
		if err != nil {
			log.Warn().Err(fmt.Errorf("%w: %w", ErrArtistFetchFailed, err)).Int("batch", len(ids)).Msg("leaving artist rows empty")
			missing += len(batch)
			continue
		}

		got := 0
		for _, a := range artists {
			idx, ok := m.artists[a.ID]
			if !ok || m.r.Artists.Rows[idx].Fetched {
				continue
			}
			m.r.Artists.Rows[idx] = ArtistRow{
				Followers:  float64(a.Followers),
				Popularity: float64(a.Popularity),
				Genres:     m.genres.internAll(a.Genres),
				Fetched:    true,
			}
			got++
		}
		missing += len(batch) - got
	}
	return missing
}

func (m *merger) ref(t Track) Ref {
	ref := Ref{
		Track:   m.tracks[t.ID],
		Album:   m.albums[t.Album.ID],
		Artists: make([]int, 0, len(t.Artists)),
	}
	for _, a := range t.Artists {
		if idx, ok := m.artists[a.ID]; ok {
			ref.Artists = append(ref.Artists, idx)
		}
	}
	return ref
}

func trackRow(t Track, f AudioFeatures) TrackRow {
	var row TrackRow
	row[Popularity] = float64(t.Popularity)
	row[Duration] = float64(f.DurationMs) / 1000
	row[Acousticness] = f.Acousticness
	row[Danceability] = f.Danceability
	row[Energy] = f.Energy
	row[Instrumentalness] = f.Instrumentalness
	row[Loudness] = f.Loudness
	row[Mode] = float64(f.Mode)
	row[Key] = float64(f.Key)
	row[Speechiness] = f.Speechiness
	row[Liveness] = f.Liveness
	row[Tempo] = f.Tempo
	row[Valence] = f.Valence
	return row
}

// releaseYear reads the year from a platform release date, which may be
// "2019", "2019-05" or "2019-05-17". Returns 0 when there is none.
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y <= 0 {
		return 0
	}
	return y
}
