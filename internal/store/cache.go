package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ademuri/outtamusic/internal/records"
)

// ErrNotCached is returned in replay mode when a fetch was never recorded.
var ErrNotCached = errors.New("fetch not in cache")

const (
	kindPlaylists = "playlists"
	kindTracks    = "tracks"
	kindFeatures  = "features"
	kindArtists   = "artists"
)

// CachingFetcher records every raw fetch for one member in the RawFetch
// table and serves repeats from there. With a nil inner fetcher it only
// replays, so a join can be redone offline.
type CachingFetcher struct {
	store    *Store
	memberID string
	inner    records.Fetcher
}

func NewCachingFetcher(s *Store, memberID string, inner records.Fetcher) *CachingFetcher {
	return &CachingFetcher{store: s, memberID: memberID, inner: inner}
}

// listKey names a list of ids compactly.
func listKey(ids []string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(ids, "\n"))).String()
}

func cached[T any](c *CachingFetcher, kind, key string, fetch func() (T, error)) (T, error) {
	var v T
	ok, err := c.store.GetRawFetch(c.memberID, kind, key, &v)
	if err != nil {
		return v, err
	}
	if ok {
		return v, nil
	}
	if c.inner == nil {
		return v, fmt.Errorf("%s %q for %q: %w", kind, key, c.memberID, ErrNotCached)
	}

	v, err = fetch()
	if err != nil {
		return v, err
	}
	if err := c.store.PutRawFetch(c.memberID, kind, key, v); err != nil {
		return v, err
	}
	return v, nil
}

func (c *CachingFetcher) FavoritePlaylists(ctx context.Context, memberID string) (map[int]records.PlaylistRef, error) {
	return cached(c, kindPlaylists, memberID, func() (map[int]records.PlaylistRef, error) {
		return c.inner.FavoritePlaylists(ctx, memberID)
	})
}

func (c *CachingFetcher) Tracks(ctx context.Context, p records.PlaylistRef) ([]records.Track, error) {
	return cached(c, kindTracks, p.ID, func() ([]records.Track, error) {
		return c.inner.Tracks(ctx, p)
	})
}

func (c *CachingFetcher) AudioFeatures(ctx context.Context, ids []string) ([]records.AudioFeatures, error) {
	return cached(c, kindFeatures, listKey(ids), func() ([]records.AudioFeatures, error) {
		return c.inner.AudioFeatures(ctx, ids)
	})
}

// Artists is cached too: replaying a join must not depend on the remote
// artist lookup.
func (c *CachingFetcher) Artists(ctx context.Context, ids []string) ([]records.Artist, error) {
	return cached(c, kindArtists, listKey(ids), func() ([]records.Artist, error) {
		return c.inner.Artists(ctx, ids)
	})
}
