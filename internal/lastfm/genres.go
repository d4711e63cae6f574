// Package lastfm fills in artist genres from last.fm top tags when the music
// platform has none.
package lastfm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ademuri/lastfm-go/lastfm"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ademuri/outtamusic/internal/records"
)

const (
	defaultMinTagCount = 10
	defaultMaxTags     = 5
)

// TopTagsGetter is the part of the last.fm artist API used here.
type TopTagsGetter interface {
	GetTopTags(args map[string]interface{}) (lastfm.ArtistGetTopTags, error)
}

type Options struct {
	// Tags with a last.fm weight below MinTagCount are ignored.
	MinTagCount int
	MaxTags     int
	Limiter     *rate.Limiter
	RetryDelay  time.Duration
	Logger      *zerolog.Logger
}

// Fetcher wraps a records.Fetcher and tags genre-less artists from last.fm.
type Fetcher struct {
	records.Fetcher

	tags       TopTagsGetter
	limiter    *rate.Limiter
	minCount   int
	maxTags    int
	retryDelay time.Duration
	log        zerolog.Logger
}

// New creates a last.fm client for the key pair and wraps inner with it.
func New(inner records.Fetcher, apiKey, secret string, opts Options) *Fetcher {
	return Wrap(inner, lastfm.New(apiKey, secret).Artist, opts)
}

func Wrap(inner records.Fetcher, tags TopTagsGetter, opts Options) *Fetcher {
	f := &Fetcher{
		Fetcher:    inner,
		tags:       tags,
		limiter:    opts.Limiter,
		minCount:   opts.MinTagCount,
		maxTags:    opts.MaxTags,
		retryDelay: opts.RetryDelay,
		log:        zerolog.Nop(),
	}
	if f.limiter == nil {
		f.limiter = rate.NewLimiter(rate.Every(1*time.Second), 1)
	}
	if f.minCount <= 0 {
		f.minCount = defaultMinTagCount
	}
	if f.maxTags <= 0 {
		f.maxTags = defaultMaxTags
	}
	if f.retryDelay <= 0 {
		f.retryDelay = time.Second
	}
	if opts.Logger != nil {
		f.log = *opts.Logger
	}
	f.log = f.log.With().Str("component", "lastfm").Logger()
	return f
}

// Artists resolves artists through the wrapped fetcher, then asks last.fm
// for any that came back without genres. A failed tag lookup leaves the
// artist as it was.
func (f *Fetcher) Artists(ctx context.Context, artistIDs []string) ([]records.Artist, error) {
	artists, err := f.Fetcher.Artists(ctx, artistIDs)
	if err != nil {
		return nil, err
	}

	filled := 0
	for i := range artists {
		a := &artists[i]
		if len(a.Genres) > 0 || a.Name == "" {
			continue
		}
		genres, err := f.artistGenres(ctx, a.Name)
		if err != nil {
			f.log.Warn().Err(err).Str("artist", a.Name).Msg("fetching last.fm tags")
			continue
		}
		if len(genres) > 0 {
			a.Genres = genres
			filled++
		}
	}
	if filled > 0 {
		f.log.Debug().Int("artists", filled).Msg("filled genres from last.fm")
	}
	return artists, nil
}

func (f *Fetcher) artistGenres(ctx context.Context, name string) ([]string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var topTags lastfm.ArtistGetTopTags
	err := retry.Do(
		func() error {
			var err error
			topTags, err = f.tags.GetTopTags(lastfm.P{
				"artist":      name,
				"autocorrect": 1,
			})
			return err
		},
		retry.Context(ctx),
		retry.Delay(f.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if lerr, ok := err.(*lastfm.LastfmError); ok {
				if lerr.Code/100 == 5 {
					f.log.Warn().Err(lerr).Msg("last.fm errored, retrying")
					return true
				}
			}
			return false
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("top tags for %q: %w", name, err)
	}

	var genres []string
	seen := make(map[string]bool)
	for _, t := range topTags.Tags {
		count, _ := strconv.Atoi(t.Count)
		tag := strings.ToLower(strings.TrimSpace(t.Name))
		if count < f.minCount || tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		genres = append(genres, tag)
		if len(genres) == f.maxTags {
			break
		}
	}
	return genres, nil
}
