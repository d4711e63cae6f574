// Package spotify implements records.Fetcher over the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/ademuri/outtamusic/internal/records"
)

var topSongsName = regexp.MustCompile(`^Your Top Songs (20\d\d)$`)

const (
	playlistPageSize = 50
	itemPageSize     = 100
	featureBatchSize = 100

	defaultRequestsPerSecond = 5
	defaultRetryDelay        = time.Second
	retryAttempts            = 5
)

type Config struct {
	ClientID     string
	ClientSecret string
	// AccessToken, when set, is a user token obtained elsewhere and is used
	// instead of client credentials. Private playlists need one.
	AccessToken string

	RequestsPerSecond float64
	RetryDelay        time.Duration
	Logger            *zerolog.Logger
}

type Client struct {
	api        *spotifyapi.Client
	limiter    *rate.Limiter
	retryDelay time.Duration
	log        zerolog.Logger
}

var _ records.Fetcher = (*Client)(nil)

// New authenticates and returns a client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var httpClient *http.Client
	switch {
	case cfg.AccessToken != "":
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}))
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     spotifyauth.TokenURL,
		}
		if _, err := cc.Token(ctx); err != nil {
			return nil, fmt.Errorf("getting client credentials token: %w", err)
		}
		httpClient = cc.Client(ctx)
	default:
		return nil, errors.New("spotify: need an access token or a client id and secret")
	}
	return NewWithAPI(spotifyapi.New(httpClient), cfg), nil
}

// NewWithAPI wraps an already configured API client.
func NewWithAPI(api *spotifyapi.Client, cfg Config) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Client{
		api:        api,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		retryDelay: delay,
		log:        log.With().Str("component", "spotify").Logger(),
	}
}

// retryable reports whether the API asked us to slow down or failed on its
// side.
func retryable(err error) bool {
	var apiErr spotifyapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status/100 == 5
	}
	return false
}

// call runs fn under the rate limiter, retrying throttled and server-side
// failures.
func (c *Client) call(ctx context.Context, what string, fn func() error) error {
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			return fn()
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn().Err(err).Uint("attempt", n+1).Str("request", what).Msg("spotify errored, retrying")
		}),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// FavoritePlaylists finds the member's "Your Top Songs 20xx" playlists.
func (c *Client) FavoritePlaylists(ctx context.Context, memberID string) (map[int]records.PlaylistRef, error) {
	out := make(map[int]records.PlaylistRef)
	for offset := 0; ; offset += playlistPageSize {
		var page *spotifyapi.SimplePlaylistPage
		err := c.call(ctx, "listing playlists", func() error {
			var err error
			page, err = c.api.GetPlaylistsForUser(ctx, memberID, spotifyapi.Limit(playlistPageSize), spotifyapi.Offset(offset))
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, p := range page.Playlists {
			m := topSongsName.FindStringSubmatch(p.Name)
			if m == nil {
				continue
			}
			year, _ := strconv.Atoi(m[1])
			if _, dup := out[year]; dup {
				c.log.Debug().Int("year", year).Str("playlist", string(p.ID)).Msg("ignoring duplicate favorites playlist")
				continue
			}
			out[year] = records.PlaylistRef{ID: string(p.ID), Name: p.Name, Year: year}
		}

		if len(page.Playlists) < playlistPageSize || offset+len(page.Playlists) >= int(page.Total) {
			break
		}
	}
	c.log.Debug().Str("member", memberID).Int("playlists", len(out)).Msg("found favorites playlists")
	return out, nil
}

// Tracks returns the playlist's tracks in playlist order. Episodes are
// dropped; local files are kept and flagged.
func (c *Client) Tracks(ctx context.Context, p records.PlaylistRef) ([]records.Track, error) {
	var out []records.Track
	for offset := 0; ; offset += itemPageSize {
		var page *spotifyapi.PlaylistItemPage
		err := c.call(ctx, "listing playlist items", func() error {
			var err error
			page, err = c.api.GetPlaylistItems(ctx, spotifyapi.ID(p.ID), spotifyapi.Limit(itemPageSize), spotifyapi.Offset(offset))
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			t := item.Track.Track
			if t == nil {
				continue
			}
			out = append(out, convertTrack(t, item.IsLocal))
		}

		if len(page.Items) < itemPageSize || offset+len(page.Items) >= int(page.Total) {
			break
		}
	}
	return out, nil
}

func convertTrack(t *spotifyapi.FullTrack, local bool) records.Track {
	out := records.Track{
		ID:         string(t.ID),
		Name:       t.Name,
		Popularity: int(t.Popularity),
		IsLocal:    local,
		Album: records.AlbumObject{
			ID:          string(t.Album.ID),
			Name:        t.Album.Name,
			ReleaseDate: t.Album.ReleaseDate,
			AlbumType:   t.Album.AlbumType,
		},
	}
	for _, a := range t.Artists {
		out.Artists = append(out.Artists, records.ArtistRef{ID: string(a.ID), Name: a.Name})
	}
	return out
}

// AudioFeatures returns one entry per id. Tracks the API has no analysis
// for come back zeroed with an unknown key.
func (c *Client) AudioFeatures(ctx context.Context, trackIDs []string) ([]records.AudioFeatures, error) {
	out := make([]records.AudioFeatures, 0, len(trackIDs))
	for start := 0; start < len(trackIDs); start += featureBatchSize {
		batch := toIDs(trackIDs[start:min(start+featureBatchSize, len(trackIDs))])

		var features []*spotifyapi.AudioFeatures
		err := c.call(ctx, "getting audio features", func() error {
			var err error
			features, err = c.api.GetAudioFeatures(ctx, batch...)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(features) != len(batch) {
			return nil, fmt.Errorf("got %d audio features for %d tracks: %w", len(features), len(batch), records.ErrFeatureCountMismatch)
		}

		for i, f := range features {
			if f == nil {
				out = append(out, records.AudioFeatures{ID: string(batch[i]), Key: -1})
				continue
			}
			out = append(out, records.AudioFeatures{
				ID:               string(f.ID),
				DurationMs:       int(f.Duration),
				Acousticness:     float64(f.Acousticness),
				Danceability:     float64(f.Danceability),
				Energy:           float64(f.Energy),
				Instrumentalness: float64(f.Instrumentalness),
				Loudness:         float64(f.Loudness),
				Mode:             int(f.Mode),
				Key:              int(f.Key),
				Speechiness:      float64(f.Speechiness),
				Liveness:         float64(f.Liveness),
				Tempo:            float64(f.Tempo),
				Valence:          float64(f.Valence),
			})
		}
	}
	return out, nil
}

// Artists looks up at most records.ArtistBatchSize artists.
func (c *Client) Artists(ctx context.Context, artistIDs []string) ([]records.Artist, error) {
	if len(artistIDs) > records.ArtistBatchSize {
		return nil, fmt.Errorf("requested %d artists, limit is %d", len(artistIDs), records.ArtistBatchSize)
	}
	var artists []*spotifyapi.FullArtist
	err := c.call(ctx, "getting artists", func() error {
		var err error
		artists, err = c.api.GetArtists(ctx, toIDs(artistIDs)...)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]records.Artist, 0, len(artists))
	for _, a := range artists {
		if a == nil {
			continue
		}
		out = append(out, records.Artist{
			ID:         string(a.ID),
			Name:       a.Name,
			Followers:  int(a.Followers.Count),
			Popularity: int(a.Popularity),
			Genres:     a.Genres,
		})
	}
	return out, nil
}

func toIDs(ids []string) []spotifyapi.ID {
	out := make([]spotifyapi.ID, len(ids))
	for i, id := range ids {
		out[i] = spotifyapi.ID(id)
	}
	return out
}
