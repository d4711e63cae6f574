package records

import "context"

// PlaylistRef identifies one year-labeled favorites playlist.
type PlaylistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Year int    `json:"year"`
}

type AlbumObject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	AlbumType   string `json:"album_type"`
}

type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track is the raw track object as returned by the platform.
type Track struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Popularity int         `json:"popularity"`
	IsLocal    bool        `json:"is_local"`
	Album      AlbumObject `json:"album"`
	Artists    []ArtistRef `json:"artists"`
}

// AudioFeatures is the raw audio-features object for one track.
type AudioFeatures struct {
	ID               string  `json:"id"`
	DurationMs       int     `json:"duration_ms"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Key              int     `json:"key"`
	Speechiness      float64 `json:"speechiness"`
	Liveness         float64 `json:"liveness"`
	Tempo            float64 `json:"tempo"`
	Valence          float64 `json:"valence"`
}

// Artist is the raw artist object.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Followers  int      `json:"followers"`
	Popularity int      `json:"popularity"`
	Genres     []string `json:"genres"`
}

// ArtistFetcher resolves artist metadata. Callers pass at most
// ArtistBatchSize ids per call.
type ArtistFetcher interface {
	Artists(ctx context.Context, artistIDs []string) ([]Artist, error)
}

// Fetcher is the fetch capability bound to the external music platform.
// Implementations must be safe for concurrent use; Ingest issues per-year
// requests in parallel.
type Fetcher interface {
	ArtistFetcher

	// FavoritePlaylists returns the member's year-labeled favorites, by year.
	FavoritePlaylists(ctx context.Context, memberID string) (map[int]PlaylistRef, error)
	Tracks(ctx context.Context, playlist PlaylistRef) ([]Track, error)
	// AudioFeatures must return exactly one entry per requested id, in order.
	AudioFeatures(ctx context.Context, trackIDs []string) ([]AudioFeatures, error)
}

const ArtistBatchSize = 50
