package records

// TrackColumn indexes a column of the track feature matrix. Columns from the
// track object come first, followed by the audio-features columns.
type TrackColumn int

const (
	Popularity TrackColumn = iota
	Duration
	Acousticness
	Danceability
	Energy
	Instrumentalness
	Loudness
	Mode
	Key
	Speechiness
	Liveness
	Tempo
	Valence

	NumTrackColumns int = iota
)

var trackColumnNames = [NumTrackColumns]string{
	Popularity:       "popularity",
	Duration:         "duration",
	Acousticness:     "acousticness",
	Danceability:     "danceability",
	Energy:           "energy",
	Instrumentalness: "instrumentalness",
	Loudness:         "loudness",
	Mode:             "mode",
	Key:              "key",
	Speechiness:      "speechiness",
	Liveness:         "liveness",
	Tempo:            "tempo",
	Valence:          "valence",
}

// TrackColumnByName maps a feature name to its column. Built once; callers
// outside the CLI should use the TrackColumn constants directly.
var TrackColumnByName = func() map[string]TrackColumn {
	m := make(map[string]TrackColumn, NumTrackColumns)
	for i, name := range trackColumnNames {
		m[name] = TrackColumn(i)
	}
	return m
}()

func (c TrackColumn) String() string {
	if c < 0 || int(c) >= NumTrackColumns {
		return "unknown"
	}
	return trackColumnNames[c]
}

// TrackRow is one row of the track feature matrix.
type TrackRow [NumTrackColumns]float64

type AlbumType int

const (
	AlbumTypeUnknown AlbumType = iota
	AlbumTypeAlbum
	AlbumTypeSingle
	AlbumTypeCompilation
)

func ParseAlbumType(s string) AlbumType {
	switch s {
	case "album":
		return AlbumTypeAlbum
	case "single":
		return AlbumTypeSingle
	case "compilation":
		return AlbumTypeCompilation
	}
	return AlbumTypeUnknown
}

func (t AlbumType) String() string {
	switch t {
	case AlbumTypeAlbum:
		return "album"
	case AlbumTypeSingle:
		return "single"
	case AlbumTypeCompilation:
		return "compilation"
	}
	return "unknown"
}

type AlbumRow struct {
	ReleaseYear int       `json:"release_year"`
	ReleaseType AlbumType `json:"release_type"`
	Written     bool      `json:"written"`
}

// ArtistRow holds artist metadata. Genres are indices into Records.Genres.
// Fetched is false until a batched artist lookup has succeeded for the row.
type ArtistRow struct {
	Followers  float64 `json:"followers"`
	Popularity float64 `json:"popularity"`
	Genres     []int   `json:"genres"`
	Fetched    bool    `json:"fetched"`
}
