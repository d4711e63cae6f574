package analysis

import (
	"time"

	"github.com/ademuri/outtamusic/internal/records"
)

// Snapshot is the analysis of a whole group, addressed by
// Cells[memberIndex][yearIndex]. Member order matches the records it was
// computed from; year index 0 is FromYear.
type Snapshot struct {
	ID         string         `json:"id" yaml:"id"`
	Version    int            `json:"version" yaml:"version"`
	ComputedAt time.Time      `json:"computed_at" yaml:"computed_at"`
	FromYear   int            `json:"from_year" yaml:"from_year"`
	ToYear     int            `json:"to_year" yaml:"to_year"`
	Members    []string       `json:"members" yaml:"members"`
	K          int            `json:"k" yaml:"k"`
	Cells      [][]Cell       `json:"cells" yaml:"cells"`
	YearErrors map[int]string `json:"year_errors,omitempty" yaml:"year_errors,omitempty"`
	MatchScore float64        `json:"match_score" yaml:"match_score"`
}

type Cell struct {
	Year    int                   `json:"year" yaml:"year"`
	Static  [NumProjections][]int `json:"static" yaml:"static"`
	Dynamic DynamicClusters       `json:"dynamic" yaml:"dynamic"`
	Stats   Stats                 `json:"stats" yaml:"stats"`
}

// DynamicClusters holds the PCA coordinates and cluster id of every
// reference in a member's year list, by position.
type DynamicClusters struct {
	Assignments []int        `json:"assignments" yaml:"assignments"`
	Coords      [][2]float64 `json:"coords" yaml:"coords,flow"`
}

type Stats struct {
	TrackCount        int     `json:"track_count" yaml:"track_count"`
	InstrumentalRatio float64 `json:"instrumental_ratio" yaml:"instrumental_ratio"`
	LiveRatio         float64 `json:"live_ratio" yaml:"live_ratio"`
	MajorRatio        float64 `json:"major_ratio" yaml:"major_ratio"`
	AvgPopularity     float64 `json:"avg_popularity" yaml:"avg_popularity"`
	KeyCounts         [12]int `json:"key_counts" yaml:"key_counts,flow"`

	// Keyed by album/artist row index and genre index; top 5 only.
	AlbumCounts   map[int]int     `json:"album_counts" yaml:"album_counts"`
	ArtistCounts  map[int]int     `json:"artist_counts" yaml:"artist_counts"`
	GenreCounts   map[int]int     `json:"genre_counts" yaml:"genre_counts"`
	GenreWeighted map[int]float64 `json:"genre_weighted" yaml:"genre_weighted"`

	DecadeCounts   map[string]int     `json:"decade_counts" yaml:"decade_counts"`
	DecadeWeighted map[string]float64 `json:"decade_weighted" yaml:"decade_weighted"`

	LeastPopular []PopularTrack `json:"least_popular" yaml:"least_popular"`
	MostPopular  []PopularTrack `json:"most_popular" yaml:"most_popular"`
}

type PopularTrack struct {
	Track      int     `json:"track" yaml:"track"`
	Popularity float64 `json:"popularity" yaml:"popularity"`
}

// Projection is one of the fixed feature pairs used for static clustering.
type Projection int

const (
	ValenceTempo Projection = iota
	DanceabilityEnergy
	InstrumentalnessAcousticness

	NumProjections int = iota
)

var projections = [NumProjections]struct {
	name string
	x, y records.TrackColumn
}{
	ValenceTempo:                 {"valence_tempo", records.Valence, records.Tempo},
	DanceabilityEnergy:           {"danceability_energy", records.Danceability, records.Energy},
	InstrumentalnessAcousticness: {"instrumentality_acousticness", records.Instrumentalness, records.Acousticness},
}

func (p Projection) String() string {
	if p < 0 || int(p) >= NumProjections {
		return "unknown"
	}
	return projections[p].name
}

// Columns returns the x and y track columns of the projection.
func (p Projection) Columns() (x, y records.TrackColumn) {
	return projections[p].x, projections[p].y
}

// dynamicColumns feed the PCA projection.
var dynamicColumns = []records.TrackColumn{
	records.Acousticness,
	records.Danceability,
	records.Energy,
	records.Instrumentalness,
	records.Loudness,
	records.Speechiness,
	records.Liveness,
	records.Tempo,
	records.Valence,
}

// YearIndex returns the cell column for year, or -1.
func (s *Snapshot) YearIndex(year int) int {
	if year < s.FromYear || year > s.ToYear {
		return -1
	}
	return year - s.FromYear
}

// MemberIndex returns the cell row for a member, or -1.
func (s *Snapshot) MemberIndex(memberID string) int {
	for i, m := range s.Members {
		if m == memberID {
			return i
		}
	}
	return -1
}

// Years lists the snapshot's years in ascending order.
func (s *Snapshot) Years() []int {
	var years []int
	for y := s.FromYear; y <= s.ToYear; y++ {
		years = append(years, y)
	}
	return years
}
