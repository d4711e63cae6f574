package analysis

import (
	"fmt"

	"github.com/ademuri/outtamusic/internal/records"
)

const (
	instrumentalThreshold = 0.5
	liveThreshold         = 0.8
	majorThreshold        = 0.999999

	// baseRankWeight is the weight of the top-ranked track in a favorites
	// list. Longer lists raise the base so every weight stays positive.
	baseRankWeight = 100
)

// computeStats aggregates one member's year list, walking it in rank order.
func computeStats(r records.Records, refs []records.Ref) Stats {
	s := Stats{
		AlbumCounts:    make(map[int]int),
		ArtistCounts:   make(map[int]int),
		GenreCounts:    make(map[int]int),
		GenreWeighted:  make(map[int]float64),
		DecadeCounts:   make(map[string]int),
		DecadeWeighted: make(map[string]float64),
	}
	n := len(refs)
	s.TrackCount = n
	if n == 0 {
		return s
	}

	base := max(baseRankWeight, n)
	least, most := leastPopular(), mostPopular()
	for pos, ref := range refs {
		row := r.Tracks.Rows[ref.Track]
		weight := float64(base - pos)

		if row[records.Instrumentalness] > instrumentalThreshold {
			s.InstrumentalRatio++
		}
		if row[records.Liveness] > liveThreshold {
			s.LiveRatio++
		}
		if row[records.Mode] > majorThreshold {
			s.MajorRatio++
		}
		if key := int(row[records.Key]); key >= 0 && key < len(s.KeyCounts) {
			s.KeyCounts[key]++
		}

		s.AlbumCounts[ref.Album]++
		artists := make(map[int]struct{}, len(ref.Artists))
		genres := make(map[int]struct{})
		for _, a := range ref.Artists {
			if _, seen := artists[a]; seen {
				continue
			}
			artists[a] = struct{}{}
			s.ArtistCounts[a]++
			for _, g := range r.Artists.Rows[a].Genres {
				genres[g] = struct{}{}
			}
		}
		for g := range genres {
			s.GenreCounts[g]++
			s.GenreWeighted[g] += weight
		}

		if year := r.Albums.Rows[ref.Album].ReleaseYear; year > 0 {
			d := decadeBucket(year)
			s.DecadeCounts[d]++
			s.DecadeWeighted[d] += weight
		}

		pop := row[records.Popularity]
		s.AvgPopularity += pop
		least.offer(PopularTrack{Track: ref.Track, Popularity: pop})
		most.offer(PopularTrack{Track: ref.Track, Popularity: pop})
	}

	total := float64(n)
	s.InstrumentalRatio /= total
	s.LiveRatio /= total
	s.MajorRatio /= total
	s.AvgPopularity /= total
	for g := range s.GenreWeighted {
		s.GenreWeighted[g] /= total
	}
	for d := range s.DecadeWeighted {
		s.DecadeWeighted[d] /= total
	}

	s.AlbumCounts = topEntries(s.AlbumCounts, topN)
	s.ArtistCounts = topEntries(s.ArtistCounts, topN)
	s.GenreCounts = topEntries(s.GenreCounts, topN)
	s.GenreWeighted = topEntries(s.GenreWeighted, topN)
	s.LeastPopular = least.result()
	s.MostPopular = most.result()
	return s
}

// decadeBucket labels a release year: "pre-1900", "1900s" ... "2020s", where
// 2020s holds everything from 2020 on.
func decadeBucket(year int) string {
	switch {
	case year < 1900:
		return "pre-1900"
	case year >= 2020:
		return "2020s"
	}
	return fmt.Sprintf("%ds", year/10*10)
}

// DecadeBuckets lists every bucket label in chronological order.
func DecadeBuckets() []string {
	out := []string{"pre-1900"}
	for d := 1900; d <= 2020; d += 10 {
		out = append(out, fmt.Sprintf("%ds", d))
	}
	return out
}
