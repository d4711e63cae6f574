package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademuri/outtamusic/internal/records"
)

func TestMajorRatioIsExact(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	var refs []records.Ref
	modes := []float64{1, 0, 1, 0, 0, 1, 0}
	for _, m := range modes {
		refs = append(refs, records.Ref{Track: f.track(row(0.5, 100, 0.5, m, 50)), Artists: []int{0}})
	}
	s := computeStats(f.r, refs)
	assert.Equal(t, 3.0/7.0, s.MajorRatio)
	assert.Equal(t, 7, s.TrackCount)
	assert.Equal(t, 7, s.KeyCounts[2])
}

func TestThresholdRatios(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	var refs []records.Ref
	for _, v := range []struct{ instr, live float64 }{{0.5, 0.8}, {0.51, 0.81}, {0.9, 0.1}, {0, 0.95}} {
		r := row(0.5, 100, 0.5, 0.9999, 50)
		r[records.Instrumentalness] = v.instr
		r[records.Liveness] = v.live
		refs = append(refs, records.Ref{Track: f.track(r), Artists: []int{0}})
	}
	s := computeStats(f.r, refs)
	assert.Equal(t, 0.5, s.InstrumentalRatio)
	assert.Equal(t, 0.5, s.LiveRatio)
	assert.Equal(t, 0.0, s.MajorRatio, "0.9999 is not major")
}

func TestTopEntriesTieBreak(t *testing.T) {
	got := topEntries(map[string]int{"a": 3, "b": 3, "c": 1, "d": 2, "e": 2, "f": 2}, topN)
	assert.Equal(t, map[string]int{"a": 3, "b": 3, "d": 2, "e": 2, "f": 2}, got)

	got = topEntries(map[string]int{"z": 1, "y": 1, "x": 1, "w": 1, "v": 1, "u": 1}, topN)
	assert.Equal(t, map[string]int{"u": 1, "v": 1, "w": 1, "x": 1, "y": 1}, got)

	small := map[int]float64{1: 0.5}
	assert.Equal(t, small, topEntries(small, topN))
}

func TestRankedKeysMatchesTruncation(t *testing.T) {
	m := map[int]float64{4: 1.5, 2: 3, 9: 3, 1: 0.5, 7: 1.5, 3: 2}
	assert.Equal(t, []int{2, 9, 3, 4, 7, 1}, RankedKeys(m))

	top := topEntries(m, topN)
	assert.Equal(t, []int{2, 9, 3, 4, 7}, RankedKeys(top))
	assert.Empty(t, RankedKeys(map[string]int{}))
}

func TestPopularityBuffers(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	var refs []records.Ref
	for _, pop := range []float64{50, 10, 90, 10, 70, 30, 90, 5} {
		refs = append(refs, records.Ref{Track: f.track(row(0.5, 100, 0.5, 1, pop)), Artists: []int{0}})
	}
	s := computeStats(f.r, refs)

	tracks := func(ps []PopularTrack) []int {
		var out []int
		for _, p := range ps {
			out = append(out, p.Track)
		}
		return out
	}
	assert.Equal(t, []int{7, 1, 3, 5, 0}, tracks(s.LeastPopular))
	assert.Equal(t, []int{2, 6, 4, 0, 5}, tracks(s.MostPopular))
	assert.Equal(t, 5.0, s.LeastPopular[0].Popularity)
	assert.Equal(t, 44.375, s.AvgPopularity)
}

func TestRankWeightedGenres(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	f.r.Genres = append(f.r.Genres, "jazz")
	f.r.Artists.IDs = append(f.r.Artists.IDs, "ar2")
	f.r.Artists.Rows = append(f.r.Artists.Rows, records.ArtistRow{Genres: []int{1, 0}, Fetched: true})

	refs := []records.Ref{
		{Track: f.track(row(0.5, 100, 0.5, 1, 50)), Artists: []int{0, 1}},
		{Track: f.track(row(0.5, 100, 0.5, 1, 50)), Artists: []int{1}},
	}
	s := computeStats(f.r, refs)

	// rock appears through both artists of the first track but counts once.
	assert.Equal(t, map[int]int{0: 2, 1: 2}, s.GenreCounts)
	assert.Equal(t, map[int]float64{0: 99.5, 1: 99.5}, s.GenreWeighted)
	assert.Equal(t, map[int]int{0: 1, 1: 2}, s.ArtistCounts)
	assert.Equal(t, map[int]int{0: 2}, s.AlbumCounts)
	assert.Equal(t, map[string]int{"1990s": 2}, s.DecadeCounts)
	assert.Equal(t, map[string]float64{"1990s": 99.5}, s.DecadeWeighted)
}

func TestRepeatedArtistCountsOnce(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	refs := []records.Ref{
		{Track: f.track(row(0.5, 100, 0.5, 1, 50)), Artists: []int{0, 0}},
		{Track: f.track(row(0.5, 100, 0.5, 1, 50)), Artists: []int{0}},
	}
	s := computeStats(f.r, refs)
	assert.Equal(t, map[int]int{0: 2}, s.ArtistCounts)
	assert.Equal(t, map[int]int{0: 2}, s.GenreCounts)
}

func TestRankWeightLongList(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	tr := f.track(row(0.5, 100, 0.5, 1, 50))
	refs := make([]records.Ref, 150)
	for i := range refs {
		refs[i] = records.Ref{Track: tr, Artists: []int{0}}
	}
	s := computeStats(f.r, refs)
	// Weights run 150 down to 1.
	assert.InDelta(t, float64(150*151/2)/150, s.GenreWeighted[0], 1e-9)
}

func TestUnknownReleaseYearSkipsDecades(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	f.r.Albums.Rows[0].ReleaseYear = 0
	refs := []records.Ref{{Track: f.track(row(0.5, 100, 0.5, 1, 50)), Artists: []int{0}}}
	s := computeStats(f.r, refs)
	assert.Empty(t, s.DecadeCounts)
	assert.Empty(t, s.DecadeWeighted)
}

func TestEmptyStats(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	s := computeStats(f.r, nil)
	assert.Equal(t, 0, s.TrackCount)
	assert.Zero(t, s.MajorRatio)
	assert.Empty(t, s.MostPopular)
}

func TestDecadeBucket(t *testing.T) {
	for year, want := range map[int]string{
		1850: "pre-1900",
		1899: "pre-1900",
		1900: "1900s",
		1969: "1960s",
		2019: "2010s",
		2020: "2020s",
		2031: "2020s",
	} {
		assert.Equal(t, want, decadeBucket(year), "%d", year)
	}
	buckets := DecadeBuckets()
	require.Len(t, buckets, 14)
	assert.Equal(t, "pre-1900", buckets[0])
	assert.Equal(t, "2020s", buckets[13])
}
