package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademuri/outtamusic/internal/records"
)

// fixture builds Records by hand. Every track shares one album released in
// 1995 and one artist tagged "rock".
type fixture struct {
	r records.Records
}

func newFixture(t *testing.T, from, to int) *fixture {
	t.Helper()
	r, err := records.New(from, to)
	require.NoError(t, err)
	r.Albums = records.AlbumTable{
		IDs:  []string{"al"},
		Rows: []records.AlbumRow{{ReleaseYear: 1995, ReleaseType: records.AlbumTypeAlbum, Written: true}},
	}
	r.Artists = records.ArtistTable{
		IDs:  []string{"ar"},
		Rows: []records.ArtistRow{{Followers: 10, Popularity: 20, Genres: []int{0}, Fetched: true}},
	}
	r.Genres = []string{"rock"}
	return &fixture{r: r}
}

func (f *fixture) track(row records.TrackRow) int {
	f.r.Tracks.IDs = append(f.r.Tracks.IDs, fmt.Sprintf("t%d", len(f.r.Tracks.IDs)))
	f.r.Tracks.Rows = append(f.r.Tracks.Rows, row)
	return len(f.r.Tracks.IDs) - 1
}

func (f *fixture) member(id string, years map[int][]int) {
	p := records.MemberPlaylists{MemberID: id, Years: make(map[int][]records.Ref)}
	for year, tracks := range years {
		for _, tr := range tracks {
			p.Years[year] = append(p.Years[year], records.Ref{Track: tr, Album: 0, Artists: []int{0}})
		}
	}
	f.r.Playlists = append(f.r.Playlists, p)
}

func row(valence, tempo, energy, mode, popularity float64) records.TrackRow {
	var r records.TrackRow
	r[records.Valence] = valence
	r[records.Tempo] = tempo
	r[records.Energy] = energy
	r[records.Danceability] = 1 - energy
	r[records.Mode] = mode
	r[records.Key] = 2
	r[records.Popularity] = popularity
	return r
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func recompute(t *testing.T, r records.Records, prior *Snapshot, members []string) *Snapshot {
	t.Helper()
	opts := DefaultOptions()
	opts.Now = fixedNow
	s, err := Recompute(context.Background(), r, prior, members, opts)
	require.NoError(t, err)
	return s
}

func TestRecomputeTwoMembersOneYear(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	a1 := f.track(row(0.9, 120, 0.8, 1, 70))
	a2 := f.track(row(0.8, 125, 0.7, 0, 60))
	b1 := f.track(row(0.1, 80, 0.2, 1, 30))
	b2 := f.track(row(0.2, 85, 0.1, 1, 40))
	f.member("alice", map[int][]int{2020: {a1, a2}})
	f.member("bob", map[int][]int{2020: {b1, b2}})

	s := recompute(t, f.r, nil, []string{"alice", "bob"})

	assert.Equal(t, 5, s.K)
	assert.Equal(t, 1, s.Version)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, fixedNow(), s.ComputedAt)
	assert.Empty(t, s.YearErrors)
	require.Len(t, s.Cells, 2)
	for m, cells := range s.Cells {
		require.Len(t, cells, 1)
		cell := cells[0]
		assert.Equal(t, 2020, cell.Year)
		for p := 0; p < NumProjections; p++ {
			require.Len(t, cell.Static[p], 2, "member %d %s", m, Projection(p))
			for _, c := range cell.Static[p] {
				assert.GreaterOrEqual(t, c, 0)
				assert.Less(t, c, 5)
			}
		}
		require.Len(t, cell.Dynamic.Assignments, 2)
		require.Len(t, cell.Dynamic.Coords, 2)
		for _, c := range cell.Dynamic.Assignments {
			assert.GreaterOrEqual(t, c, 0)
			assert.Less(t, c, 5)
		}
		assert.Equal(t, 2, cell.Stats.TrackCount)
	}
	assert.Equal(t, 0.5, s.Cells[0][0].Stats.MajorRatio)
	assert.Equal(t, 1.0, s.Cells[1][0].Stats.MajorRatio)
	assert.Equal(t, 65.0, s.Cells[0][0].Stats.AvgPopularity)
}

func TestRecomputeCoverageAcrossYears(t *testing.T) {
	f := newFixture(t, 2018, 2021)
	var tracks []int
	for i := 0; i < 30; i++ {
		v := float64(i) / 30
		tracks = append(tracks, f.track(row(v, 60+float64(i*3%50), 1-v, float64(i%2), float64(i))))
	}
	f.member("a", map[int][]int{2018: tracks[0:7], 2019: tracks[5:9], 2021: tracks[20:30]})
	f.member("b", map[int][]int{2018: tracks[7:10], 2020: tracks[10:20], 2021: tracks[0:3]})
	f.member("c", map[int][]int{2019: tracks[12:25]})

	s := recompute(t, f.r, nil, nil)
	require.Equal(t, 6, s.K)

	for m, p := range f.r.Playlists {
		for yi, year := range f.r.Years() {
			want := len(p.Years[year])
			cell := s.Cells[m][yi]
			for proj := 0; proj < NumProjections; proj++ {
				require.Len(t, cell.Static[proj], want)
				for _, c := range cell.Static[proj] {
					require.True(t, c >= 0 && c < s.K)
				}
			}
			require.Len(t, cell.Dynamic.Assignments, want)
			require.Len(t, cell.Dynamic.Coords, want)
			for _, c := range cell.Dynamic.Assignments {
				require.True(t, c >= 0 && c < s.K)
			}
		}
	}
}

// A track shared by two members is pooled twice but must land in the same
// cluster both times, in every projection.
func TestRecomputePoolingOrder(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	var ts []int
	for i := 0; i < 8; i++ {
		ts = append(ts, f.track(row(float64(i)/8, float64(60+i*20), float64(i%3)/3, 1, 50)))
	}
	f.member("a", map[int][]int{2020: {ts[0], ts[1], ts[2]}})
	f.member("b", map[int][]int{2020: {ts[3], ts[4], ts[5], ts[6], ts[7]}})
	f.member("c", map[int][]int{2020: {ts[7], ts[0]}})

	s := recompute(t, f.r, nil, nil)
	for p := 0; p < NumProjections; p++ {
		assert.Equal(t, s.Cells[1][0].Static[p][4], s.Cells[2][0].Static[p][0], "%s", Projection(p))
		assert.Equal(t, s.Cells[0][0].Static[p][0], s.Cells[2][0].Static[p][1], "%s", Projection(p))
	}
	assert.Equal(t, s.Cells[1][0].Dynamic.Coords[4], s.Cells[2][0].Dynamic.Coords[0])
	assert.Equal(t, s.Cells[0][0].Dynamic.Coords[0], s.Cells[2][0].Dynamic.Coords[1])
}

func TestRecomputeIsolatesEmptyYear(t *testing.T) {
	f := newFixture(t, 2019, 2020)
	a := f.track(row(0.5, 100, 0.5, 1, 50))
	b := f.track(row(0.6, 110, 0.4, 1, 55))
	f.member("alice", map[int][]int{2020: {a, b}})

	s := recompute(t, f.r, nil, nil)
	require.Contains(t, s.YearErrors, 2019)
	assert.Contains(t, s.YearErrors[2019], ErrClusteringInputEmpty.Error())
	assert.NotContains(t, s.YearErrors, 2020)
	assert.Equal(t, []int{2019}, s.SortedYearErrors())

	empty := s.Cells[0][0]
	assert.Empty(t, empty.Static[ValenceTempo])
	assert.Empty(t, empty.Dynamic.Assignments)
	assert.Equal(t, 0, empty.Stats.TrackCount)
	assert.Len(t, s.Cells[0][1].Static[ValenceTempo], 2)
}

func TestRecomputeRejectsCorruptRecords(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	a := f.track(row(0.5, 100, 0.5, 1, 50))
	f.member("alice", map[int][]int{2020: {a, 7}})

	_, err := Recompute(context.Background(), f.r, nil, nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrCorruptRecords)
}

func TestRecomputeVersionAndDeterminism(t *testing.T) {
	f := newFixture(t, 2020, 2021)
	var ts []int
	for i := 0; i < 12; i++ {
		ts = append(ts, f.track(row(float64(i%5)/5, float64(70+i*7), float64(i%4)/4, float64(i%2), float64(10*i))))
	}
	f.member("a", map[int][]int{2020: ts[:6], 2021: ts[3:9]})
	f.member("b", map[int][]int{2020: ts[6:], 2021: ts[:4]})

	first := recompute(t, f.r, &Snapshot{Version: 4}, nil)
	second := recompute(t, f.r, first, nil)
	assert.Equal(t, 5, first.Version)
	assert.Equal(t, 6, second.Version)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Cells, second.Cells)
	assert.Equal(t, first.MatchScore, second.MatchScore)
}

func TestRecomputeCancelled(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	a := f.track(row(0.5, 100, 0.5, 1, 50))
	f.member("alice", map[int][]int{2020: {a}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Recompute(ctx, f.r, nil, nil, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatchScoreIdenticalMembers(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	var ts []int
	for i := 0; i < 4; i++ {
		ts = append(ts, f.track(row(float64(i)/4, float64(80+i*30), float64(3-i)/4, 1, 50)))
	}
	f.member("a", map[int][]int{2020: ts})
	f.member("b", map[int][]int{2020: ts})

	s := recompute(t, f.r, nil, nil)
	assert.InDelta(t, 1.0, s.MatchScore, 1e-12)
}

func TestMatchScoreNoPairs(t *testing.T) {
	f := newFixture(t, 2020, 2020)
	a := f.track(row(0.5, 100, 0.5, 1, 50))
	f.member("a", map[int][]int{2020: {a}})
	f.member("b", map[int][]int{})

	s := recompute(t, f.r, nil, nil)
	assert.Equal(t, 0.0, s.MatchScore)
}

func TestIntersection(t *testing.T) {
	assert.InDelta(t, 0.5, intersection([]float64{0.5, 0.5, 0}, []float64{0, 0.5, 0.5}), 1e-12)
	assert.Nil(t, clusterHistogram(nil, 3))
	assert.Equal(t, []float64{0.5, 0, 0.5}, clusterHistogram([]int{0, 2}, 3))
}

func TestClusterCount(t *testing.T) {
	assert.Equal(t, 5, ClusterCount(2, 3))
	assert.Equal(t, 2, ClusterCount(2, 0))
	assert.Equal(t, 2, ClusterCount(2, -4))
	assert.Equal(t, 1, ClusterCount(0, 0))
}
