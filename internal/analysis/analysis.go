// Package analysis computes a group's analysis snapshot from its records:
// per-year static and PCA clustering over the pooled tracks of every member,
// plus per-member statistics.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ademuri/outtamusic/internal/cluster"
	"github.com/ademuri/outtamusic/internal/records"
)

var (
	// ErrClusteringInputEmpty marks a year with no pooled tracks. That year's
	// assignments stay empty; other years are unaffected.
	ErrClusteringInputEmpty = errors.New("no tracks to cluster")
	ErrCorruptRecords       = errors.New("records are inconsistent")
)

// DefaultExtraClusters is added to the member count to get k, so clustering
// can expose sub-groupings finer than one cluster per member.
const DefaultExtraClusters = 3

type Options struct {
	ExtraClusters int
	Logger        *zerolog.Logger
	// Parallelism bounds how many years are clustered at once. Zero means
	// GOMAXPROCS.
	Parallelism int
	Now         func() time.Time
}

func DefaultOptions() Options {
	return Options{ExtraClusters: DefaultExtraClusters}
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// ClusterCount is k for a group of the given size.
func ClusterCount(members, extra int) int {
	return max(1, members+max(0, extra))
}

// yearResult is everything computed for one year, indexed by member.
type yearResult struct {
	static  [NumProjections][][]int
	dynamic [][]int
	coords  [][][2]float64
	stats   []Stats
	err     error
}

// Recompute builds a fresh snapshot over all members and all years of r.
// prior, when non-nil, is the snapshot being replaced; only its version is
// carried forward. groupMembers sizes k; when empty the record's member
// count is used.
//
// A year that can't be clustered is recorded in YearErrors and left with
// empty assignments. Structural problems in r fail the whole call.
func Recompute(ctx context.Context, r records.Records, prior *Snapshot, groupMembers []string, opts Options) (*Snapshot, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecords, err)
	}
	log := opts.logger()

	memberCount := len(groupMembers)
	if memberCount == 0 {
		memberCount = len(r.Playlists)
	}
	years := r.Years()
	snap := &Snapshot{
		ID:         uuid.NewString(),
		Version:    1,
		ComputedAt: opts.now().UTC(),
		FromYear:   r.FromYear,
		ToYear:     r.ToYear,
		Members:    r.MemberIDs(),
		K:          ClusterCount(memberCount, opts.ExtraClusters),
	}
	if prior != nil {
		snap.Version = prior.Version + 1
	}

	results := make([]yearResult, len(years))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for yi, year := range years {
		yi, year := yi, year
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[yi] = analyzeYear(r, year, snap.K)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.Cells = make([][]Cell, len(r.Playlists))
	for m := range snap.Cells {
		snap.Cells[m] = make([]Cell, len(years))
	}
	for yi, year := range years {
		res := results[yi]
		if res.err != nil {
			if snap.YearErrors == nil {
				snap.YearErrors = make(map[int]string)
			}
			snap.YearErrors[year] = res.err.Error()
			log.Warn().Err(res.err).Int("year", year).Msg("skipping year clustering")
		}
		for m := range r.Playlists {
			cell := Cell{Year: year, Stats: res.stats[m]}
			for p := 0; p < NumProjections; p++ {
				cell.Static[p] = memberSlice(res.static[p], m)
			}
			cell.Dynamic.Assignments = memberSlice(res.dynamic, m)
			cell.Dynamic.Coords = memberSlice(res.coords, m)
			snap.Cells[m][yi] = cell
		}
	}
	snap.MatchScore = matchScore(snap)

	log.Info().
		Str("snapshot", snap.ID).
		Int("version", snap.Version).
		Int("members", len(snap.Members)).
		Int("years", len(years)).
		Int("k", snap.K).
		Int("skipped_years", len(snap.YearErrors)).
		Msg("recomputed analysis")
	return snap, nil
}

func memberSlice[T any](perMember [][]T, m int) []T {
	if m < len(perMember) && perMember[m] != nil {
		return perMember[m]
	}
	return []T{}
}

// analyzeYear runs statistics and both clustering passes for one year.
func analyzeYear(r records.Records, year, k int) yearResult {
	var res yearResult
	lengths := make([]int, len(r.Playlists))
	res.stats = make([]Stats, len(r.Playlists))
	for m, p := range r.Playlists {
		refs := p.Years[year]
		lengths[m] = len(refs)
		res.stats[m] = computeStats(r, refs)
	}

	pool := cluster.NewPool(lengths)
	if pool.Len() == 0 {
		res.err = fmt.Errorf("year %d: %w", year, ErrClusteringInputEmpty)
		return res
	}
	rows := pooledRows(r, year, pool)

	for p := 0; p < NumProjections; p++ {
		x, y := Projection(p).Columns()
		points := make([][]float64, len(rows))
		for i, row := range rows {
			points[i] = []float64{row[x], row[y]}
		}
		assigned, err := clusterAndScatter(pool, points, k)
		if err != nil {
			res.err = fmt.Errorf("year %d %s: %w", year, Projection(p), err)
			return res
		}
		res.static[p] = assigned
	}

	wide := make([][]float64, len(rows))
	for i, row := range rows {
		wide[i] = make([]float64, len(dynamicColumns))
		for j, c := range dynamicColumns {
			wide[i][j] = row[c]
		}
	}
	coords := cluster.Project2D(cluster.MinMaxNormalize(wide))
	points := make([][]float64, len(coords))
	for i, c := range coords {
		points[i] = []float64{c[0], c[1]}
	}
	assigned, err := clusterAndScatter(pool, points, k)
	if err != nil {
		res.err = fmt.Errorf("year %d dynamic: %w", year, err)
		return res
	}
	scattered, err := cluster.Scatter(pool, coords)
	if err != nil {
		res.err = fmt.Errorf("year %d dynamic: %w", year, err)
		return res
	}
	res.dynamic = assigned
	res.coords = scattered
	return res
}

// pooledRows gathers the track rows of every member's year list, members in
// store order and each list in rank order. Index i of the result is pooled
// index i of pool.
func pooledRows(r records.Records, year int, pool cluster.Pool) []records.TrackRow {
	rows := make([]records.TrackRow, pool.Len())
	for m, p := range r.Playlists {
		for rel, ref := range p.Years[year] {
			rows[pool.Index(m, rel)] = r.Tracks.Rows[ref.Track]
		}
	}
	return rows
}

func clusterAndScatter(pool cluster.Pool, points [][]float64, k int) ([][]int, error) {
	res, err := cluster.KMedoids(points, k)
	if err != nil {
		return nil, err
	}
	return cluster.Scatter(pool, res.Assignments)
}

// matchScore averages, over every year and every pair of members with
// tracks that year, the overlap of their dynamic cluster distributions.
func matchScore(s *Snapshot) float64 {
	var total float64
	var pairs int
	for yi := range s.Years() {
		var hists [][]float64
		for m := range s.Cells {
			if h := clusterHistogram(s.Cells[m][yi].Dynamic.Assignments, s.K); h != nil {
				hists = append(hists, h)
			}
		}
		for i := 0; i < len(hists); i++ {
			for j := i + 1; j < len(hists); j++ {
				total += intersection(hists[i], hists[j])
				pairs++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

func clusterHistogram(assignments []int, k int) []float64 {
	if len(assignments) == 0 {
		return nil
	}
	h := make([]float64, k)
	for _, c := range assignments {
		h[c]++
	}
	for c := range h {
		h[c] /= float64(len(assignments))
	}
	return h
}

func intersection(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += min(a[i], b[i])
	}
	return sum
}

// SortedYearErrors returns the years that failed, ascending.
func (s *Snapshot) SortedYearErrors() []int {
	years := make([]int, 0, len(s.YearErrors))
	for y := range s.YearErrors {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
