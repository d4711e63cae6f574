package cluster

import (
	"errors"
	"fmt"
	"math"
)

var ErrEmptyInput = errors.New("no points to cluster")

const maxSwapRounds = 100

// Result of a k-medoids run. Assignments[i] is the cluster of point i and is
// always in [0, K). Medoids[c] is the point index at the center of cluster c,
// or -1 when the cluster has no points.
type Result struct {
	K           int
	Assignments []int
	Medoids     []int
}

// KMedoids partitions points into k clusters using Euclidean distance.
//
// Initialization is the greedy BUILD step and refinement alternates between
// assignment and per-cluster medoid update. Every tie goes to the lowest
// index, so the result depends only on the input order.
func KMedoids(points [][]float64, k int) (Result, error) {
	if k < 1 {
		return Result{}, fmt.Errorf("k must be positive, got %d", k)
	}
	n := len(points)
	if n == 0 {
		return Result{}, ErrEmptyInput
	}

	res := Result{K: k, Assignments: make([]int, n), Medoids: make([]int, k)}
	for c := range res.Medoids {
		res.Medoids[c] = -1
	}
	if n <= k {
		for i := range points {
			res.Assignments[i] = i
			res.Medoids[i] = i
		}
		return res, nil
	}

	dist := distances(points)
	medoids := build(dist, k)
	for round := 0; round < maxSwapRounds; round++ {
		assign(dist, medoids, res.Assignments)
		if !update(dist, medoids, res.Assignments) {
			break
		}
	}
	assign(dist, medoids, res.Assignments)
	copy(res.Medoids, medoids)
	return res, nil
}

func distances(points [][]float64) [][]float64 {
	n := len(points)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := euclidean(points[i], points[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		var bi float64
		if i < len(b) {
			bi = b[i]
		}
		d := a[i] - bi
		sum += d * d
	}
	return math.Sqrt(sum)
}

// build greedily picks k medoids: first the most central point, then the
// point that most reduces total distance to the nearest medoid.
func build(dist [][]float64, k int) []int {
	n := len(dist)
	medoids := make([]int, 0, k)
	isMedoid := make([]bool, n)

	first, best := 0, math.Inf(1)
	for i := 0; i < n; i++ {
		var total float64
		for j := 0; j < n; j++ {
			total += dist[i][j]
		}
		if total < best {
			first, best = i, total
		}
	}
	medoids = append(medoids, first)
	isMedoid[first] = true

	nearest := make([]float64, n)
	copy(nearest, dist[first])
	for len(medoids) < k {
		pick, gain := -1, -1.0
		for c := 0; c < n; c++ {
			if isMedoid[c] {
				continue
			}
			var g float64
			for j := 0; j < n; j++ {
				if d := nearest[j] - dist[c][j]; d > 0 {
					g += d
				}
			}
			if g > gain {
				pick, gain = c, g
			}
		}
		medoids = append(medoids, pick)
		isMedoid[pick] = true
		for j := 0; j < n; j++ {
			nearest[j] = math.Min(nearest[j], dist[pick][j])
		}
	}
	return medoids
}

func assign(dist [][]float64, medoids []int, out []int) {
	for i := range out {
		best, bestD := 0, math.Inf(1)
		for c, m := range medoids {
			if d := dist[i][m]; d < bestD {
				best, bestD = c, d
			}
		}
		out[i] = best
	}
}

// update moves each medoid to the member minimizing in-cluster distance and
// reports whether any medoid changed.
func update(dist [][]float64, medoids []int, assignments []int) bool {
	members := make([][]int, len(medoids))
	for i, c := range assignments {
		members[c] = append(members[c], i)
	}
	changed := false
	for c, pts := range members {
		if len(pts) == 0 {
			continue
		}
		cost := func(cand int) float64 {
			var total float64
			for _, p := range pts {
				total += dist[cand][p]
			}
			return total
		}
		// The current medoid wins ties so the loop only moves on strict
		// improvement.
		best, bestCost := medoids[c], cost(medoids[c])
		for _, cand := range pts {
			if cc := cost(cand); cc < bestCost {
				best, bestCost = cand, cc
			}
		}
		if best != medoids[c] {
			medoids[c] = best
			changed = true
		}
	}
	return changed
}
