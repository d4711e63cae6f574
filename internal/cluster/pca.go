package cluster

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MinMaxNormalize scales every column of rows into [0, 1] using that
// column's min and max over all rows. Constant columns become 0. The input
// is not modified.
func MinMaxNormalize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	cols := len(rows[0])
	lo := make([]float64, cols)
	hi := make([]float64, cols)
	for c := 0; c < cols; c++ {
		lo[c], hi[c] = math.Inf(1), math.Inf(-1)
	}
	for _, r := range rows {
		for c := 0; c < cols; c++ {
			lo[c] = math.Min(lo[c], r[c])
			hi[c] = math.Max(hi[c], r[c])
		}
	}

	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			if span := hi[c] - lo[c]; span > 0 {
				out[i][c] = (r[c] - lo[c]) / span
			}
		}
	}
	return out
}

// Project2D projects rows onto their first two principal components. Rows
// are centered before projection. With fewer than two rows, or when the
// decomposition fails, every coordinate is zero.
//
// Component signs are fixed so that each component's largest loading is
// positive, which keeps coordinates stable across runs.
func Project2D(rows [][]float64) [][2]float64 {
	n := len(rows)
	out := make([][2]float64, n)
	if n < 2 || len(rows[0]) == 0 {
		return out
	}
	d := len(rows[0])

	x := mat.NewDense(n, d, nil)
	for i, r := range rows {
		x.SetRow(i, r)
	}
	for c := 0; c < d; c++ {
		col := mat.Col(nil, c, x)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			x.Set(i, c, col[i]-mean)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return out
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, nc := vecs.Dims()
	k := min(2, nc)
	if k == 0 {
		return out
	}
	basis := mat.DenseCopyOf(vecs.Slice(0, d, 0, k))
	for j := 0; j < k; j++ {
		if largestLoadingNegative(basis, j) {
			for i := 0; i < d; i++ {
				basis.Set(i, j, -basis.At(i, j))
			}
		}
	}

	var proj mat.Dense
	proj.Mul(x, basis)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			out[i][j] = proj.At(i, j)
		}
	}
	return out
}

func largestLoadingNegative(basis *mat.Dense, col int) bool {
	r, _ := basis.Dims()
	var big float64
	for i := 0; i < r; i++ {
		if v := basis.At(i, col); math.Abs(v) > math.Abs(big) {
			big = v
		}
	}
	return big < 0
}
