// Package cluster holds the numeric building blocks of the per-year
// analysis: pooling of per-member rows, normalization, PCA and k-medoids.
package cluster

import (
	"fmt"
	"sort"
)

// Pool describes how per-member lists were concatenated into one pooled
// list. Member i occupies pooled indices [offsets[i], offsets[i+1]).
//
// The same Pool must be used to build clustering input and to map results
// back; Rows and Locate both derive from the offsets.
type Pool struct {
	offsets []int
}

// NewPool builds a pool from each member's list length, in member order.
func NewPool(lengths []int) Pool {
	offsets := make([]int, len(lengths)+1)
	for i, n := range lengths {
		if n < 0 {
			n = 0
		}
		offsets[i+1] = offsets[i] + n
	}
	return Pool{offsets: offsets}
}

// Len is the total number of pooled entries.
func (p Pool) Len() int {
	if len(p.offsets) == 0 {
		return 0
	}
	return p.offsets[len(p.offsets)-1]
}

func (p Pool) Members() int {
	if len(p.offsets) == 0 {
		return 0
	}
	return len(p.offsets) - 1
}

// MemberLen is the list length member contributed.
func (p Pool) MemberLen(member int) int {
	return p.offsets[member+1] - p.offsets[member]
}

// Index returns the pooled index of a member's rel-th entry.
func (p Pool) Index(member, rel int) int {
	return p.offsets[member] + rel
}

// Locate maps a pooled index back to (member, relative index).
func (p Pool) Locate(pooled int) (member, rel int, err error) {
	if pooled < 0 || pooled >= p.Len() {
		return 0, 0, fmt.Errorf("pooled index %d out of range [0,%d)", pooled, p.Len())
	}
	// First member whose range ends after pooled; empty members are skipped
	// because their end equals their start.
	member = sort.Search(p.Members(), func(i int) bool {
		return p.offsets[i+1] > pooled
	})
	return member, pooled - p.offsets[member], nil
}

// Scatter splits pooled values back into per-member slices.
func Scatter[T any](p Pool, pooled []T) ([][]T, error) {
	if len(pooled) != p.Len() {
		return nil, fmt.Errorf("got %d pooled values for a pool of %d", len(pooled), p.Len())
	}
	out := make([][]T, p.Members())
	for m := range out {
		out[m] = make([]T, p.MemberLen(m))
	}
	for i, v := range pooled {
		m, rel, err := p.Locate(i)
		if err != nil {
			return nil, err
		}
		out[m][rel] = v
	}
	return out, nil
}
