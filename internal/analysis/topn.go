package analysis

import (
	"cmp"
	"slices"
	"sort"
)

const topN = 5

// RankedKeys orders the keys of m by descending value, then ascending key.
// Stats maps are truncated in this order, so listing them with it is stable.
func RankedKeys[K cmp.Ordered, V int | float64](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b K) int {
		if c := cmp.Compare(m[b], m[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return keys
}

// topEntries keeps the n entries that come first in RankedKeys order.
func topEntries[K cmp.Ordered, V int | float64](m map[K]V, n int) map[K]V {
	if len(m) <= n {
		return m
	}
	out := make(map[K]V, n)
	for _, k := range RankedKeys(m)[:n] {
		out[k] = m[k]
	}
	return out
}

// popularityBuffer keeps the best topN tracks seen so far, best first.
// A track only displaces the current worst when strictly better, so among
// equal popularity the higher-ranked (earlier) track stays.
type popularityBuffer struct {
	entries []PopularTrack
	better  func(a, b float64) bool
}

func leastPopular() *popularityBuffer {
	return &popularityBuffer{better: func(a, b float64) bool { return a < b }}
}

func mostPopular() *popularityBuffer {
	return &popularityBuffer{better: func(a, b float64) bool { return a > b }}
}

func (b *popularityBuffer) offer(t PopularTrack) {
	if len(b.entries) < topN {
		b.entries = append(b.entries, t)
		b.sort()
		return
	}
	if !b.better(t.Popularity, b.entries[len(b.entries)-1].Popularity) {
		return
	}
	b.entries[len(b.entries)-1] = t
	b.sort()
}

func (b *popularityBuffer) sort() {
	sort.SliceStable(b.entries, func(i, j int) bool {
		return b.better(b.entries[i].Popularity, b.entries[j].Popularity)
	})
}

func (b *popularityBuffer) result() []PopularTrack {
	return slices.Clone(b.entries)
}
