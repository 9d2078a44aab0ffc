package teams

import (
	"errors"
	"fmt"
	"sort"
)

// Strategy names reported on matchings.
const (
	StrategyExact  = "exact"
	StrategyGreedy = "greedy"
)

const (
	// DefaultExactLimit is the member count above which ExactMatcher declines.
	DefaultExactLimit = 20
	// MaxExactLimit bounds ExactMatcher's table to 2^24 states.
	MaxExactLimit = 24
)

// ErrTooLarge is returned by ExactMatcher when the member set exceeds its limit.
var ErrTooLarge = errors.New("too many members for exact matching")

// PairScoreFunc returns the weight of fusing a and b. It must be symmetric.
type PairScoreFunc func(a, b int) float64

// PairScore is one matched pair and its weight.
type PairScore struct {
	A     int     `json:"a"`
	B     int     `json:"b"`
	Score float64 `json:"score"`
}

// Matching is a set of disjoint pairs over a member list.
type Matching struct {
	Pairs    []PairScore
	Unpaired []int
	Score    float64
	Strategy string
}

// MaximumWeightMatcher pairs members so the summed weight is as large as the
// strategy can find.
type MaximumWeightMatcher interface {
	Match(members []int, score PairScoreFunc) (Matching, error)
}

// ExactMatcher computes an optimal matching by dynamic programming over
// member subsets.
type ExactMatcher struct {
	Limit int
}

func (m ExactMatcher) limit() int {
	switch {
	case m.Limit <= 0:
		return DefaultExactLimit
	case m.Limit > MaxExactLimit:
		return MaxExactLimit
	default:
		return m.Limit
	}
}

// Match returns an optimal matching. Negative-weight pairs are never taken.
// Among equal totals, pairing a member is preferred over leaving it out.
func (m ExactMatcher) Match(members []int, score PairScoreFunc) (Matching, error) {
	n := len(members)
	if n > m.limit() {
		return Matching{}, fmt.Errorf("%w: %d > %d", ErrTooLarge, n, m.limit())
	}
	weights := weightMatrix(members, score)

	size := 1 << n
	best := make([]float64, size)
	// choice[mask] is the partner of mask's lowest member, or -1 to leave it unpaired.
	choice := make([]int8, size)
	for mask := 1; mask < size; mask++ {
		i := lowestBit(mask)
		rest := mask &^ (1 << i)
		value, partner := 0.0, -1
		found := false
		for j := i + 1; j < n; j++ {
			if rest&(1<<j) == 0 {
				continue
			}
			cand := weights[i][j] + best[rest&^(1<<j)]
			if !found || cand > value {
				value, partner, found = cand, j, true
			}
		}
		if skip := best[rest]; !found || skip > value {
			value, partner = skip, -1
		}
		best[mask] = value
		choice[mask] = int8(partner)
	}

	out := Matching{Strategy: StrategyExact}
	for mask := size - 1; mask != 0; {
		i := lowestBit(mask)
		j := int(choice[mask])
		mask &^= 1 << i
		if j < 0 {
			out.Unpaired = append(out.Unpaired, members[i])
			continue
		}
		mask &^= 1 << j
		out.Pairs = append(out.Pairs, PairScore{A: members[i], B: members[j], Score: weights[i][j]})
		out.Score += weights[i][j]
	}
	finish(&out)
	return out, nil
}

// GreedyMatcher takes pairs in descending weight order whenever both members
// are still free. It is fast but not guaranteed optimal.
type GreedyMatcher struct{}

// Match returns the greedy matching.
func (GreedyMatcher) Match(members []int, score PairScoreFunc) (Matching, error) {
	weights := weightMatrix(members, score)
	type edge struct {
		i, j int
		w    float64
	}
	edges := make([]edge, 0, len(members)*(len(members)-1)/2)
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			if weights[i][j] < 0 {
				continue
			}
			edges = append(edges, edge{i: i, j: j, w: weights[i][j]})
		}
	}
	sort.SliceStable(edges, func(a, b int) bool {
		return edges[a].w > edges[b].w
	})

	used := make([]bool, len(members))
	out := Matching{Strategy: StrategyGreedy}
	for _, e := range edges {
		if used[e.i] || used[e.j] {
			continue
		}
		used[e.i], used[e.j] = true, true
		out.Pairs = append(out.Pairs, PairScore{A: members[e.i], B: members[e.j], Score: e.w})
		out.Score += e.w
	}
	for i, id := range members {
		if !used[i] {
			out.Unpaired = append(out.Unpaired, id)
		}
	}
	finish(&out)
	return out, nil
}

// FallbackMatcher tries Primary and uses Fallback when Primary fails.
type FallbackMatcher struct {
	Primary  MaximumWeightMatcher
	Fallback MaximumWeightMatcher
}

// Match implements MaximumWeightMatcher.
func (m FallbackMatcher) Match(members []int, score PairScoreFunc) (Matching, error) {
	out, err := m.Primary.Match(members, score)
	if err == nil || m.Fallback == nil {
		return out, err
	}
	return m.Fallback.Match(members, score)
}

func weightMatrix(members []int, score PairScoreFunc) [][]float64 {
	weights := make([][]float64, len(members))
	for i := range weights {
		weights[i] = make([]float64, len(members))
	}
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			w := score(members[i], members[j])
			weights[i][j], weights[j][i] = w, w
		}
	}
	return weights
}

func lowestBit(mask int) int {
	i := 0
	for mask&1 == 0 {
		mask >>= 1
		i++
	}
	return i
}

// finish orders pairs and unpaired members for stable output.
func finish(m *Matching) {
	for i, p := range m.Pairs {
		if p.A > p.B {
			m.Pairs[i].A, m.Pairs[i].B = p.B, p.A
		}
	}
	sort.Slice(m.Pairs, func(i, j int) bool {
		if m.Pairs[i].A != m.Pairs[j].A {
			return m.Pairs[i].A < m.Pairs[j].A
		}
		return m.Pairs[i].B < m.Pairs[j].B
	})
	sort.Ints(m.Unpaired)
}
