package scoring

import "fusiondex/internal/fusion"

// PairScoreMap maps a normalized (ascending) pair to the score of its best
// direction.
type PairScoreMap map[fusion.Pair]float64

// Get returns the score for the unordered pair {a, b}. Missing pairs score 0.
func (m PairScoreMap) Get(a, b int) float64 {
	return m[fusion.Pair{Primary: a, Secondary: b}.Normalized()]
}

// Has reports whether a score exists for {a, b}.
func (m PairScoreMap) Has(a, b int) bool {
	_, ok := m[fusion.Pair{Primary: a, Secondary: b}.Normalized()]
	return ok
}

// PairValue is the team-building weight of a single direction.
func PairValue(f ScoredFusion) float64 {
	return float64(f.Total()) + f.DefensiveScore
}

// BuildPairScores collapses both directions of every pair into one weight:
// Total + DefensiveScore of whichever direction scores higher.
func BuildPairScores(fusions []ScoredFusion) PairScoreMap {
	out := make(PairScoreMap, len(fusions)/2+1)
	for _, f := range fusions {
		if !f.Pair.Valid() {
			continue
		}
		key := f.Pair.Normalized()
		value := PairValue(f)
		if current, ok := out[key]; !ok || value > current {
			out[key] = value
		}
	}
	return out
}
