package teams

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"fusiondex/internal/fusion"
	"fusiondex/internal/logging"
)

const (
	DefaultTeamSize       = 6
	DefaultMaxTeams       = 20
	DefaultCandidateLimit = 5000
)

// Team is a scored set of members and the pairing that produced its score.
type Team struct {
	Members  []int       `json:"members"`
	Pairs    []PairScore `json:"pairs"`
	Score    float64     `json:"score"`
	Unpaired []int       `json:"unpaired"`
	Strategy string      `json:"strategy"`
}

// Builder enumerates candidate teams and ranks them by matching score.
// The zero value uses the package defaults and exact matching with greedy
// fallback.
type Builder struct {
	ExactLimit      int
	CandidateLimit  int
	DefaultMaxTeams int
	Matcher         MaximumWeightMatcher
	Logger          *slog.Logger
}

func (b Builder) matcher() MaximumWeightMatcher {
	if b.Matcher != nil {
		return b.Matcher
	}
	return FallbackMatcher{
		Primary:  ExactMatcher{Limit: b.ExactLimit},
		Fallback: GreedyMatcher{},
	}
}

func (b Builder) candidateLimit() int {
	if b.CandidateLimit <= 0 {
		return DefaultCandidateLimit
	}
	return b.CandidateLimit
}

func (b Builder) maxTeams(requested int) int {
	if requested > 0 {
		return requested
	}
	if b.DefaultMaxTeams > 0 {
		return b.DefaultMaxTeams
	}
	return DefaultMaxTeams
}

// Build returns up to maxTeams teams of teamSize members drawn from pool,
// best first. The pool is deduplicated; fewer than two members yields nil.
func (b Builder) Build(pool []int, teamSize, maxTeams int, score PairScoreFunc) []Team {
	members := fusion.UniqueIDs(pool)
	if len(members) < 2 || score == nil {
		return nil
	}
	if teamSize < 2 {
		teamSize = 2
	}
	if teamSize > len(members) {
		teamSize = len(members)
	}
	limit := b.maxTeams(maxTeams)
	logger := logging.NewComponentLogger(b.Logger, "teams")

	var candidates [][]int
	if combinationsAtMost(len(members), teamSize, b.candidateLimit()) {
		candidates = subsets(members, teamSize)
	} else {
		candidates = seededCandidates(members, teamSize, b.candidateLimit(), score)
	}
	logger.Debug("team candidates generated",
		logging.Int("pool_size", len(members)),
		logging.Int("team_size", teamSize),
		logging.Int("candidate_count", len(candidates)))

	matcher := b.matcher()
	teams := make([]Team, 0, len(candidates))
	for _, cand := range candidates {
		m, err := matcher.Match(cand, score)
		if err != nil {
			logging.WarnWithContext(logger, "team matching failed", "team_match_failed",
				logging.String("members", joinIDs(cand)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "candidate skipped"))
			continue
		}
		teams = append(teams, Team{
			Members:  cand,
			Pairs:    m.Pairs,
			Score:    m.Score,
			Unpaired: m.Unpaired,
			Strategy: m.Strategy,
		})
	}

	sort.SliceStable(teams, func(i, j int) bool {
		if teams[i].Score != teams[j].Score {
			return teams[i].Score > teams[j].Score
		}
		return lessIDs(teams[i].Members, teams[j].Members)
	})
	if len(teams) > limit {
		teams = teams[:limit]
	}
	return teams
}

// combinationsAtMost reports whether C(n, k) <= limit without overflowing.
func combinationsAtMost(n, k, limit int) bool {
	if k > n-k {
		k = n - k
	}
	c := 1
	for i := 1; i <= k; i++ {
		c = c * (n - k + i) / i
		if c > limit {
			return false
		}
	}
	return true
}

// subsets returns every k-subset of sorted members in lexicographic order.
func subsets(members []int, k int) [][]int {
	var out [][]int
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	n := len(members)
	for {
		team := make([]int, k)
		for i, p := range idx {
			team[i] = members[p]
		}
		out = append(out, team)

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

type scoredPair struct {
	a, b  int
	score float64
}

// rankedPairs lists every pair of members by score descending, ties by IDs.
func rankedPairs(members []int, score PairScoreFunc) []scoredPair {
	pairs := make([]scoredPair, 0, len(members)*(len(members)-1)/2)
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			pairs = append(pairs, scoredPair{a: members[i], b: members[j], score: score(members[i], members[j])})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})
	return pairs
}

// seededCandidates grows one team from each of the best pair seeds: the
// highest-scoring pair of unused members is added until one slot remains or
// the team is full, then the member scoring best with the current team fills
// an odd slot. At most limit distinct teams are returned.
func seededCandidates(members []int, k, limit int, score PairScoreFunc) [][]int {
	pairs := rankedPairs(members, score)
	seen := make(map[string]struct{})
	var out [][]int
	for _, seed := range pairs {
		if len(out) >= limit {
			break
		}
		used := map[int]bool{seed.a: true, seed.b: true}
		team := []int{seed.a, seed.b}
		for k-len(team) >= 2 {
			next, ok := bestFreePair(pairs, used)
			if !ok {
				break
			}
			used[next.a], used[next.b] = true, true
			team = append(team, next.a, next.b)
		}
		if len(team) < k {
			if id, ok := bestSingle(members, team, used, score); ok {
				used[id] = true
				team = append(team, id)
			}
		}
		if len(team) != k {
			continue
		}
		sort.Ints(team)
		key := joinIDs(team)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, team)
	}
	return out
}

func bestFreePair(pairs []scoredPair, used map[int]bool) (scoredPair, bool) {
	for _, p := range pairs {
		if !used[p.a] && !used[p.b] {
			return p, true
		}
	}
	return scoredPair{}, false
}

func bestSingle(members, team []int, used map[int]bool, score PairScoreFunc) (int, bool) {
	best, bestScore, found := 0, 0.0, false
	for _, id := range members {
		if used[id] {
			continue
		}
		s := 0.0
		for i, t := range team {
			if v := score(id, t); i == 0 || v > s {
				s = v
			}
		}
		if !found || s > bestScore {
			best, bestScore, found = id, s, true
		}
	}
	return best, found
}

func lessIDs(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
