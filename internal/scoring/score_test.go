package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusiondex/internal/fusion"
)

func record(a, b int, stats *fusion.Stats, weak fusion.Weaknesses) fusion.Record {
	return fusion.Record{
		Pair:       fusion.Pair{Primary: a, Secondary: b},
		Name:       "Test",
		Stats:      stats,
		Weaknesses: weak,
	}
}

func TestScoreBulkOnly(t *testing.T) {
	rec := record(1, 4, &fusion.Stats{HP: 100, DEF: 100, SpDef: 100}, fusion.Weaknesses{})

	got, ok := Score(rec)
	require.True(t, ok)
	assert.Equal(t, 10.0, got.DefensiveScore)
	assert.Equal(t, 100.0, got.BulkScore)
	assert.Equal(t, fusion.Key("#1.4"), got.Key)
}

func TestScoreTypeOnly(t *testing.T) {
	rec := record(1, 4, &fusion.Stats{}, fusion.Weaknesses{
		fusion.BucketQuadruple: {"Ice"},
		fusion.BucketImmune:    {"Ground"},
	})

	got, ok := Score(rec)
	require.True(t, ok)
	assert.Equal(t, -1.0, got.DefensiveScore)
	assert.Equal(t, 0.0, got.BulkScore)
	assert.Equal(t, 1, got.Immunities)
	assert.Equal(t, 1, got.Weak4x)
}

func TestScoreCountsAndRounding(t *testing.T) {
	rec := record(2, 3, &fusion.Stats{HP: 45, DEF: 49, SpDef: 64, Total: 318}, fusion.Weaknesses{
		fusion.BucketQuarter: {"Grass"},
		fusion.BucketHalf:    {"Water", "Electric", "Fighting"},
		fusion.BucketDouble:  {"Fire", "Flying"},
	})

	got, ok := Score(rec)
	require.True(t, ok)
	// typeScore = 1.5 + 1.5 - 2 = 1.0; avgBulk = (2205 + 2880) / 2 = 2542.5
	assert.Equal(t, 3.5, got.DefensiveScore)
	assert.Equal(t, 25.4, got.BulkScore)
	assert.Equal(t, 4, got.Resists)
	assert.Equal(t, 1, got.DoubleResists)
	assert.Equal(t, 3, got.HalfResists)
	assert.Equal(t, 2, got.Weak2x)
}

func TestScoreWithoutStats(t *testing.T) {
	_, ok := Score(record(1, 2, nil, nil))
	assert.False(t, ok)
}

func TestSortByTotalThenDefensive(t *testing.T) {
	list := []ScoredFusion{
		{Record: record(1, 2, &fusion.Stats{Total: 550}, nil), DefensiveScore: 40},
		{Record: record(3, 4, &fusion.Stats{Total: 600}, nil), DefensiveScore: 1},
		{Record: record(5, 6, &fusion.Stats{Total: 600}, nil), DefensiveScore: 2},
		{Record: record(2, 1, &fusion.Stats{Total: 550}, nil), DefensiveScore: 40},
	}

	Sort(list)

	got := make([]string, 0, len(list))
	for _, f := range list {
		got = append(got, f.Pair.String())
	}
	assert.Equal(t, []string{"5.6", "3.4", "1.2", "2.1"}, got)
}

func TestScoreAllSkipsIncompleteAndSetsPair(t *testing.T) {
	records := map[fusion.Key]fusion.Record{
		"#1.4": {Name: "A", Stats: &fusion.Stats{HP: 10, DEF: 10, SpDef: 10, Total: 300}},
		"#4.1": {Name: "B"},
		"#2.3": {Name: "C", Stats: &fusion.Stats{Total: 400}},
	}

	got := ScoreAll(records)
	require.Len(t, got, 2)
	assert.Equal(t, fusion.Key("#2.3"), got[0].Key)
	assert.Equal(t, fusion.Pair{Primary: 1, Secondary: 4}, got[1].Pair)
}

func TestBuildPairScoresTakesBestDirection(t *testing.T) {
	fusions := []ScoredFusion{
		{Record: record(1, 2, &fusion.Stats{Total: 500}, nil), DefensiveScore: 5},
		{Record: record(2, 1, &fusion.Stats{Total: 520}, nil), DefensiveScore: -3},
		{Record: record(3, 1, &fusion.Stats{Total: 300}, nil), DefensiveScore: 1.5},
	}

	scores := BuildPairScores(fusions)

	assert.Len(t, scores, 2)
	assert.Equal(t, 517.0, scores.Get(1, 2))
	assert.Equal(t, 517.0, scores.Get(2, 1))
	assert.Equal(t, 301.5, scores.Get(1, 3))
	assert.True(t, scores.Has(3, 1))
	assert.False(t, scores.Has(2, 3))
	assert.Equal(t, 0.0, scores.Get(2, 3))
}
