package scoring

import (
	"math"
	"sort"

	"fusiondex/internal/fusion"
)

// Type matchup weights.
const (
	ImmunityWeight     = 3.0
	DoubleResistWeight = 1.5
	ResistWeight       = 0.5
	Weak4xPenalty      = 4.0
	Weak2xPenalty      = 1.0
)

// ScoredFusion is a record annotated with its derived scores.
type ScoredFusion struct {
	fusion.Record
	Key            fusion.Key `json:"key"`
	DefensiveScore float64    `json:"defensive"`
	BulkScore      float64    `json:"bulk"`
	Immunities     int        `json:"immunities"`
	DoubleResists  int        `json:"double_resists"`
	HalfResists    int        `json:"half_resists"`
	Resists        int        `json:"resists"`
	Weak2x         int        `json:"weak_2x"`
	Weak4x         int        `json:"weak_4x"`
}

// Total returns the record's TOTAL stat.
func (f ScoredFusion) Total() int {
	if f.Stats == nil {
		return 0
	}
	return f.Stats.Total
}

// Score computes the derived fields for rec. Records without a stats block
// cannot be scored and report false.
func Score(rec fusion.Record) (ScoredFusion, bool) {
	if !rec.HasStats() {
		return ScoredFusion{}, false
	}
	s := rec.Stats
	out := ScoredFusion{
		Record:        rec,
		Key:           rec.Key(),
		Immunities:    rec.Weaknesses.Count(fusion.BucketImmune),
		DoubleResists: rec.Weaknesses.Count(fusion.BucketQuarter),
		HalfResists:   rec.Weaknesses.Count(fusion.BucketHalf),
		Weak2x:        rec.Weaknesses.Count(fusion.BucketDouble),
		Weak4x:        rec.Weaknesses.Count(fusion.BucketQuadruple),
	}
	out.Resists = out.HalfResists + out.DoubleResists

	typeScore := ImmunityWeight*float64(out.Immunities) +
		DoubleResistWeight*float64(out.DoubleResists) +
		ResistWeight*float64(out.HalfResists) -
		Weak4xPenalty*float64(out.Weak4x) -
		Weak2xPenalty*float64(out.Weak2x)

	avgBulk := AverageBulk(*s)
	out.DefensiveScore = round1(typeScore + (avgBulk/10000)*10)
	out.BulkScore = round1(avgBulk / 100)
	return out, true
}

// AverageBulk is the mean of the physical (HP*DEF) and special (HP*SP.DEF)
// bulk products.
func AverageBulk(s fusion.Stats) float64 {
	physical := float64(s.HP) * float64(s.DEF)
	special := float64(s.HP) * float64(s.SpDef)
	return (physical + special) / 2
}

// ScoreAll scores every record with stats, skipping the rest, and returns the
// result sorted.
func ScoreAll(records map[fusion.Key]fusion.Record) []ScoredFusion {
	out := make([]ScoredFusion, 0, len(records))
	for key, rec := range records {
		if rec.Pair == (fusion.Pair{}) {
			if pair, err := key.Pair(); err == nil {
				rec.Pair = pair
			}
		}
		scored, ok := Score(rec)
		if !ok {
			continue
		}
		out = append(out, scored)
	}
	Sort(out)
	return out
}

// Sort orders fusions by TOTAL then DefensiveScore, both descending. Equal
// entries fall back to ascending pair order so output is stable across runs.
func Sort(list []ScoredFusion) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Total() != b.Total() {
			return a.Total() > b.Total()
		}
		if a.DefensiveScore != b.DefensiveScore {
			return a.DefensiveScore > b.DefensiveScore
		}
		return pairLess(a.Pair, b.Pair)
	})
}

func pairLess(a, b fusion.Pair) bool {
	if a.Primary != b.Primary {
		return a.Primary < b.Primary
	}
	return a.Secondary < b.Secondary
}

// round1 rounds half away from zero to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
