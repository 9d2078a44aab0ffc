package api

import (
	"fusiondex/internal/analyzer"
	"fusiondex/internal/entities"
	"fusiondex/internal/scoring"
	"fusiondex/internal/teams"
)

// Fusion describes one scored directional fusion.
type Fusion struct {
	Key            string              `json:"key"`
	Head           int                 `json:"head"`
	Body           int                 `json:"body"`
	Name           string              `json:"name"`
	Types          []string            `json:"types"`
	Total          int                 `json:"total"`
	Defensive      float64             `json:"defensive"`
	Bulk           float64             `json:"bulk"`
	Stats          map[string]int      `json:"stats"`
	Immunities     int                 `json:"immunities"`
	Resists        int                 `json:"resists"`
	Weak2x         int                 `json:"weak2x"`
	Weak4x         int                 `json:"weak4x"`
	Weaknesses     map[string][]string `json:"weaknesses"`
	SourceURL      string              `json:"sourceUrl,omitempty"`
	SpriteURL      string              `json:"spriteUrl,omitempty"`
	LocalSpriteURL string              `json:"localSpriteUrl,omitempty"`
}

// FusionsResponse is the payload for GET /api/fusions.
type FusionsResponse struct {
	BatchID string   `json:"batchId"`
	Fusions []Fusion `json:"fusions"`
	Fetched int      `json:"fetched"`
	Cached  int      `json:"cached"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Unknown []int    `json:"unknown,omitempty"`
}

// TeamsRequest is the body of POST /api/teams.
type TeamsRequest struct {
	IDs      []int `json:"ids"`
	TeamSize int   `json:"teamSize"`
	MaxTeams int   `json:"maxTeams"`
	Greedy   bool  `json:"greedy"`
}

// TeamPair is one fusion pairing inside a team.
type TeamPair struct {
	A      int     `json:"a"`
	B      int     `json:"b"`
	LabelA string  `json:"labelA"`
	LabelB string  `json:"labelB"`
	Score  float64 `json:"score"`
}

// Team describes one ranked team.
type Team struct {
	Members  []int      `json:"members"`
	Labels   []string   `json:"labels"`
	Pairs    []TeamPair `json:"pairs"`
	Unpaired []int      `json:"unpaired"`
	Score    float64    `json:"score"`
	Strategy string     `json:"strategy"`
}

// TeamsResponse is the payload for POST /api/teams.
type TeamsResponse struct {
	BatchID string `json:"batchId"`
	Teams   []Team `json:"teams"`
	Unknown []int  `json:"unknown,omitempty"`
}

// HealthResponse is the payload for GET /api/health.
type HealthResponse struct {
	Status       string `json:"status"`
	CacheEntries int    `json:"cacheEntries"`
	CacheSource  string `json:"cacheSource"`
	ReadOnly     bool   `json:"readOnly"`
	Offline      bool   `json:"offline"`
	Workers      int    `json:"workers"`
}

// FromScoredFusion converts a scored fusion into its transport form. A local
// sprite is exposed under spritePrefix when present.
func FromScoredFusion(f scoring.ScoredFusion, spritePrefix string) Fusion {
	out := Fusion{
		Key:        string(f.Key),
		Head:       f.Pair.Primary,
		Body:       f.Pair.Secondary,
		Name:       f.Name,
		Types:      f.Types,
		Total:      f.Total(),
		Defensive:  f.DefensiveScore,
		Bulk:       f.BulkScore,
		Immunities: f.Immunities,
		Resists:    f.Resists,
		Weak2x:     f.Weak2x,
		Weak4x:     f.Weak4x,
		Weaknesses: f.Weaknesses,
		SourceURL:  f.SourceURL,
		SpriteURL:  f.SpriteURL,
	}
	if out.Types == nil {
		out.Types = []string{}
	}
	if out.Weaknesses == nil {
		out.Weaknesses = map[string][]string{}
	}
	if f.Stats != nil {
		out.Stats = map[string]int{
			"HP":     f.Stats.HP,
			"ATK":    f.Stats.ATK,
			"DEF":    f.Stats.DEF,
			"SP.ATK": f.Stats.SpAtk,
			"SP.DEF": f.Stats.SpDef,
			"SPEED":  f.Stats.Speed,
			"TOTAL":  f.Stats.Total,
		}
	}
	if f.LocalSprite != "" && spritePrefix != "" {
		out.LocalSpriteURL = spritePrefix + f.LocalSprite
	}
	return out
}

// FromResult converts a resolve result.
func FromResult(res analyzer.Result, spritePrefix string) FusionsResponse {
	out := FusionsResponse{
		BatchID: res.BatchID,
		Fusions: make([]Fusion, 0, len(res.Fusions)),
		Fetched: res.Fetched,
		Cached:  res.Cached,
		Failed:  res.Failed,
		Skipped: res.Skipped,
		Unknown: res.Unknown,
	}
	for _, f := range res.Fusions {
		out.Fusions = append(out.Fusions, FromScoredFusion(f, spritePrefix))
	}
	return out
}

// FromTeam converts a team, labelling members through dir.
func FromTeam(t teams.Team, dir entities.Directory) Team {
	out := Team{
		Members:  t.Members,
		Labels:   make([]string, 0, len(t.Members)),
		Pairs:    make([]TeamPair, 0, len(t.Pairs)),
		Unpaired: t.Unpaired,
		Score:    t.Score,
		Strategy: t.Strategy,
	}
	if out.Unpaired == nil {
		out.Unpaired = []int{}
	}
	for _, id := range t.Members {
		out.Labels = append(out.Labels, entities.Label(dir, id))
	}
	for _, p := range t.Pairs {
		out.Pairs = append(out.Pairs, TeamPair{
			A:      p.A,
			B:      p.B,
			LabelA: entities.Label(dir, p.A),
			LabelB: entities.Label(dir, p.B),
			Score:  p.Score,
		})
	}
	return out
}
