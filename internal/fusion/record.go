package fusion

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Stat names as they appear on the detail page and in the cache file.
const (
	StatHP    = "HP"
	StatATK   = "ATK"
	StatDEF   = "DEF"
	StatSpAtk = "SP.ATK"
	StatSpDef = "SP.DEF"
	StatSpeed = "SPEED"
	StatTotal = "TOTAL"
)

// StatNames lists every stat in page order.
var StatNames = []string{StatHP, StatATK, StatDEF, StatSpAtk, StatSpDef, StatSpeed, StatTotal}

// Weakness bucket labels, keyed by damage multiplier.
const (
	BucketImmune    = "x0"
	BucketQuarter   = "x1/4"
	BucketHalf      = "x1/2"
	BucketDouble    = "x2"
	BucketQuadruple = "x4"
)

const typeNone = "none"

// Buckets lists the weakness buckets from most to least favourable.
var Buckets = []string{BucketImmune, BucketQuarter, BucketHalf, BucketDouble, BucketQuadruple}

// Stats holds the base stats of one directional fusion.
type Stats struct {
	HP    int `json:"HP"`
	ATK   int `json:"ATK"`
	DEF   int `json:"DEF"`
	SpAtk int `json:"SP.ATK"`
	SpDef int `json:"SP.DEF"`
	Speed int `json:"SPEED"`
	Total int `json:"TOTAL"`
}

// StatsFromMap builds Stats from canonical stat names. It fails unless every
// stat in StatNames is present.
func StatsFromMap(values map[string]int) (Stats, error) {
	var missing []string
	for _, name := range StatNames {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Stats{}, fmt.Errorf("missing stats: %s", strings.Join(missing, ", "))
	}
	return Stats{
		HP:    values[StatHP],
		ATK:   values[StatATK],
		DEF:   values[StatDEF],
		SpAtk: values[StatSpAtk],
		SpDef: values[StatSpDef],
		Speed: values[StatSpeed],
		Total: values[StatTotal],
	}, nil
}

// Weaknesses maps a bucket label to the attacking types in that bucket.
type Weaknesses map[string][]string

// Count returns the number of types in bucket.
func (w Weaknesses) Count(bucket string) int {
	return len(w[bucket])
}

// Record is one directional fusion as fetched from the external source.
// Pair is derived from the cache key and is not serialized.
type Record struct {
	Pair        Pair       `json:"-"`
	Name        string     `json:"name"`
	Types       []string   `json:"types"`
	Stats       *Stats     `json:"stats"`
	Weaknesses  Weaknesses `json:"weaknesses"`
	SpriteURL   string     `json:"sprite_url,omitempty"`
	SourceURL   string     `json:"fusion_url,omitempty"`
	LocalSprite string     `json:"local_sprite,omitempty"`
}

// HasStats reports whether the record carries a stats block.
func (r Record) HasStats() bool {
	return r.Stats != nil
}

// Key returns the record's composite key.
func (r Record) Key() Key {
	return r.Pair.Key()
}

var statSynonyms = map[string]string{
	"hp":     StatHP,
	"atk":    StatATK,
	"attack": StatATK,
	"def":    StatDEF,
	"sp.atk": StatSpAtk,
	"sp_atk": StatSpAtk,
	"spatk":  StatSpAtk,
	"spa":    StatSpAtk,
	"sp.def": StatSpDef,
	"sp_def": StatSpDef,
	"spdef":  StatSpDef,
	"spd":    StatSpDef,
	"speed":  StatSpeed,
	"spe":    StatSpeed,
	"total":  StatTotal,
	"tot":    StatTotal,
}

// CanonicalStatName maps a stat label or legacy key to its canonical name.
func CanonicalStatName(raw string) (string, bool) {
	name, ok := statSynonyms[strings.ToLower(strings.TrimSpace(raw))]
	return name, ok
}

// UnmarshalJSON accepts canonical and legacy stat keys.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	values := make(map[string]int, len(raw))
	for key, value := range raw {
		if name, ok := CanonicalStatName(key); ok {
			values[name] = int(math.Round(value))
		}
	}
	*s = Stats{
		HP:    values[StatHP],
		ATK:   values[StatATK],
		DEF:   values[StatDEF],
		SpAtk: values[StatSpAtk],
		SpDef: values[StatSpDef],
		Speed: values[StatSpeed],
		Total: values[StatTotal],
	}
	return nil
}

// UnmarshalJSON decodes a cache entry, folding legacy synonym keys into the
// canonical fields. An empty stats object decodes as a missing stats block.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Record
	if err := decodeFirst(raw, &out.Name, "name", "Name"); err != nil {
		return err
	}
	if err := decodeTypes(raw, &out.Types); err != nil {
		return err
	}
	if err := decodeFirst(raw, &out.SpriteURL, "sprite_url", "Sprite", "sprite"); err != nil {
		return err
	}
	if err := decodeFirst(raw, &out.SourceURL, "fusion_url", "Fusion URL", "fusionUrl"); err != nil {
		return err
	}
	if err := decodeFirst(raw, &out.LocalSprite, "local_sprite", "Local Sprite", "LocalSprite"); err != nil {
		return err
	}
	if err := decodeFirst(raw, &out.Weaknesses, "weaknesses", "Weaknesses"); err != nil {
		return err
	}
	for _, key := range []string{"stats", "Stats"} {
		body, ok := raw[key]
		if !ok || isEmptyJSON(body) {
			continue
		}
		var stats Stats
		if err := json.Unmarshal(body, &stats); err != nil {
			return fmt.Errorf("decode stats: %w", err)
		}
		out.Stats = &stats
		break
	}
	out.Pair = r.Pair
	*r = out
	return nil
}

func decodeFirst(raw map[string]json.RawMessage, dst any, keys ...string) error {
	for _, key := range keys {
		body, ok := raw[key]
		if !ok || isEmptyJSON(body) {
			continue
		}
		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return nil
	}
	return nil
}

// decodeTypes accepts either an array or a comma-separated string.
func decodeTypes(raw map[string]json.RawMessage, dst *[]string) error {
	for _, key := range []string{"types", "Types"} {
		body, ok := raw[key]
		if !ok || isEmptyJSON(body) {
			continue
		}
		var list []string
		if err := json.Unmarshal(body, &list); err == nil {
			*dst = CleanTypes(list)
			return nil
		}
		var joined string
		if err := json.Unmarshal(body, &joined); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		*dst = CleanTypes(strings.Split(joined, ","))
		return nil
	}
	return nil
}

// CleanTypes trims type names and drops blanks and "none" placeholders.
func CleanTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" || strings.EqualFold(t, typeNone) || t == "-" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isEmptyJSON(body json.RawMessage) bool {
	switch strings.TrimSpace(string(body)) {
	case "", "null", "{}", `""`, "[]":
		return true
	}
	return false
}
