package fusion

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidKey reports a composite key that does not encode a valid pair.
var ErrInvalidKey = errors.New("invalid fusion key")

// Key is the composite cache key of a directional pair, e.g. "#12.34".
type Key string

// Pair is a directional combination of two entity IDs.
type Pair struct {
	Primary   int
	Secondary int
}

// NewPair validates and returns the directional pair (a, b).
func NewPair(a, b int) (Pair, error) {
	p := Pair{Primary: a, Secondary: b}
	if !p.Valid() {
		return Pair{}, fmt.Errorf("%w: %d.%d", ErrInvalidKey, a, b)
	}
	return p, nil
}

// Valid reports whether both IDs are positive and distinct.
func (p Pair) Valid() bool {
	return p.Primary > 0 && p.Secondary > 0 && p.Primary != p.Secondary
}

// Key formats the pair as "#{primary}.{secondary}".
func (p Pair) Key() Key {
	return Key("#" + p.String())
}

// String formats the pair as "{primary}.{secondary}".
func (p Pair) String() string {
	return strconv.Itoa(p.Primary) + "." + strconv.Itoa(p.Secondary)
}

// Reverse returns the complementary direction.
func (p Pair) Reverse() Pair {
	return Pair{Primary: p.Secondary, Secondary: p.Primary}
}

// Normalized returns the pair with ascending IDs. The detail page for a pair
// is addressed by its normalized form.
func (p Pair) Normalized() Pair {
	if p.Primary > p.Secondary {
		return p.Reverse()
	}
	return p
}

// Keys returns both directional keys, normalized direction first.
func (p Pair) Keys() (Key, Key) {
	n := p.Normalized()
	return n.Key(), n.Reverse().Key()
}

// ParseKey decodes a composite key. A leading "#" and a trailing ".png" are
// both optional so sprite file names parse the same way as cache keys.
func ParseKey(raw string) (Pair, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimSuffix(strings.TrimSuffix(s, ".png"), ".PNG")
	primary, secondary, ok := strings.Cut(s, ".")
	if !ok || strings.Contains(secondary, ".") {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
	}
	a, err := strconv.Atoi(primary)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
	}
	b, err := strconv.Atoi(secondary)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
	}
	return NewPair(a, b)
}

// Pair decodes the key.
func (k Key) Pair() (Pair, error) {
	return ParseKey(string(k))
}

// FileStem returns the key without its leading "#", used for sprite names.
func (k Key) FileStem() string {
	return strings.TrimPrefix(string(k), "#")
}

// Combinations returns every unordered 2-combination of ids as normalized
// pairs. Duplicates and non-positive IDs are ignored; output is sorted.
func Combinations(ids []int) []Pair {
	uniq := UniqueIDs(ids)
	out := make([]Pair, 0, len(uniq)*(len(uniq)-1)/2)
	for i := 0; i < len(uniq); i++ {
		for j := i + 1; j < len(uniq); j++ {
			out = append(out, Pair{Primary: uniq[i], Secondary: uniq[j]})
		}
	}
	return out
}

// UniqueIDs returns the positive IDs in ids, deduplicated and sorted.
func UniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
