// Package fusion defines the canonical fusion record model shared by the
// fetcher, cache, scoring engine, and team builder.
//
// A fusion is directional: the record keyed "#12.34" (12 fused into 34) is a
// distinct entity from "#34.12", with its own name, typing, and stats. Pair is
// the typed form of a composite key; ParseKey and Pair.Key round-trip the
// "#{primary}.{secondary}" encoding used by the on-disk cache.
//
// Record decoding is the single place where legacy synonym keys ("hp",
// "Sprite", "Total", ...) are folded into canonical fields. Everything
// downstream works with the typed Stats and Weaknesses values only.
package fusion
