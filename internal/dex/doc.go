// Package dex retrieves fusion detail pages and turns them into records.
//
// One page per unordered pair describes both directions: the first fusion
// panel is the ascending pair (lo into hi), the second its reverse. Client
// fetches pages politely (rate limited, one GET per pair) and ParsePage
// extracts names, typings, the stats grid, and the weakness chart. A pair is
// all-or-nothing: if either direction lacks a stat the page is rejected.
//
// SpriteStore downloads fusion sprites into a local directory on a best-effort
// basis so the cache can reference them offline.
package dex
