// Package teams builds fusion teams from a pool of entity IDs.
//
// A team is a set of members; its score is the weight of the best pairing of
// those members into fusions, where each pair's weight comes from a
// PairScoreFunc. Pairing is delegated to a MaximumWeightMatcher. The exact
// matcher is optimal but exponential in the member count; the builder falls
// back to the greedy matcher when the exact one declines.
package teams
