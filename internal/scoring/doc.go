// Package scoring derives defensive and bulk scores from fusion records and
// ranks them.
//
// The weights are fixed: immunities dominate, quadruple weaknesses are the
// heaviest penalty, and bulk contributes one point per 1000 of average
// HP*DEF / HP*SP.DEF product.
package scoring
