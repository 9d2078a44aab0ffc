// Command fusiondex analyzes fusion pairs for a set of entity IDs, builds
// teams from the results, and serves both over HTTP.
//
// Typical use:
//
//	fusiondex analyze 1 4 7
//	fusiondex teams 1 4 7 25 133 143 --size 6
//	fusiondex cache audit
//	fusiondex serve --bind 127.0.0.1:8050
package main
