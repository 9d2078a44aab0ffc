// Package api serves fusion analysis over HTTP.
//
// Routes are mounted on a chi router:
//
//	GET  /api/health            cache and configuration summary
//	GET  /api/fusions?ids=1,4,7 scored fusions for every pair of ids
//	POST /api/teams             ranked teams for a pool of ids
//	GET  /sprites/{file}        locally stored sprite images
//
// Handlers translate internal models into camelCase DTOs (see types.go) so
// browser clients never depend on the cache file layout. Errors are written
// as {"error": "..."} with a status derived from services.HTTPStatus.
package api
