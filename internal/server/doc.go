// Package server exposes the goal-to-playlist pipeline over a small JSON HTTP API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers so that the first middleware added runs first, following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns internally.
//
// # API
//
// [API] registers the read-only endpoints used by players and dashboards:
//
//	GET  /health                      liveness check
//	GET  /goals                       every configured goal
//	GET  /goals/resolve?q=            resolve free text to a goal
//	POST /sources/expand              expand content sources with fallbacks
//	GET  /playlist?goal=&listener=    build a ranked, sequenced playlist
//	GET  /listeners/{id}/history      repetition history for a listener
//	GET  /sessions?listener=&limit=   recently saved listening sessions
//
// Errors are returned as {"error": "..."} with a status derived from the shared sentinel errors:
// unknown goals never fail, an empty playlist is a 404, and catalog failures are a 502.
package server
