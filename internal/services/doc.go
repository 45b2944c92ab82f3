// Package services defines the [Catalog] interface used to fetch candidate tracks and
// implements it over HTTP.
//
// # Catalog Service
//
// [CatalogService] talks to the catalog's JSON API:
//   - GET /tracks?source=&goal=&min_bpm=&max_bpm=&limit= returns {"tracks": [...]}
//   - GET /sources/{id}/objects?cursor=&limit= returns {"objects": [...], "next_cursor": ""}
//
// When client credentials are configured, requests are authorized with an OAuth2
// client-credentials token that is fetched and refreshed automatically. Every request
// waits on a shared rate limiter, so paging through a large source listing is throttled.
//
// Catalog rows are normalized into [models.Track]: tempo and energy fall back to their
// estimated columns, and a musical key name is converted to its Camelot position when no
// Camelot key is stored.
//
// # Coalescing
//
// [Coalescer] wraps any [Catalog] so that identical concurrent requests share a single
// in-flight call. Calls are keyed by a canonical request signature and forgotten as soon
// as they complete.
//
// # Streams
//
// [StreamResolver] builds playable URLs from a track's bucket and key without I/O.
//
// # Error Handling
//
// Transport failures and non-2xx responses are wrapped with [shared.ErrCatalogRequest].
package services
