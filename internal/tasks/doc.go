// Package tasks orchestrates goal-driven playlist building with real-time progress reporting.
//
// # Core Operations
//
//  1. [PlaylistBuilder.Build] : Goal → ordered playlist
//     - Resolves free-form goal input to a [models.GoalDescriptor]
//     - Expands the goal's content sources through the fallback table
//     - Fetches candidates from every source concurrently
//     - De-duplicates, filters, ranks and sequences the candidates
//
//  2. [ScanSources] : Source health check
//     - Lists the raw objects of each source with a rate-limited worker pool
//     - Reports empty or failing sources so they can be added to the skip list
//
// # Progress Reporting
//
// Operations accept an optional channel for [ProgressUpdate] values.
// Updates use select with default so reporting never blocks the operation.
//
// # Superseding
//
// Each Build call supersedes the one before it: the in-flight build is cancelled and returns
// [shared.ErrSuperseded], so only the most recent request can produce a playlist.
//
// # Track Caching
//
// The optional [TrackCacher] interface stores fetched candidates in the local library.
// Tracks are cached silently (errors logged) to avoid disrupting builds.
package tasks
