// Package similarity keeps a short per-listener history of recently played tracks and
// flags candidates that would sound like a repeat.
//
// A [Guard] is owned by whoever hosts the listening session (the CLI runner, the HTTP
// server or a test) and is safe for concurrent use.
package similarity
