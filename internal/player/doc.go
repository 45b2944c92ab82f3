// Package player implements the playback queue engine.
//
// An [Engine] owns a bounded active queue plus a backlog, and drives a single [Output]
// through an explicit state machine. Every load is stamped with a generation; the output
// reports progress back through [Engine.Handle], and events carrying an older generation
// are dropped. Only the engine calls the output.
//
// States move empty → loading → ready → playing ⇄ paused → loading (on advance) … → ended.
// Load failures put the engine in error, from which it auto-advances when enabled. After
// too many consecutive failures the engine halts in error and reports the queue exhausted.
//
// Observers receive [Notice] values after the engine's lock is released, in the order the
// transitions happened.
package player
