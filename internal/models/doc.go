// Package models defines domain entities and persistence interfaces for the cadence playback engine.
//
// The package contains two categories of types:
//
// 1. Snapshots: read-only values handed between engine components
//   - [Track] : One playable catalog asset with optional tempo, mood and key analysis
//   - [GoalDescriptor] : A therapeutic goal with its BPM window and VAD target
//   - [ObjectRef] : A raw object listed from a content source
//   - [SessionSummary] : The flushed result of one listening session
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [PersistedTrack] : A catalog row cached in the local library
//   - [ListeningSession] : A saved session summary
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
