// Package scoring filters catalog tracks against a goal, scores them for therapeutic fit
// and sequences them into a listening order.
//
// # Filtering
//
// BPM is a hard gate: a track without a tempo estimate, or outside the goal's window, is
// dropped. When a track carries both valence and energy, the values are rescaled from
// [0,1] to [-1,1] and must each fall within the configured tolerance of the goal's VAD
// profile. Tracks missing either value skip the mood check. Tracks flagged missing or bad
// by the catalog are never eligible.
//
// # Scoring
//
// Scores range 0–100: up to 40 for tempo, up to 40 for mood (20 valence, 20 arousal) and
// 10 for having a known key. Key-to-key compatibility is only considered by the [Sequencer].
package scoring
