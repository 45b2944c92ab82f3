// Package ui implements an interactive terminal player using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [BuildView] : Watch the playlist being resolved, fetched and ranked
//  2. [QueueView] : Browse the queue with the now-playing track and transport controls
//  3. [ErrorView] : Show a failed build with the option to rebuild
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Build progress flows through a channel from the PlaylistBuilder and playback notices flow through a second channel
// fed by a [player.Observer], so neither the builder nor the engine ever blocks on rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, space, n/p, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
