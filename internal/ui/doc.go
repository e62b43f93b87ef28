// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for playlist imports:
//  1. [PlaylistListView] : Browse playlists on the source service and toggle selections
//  2. [ConfirmView] : Review the selection before starting
//  3. [ImportView] : Monitor live progress with pause/resume controls
//  4. [ResultView] : Display per-playlist results and unmatched tracks
//
// The [Model] implements bubbletea's standard Init/Update/View pattern. Import
// progress flows through a channel bridging the import manager's callbacks
// into bubbletea messages, so the loop itself never blocks the UI.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with
// contextual help displayed via charmbracelet/bubbles/help. During an import,
// p pauses at the next track boundary and r resumes.
package ui
