// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for the podcast library:
//  1. [ShowListView] : Browse followed shows
//  2. [EpisodeListView] : Preview a show's episodes with playback markers
//  3. [ConfirmView] : Confirm a save run across all shows
//  4. [RunView] : Monitor real-time progress updates
//  5. [ResultView] : Display saved episodes, skips, and failures
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the LibraryEngine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
