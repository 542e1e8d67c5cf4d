// Package tasks orchestrates podcast library operations.
//
// # Library Engine
//
// [LibraryEngine] implements [LibraryRunner] against a [services.Service]:
//
//   - SaveOldest: saves the oldest unplayed episode of each followed show
//   - ClearSaved: removes every saved episode in batches of 50
//   - CleanFinished: removes fully played episodes from the library
//
// # Episode Selection
//
// An episode qualifies for saving when it carries an ID, URI, and release
// date, is not already saved, is not fully played, and is not paywalled.
// Release dates compare by precision: year-precision dates resolve to
// January 1st, month-precision to the 1st of the month, and malformed dates
// sort last so they are never selected.
//
// # Error Tolerance
//
// Per-show and per-batch failures are recorded in the [RunResult] and the run
// continues. Authentication failures ([shared.ErrTokenExpired],
// [shared.ErrNotAuthenticated]) and context cancellation abort the run.
//
// # Progress Reporting
//
// Operations accept an optional ProgressUpdate channel. Sends never block:
// when the channel is full the update is dropped, keeping the engine
// independent of consumer speed.
//
// # Throttling
//
// API calls pass through a [rate.Limiter] configured from the library
// settings, keeping bulk operations under the provider's rate limits.
package tasks
