// Package models defines domain entities and persistence interfaces for run history.
//
// The package contains two persistent entities:
//   - [Run] : One library operation (save, clear, or clean) with aggregate counts
//   - [RunEpisode] : A single episode outcome within a run, including failures
//
// [Run] implements the [Model] interface providing ID access and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
