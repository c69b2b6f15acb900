// Package tasks orchestrates the long-running operations behind the CLI with real-time progress reporting.
//
// # Family Trees
//
// [TreeBuilder.BuildTree] recursively walks label-label relations from a root label down to a
// maximum depth (default 3):
//
//  1. Each node fetches its label with relations; a failed root fails the build,
//     a failed descendant drops only its own subtree
//  2. Children are built concurrently and kept in relation order
//  3. A label already on the path from the root is not expanded again
//  4. [TreeBuilder.AttachRosters] then fetches one roster per distinct label ID
//     and writes it back onto every node carrying that ID
//
// Totals (labels, artists, realized depth) are computed once the tree is complete.
// [FilterTree] returns a filtered copy: a node whose relationship type is excluded
// stays visible while any of its descendants survives.
//
// # Playlist Export
//
// [ExportEngine.Export] resolves label releases to Spotify albums and writes the de-duplicated
// track list to a new playlist:
//
//  1. A combined artist+album search, falling back to an album-only search filtered by [MatchArtist]
//  2. Album tracks truncated to the requested count
//  3. URIs de-duplicated in first-seen order
//  4. Writes in batches of [services.MaxTracksPerRequest]
//
// A release with no matching album contributes nothing and the export continues.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
