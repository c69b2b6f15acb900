// Package repositories implements SQLite persistence for cached responses and export history.
//
// Key Implementations:
//   - [ResponseCacheRepository] : second cache tier holding raw upstream response bodies with a TTL
//   - [ExportRunRepository] : one summary row per playlist export
//
// Both take a *sql.DB opened by [shared.OpenCache]. The default database path is ":memory:", so
// nothing outlives the process unless a file path is configured.
package repositories
