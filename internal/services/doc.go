// Package services implements the HTTP clients behind label exploration and playlist export.
//
// # MusicBrainz
//
// [MusicBrainzService] implements [MetadataService]. Requests are paced by a
// rate-limited queue (one per second by default) and carry a descriptive
// User-Agent. Responses are cached in memory per resource and, when a
// [repositories.ResponseCacheRepository] is supplied, as raw bodies in SQLite.
// List endpoints are drained with [CollectAll].
//
// # Spotify
//
// [SpotifyService] implements [CatalogService]. Authentication is held by a
// [Session] built on [oauth2.Config]; an expired token with a refresh token is
// refreshed transparently. Requests share one queue: playlist writes at high
// priority and lookups at medium priority.
//
// # Retry
//
// [RetryPolicy] retries 429 responses with delay retryAfter * 2^(attempt-1),
// capped at 30s, for at most three attempts. 401 and 403 responses invalidate
// the session and are surfaced as [shared.ErrAuthorizationExpired] without a retry.
//
// # Error Handling
//
// Upstream failures are [shared.APIError] values, so callers can use errors.Is
// with the taxonomy sentinels:
//   - [shared.ErrNotFound] : unknown MBID or catalog ID
//   - [shared.ErrRateLimitExceeded] : retry attempts exhausted
//   - [shared.ErrAuthorizationExpired] : token rejected
//   - [shared.ErrNetwork] : no response received
//   - [shared.ErrDecode] : response body did not match the expected shape
package services
