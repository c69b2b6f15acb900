// Package server provides the HTTP routing, middleware and handlers behind the CLI's short-lived local listeners.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
// [Logging] writes one debug line per request.
//
// # OAuth Callback Handler
//
// [AuthCallback] completes the Spotify authorization code flow. It checks the state parameter,
// exchanges the code through an [Exchanger] and delivers one [AuthOutcome].
// Only the first redirect is processed.
//
// `labeltree auth spotify` starts a listener on the configured host and port (127.0.0.1:3000 by default),
// opens the authorization URL and shuts the listener down once a result arrives.
//
// # Metrics
//
// [MetricsHandler] exposes the queue, cache and retry collectors when the CLI runs with --metrics-addr.
package server
