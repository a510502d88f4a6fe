// Package consolelogin implements the login flow of the business console:
// identifier entry, password or PIN verification, one-time-code password
// setup for accounts without a credential, and the post-login redirect.
//
// The package is designed for interactive front ends: an [Engine] built by
// [Builder.Build] owns the shared country catalog, metrics and audit, and
// hands out one [Flow] per login attempt. Flow methods are safe to call from
// multiple goroutines.
//
// # Architecture boundaries
//
// consolelogin is the public surface. It exposes [Engine], [Builder], [Flow],
// [Config], and the wire types of the security API. The step transitions live
// under internal/flows as pure functions that return the next step and an
// ordered list of effects; this package runs those effects against storage,
// the notifier and the navigator.
//
// # What this package must NOT do
//
//   - Keep process-wide state. The country cache belongs to an Engine.
//   - Persist the setup token or expose it in [SessionState].
//   - Commit a successful login step before the session token is stored.
//   - Import the api package, which builds on consolelogin's wire types.
//     storage and token stay free of consolelogin imports (no import cycles).
package consolelogin
