// Package storage provides the persisted key-value stores used by the login
// flow for the session token, the active business id, and the last-used
// login country.
//
// Three backends share one method set: Memory for tests and ephemeral use,
// Redis for shared deployments, and SQLite for single-host persistence. None
// of them interpret values.
package storage
