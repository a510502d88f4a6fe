// Package api is the JSON-over-HTTP client of the console security API. It
// implements consolelogin.SecurityAPI.
//
// Non-2xx responses decode into *Error, whose Message is the server's
// user-facing text and is shown verbatim by the login flow.
package api
