// Package fakeapi is an in-memory security API served over HTTP. It backs
// the api client tests and the CLI demo mode, and mirrors the server's wire
// format and error bodies.
package fakeapi
