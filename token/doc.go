// Package token persists the console session token and inspects its claims
// without verifying the signature. Verification belongs to the server; the
// client only needs the subject and expiry to decide whether a stored token
// is still worth sending.
package token
