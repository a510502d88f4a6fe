// Package flows contains the transition functions of the login flow.
//
// Each Run function (RunIdentify, RunVerify, RunVerifyOTP, RunSetupPassword)
// validates flow-local input, performs exactly one backend call through its
// dependency struct, and returns an Outcome: the next step plus the ordered
// list of side effects the caller must execute. Nothing here persists a
// token, navigates, or notifies the user; the root Flow applies outcomes.
//
// # Architecture boundaries
//
// Transition functions do NOT own the session. The root package holds the
// session state, the loading guard and the effect runner, and maps its public
// types onto the flow-local records declared here.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Perform I/O other than through dependency functions.
package flows
