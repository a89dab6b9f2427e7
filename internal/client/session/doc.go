// Package session owns the signed-in state of the client.
//
// # Lifecycle
//
// A Manager is created once at startup, initialized with Init (which
// consumes a one-shot token from the launch address and resolves the current
// user), and torn down with Dispose. Consumers observe it through State and
// Subscribe, and issue backend calls through AuthorizedFetch.
//
// # Resolution outcomes
//
//	2xx + valid user    -> StatusAuthenticated; a rotated token replaces the stored one
//	2xx + invalid user  -> StatusAnonymous, logged, no error surfaced
//	401                 -> StatusAnonymous, stored credentials cleared
//	other / no response -> StatusError with a message; token and user kept
//
// # Ordering
//
// Every RefreshUser call takes a sequence number when it starts. Only the
// most recently started call may apply its result; an older call that
// resolves late is discarded and reports false. Logout also advances the
// sequence, so an in-flight resolution cannot resurrect a signed-out user.
//
// Network failures never escape the Manager; they become state.
package session
