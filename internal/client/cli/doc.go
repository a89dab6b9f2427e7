// Package cli implements inboxctl, the terminal client for the inboxpilot
// dashboard backend.
//
// It wires configuration, the local credential store, the API client and
// the session manager, and exposes them as cobra commands plus an
// interactive shell:
//
//   - login / logout, whoami
//   - workspaces, switch
//   - can (permission checks for the signed-in user)
//   - fetch (raw authorized requests), queue (send countdowns)
//   - watch (realtime events, optional metrics endpoint)
//   - shell (REPL over the same commands)
//
// NewRootCommand builds the command tree; App holds the wired services.
package cli
