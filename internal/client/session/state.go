package session

import "github.com/dmitrijs2005/inboxpilot/internal/client/authuser"

type Status string

const (
	StatusInitializing  Status = "initializing"
	StatusResolving     Status = "resolving"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
	StatusError         Status = "error"
	StatusLoggingOut    Status = "logging_out"
)

// State is an immutable snapshot of the session.
type State struct {
	Status    Status
	User      authuser.User
	AuthToken string
	IsLoading bool
	Error     string
}

func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// WorkspaceID is the workspace the signed-in user is scoped to, or "".
func (s State) WorkspaceID() string {
	if s.User == nil {
		return ""
	}
	return s.User.WorkspaceID()
}
