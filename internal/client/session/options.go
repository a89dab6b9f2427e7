package session

import (
	"github.com/dmitrijs2005/inboxpilot/internal/client/metrics"
)

type Option func(*Manager)

func WithNavigator(n Navigator) Option {
	return func(m *Manager) { m.nav = n }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithCallbackURL sets where the OAuth flow should send the browser back to.
func WithCallbackURL(u string) Option {
	return func(m *Manager) { m.callbackURL = u }
}

type refreshOptions struct {
	workspaceID string
}

type RefreshOption func(*refreshOptions)

// ForWorkspace scopes a resolution to one workspace.
func ForWorkspace(id string) RefreshOption {
	return func(o *refreshOptions) { o.workspaceID = id }
}
