package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/dmitrijs2005/inboxpilot/internal/client/apiclient"
	"github.com/dmitrijs2005/inboxpilot/internal/client/authuser"
	"github.com/dmitrijs2005/inboxpilot/internal/client/location"
	"github.com/dmitrijs2005/inboxpilot/internal/client/metrics"
	"github.com/dmitrijs2005/inboxpilot/internal/client/tokenstore"
	"github.com/dmitrijs2005/inboxpilot/internal/logging"
	"github.com/google/uuid"
)

const (
	MePath     = "/api/auth/me"
	LogoutPath = "/api/auth/logout"
	LoginPath  = "/api/auth/instagram"

	RequestIDHeader = "X-Request-Id"
)

// API is the part of apiclient.Client the Manager depends on.
type API interface {
	Fetch(ctx context.Context, method, path string, body io.Reader, opts ...apiclient.Option) (*http.Response, error)
	Resolve(path string) (*url.URL, error)
}

type Manager struct {
	api   API
	store *tokenstore.Store
	log   logging.Logger

	nav         Navigator
	metrics     *metrics.Metrics
	callbackURL string

	life   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	seq      uint64
	disposed bool
	subs     map[int]chan State
	nextSub  int
}

func New(api API, store *tokenstore.Store, log logging.Logger, opts ...Option) *Manager {
	life, cancel := context.WithCancel(context.Background())
	m := &Manager{
		api:    api,
		store:  store,
		log:    log,
		life:   life,
		cancel: cancel,
		state:  State{Status: StatusInitializing, IsLoading: true},
		subs:   map[int]chan State{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init consumes a one-shot token from the launch location, if any, and
// resolves the current user. loc may be nil.
func (m *Manager) Init(ctx context.Context, loc location.Location) bool {
	if loc != nil {
		if token := location.ExtractAuthToken(loc); token != "" {
			m.log.Info(ctx, "auth token taken from launch url")
			m.store.StagePendingToken(ctx, token)
		}
	}
	return m.RefreshUser(ctx)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a channel that always holds the latest state snapshot.
// Slow readers skip intermediate states. The channel is closed by cancel or
// by Dispose.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan State, 1)
	if m.disposed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// publish must be called with m.mu held.
func (m *Manager) publish() {
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- m.state
	}
}

// RefreshUser resolves the current user against the backend and reports
// whether the session ended up authenticated. It returns false without
// touching state when a newer call has started in the meantime or the
// Manager has been disposed.
func (m *Manager) RefreshUser(ctx context.Context, opts ...RefreshOption) bool {
	var o refreshOptions
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return false
	}
	m.seq++
	seq := m.seq
	m.state.Status = StatusResolving
	m.state.IsLoading = true
	m.publish()
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.life, cancel)
	defer stop()

	token := m.store.AuthToken(ctx)
	reqID := uuid.NewString()
	log := m.log.With("request_id", reqID, "workspace_id", o.workspaceID)

	res := m.resolve(ctx, token, o.workspaceID, reqID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed || seq != m.seq {
		log.Debug(ctx, "stale user resolution dropped", "outcome", res.outcome)
		m.observe("superseded")
		return false
	}

	m.observe(res.outcome)

	switch res.outcome {
	case outcomeAuthenticated:
		fresh := token
		if t := res.user.RefreshedToken(); t != "" {
			fresh = t
		}
		m.rememberLocked(ctx, res.user, fresh)
		m.state = State{Status: StatusAuthenticated, User: res.user, AuthToken: fresh}
		log.Info(ctx, "session resolved", "user", res.user.DisplayName())
	case outcomeUnauthorized:
		m.store.PersistAuthToken(ctx, "")
		m.state = State{Status: StatusAnonymous}
		log.Info(ctx, "session rejected by backend, credentials cleared")
	case outcomeInvalid:
		m.state = State{Status: StatusAnonymous}
		log.Warn(ctx, "backend returned an unusable user payload", "error", res.err)
	default:
		m.state = State{
			Status:    StatusError,
			User:      m.state.User,
			AuthToken: token,
			Error:     res.message,
		}
		log.Error(ctx, "session resolution failed", "error", res.err)
	}
	m.publish()

	return res.outcome == outcomeAuthenticated
}

const (
	outcomeAuthenticated = "authenticated"
	outcomeUnauthorized  = "unauthorized"
	outcomeInvalid       = "invalid_payload"
	outcomeFailed        = "error"
)

type resolution struct {
	outcome string
	user    authuser.User
	message string
	err     error
}

func (m *Manager) resolve(ctx context.Context, token, workspaceID, reqID string) resolution {
	path := MePath
	if workspaceID != "" {
		path += "?instagramId=" + url.QueryEscape(workspaceID)
	}

	resp, err := m.api.Fetch(ctx, http.MethodGet, path, nil,
		apiclient.WithAuthToken(token),
		apiclient.WithHeader(RequestIDHeader, reqID),
	)
	if err != nil {
		return resolution{
			outcome: outcomeFailed,
			message: "Could not reach the server. Check your connection and try again.",
			err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resolution{outcome: outcomeUnauthorized}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resolution{
			outcome: outcomeFailed,
			message: "Could not read the server response. Try again.",
			err:     fmt.Errorf("read body: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resolution{
			outcome: outcomeFailed,
			message: fmt.Sprintf("Could not load your session (server responded %d). Try again.", resp.StatusCode),
			err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	user, err := authuser.DecodeEnvelope(body)
	if err != nil {
		return resolution{outcome: outcomeInvalid, err: err}
	}
	return resolution{outcome: outcomeAuthenticated, user: user}
}

func (m *Manager) rememberLocked(ctx context.Context, u authuser.User, token string) {
	acc := tokenstore.Account{InstagramID: u.WorkspaceID(), Token: token}
	switch v := u.(type) {
	case authuser.Owner:
		acc.Username = v.Username
		acc.AccountType = v.AccountType
		acc.LastLoginAt = v.LastLoginAt
	case authuser.TeamMember:
		acc.Username = v.WorkspaceUsername
		acc.LastLoginAt = v.LastLoginAt
	}
	m.store.RememberAccount(ctx, acc)
}

func (m *Manager) observe(outcome string) {
	if m.metrics != nil {
		m.metrics.SessionResolutionsTotal.WithLabelValues(outcome).Inc()
	}
}

// SwitchWorkspace makes id the active workspace and resolves the user for it.
func (m *Manager) SwitchWorkspace(ctx context.Context, id string) bool {
	if err := m.store.SetActiveWorkspace(ctx, id); err != nil {
		m.log.Warn(ctx, "workspace switch refused", "workspace_id", id, "error", err)
		m.mu.Lock()
		if !m.disposed {
			m.state.Error = fmt.Sprintf("Workspace %s is not signed in on this device.", id)
			m.publish()
		}
		m.mu.Unlock()
		return false
	}
	return m.RefreshUser(ctx, ForWorkspace(id))
}

// LoginURL is the OAuth entry point, carrying the callback as redirect.
func (m *Manager) LoginURL() (string, error) {
	u, err := m.api.Resolve(LoginPath)
	if err != nil {
		return "", err
	}
	if m.callbackURL != "" {
		q := u.Query()
		q.Set("redirect", m.callbackURL)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// RedirectToLogin hands the OAuth entry URL to the navigator.
func (m *Manager) RedirectToLogin(ctx context.Context) error {
	if m.nav == nil {
		return ErrNoNavigator
	}
	target, err := m.LoginURL()
	if err != nil {
		return fmt.Errorf("build login url: %w", err)
	}
	m.log.Info(ctx, "redirecting to login", "url", target)
	if err := m.nav.Open(ctx, target); err != nil {
		return fmt.Errorf("open login url: %w", err)
	}
	return nil
}

// Logout signs out of workspace id, or of every workspace when id is "".
// The backend call is best-effort; local credentials are cleared regardless.
func (m *Manager) Logout(ctx context.Context, id string) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	current := m.state.WorkspaceID()
	affectsCurrent := id == "" || id == current || current == ""
	token := m.state.AuthToken
	if affectsCurrent {
		m.seq++
		m.state.Status = StatusLoggingOut
		m.state.IsLoading = true
		m.publish()
	}
	m.mu.Unlock()

	if token == "" {
		token = m.store.AuthToken(ctx)
	}
	if id != "" {
		if st := m.store.State(ctx); st.Workspaces[id].Token != "" {
			token = st.Workspaces[id].Token
		}
	}

	path := LogoutPath
	if id != "" {
		path += "?instagramId=" + url.QueryEscape(id)
	}
	resp, err := m.api.Fetch(ctx, http.MethodPost, path, nil, apiclient.WithAuthToken(token))
	switch {
	case err != nil:
		m.log.Warn(ctx, "logout request failed", "error", err)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			m.log.Warn(ctx, "logout rejected by backend", "status", resp.StatusCode)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		m.store.PersistAuthToken(ctx, "")
	} else {
		m.store.RemoveWorkspace(ctx, id)
	}
	if m.metrics != nil {
		m.metrics.SessionLogoutsTotal.Inc()
	}
	if m.disposed {
		return
	}
	if affectsCurrent {
		m.state = State{Status: StatusAnonymous}
		m.publish()
	}
	m.log.Info(ctx, "logged out", "workspace_id", id)
}

func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || m.state.Error == "" {
		return
	}
	m.state.Error = ""
	if m.state.Status == StatusError {
		if m.state.User != nil {
			m.state.Status = StatusAuthenticated
		} else {
			m.state.Status = StatusAnonymous
		}
	}
	m.publish()
}

// AuthorizedFetch sends a backend request carrying the resolved token, or the
// stored one while nothing has been resolved yet.
func (m *Manager) AuthorizedFetch(ctx context.Context, method, path string, body io.Reader, opts ...apiclient.Option) (*http.Response, error) {
	token := m.State().AuthToken
	if token == "" {
		token = m.store.AuthToken(ctx)
	}
	opts = append(opts, apiclient.WithAuthToken(token))
	return m.api.Fetch(ctx, method, path, body, opts...)
}

// Dispose cancels in-flight resolutions and closes all subscriptions. Later
// results are dropped.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	m.cancel()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}
