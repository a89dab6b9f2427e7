package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/inboxpilot/internal/client/config"
	"github.com/dmitrijs2005/inboxpilot/internal/client/session"
	"github.com/dmitrijs2005/inboxpilot/internal/client/storage"
	"github.com/dmitrijs2005/inboxpilot/internal/common"
	"github.com/dmitrijs2005/inboxpilot/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var users = map[string]string{
	"tA": `{"data":{"isTeamMember":false,"instagramId":"1784","username":"shop","accountType":"BUSINESS"}}`,
	"tB": `{"data":{"isTeamMember":false,"instagramId":"2001","username":"studio"}}`,
	"tM": `{"data":{"isTeamMember":true,"id":"m1","email":"ann@shop.co","name":"Ann","role":"editor","workspaceId":"1784","workspaceUsername":"shop"}}`,
}

// syncBuffer is written by the App and read by the test concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type backend struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	logouts []string
	socket  *websocket.Conn
	authed  chan string
	queue   string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{t: t, authed: make(chan string, 4), queue: `{"data":[]}`}

	up := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc(session.MePath, func(w http.ResponseWriter, r *http.Request) {
		body, ok := users[strings.TrimPrefix(r.Header.Get(common.AuthorizationHeader), common.BearerPrefix)]
		if !ok {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc(session.LogoutPath, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.logouts = append(b.logouts, r.URL.Query().Get("instagramId"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc(QueuePath, func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		body := b.queue
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"c1","stage":"lead"}],"auth":"` + r.Header.Get(common.AuthorizationHeader) + `"}`))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var auth struct {
			Token       string `json:"token"`
			WorkspaceID string `json:"workspaceId"`
		}
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		b.mu.Lock()
		b.socket = conn
		b.mu.Unlock()
		if err := conn.WriteJSON(map[string]string{"type": "connected"}); err != nil {
			return
		}
		b.authed <- auth.WorkspaceID
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) setQueue(v any) {
	b.t.Helper()
	data, err := json.Marshal(map[string]any{"data": v})
	require.NoError(b.t, err)
	b.mu.Lock()
	b.queue = string(data)
	b.mu.Unlock()
}

func (b *backend) push(raw string) {
	b.t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotNil(b.t, b.socket)
	require.NoError(b.t, b.socket.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func (b *backend) loggedOut() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.logouts...)
}

type testApp struct {
	*App
	out *syncBuffer
	nav *recordingNavigator
}

type recordingNavigator struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (n *recordingNavigator) Open(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	return n.err
}

func newTestApp(t *testing.T, b *backend, in string) testApp {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.APIBaseURL = b.srv.URL
	cfg.CallbackAddr = freeAddr(t)
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.RequestTimeout = 2 * time.Second

	out := &syncBuffer{}
	nav := &recordingNavigator{}
	a, err := newApp(cfg, logging.Discard(), storage.NewMemory(), strings.NewReader(in), out, nav)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return testApp{App: a, out: out, nav: nav}
}

func TestLogin_Token(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tA"}))
	assert.Contains(t, a.out.String(), "Signed in as @shop")

	st := a.store.State(ctx)
	assert.Equal(t, "1784", st.ActiveWorkspaceID)
	assert.Equal(t, "tA", st.Workspaces["1784"].Token)
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "@shop", a.status())
}

func TestLogin_URL(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, LoginOptions{URL: "https://app.example.com/inbox?token=tB&stage=lead"}))
	assert.Equal(t, "2001", a.store.State(ctx).ActiveWorkspaceID)

	err := a.Login(ctx, LoginOptions{URL: "https://app.example.com/inbox?stage=lead"})
	assert.ErrorIs(t, err, ErrNoToken)

	err = a.Login(ctx, LoginOptions{URL: "://nope"})
	assert.Error(t, err)
}

func TestLogin_Prompt(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()

	old := getSecret
	t.Cleanup(func() { getSecret = old })

	getSecret = func(_ io.Writer, _ string) (string, error) { return "", nil }
	assert.ErrorIs(t, a.Login(ctx, LoginOptions{Prompt: true}), ErrNoToken)

	getSecret = func(_ io.Writer, _ string) (string, error) { return "tM", nil }
	require.NoError(t, a.Login(ctx, LoginOptions{Prompt: true}))
	assert.Contains(t, a.out.String(), "Signed in as Ann")
}

func TestLogin_RejectedToken(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()

	err := a.Login(ctx, LoginOptions{Token: "stale"})
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.Empty(t, a.store.AuthToken(ctx))
	assert.Equal(t, "signed out", a.status())
}

func TestLogin_Browser(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()

	// the navigator plays the browser: it follows the login address back
	// to the callback with a token
	a.session.Dispose()
	a.session = session.New(a.api, a.store, logging.Discard(),
		session.WithNavigator(session.NavigatorFunc(func(_ context.Context, loginURL string) error {
			assert.Contains(t, loginURL, session.LoginPath)
			cb := callbackFrom(t, loginURL)
			go func() {
				resp, err := http.Get(cb + "?token=tA")
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		})),
		session.WithCallbackURL(a.config.CallbackURL()),
	)

	require.NoError(t, a.Login(ctx, LoginOptions{}))
	assert.Contains(t, a.out.String(), "Signed in as @shop")
}

func TestLogin_BrowserUnavailable(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	a.nav.err = errors.New("no display")

	old := loginTimeout
	loginTimeout = 50 * time.Millisecond
	t.Cleanup(func() { loginTimeout = old })

	err := a.Login(context.Background(), LoginOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, a.out.String(), "Open this address to sign in:")
	assert.Contains(t, a.out.String(), session.LoginPath)
}

func TestWhoami(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()

	assert.ErrorIs(t, a.Whoami(ctx), ErrNotSignedIn)

	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tM"}))
	require.NoError(t, a.Whoami(ctx))
	out := a.out.String()
	assert.Contains(t, out, "team member")
	assert.Contains(t, out, "ann@shop.co")
	assert.Contains(t, out, "1784 (@shop)")
	assert.Contains(t, out, "editor")
}

func TestWorkspacesAndSwitch(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "1784\n")
	ctx := context.Background()

	require.NoError(t, a.Workspaces(ctx))
	assert.Contains(t, a.out.String(), "No workspaces signed in on this device.")

	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tA"}))
	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tB"}))
	require.NoError(t, a.Workspaces(ctx))
	out := a.out.String()
	assert.Contains(t, out, "1784 @shop")
	assert.Contains(t, out, "* 2001 @studio")

	// empty id prompts for one
	require.NoError(t, a.Switch(ctx, ""))
	assert.Contains(t, a.out.String(), "Switched to @shop")
	assert.Equal(t, "1784", a.session.State().WorkspaceID())
	assert.Equal(t, "tA", a.store.State(ctx).Workspaces["1784"].Token)
	assert.Equal(t, "tB", a.store.State(ctx).Workspaces["2001"].Token)

	err := a.Switch(ctx, "9999")
	assert.ErrorIs(t, err, ErrSession)
	assert.Contains(t, err.Error(), "Workspace 9999 is not signed in on this device.")
}

func TestCan(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()

	assert.ErrorIs(t, a.Can(ctx, []string{"fly"}), ErrUsage)
	assert.ErrorIs(t, a.Can(ctx, []string{"view_dashboard"}), ErrNotSignedIn)

	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tM"}))

	require.NoError(t, a.Can(ctx, []string{"edit_prompts", "manage_conversations"}))
	assert.Contains(t, a.out.String(), "allowed")

	assert.ErrorIs(t, a.Can(ctx, []string{"edit_prompts", "manage_team"}), ErrForbidden)
	assert.Contains(t, a.out.String(), "denied")

	require.NoError(t, a.Can(ctx, nil))
	assert.Contains(t, a.out.String(), "✓ edit_settings")
	assert.Contains(t, a.out.String(), "✗ manage_team")
}

func TestFetch(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tA"}))

	require.NoError(t, a.Fetch(ctx, "get", "/api/conversations", ""))
	out := a.out.String()
	assert.Contains(t, out, "GET /api/conversations -> 200 OK")
	assert.Contains(t, out, "\"stage\": \"lead\"")
	assert.Contains(t, out, "\"auth\": \"Bearer tA\"")

	require.NoError(t, a.Fetch(ctx, "GET", "/api/missing", ""))
	assert.Contains(t, a.out.String(), "GET /api/missing -> 404 Not Found")
}

func TestQueue(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tA"}))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	require.NoError(t, a.Queue(ctx, false))
	assert.Contains(t, a.out.String(), "Queue is empty.")

	b.setQueue([]QueuedMessage{
		{ID: "q2", Username: "bob", Content: "later", ScheduledFor: now.Add(5 * time.Minute)},
		{ID: "q1", Username: "amy", Content: "soon", ScheduledFor: now.Add(90 * time.Second)},
	})
	require.NoError(t, a.Queue(ctx, false))
	out := a.out.String()
	assert.Contains(t, out, "1:30  amy")
	assert.Contains(t, out, "5:00  bob")
	assert.Less(t, strings.Index(out, "amy"), strings.Index(out, "bob"))
}

func TestQueue_Follow(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tA"}))

	old := countdownInterval
	countdownInterval = 5 * time.Millisecond
	t.Cleanup(func() { countdownInterval = old })

	start := time.Now()
	b.setQueue([]QueuedMessage{{ID: "q1", Username: "amy", Content: "hi", ScheduledFor: start.Add(40 * time.Millisecond)}})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, a.Queue(ctx, true))

	out := a.out.String()
	assert.Contains(t, out, "amy")
	assert.Contains(t, out, "---")
	assert.NoError(t, ctx.Err(), "queue should drain before the deadline")
}

func TestLogout(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tA"}))
	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tB"}))

	require.NoError(t, a.Logout(ctx, "1784"))
	assert.Contains(t, a.out.String(), "Signed out of workspace 1784.")
	assert.Equal(t, []string{"2001"}, a.store.State(ctx).IDs())
	assert.True(t, a.isLoggedIn())

	require.NoError(t, a.Logout(ctx, ""))
	assert.Contains(t, a.out.String(), "Signed out of all workspaces.")
	assert.Empty(t, a.store.State(ctx).IDs())
	assert.False(t, a.isLoggedIn())
	// signing out everywhere sends no workspace id
	assert.Equal(t, []string{"1784", ""}, b.loggedOut())
}

func TestWatch(t *testing.T) {
	b := newBackend(t)
	a := newTestApp(t, b, "")
	ctx := context.Background()

	assert.ErrorIs(t, a.Watch(ctx, ""), ErrNotSignedIn)

	require.NoError(t, a.Login(ctx, LoginOptions{Token: "tA"}))

	wctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Watch(wctx, "") }()

	select {
	case ws := <-b.authed:
		assert.Equal(t, "1784", ws)
	case <-time.After(3 * time.Second):
		t.Fatal("notifier did not authenticate")
	}

	b.push(`{"type":"message:created","data":{"id":"m1","conversationId":"c9","role":"user","content":"is this in stock?"}}`)
	require.Eventually(t, func() bool {
		return strings.Contains(a.out.String(), "is this in stock?")
	}, 3*time.Second, 10*time.Millisecond)
	assert.Contains(t, a.out.String(), "(unread 1)")
	assert.Contains(t, a.out.String(), "Watching @shop")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().String()
}

func callbackFrom(t *testing.T, loginURL string) string {
	t.Helper()
	u, err := url.Parse(loginURL)
	require.NoError(t, err)
	cb := u.Query().Get("redirect")
	require.NotEmpty(t, cb, "login url carries no callback")
	return cb
}
