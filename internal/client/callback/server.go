// Package callback runs the loopback HTTP endpoint the OAuth flow sends the
// browser back to. The token arrives as a query parameter, is stored, and
// the browser is redirected to an address that no longer carries it.
package callback

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/inboxpilot/internal/client/location"
	"github.com/dmitrijs2005/inboxpilot/internal/httpx"
	"github.com/dmitrijs2005/inboxpilot/internal/logging"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const Path = "/callback"

var (
	ErrLoginFailed = errors.New("login failed")
	ErrNotStarted  = errors.New("callback server not started")
)

// TokenSink receives the token; *tokenstore.Store satisfies it.
type TokenSink interface {
	StagePendingToken(ctx context.Context, token string)
}

type result struct {
	token string
	err   error
}

type Server struct {
	addr string
	sink TokenSink
	log  logging.Logger

	results  chan result
	received atomic.Bool

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

func New(addr string, sink TokenSink, log logging.Logger) *Server {
	return &Server{
		addr:    addr,
		sink:    sink,
		log:     log.With("component", "callback"),
		results: make(chan result, 1),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(httpx.RequestLogger(s.log))

	r.Get("/health", httpx.Health)
	r.Get(Path, s.handleCallback)
	return r
}

// Start listens on the configured address and serves in the background. It
// returns the callback URL, which reflects the real port when addr asked
// for port 0.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.srv, s.ln = srv, ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(context.Background(), "callback server stopped", "error", err)
		}
	}()

	return "http://" + ln.Addr().String() + Path, nil
}

// Wait blocks until the browser delivers a token or an error, or ctx ends.
func (s *Server) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-s.results:
		return r.token, r.err
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return ErrNotStarted
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	u := *r.URL
	u.Scheme = "http"
	u.Host = r.Host
	loc := location.NewMemoryLocation(&u)

	w.Header().Set("Cache-Control", "no-store")

	if reason := r.URL.Query().Get("error"); reason != "" {
		s.log.Warn(ctx, "login rejected by provider", "reason", reason)
		s.deliver(result{err: fmt.Errorf("%w: %s", ErrLoginFailed, reason)})
		render(w, http.StatusBadRequest, "Login was not completed", "The provider reported: "+reason)
		return
	}

	token := location.ExtractAuthToken(loc)
	if token == "" {
		// the redirect below lands here without the token
		if s.received.Load() {
			render(w, http.StatusOK, "Signed in", "You can close this tab and return to the terminal.")
			return
		}
		render(w, http.StatusBadRequest, "No token received", "Start the login again from inboxctl.")
		return
	}

	s.sink.StagePendingToken(ctx, token)
	s.received.Store(true)
	s.log.Info(ctx, "login token received", "url", loc.String())
	s.deliver(result{token: token})

	http.Redirect(w, r, loc.URL().RequestURI(), http.StatusSeeOther)
}

// deliver keeps only the first outcome.
func (s *Server) deliver(r result) {
	select {
	case s.results <- r:
	default:
	}
}

var page = template.Must(template.New("page").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body><h1>{{.Title}}</h1><p>{{.Body}}</p></body></html>
`))

func render(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = page.Execute(w, struct{ Title, Body string }{title, body})
}
