package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/inboxpilot/internal/client/apiclient"
	"github.com/dmitrijs2005/inboxpilot/internal/client/config"
	"github.com/dmitrijs2005/inboxpilot/internal/client/metrics"
	"github.com/dmitrijs2005/inboxpilot/internal/client/session"
	"github.com/dmitrijs2005/inboxpilot/internal/client/storage"
	"github.com/dmitrijs2005/inboxpilot/internal/client/tokenstore"
	"github.com/dmitrijs2005/inboxpilot/internal/cryptox"
	"github.com/dmitrijs2005/inboxpilot/internal/logging"
)

type App struct {
	config *config.Config
	log    logging.Logger
	out    io.Writer
	reader *bufio.Reader
	now    func() time.Time

	store   *tokenstore.Store
	api     *apiclient.Client
	session *session.Manager
	metrics *metrics.Metrics

	closeStorage func() error
}

// NewApp opens the local database under cfg.DataDir, seals it when a
// passphrase is configured, and wires the services on top.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}

	db, err := storage.OpenSQLite(ctx, dbPath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", dbPath, "error", err)
		return nil, err
	}

	var st storage.Storage = db
	if cfg.StorePassphrase != "" {
		pass := []byte(cfg.StorePassphrase)
		sealed, err := storage.NewSealed(ctx, db, pass)
		cryptox.Wipe(pass)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("unlock store: %w", err)
		}
		st = sealed
	}

	a, err := newApp(cfg, log, st, in, out, session.BrowserNavigator{})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.closeStorage = db.Close
	return a, nil
}

func newApp(cfg *config.Config, log logging.Logger, st storage.Storage, in io.Reader, out io.Writer, nav session.Navigator) (*App, error) {
	api, err := apiclient.New(cfg.APIBaseURL, nil, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	store := tokenstore.New(st, log.With("component", "tokenstore"))
	m := metrics.New()
	mgr := session.New(api, store, log.With("component", "session"),
		session.WithNavigator(nav),
		session.WithMetrics(m),
		session.WithCallbackURL(cfg.CallbackURL()),
	)

	return &App{
		config:  cfg,
		log:     log,
		out:     out,
		reader:  bufio.NewReader(in),
		now:     time.Now,
		store:   store,
		api:     api,
		session: mgr,
		metrics: m,
	}, nil
}

func (a *App) Close() error {
	a.session.Dispose()
	if a.closeStorage != nil {
		return a.closeStorage()
	}
	return nil
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) isLoggedIn() bool {
	return a.session.State().Authenticated()
}

// status is the short label shown in the shell prompt.
func (a *App) status() string {
	st := a.session.State()
	switch {
	case st.Authenticated():
		return st.User.DisplayName()
	case st.Status == session.StatusError:
		return "offline"
	default:
		return "signed out"
	}
}

// ensureSession resolves the user once per App when nothing is known yet.
func (a *App) ensureSession(ctx context.Context) error {
	st := a.session.State()
	if st.Authenticated() {
		return nil
	}
	if a.session.RefreshUser(ctx) {
		return nil
	}
	return a.sessionError()
}

func (a *App) sessionError() error {
	st := a.session.State()
	if st.Error != "" {
		return fmt.Errorf("%w: %s", ErrSession, st.Error)
	}
	return ErrNotSignedIn
}
