package cli

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/inboxpilot/internal/client/realtime"
	"github.com/dmitrijs2005/inboxpilot/internal/client/session"
)

func credentialsFor(st session.State) realtime.Credentials {
	if !st.Authenticated() {
		return realtime.Credentials{}
	}
	return realtime.Credentials{Token: st.AuthToken, WorkspaceID: st.WorkspaceID()}
}

// forwardCredentials turns session snapshots into notifier credentials.
func forwardCredentials(ctx context.Context, states <-chan session.State, out chan<- realtime.Credentials) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			select {
			case out <- credentialsFor(st):
			case <-ctx.Done():
				return
			}
		}
	}
}

// Watch streams realtime events for the active workspace until ctx ends.
// A non-empty metricsAddr also serves /metrics there.
func (a *App) Watch(ctx context.Context, metricsAddr string) error {
	if err := a.ensureSession(ctx); err != nil {
		return err
	}

	if metricsAddr == "" {
		metricsAddr = a.config.MetricsAddr
	}
	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           a.metrics.Router(a.log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error(ctx, "metrics server stopped", "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	n := realtime.New(realtime.Options{
		URL:               a.config.SocketEndpoint(),
		ReconnectAttempts: a.config.ReconnectAttempts,
		ReconnectDelay:    a.config.ReconnectDelay,
		HandshakeTimeout:  a.config.RequestTimeout,
		Metrics:           a.metrics,
	}, a.log)

	states, unsubscribe := a.session.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	creds := make(chan realtime.Credentials)
	wg.Add(2)
	go func() {
		defer wg.Done()
		n.Run(ctx, creds)
	}()
	go func() {
		defer wg.Done()
		forwardCredentials(ctx, states, creds)
	}()

	a.println(mutedStyle.Render("Watching " + a.session.State().User.DisplayName() + " (ctrl-c to stop)"))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-n.Events():
			a.println(renderEvent(ev, n.UnreadCount()))
		}
	}
}
