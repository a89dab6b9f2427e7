package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inboxpilot/internal/client/callback"
	"github.com/dmitrijs2005/inboxpilot/internal/client/location"
	"github.com/dmitrijs2005/inboxpilot/internal/common"
)

// loginTimeout bounds how long Login waits for the browser to come back.
var loginTimeout = 5 * time.Minute

// getSecret is swapped in tests.
var getSecret = GetSecret

type LoginOptions struct {
	// Token is stored as is.
	Token string
	// URL is an address carrying ?token=, e.g. pasted from the browser.
	URL string
	// Prompt reads the token from the terminal instead of opening a browser.
	Prompt bool
}

// Login obtains a token by one of the LoginOptions routes (the browser
// round trip when none is set) and resolves the user with it.
func (a *App) Login(ctx context.Context, o LoginOptions) error {
	switch {
	case o.URL != "":
		loc, err := location.Parse(o.URL)
		if err != nil {
			return fmt.Errorf("parse url: %w", err)
		}
		if !loc.URL().Query().Has(common.TokenQueryParam) {
			return ErrNoToken
		}
		if !a.session.Init(ctx, loc) {
			return a.sessionError()
		}
		return a.printSignedIn()

	case o.Token != "":
		a.store.StagePendingToken(ctx, o.Token)

	case o.Prompt:
		token, err := getSecret(a.out, "Paste token: ")
		if err != nil {
			return err
		}
		if token == "" {
			return ErrNoToken
		}
		a.store.StagePendingToken(ctx, token)

	default:
		if err := a.browserLogin(ctx); err != nil {
			return err
		}
	}

	if !a.session.RefreshUser(ctx) {
		return a.sessionError()
	}
	return a.printSignedIn()
}

func (a *App) browserLogin(ctx context.Context) error {
	srv := callback.New(a.config.CallbackAddr, a.store, a.log)
	if _, err := srv.Start(); err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	if err := a.session.RedirectToLogin(ctx); err != nil {
		a.log.Warn(ctx, "could not open browser", "error", err)
		loginURL, uerr := a.session.LoginURL()
		if uerr != nil {
			return uerr
		}
		a.println("Open this address to sign in:")
		a.println(loginURL)
	}
	a.println(mutedStyle.Render("Waiting for the browser to finish signing in..."))

	wctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()
	if _, err := srv.Wait(wctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

func (a *App) printSignedIn() error {
	st := a.session.State()
	a.println(okStyle.Render("Signed in as " + st.User.DisplayName()))
	return nil
}

// Logout signs out of one workspace, or all of them when id is "".
func (a *App) Logout(ctx context.Context, id string) error {
	a.session.Logout(ctx, id)
	if id == "" {
		a.println("Signed out of all workspaces.")
	} else {
		a.println("Signed out of workspace " + id + ".")
	}
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	if !a.session.RefreshUser(ctx) {
		return a.sessionError()
	}
	st := a.session.State()
	a.println(renderUser(st.User, st.AuthToken, a.now()))
	return nil
}
