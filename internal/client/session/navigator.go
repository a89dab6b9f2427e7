package session

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
)

// Navigator performs a full navigation to an external address, typically by
// opening the system browser.
type Navigator interface {
	Open(ctx context.Context, url string) error
}

type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Open(ctx context.Context, url string) error { return f(ctx, url) }

var ErrNoNavigator = errors.New("no navigator configured")

// BrowserNavigator opens addresses with the platform's URL handler.
type BrowserNavigator struct{}

func (BrowserNavigator) Open(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}
