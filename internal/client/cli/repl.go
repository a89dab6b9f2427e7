package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for the shell's own output.
var printlnFn = fmt.Println

// execIface is the command surface the shell drives. *App satisfies it.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context, o LoginOptions) error
	Logout(ctx context.Context, id string) error
	Whoami(ctx context.Context) error
	Workspaces(ctx context.Context) error
	Switch(ctx context.Context, id string) error
	Can(ctx context.Context, names []string) error
	Queue(ctx context.Context, follow bool) error
	Fetch(ctx context.Context, method, path, body string) error
}

// runREPL reads commands line by line and dispatches them to a until EOF,
// "exit" or "quit".
//
//	Signed out:
//	  help, login [token], exit
//
//	Signed in:
//	  help, whoami, workspaces, switch <id>, can [permission...],
//	  queue, fetch <method> <path> [json], logout [id], login [token], exit
//
// Command errors are printed and the loop carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("inbox %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, workspaces, switch <id>, can [permission...], queue, fetch <method> <path> [json], logout [id], exit")
			} else {
				printlnFn("Available commands: login [token], exit")
			}

		case "login":
			o := LoginOptions{Prompt: true}
			if len(args) > 0 {
				o = LoginOptions{Token: args[0]}
			}
			err = a.Login(ctx, o)

		case "logout":
			err = a.Logout(ctx, first(args))

		case "whoami":
			err = a.Whoami(ctx)

		case "workspaces", "ws":
			err = a.Workspaces(ctx)

		case "switch":
			err = a.Switch(ctx, first(args))

		case "can":
			err = a.Can(ctx, args)

		case "queue":
			err = a.Queue(ctx, false)

		case "fetch":
			if len(args) < 2 {
				printlnFn("Usage: fetch <method> <path> [json]")
				continue
			}
			err = a.Fetch(ctx, args[0], args[1], strings.Join(args[2:], " "))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil && !errors.Is(err, ErrForbidden) {
			printlnFn("Error:", err)
		}
	}
}

func first(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// Shell runs the interactive loop on the App's input.
func (a *App) Shell(ctx context.Context) error {
	a.println("inboxctl shell (type 'help' for commands)")
	if !a.session.RefreshUser(ctx) {
		if st := a.session.State(); st.Error != "" {
			a.println(errStyle.Render(st.Error))
		}
	}
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
	return nil
}
