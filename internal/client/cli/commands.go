package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/dmitrijs2005/inboxpilot/internal/buildinfo"
	"github.com/dmitrijs2005/inboxpilot/internal/client/config"
	"github.com/dmitrijs2005/inboxpilot/internal/logging"
	"github.com/spf13/cobra"
)

// Env is the process surface the commands run against.
type Env struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Getenv func(string) string
}

// NewRootCommand builds the inboxctl command tree for args (without the
// program name).
func NewRootCommand(args []string, env Env) *cobra.Command {
	var app *App

	root := &cobra.Command{
		Use:           "inboxctl",
		Short:         "inboxctl: terminal client for the inboxpilot DM dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(args, env.Getenv)
			if err != nil {
				return err
			}
			if err := config.ApplyFlags(cfg, cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logging.NewTextLogger(env.Err, cfg.LogLevel)
			app, err = NewApp(cmd.Context(), cfg, log, env.In, env.Out)
			return err
		},
	}
	root.SetArgs(args)
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)
	config.RegisterFlags(root.PersistentFlags())

	// run closes the App even when the command fails; cobra skips the
	// post-run hooks on error.
	run := func(fn func(ctx context.Context, a *App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if cerr := app.Close(); err == nil {
					err = cerr
				}
			}()
			return fn(cmd.Context(), app, args)
		}
	}

	var login LoginOptions
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in (opens the browser unless --token, --url or --prompt is given)",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *App, _ []string) error {
			return a.Login(ctx, login)
		}),
	}
	loginCmd.Flags().StringVar(&login.Token, "token", "", "use this bearer token")
	loginCmd.Flags().StringVar(&login.URL, "url", "", "take the token from an address carrying ?token=")
	loginCmd.Flags().BoolVar(&login.Prompt, "prompt", false, "read the token from the terminal")

	logoutCmd := &cobra.Command{
		Use:   "logout [workspace-id]",
		Short: "Sign out of one workspace, or of all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(ctx context.Context, a *App, args []string) error {
			return a.Logout(ctx, first(args))
		}),
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *App, _ []string) error {
			return a.Whoami(ctx)
		}),
	}

	workspacesCmd := &cobra.Command{
		Use:     "workspaces",
		Aliases: []string{"ws"},
		Short:   "List workspaces signed in on this device",
		Args:    cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *App, _ []string) error {
			return a.Workspaces(ctx)
		}),
	}

	switchCmd := &cobra.Command{
		Use:   "switch <workspace-id>",
		Short: "Make another signed-in workspace active",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *App, args []string) error {
			return a.Switch(ctx, args[0])
		}),
	}

	canCmd := &cobra.Command{
		Use:   "can [permission...]",
		Short: "Check permissions of the signed-in user (exit status 1 when denied)",
		RunE: run(func(ctx context.Context, a *App, args []string) error {
			return a.Can(ctx, args)
		}),
	}

	var fetchBody string
	fetchCmd := &cobra.Command{
		Use:   "fetch <method> <path>",
		Short: "Send an authorized request to the backend",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *App, args []string) error {
			return a.Fetch(ctx, args[0], args[1], fetchBody)
		}),
	}
	fetchCmd.Flags().StringVarP(&fetchBody, "data", "d", "", "JSON request body")

	var follow bool
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Show send countdowns for queued messages",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *App, _ []string) error {
			return a.Queue(ctx, follow)
		}),
	}
	queueCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep counting down until the queue drains")

	var metricsAddr string
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream realtime events for the active workspace",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *App, _ []string) error {
			return a.Watch(ctx, metricsAddr)
		}),
	}
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *App, _ []string) error {
			return a.Shell(ctx)
		}),
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// no local state is needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}

	root.AddCommand(versionCmd, loginCmd, logoutCmd, whoamiCmd, workspacesCmd, switchCmd, canCmd, fetchCmd, queueCmd, watchCmd, shellCmd)
	return root
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrForbidden):
		return 1
	case errors.Is(err, ErrNotSignedIn), errors.Is(err, ErrSession):
		return 3
	case errors.Is(err, ErrUsage), isUsageError(err):
		return 2
	default:
		return 1
	}
}

func isUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.Contains(msg, "arg(s)")
}
