package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/verbi-app/verbi/internal/account"
	"github.com/verbi-app/verbi/internal/config"
	"github.com/verbi-app/verbi/internal/session"
)

// version is set at build time via ldflags.
var version = "dev"

// CLIFlags holds the global persistent flags.
type CLIFlags struct {
	ConfigPath string
	BaseURL    string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext carries everything a subcommand needs. PersistentPreRunE
// builds it and stores it in the command context.
type CLIContext struct {
	Flags   CLIFlags
	Cfg     *config.Config
	CfgPath string
	Logger  *slog.Logger
	Out     io.Writer
	Err     io.Writer
	In      io.Reader

	app *App
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext stored by the root pre-run. A
// missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("CLIContext not initialized; PersistentPreRunE did not run")
	}

	return cc
}

// App returns the composition root, building it on first use so commands
// that never touch the backend (status, config show) stay offline.
func (cc *CLIContext) App() *App {
	if cc.app == nil {
		cc.app = NewApp(cc.Cfg, cc.Logger)
	}

	return cc.app
}

// newRootCmd builds the root command with all subcommands registered.
func newRootCmd() *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:     "verbi",
		Short:   "Verbi document library client",
		Long:    "Manage a Verbi account, its document library, and ask questions about documents.",
		Version: version,
		// Errors are printed by main, not by cobra.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCLIContext(cmd, flags)
			if err != nil {
				return err
			}

			ctx := shutdownContext(cmd.Context(), cc.Logger)
			cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flags.BaseURL, "base-url", "", "auth service base URL (overrides config)")
	cmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(
		newRegisterCmd(),
		newConfirmEmailCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newResetPasswordCmd(),
		newConfirmResetCmd(),
		newResendCodeCmd(),
		newWhoamiCmd(),
		newStatusCmd(),
		newProfileCmd(),
		newLsCmd(),
		newUploadCmd(),
		newGetCmd(),
		newRmCmd(),
		newAskCmd(),
		newConfigCmd(),
	)

	return cmd
}

// newCLIContext resolves the effective configuration from the four-layer
// override chain and builds the logger.
func newCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	// Only pass --base-url when the user explicitly set it.
	if cmd.Flags().Changed("base-url") {
		cli.BaseURL = &flags.BaseURL
	}

	cfg, path, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &CLIContext{
		Flags:   flags,
		Cfg:     cfg,
		CfgPath: path,
		Logger:  buildLogger(cfg, flags, cmd.ErrOrStderr()),
		Out:     cmd.OutOrStdout(),
		Err:     cmd.ErrOrStderr(),
		In:      cmd.InOrStdin(),
	}, nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger(cfg *config.Config, flags CLIFlags, w io.Writer) *slog.Logger {
	level := slog.LevelInfo

	if cfg != nil {
		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	format := "auto"
	if cfg != nil {
		format = cfg.Logging.LogFormat
	}

	if format == "json" || (format == "auto" && !isTerminal(w)) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func isTerminal(w io.Writer) bool {
	_, ok := terminalFd(w)
	return ok
}

// terminalFd returns the descriptor of v when it is an *os.File attached to
// a terminal. Tests replace it to simulate an interactive stdin.
var terminalFd = func(v any) (int, bool) {
	f, ok := v.(*os.File)
	if !ok {
		return 0, false
	}

	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return 0, false
	}

	return int(f.Fd()), true
}

// errorMessage turns an error into the line printed for the user. Session
// errors carry a pointer to the fix.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, account.ErrNotLoggedIn), errors.Is(err, session.ErrNoRefreshToken):
		return "not logged in. Run 'verbi login' first."
	case errors.Is(err, session.ErrSessionExpired):
		return fmt.Sprintf("%v\nYour session has ended. Run 'verbi login' to sign in again.", err)
	default:
		return err.Error()
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", errorMessage(err))
	os.Exit(1)
}
