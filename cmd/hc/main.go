package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes: 0 success, 1 unrecoverable, 2 conflicts detected with no
// resolver available for this invocation.
const (
	exitOK            = 0
	exitUnrecoverable = 1
	exitConflicts     = 2
)

var (
	rootDir string
	verbose bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hc",
		Short:         "hardcopy: sync local files against remote issue trackers and code hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&rootDir, "root", "C", ".", "project root containing hardcopy.yaml")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newInitCmd(),
		newSyncCmd(),
		newRefreshCmd(),
		newStatusCmd(),
		newPushCmd(),
		newDiffCmd(),
		newConflictsCmd(),
		newResolveCmd(),
	)
	return cmd
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// openApp is the shared preamble every verb except init runs: build a
// logger now that flags are parsed, then wire an App against rootDir.
func openApp() (*App, *slog.Logger, error) {
	log := newLogger()
	app, err := newApp(log, rootDir)
	if err != nil {
		return nil, log, err
	}
	return app, log, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if code, ok := asExitCode(err); ok {
			if code != exitOK {
				fmt.Fprintln(os.Stderr, "hc:", err)
			}
			return code
		}
		fmt.Fprintln(os.Stderr, "hc:", err)
		return exitUnrecoverable
	}
	return exitOK
}

// exitError lets a command's RunE report a specific exit code (notably
// exitConflicts) instead of the default exitUnrecoverable.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func asExitCode(err error) (int, bool) {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code, true
	}
	return 0, false
}
