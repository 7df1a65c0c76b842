package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hardcopy-dev/hardcopy/internal/config"
	"github.com/hardcopy-dev/hardcopy/internal/store"
)

const initialConfigTemplate = `# sources: remotes bound to a Provider, keyed by name.
sources: []

# views: directory projections of the node graph. Example:
# views:
#   - path: issues
#     query: "(x:github.Issue) WHERE assignee = $me"
#     render:
#       - path_template: "{{attrs.number}}.md"
views: []
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create hardcopy.yaml and the .hardcopy store directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			return runInit(log, rootDir)
		},
	}
}

func runInit(log *slog.Logger, root string) error {
	cfgPath := config.Path(root)
	if _, err := os.Stat(cfgPath); err == nil {
		return withExitCode(exitUnrecoverable, fmt.Errorf("hc init: %s already exists", cfgPath))
	}

	if err := os.WriteFile(cfgPath, []byte(initialConfigTemplate), 0o644); err != nil {
		return withExitCode(exitUnrecoverable, fmt.Errorf("hc init: write %s: %w", cfgPath, err))
	}

	storePath := filepath.Join(root, storeDir, dbFile)
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return withExitCode(exitUnrecoverable, fmt.Errorf("hc init: create %s: %w", storeDir, err))
	}
	s, err := store.Open(storePath)
	if err != nil {
		return withExitCode(exitUnrecoverable, fmt.Errorf("hc init: open store: %w", err))
	}
	if err := s.Close(); err != nil {
		return withExitCode(exitUnrecoverable, fmt.Errorf("hc init: close store: %w", err))
	}

	log.Info("initialized hardcopy project", "root", root, "config", cfgPath)
	return nil
}
