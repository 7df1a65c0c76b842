package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hardcopy-dev/hardcopy/internal/diff"
	"github.com/hardcopy-dev/hardcopy/internal/store"
)

// fileStatus is the per-file classification `status -s` reports:
// modified/conflict/clean. Only files with a recorded watermark whose node
// is in the Store are classified; a file carrying an id the Store does not
// know is not reported.
type fileStatus struct {
	Path   string
	NodeID string
	State  string
}

const (
	stateModified = "modified"
	stateConflict = "conflict"
	stateClean    = "clean"
)

func newStatusCmd() *cobra.Command {
	var short, metrics bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show changed files and open conflicts without any network I/O",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := openApp()
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			defer app.Close()

			statuses, err := runStatus(cmd.Context(), app)
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}

			if short {
				for _, s := range statuses {
					fmt.Printf("%-9s %s (%s)\n", s.State, s.Path, s.NodeID)
				}
			} else {
				counts := map[string]int{}
				for _, s := range statuses {
					counts[s.State]++
				}
				fmt.Printf("modified: %d  conflicts: %d  clean: %d\n",
					counts[stateModified], counts[stateConflict], counts[stateClean])
			}

			if metrics {
				snap, err := app.Telemetry.Snapshot(cmd.Context())
				if err != nil {
					return withExitCode(exitUnrecoverable, err)
				}
				for name, v := range snap {
					fmt.Printf("%s: %d\n", name, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "show per-file status")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "include this process's in-memory otel push counters (not carried over from an earlier push run)")
	return cmd
}

// runStatus classifies every known file as conflict, modified, or clean,
// performing only local reads and Store lookups — no network I/O.
func runStatus(ctx context.Context, app *App) ([]fileStatus, error) {
	conflicted := make(map[string]bool)
	conflicts, err := app.Store.ListConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("hc status: list conflicts: %w", err)
	}
	for _, c := range conflicts {
		conflicted[c.NodeID] = true
	}

	watermarks, err := app.Store.ListFileWatermarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("hc status: list watermarks: %w", err)
	}

	var out []fileStatus
	for _, w := range watermarks {
		state, err := classify(ctx, app, w, conflicted)
		if err != nil {
			continue
		}
		out = append(out, state)
	}
	return out, nil
}

func classify(ctx context.Context, app *App, w store.FileWatermark, conflicted map[string]bool) (fileStatus, error) {
	if conflicted[w.NodeID] {
		return fileStatus{Path: w.Path, NodeID: w.NodeID, State: stateConflict}, nil
	}

	absPath := filepath.Join(app.Root, w.Path)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return fileStatus{}, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fileStatus{}, err
	}
	base, err := app.Store.GetNode(ctx, w.NodeID)
	if err != nil || base == nil {
		return fileStatus{}, fmt.Errorf("no base node")
	}
	handler, err := app.Formats.For(base.Type)
	if err != nil {
		return fileStatus{}, err
	}
	parsed, err := handler.Parse(string(content))
	if err != nil {
		return fileStatus{}, err
	}

	changes := diff.DetectChanges(parsed, info.ModTime(), base, handler.EditableFields(), w.SyncedAt, false)
	state := stateClean
	if len(changes) > 0 {
		state = stateModified
	}
	return fileStatus{Path: w.Path, NodeID: w.NodeID, State: state}, nil
}
