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

// diffResult is one file's worth of local-vs-base change detection.
type diffResult struct {
	NodeID  string
	Path    string
	Changes []diff.Change
}

func newDiffCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "diff [pattern]",
		Short: "Show local edits not yet reflected in the Store's base snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := openApp()
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			defer app.Close()

			pattern := ""
			if len(args) == 1 && !all {
				pattern = args[0]
			}

			results, err := runDiff(cmd.Context(), app, pattern)
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			if len(results) == 0 {
				fmt.Println("no local changes")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%s (%s)\n", r.NodeID, r.Path)
				for _, c := range r.Changes {
					fmt.Printf("  %s: %v -> %v\n", c.Field, c.OldValue, c.NewValue)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "diff every view, ignoring pattern")
	return cmd
}

// runDiff re-detects changes for every file watermark matching pattern
// ("" matches all), mirroring C5's pre-push change detection but without
// fetching remote state or mutating anything.
func runDiff(ctx context.Context, app *App, pattern string) ([]diffResult, error) {
	watermarks, err := app.Store.ListFileWatermarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("hc diff: list watermarks: %w", err)
	}

	var out []diffResult
	for _, w := range watermarks {
		if pattern != "" {
			matched, _ := filepath.Match(pattern, w.Path)
			if !matched {
				continue
			}
		}
		r, ok, err := diffOne(ctx, app, w)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hc diff: %s: %v\n", w.Path, err)
			continue
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func diffOne(ctx context.Context, app *App, w store.FileWatermark) (diffResult, bool, error) {
	absPath := filepath.Join(app.Root, w.Path)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return diffResult{}, false, nil
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return diffResult{}, false, nil
	}

	base, err := app.Store.GetNode(ctx, w.NodeID)
	if err != nil || base == nil {
		return diffResult{}, false, nil
	}

	handler, err := app.Formats.For(base.Type)
	if err != nil {
		return diffResult{}, false, err
	}
	parsed, err := handler.Parse(string(content))
	if err != nil {
		return diffResult{}, false, err
	}

	changes := diff.DetectChanges(parsed, info.ModTime(), base, handler.EditableFields(), w.SyncedAt, false)
	if len(changes) == 0 {
		return diffResult{}, false, nil
	}
	return diffResult{NodeID: w.NodeID, Path: w.Path, Changes: changes}, true, nil
}
