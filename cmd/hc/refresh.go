package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hardcopy-dev/hardcopy/internal/config"
	"github.com/hardcopy-dev/hardcopy/internal/query"
	"github.com/hardcopy-dev/hardcopy/internal/view"
)

func newRefreshCmd() *cobra.Command {
	var clean, syncFirst bool

	cmd := &cobra.Command{
		Use:   "refresh [pattern]",
		Short: "Re-evaluate one or more views and rewrite their files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, log, err := openApp()
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			defer app.Close()

			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}

			if syncFirst {
				if _, err := runSync(cmd.Context(), app, log); err != nil {
					return withExitCode(exitUnrecoverable, err)
				}
			}

			results, err := runRefresh(cmd.Context(), app, log, pattern, clean)
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			for path, res := range results {
				log.Info("refreshed view", "path", path,
					"loaded", res.Loaded, "rendered", res.Rendered,
					"orphaned", res.Orphaned, "deleted", res.Deleted)
				for _, w := range res.Warnings {
					fmt.Println(w)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clean, "clean", false, "delete orphaned files and their CRDT/watermark state")
	cmd.Flags().BoolVar(&syncFirst, "sync-first", false, "refresh node state from each Provider before materializing")
	return cmd
}

// runRefresh materializes every view whose path matches pattern ("" matches
// all), returning each view's Result keyed by path.
func runRefresh(ctx context.Context, app *App, log *slog.Logger, pattern string, clean bool) (map[string]*view.Result, error) {
	out := make(map[string]*view.Result)
	params := query.Params{"me": config.Me()}

	for _, def := range app.Config.Views {
		if pattern != "" {
			matched, _ := filepath.Match(pattern, def.Path)
			if !matched {
				continue
			}
		}
		res, err := app.Materializer.Refresh(ctx, def, params, clean)
		if err != nil {
			return out, fmt.Errorf("hc refresh: view %s: %w", def.Path, err)
		}
		out[def.Path] = res
	}
	return out, nil
}
