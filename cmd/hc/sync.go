package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hardcopy-dev/hardcopy/internal/config"
	"github.com/hardcopy-dev/hardcopy/internal/query"
)

// syncStats is the aggregate stats a sync invocation reports:
// {nodes, edges, errors[]}. Edges stay 0 here since none of the bundled
// Provider adapters report relations; a future Provider that does can
// populate it without changing this shape.
type syncStats struct {
	Nodes  int
	Edges  int
	Errors []string
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh every known node from its Provider, then materialize all views",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, log, err := openApp()
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			defer app.Close()

			stats, err := runSync(cmd.Context(), app, log)
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			log.Info("sync complete", "nodes", stats.Nodes, "edges", stats.Edges, "errors", len(stats.Errors))
			for _, e := range stats.Errors {
				fmt.Println(e)
			}
			return nil
		},
	}
}

// runSync re-fetches every node the Store already knows about from its
// registered Provider, upserts the fresh snapshot, then refreshes every
// configured view so files reflect the new state.
func runSync(ctx context.Context, app *App, log *slog.Logger) (syncStats, error) {
	var stats syncStats

	nodes, err := app.Store.QueryNodes(ctx, "")
	if err != nil {
		return stats, fmt.Errorf("hc sync: list nodes: %w", err)
	}

	for _, n := range nodes {
		prov, err := app.Providers.For(n.ID)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", n.ID, err))
			continue
		}
		remote, err := prov.FetchNode(ctx, n.ID)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("fetch %s: %v", n.ID, err))
			continue
		}
		if remote == nil {
			continue // remote considers the node gone; local state is left as it is
		}
		if err := app.Store.UpsertNode(ctx, remote); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("upsert %s: %v", n.ID, err))
			continue
		}
		stats.Nodes++
	}

	for _, def := range app.Config.Views {
		params := query.Params{"me": config.Me()}
		if _, err := app.Materializer.Refresh(ctx, def, params, false); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("view %s: %v", def.Path, err))
		}
	}

	return stats, nil
}
