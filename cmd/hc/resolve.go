package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hardcopy-dev/hardcopy/internal/conflictfile"
	hcpush "github.com/hardcopy-dev/hardcopy/internal/push"
)

// newResolveCmd wires `hc resolve <node_id>`. The conflict artifact file
// under .hardcopy/conflicts/ is human-editable; resolving means the user
// has already removed the diff3-style markers for each diverged field's
// block, leaving either the local or the remote text in place. resolve
// loads that artifact, parses its per-field marker blocks, and infers
// which side was kept by comparing what remains against the conflict's
// recorded local/remote values.
func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <node_id>",
		Short: "Apply an edited conflict file's choices and re-push",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, log, err := openApp()
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			defer app.Close()

			nodeID := args[0]
			if err := runResolve(cmd.Context(), app, nodeID); err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			log.Info("resolved conflict", "node_id", nodeID)
			return nil
		},
	}
}

func runResolve(ctx context.Context, app *App, nodeID string) error {
	conflict, err := app.Store.ReadConflict(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("hc resolve %s: %w", nodeID, err)
	}
	if conflict == nil {
		return fmt.Errorf("hc resolve %s: no open conflict", nodeID)
	}

	artifactPath, err := app.Store.ConflictArtifactPath(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("hc resolve %s: %w", nodeID, err)
	}
	content, err := os.ReadFile(artifactPath)
	if err != nil {
		return fmt.Errorf("hc resolve %s: read %s: %w", nodeID, artifactPath, err)
	}
	blocks, err := conflictfile.Parse(string(content))
	if err != nil {
		return fmt.Errorf("hc resolve %s: parse %s: %w", nodeID, artifactPath, err)
	}

	resolution := make(map[string]hcpush.Side, len(conflict.Fields))
	for field, fc := range conflict.Fields {
		block, ok := blocks[field]
		if !ok {
			return fmt.Errorf("hc resolve %s: field %q is missing from %s", nodeID, field, artifactPath)
		}
		if block.HasMarkers {
			return fmt.Errorf("hc resolve %s: field %q still has unresolved markers; edit it to keep either the local or remote side and re-run", nodeID, field)
		}

		switch block.Resolved {
		case conflictfile.Stringify(fc.Local):
			resolution[field] = hcpush.SideLocal
		case conflictfile.Stringify(fc.Remote):
			resolution[field] = hcpush.SideRemote
		default:
			return fmt.Errorf("hc resolve %s: field %q has a value matching neither the local nor remote side; edit it to match one and re-run", nodeID, field)
		}
	}

	return app.Push.Resolve(ctx, nodeID, resolution)
}
