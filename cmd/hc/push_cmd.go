package main

import (
	"fmt"

	"github.com/spf13/cobra"

	hcpush "github.com/hardcopy-dev/hardcopy/internal/push"
)

func newPushCmd() *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "push [pattern]",
		Short: "Push locally-edited files back to their Providers",
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

			stats, err := app.Push.Run(cmd.Context(), hcpush.Options{
				Pattern: pattern,
				DryRun:  dryRun,
				Force:   force,
			})
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}

			log.Info("push complete",
				"pushed", stats.Pushed, "skipped", stats.Skipped,
				"conflicts", stats.Conflicts, "errors", len(stats.Errors))
			for _, e := range stats.Errors {
				fmt.Println(e)
			}

			if stats.Conflicts > 0 {
				return withExitCode(exitConflicts, fmt.Errorf("%d node(s) have unresolved conflicts; run `hc conflicts` then `hc resolve <node_id>`", stats.Conflicts))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute and report decisions without pushing to any Provider (remote state is still fetched)")
	cmd.Flags().BoolVar(&force, "force", false, "push even files that don't look newer than their last sync (bypasses the mtime/watermark skip check)")
	return cmd
}
