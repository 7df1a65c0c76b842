package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List nodes with an open conflict artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := openApp()
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			defer app.Close()

			list, err := app.Store.ListConflicts(cmd.Context())
			if err != nil {
				return withExitCode(exitUnrecoverable, err)
			}
			if len(list) == 0 {
				fmt.Println("no open conflicts")
				return nil
			}
			for _, c := range list {
				fields := make([]string, 0, len(c.Fields))
				for field := range c.Fields {
					fields = append(fields, field)
				}
				artifactPath, err := app.Store.ConflictArtifactPath(cmd.Context(), c.NodeID)
				if err != nil {
					artifactPath = "?"
				}
				fmt.Printf("%s\t%s\t%v\n", c.NodeID, artifactPath, fields)
			}
			return nil
		},
	}
}
