package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tsundoku/internal/export"
)

func newPreloadCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preload <export-file>",
		Short: "Warm the search cache for every title in an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := export.ReadFile(args[0])
			if err != nil {
				return err
			}

			eng, err := ctx.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			titles := make([]string, 0, len(entries))
			for _, entry := range entries {
				titles = append(titles, entry.Title)
			}
			if err := eng.searcher.Preload(cmd.Context(), titles); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Preloaded %d titles; cache now holds %d records\n",
				len(titles), eng.cache.Len())
			return nil
		},
	}
	return cmd
}
