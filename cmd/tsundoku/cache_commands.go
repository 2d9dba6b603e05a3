package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the search cache",
	}

	cacheCmd.AddCommand(newCacheShowCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List cached search records",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			records := eng.cache.Snapshot()
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}

			headers := []string{"Key", "Entries", "Fetched", "Valid"}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.Key,
					strconv.Itoa(len(rec.Entries)),
					rec.FetchedAt.Local().Format(time.RFC3339),
					yesNo(eng.cache.IsValid(rec.Key)),
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
			fmt.Fprintf(out, "%d records (TTL %s)\n", len(records), eng.cfg.CacheTTL())
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard every cached search record",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			before := eng.cache.Len()
			eng.cache.Clear()
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached records\n", before)
			return nil
		},
	}
}
