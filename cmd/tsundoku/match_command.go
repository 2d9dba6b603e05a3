package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tsundoku/internal/batch"
	"tsundoku/internal/catalog"
	"tsundoku/internal/export"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var bypass bool
	var dryRun bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "match <export-file>",
		Short: "Match every entry of a reading-list export against the catalog",
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

			out := cmd.OutOrStdout()
			opts := batch.Options{Bypass: bypass}
			if !quiet {
				opts.Progress = func(p batch.Progress) {
					fmt.Fprintf(out, "[%d/%d] %s\n", p.Completed, p.Total, p.Title)
				}
			}

			results, err := eng.batcher.MatchBatch(cmd.Context(), entries, opts)
			if err != nil {
				return err
			}
			if len(results) < len(entries) {
				fmt.Fprintf(out, "Interrupted: %d of %d entries resolved\n", len(results), len(entries))
			}

			if !dryRun {
				// Persistence uses a fresh context so an interrupt during the
				// run does not also discard the partial results.
				persistCtx := context.Background()
				if err := eng.store.SaveMatchResults(persistCtx, results); err != nil {
					return fmt.Errorf("save match results: %w", err)
				}
				pending := make([]catalog.SourceEntry, 0, len(results))
				for _, r := range results {
					if r.Disposition == catalog.DispositionPending {
						pending = append(pending, r.SourceEntry)
					}
				}
				if err := eng.store.SavePendingEntries(persistCtx, pending); err != nil {
					return fmt.Errorf("save pending entries: %w", err)
				}
			}

			fmt.Fprintln(out, renderResultsTable(results))
			matched := 0
			for _, r := range results {
				if len(r.Candidates) > 0 {
					matched++
				}
			}
			fmt.Fprintf(out, "%d entries, %d with candidates, %d without\n",
				len(results), matched, len(results)-matched)
			return nil
		},
	}

	cmd.Flags().BoolVar(&bypass, "bypass", false, "Skip the cache and force fresh catalog searches")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report matches without persisting them")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress per-entry progress output")
	return cmd
}

func renderResultsTable(results []catalog.MatchResult) string {
	headers := []string{"ID", "Title", "Best Match", "Conf", "Cands", "State"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		best := "-"
		conf := "-"
		if c, ok := r.BestCandidate(); ok {
			best = c.Entry.DisplayTitle()
			if c.Source != "" {
				best += " (" + c.Source + ")"
			}
			conf = strconv.Itoa(c.Confidence)
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.SourceEntry.ID, 10),
			r.SourceEntry.Title,
			best,
			conf,
			strconv.Itoa(len(r.Candidates)),
			string(r.Disposition),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft})
}
