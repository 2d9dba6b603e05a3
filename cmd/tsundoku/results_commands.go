package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tsundoku/internal/catalog"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Review persisted match results",
	}

	resultsCmd.AddCommand(newResultsListCommand(ctx))
	resultsCmd.AddCommand(newResultsAcceptCommand(ctx))
	resultsCmd.AddCommand(newResultsSkipCommand(ctx))
	resultsCmd.AddCommand(newResultsAutoCommand(ctx))

	return resultsCmd
}

func newResultsListCommand(ctx *commandContext) *cobra.Command {
	var pendingOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored match results",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			results, err := eng.store.LoadMatchResults(cmd.Context())
			if err != nil {
				return err
			}
			if pendingOnly {
				filtered := results[:0]
				for _, r := range results {
					if r.Disposition == catalog.DispositionPending {
						filtered = append(filtered, r)
					}
				}
				results = filtered
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No stored results")
				return nil
			}
			fmt.Fprintln(out, renderResultsTable(results))
			return nil
		},
	}

	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Show only results awaiting review")
	return cmd
}

func newResultsAcceptCommand(ctx *commandContext) *cobra.Command {
	var candidate int

	cmd := &cobra.Command{
		Use:   "accept <source-id>",
		Short: "Accept a candidate for one result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("source id %q is not a number", args[0])
			}

			eng, err := ctx.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			result, err := loadResult(cmd.Context(), eng, id)
			if err != nil {
				return err
			}
			if candidate < 1 || candidate > len(result.Candidates) {
				return fmt.Errorf("result %d has %d candidates; --candidate must be 1-%d",
					id, len(result.Candidates), len(result.Candidates))
			}

			selected := result.Candidates[candidate-1].Entry
			result.Disposition = catalog.DispositionMatched
			result.SelectedMatch = &selected
			result.MatchedAt = time.Now().UTC()

			if err := applyReview(eng, catalog.SingleAction(result)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Accepted %q for entry %d\n", selected.DisplayTitle(), id)
			return nil
		},
	}

	cmd.Flags().IntVar(&candidate, "candidate", 1, "1-based candidate rank to accept")
	return cmd
}

func newResultsSkipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <source-id>",
		Short: "Mark one result as skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("source id %q is not a number", args[0])
			}

			eng, err := ctx.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			result, err := loadResult(cmd.Context(), eng, id)
			if err != nil {
				return err
			}
			result.Disposition = catalog.DispositionSkipped
			result.SelectedMatch = nil

			if err := applyReview(eng, catalog.SingleAction(result)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Skipped entry %d\n", id)
			return nil
		},
	}
}

func newResultsAutoCommand(ctx *commandContext) *cobra.Command {
	var minConfidence int

	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Accept the best candidate for every confident pending result",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			results, err := eng.store.LoadMatchResults(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			accepted := make([]catalog.MatchResult, 0, len(results))
			for _, r := range results {
				if r.Disposition != catalog.DispositionPending {
					continue
				}
				best, ok := r.BestCandidate()
				if !ok || best.Confidence < minConfidence {
					continue
				}
				selected := best.Entry
				r.Disposition = catalog.DispositionMatched
				r.SelectedMatch = &selected
				r.MatchedAt = now
				accepted = append(accepted, r)
			}

			out := cmd.OutOrStdout()
			if len(accepted) == 0 {
				fmt.Fprintf(out, "No pending results at or above confidence %d\n", minConfidence)
				return nil
			}
			if err := applyReview(eng, catalog.BatchAction(accepted)); err != nil {
				return err
			}
			fmt.Fprintf(out, "Accepted %d results at or above confidence %d\n", len(accepted), minConfidence)
			return nil
		},
	}

	cmd.Flags().IntVar(&minConfidence, "min-confidence", 90, "Lowest best-candidate confidence to auto-accept")
	return cmd
}

func loadResult(ctx context.Context, eng *engine, id int64) (catalog.MatchResult, error) {
	results, err := eng.store.LoadMatchResults(ctx)
	if err != nil {
		return catalog.MatchResult{}, err
	}
	for _, r := range results {
		if r.SourceEntry.ID == id {
			return r, nil
		}
	}
	return catalog.MatchResult{}, fmt.Errorf("no stored result for source entry %d", id)
}

// applyReview persists a review action through its variant-specific handler
// and rewrites the pending-entry list to match the new dispositions.
func applyReview(eng *engine, action catalog.ReviewAction) error {
	ctx := context.Background()
	err := action.Apply(
		func(result catalog.MatchResult) error {
			if !result.Valid() {
				return fmt.Errorf("result %d violates the disposition invariant", result.SourceEntry.ID)
			}
			return eng.store.SaveMatchResults(ctx, []catalog.MatchResult{result})
		},
		func(results []catalog.MatchResult) error {
			for _, r := range results {
				if !r.Valid() {
					return fmt.Errorf("result %d violates the disposition invariant", r.SourceEntry.ID)
				}
			}
			return eng.store.SaveMatchResults(ctx, results)
		},
	)
	if err != nil {
		return err
	}

	results, err := eng.store.LoadMatchResults(ctx)
	if err != nil {
		return err
	}
	pending := make([]catalog.SourceEntry, 0, len(results))
	for _, r := range results {
		if r.Disposition == catalog.DispositionPending {
			pending = append(pending, r.SourceEntry)
		}
	}
	return eng.store.SavePendingEntries(ctx, pending)
}
