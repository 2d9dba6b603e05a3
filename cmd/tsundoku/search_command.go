package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tsundoku/internal/search"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var bypass bool
	var page int

	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Search the catalog for one title and show ranked candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			candidates, err := eng.searcher.Search(cmd.Context(), args[0], search.Options{
				Bypass: bypass,
				Page:   page,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintf(out, "No candidates for %q\n", args[0])
				return nil
			}

			headers := []string{"#", "ID", "Title", "Format", "Conf", "Source"}
			rows := make([][]string, 0, len(candidates))
			for i, c := range candidates {
				source := c.Source
				if source == "" {
					source = "anilist"
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					strconv.FormatInt(c.Entry.ID, 10),
					c.Entry.DisplayTitle(),
					string(c.Entry.Format),
					strconv.Itoa(c.Confidence),
					source,
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&bypass, "bypass", false, "Skip the cache and force a fresh catalog search")
	cmd.Flags().IntVar(&page, "page", 0, "Fetch exactly this result page instead of paginating")
	return cmd
}
