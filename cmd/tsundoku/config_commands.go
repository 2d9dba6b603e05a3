package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tsundoku/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = config.DefaultPath()
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set anilist token there if you have one; anonymous access works with a lower rate budget.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			headers := []string{"Setting", "Value"}
			rows := [][]string{
				{"data_dir", cfg.Paths.DataDir},
				{"log_dir", cfg.Paths.LogDir},
				{"anilist.base_url", cfg.AniList.BaseURL},
				{"anilist.token", yesNo(cfg.AniList.Token != "")},
				{"anilist.requests_per_minute", fmt.Sprintf("%d", cfg.AniList.RequestsPerMinute)},
				{"anilist.search_group_size", fmt.Sprintf("%d", cfg.AniList.SearchGroupSize)},
				{"fallbacks.mangadex", yesNo(cfg.Fallbacks.MangaDexEnabled)},
				{"fallbacks.comick", yesNo(cfg.Fallbacks.ComickEnabled)},
				{"matching.cache_ttl", cfg.CacheTTL().String()},
				{"filters.included_formats", strings.Join(cfg.Filters.IncludedFormats, ", ")},
				{"filters.ignore_one_shots", yesNo(cfg.Filters.IgnoreOneShots)},
				{"filters.ignore_adult_content", yesNo(cfg.Filters.IgnoreAdultContent)},
				{"filters.rules", fmt.Sprintf("%d", len(cfg.Filters.Rules))},
				{"logging.level", cfg.Logging.Level},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows,
				[]columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration valid")
			return nil
		},
	}
}
