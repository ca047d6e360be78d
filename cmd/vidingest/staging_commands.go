package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vidingest/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Maintain managed storage",
	}

	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove partial copies left by interrupted runs",
		Long: `Remove temporary copies under the managed root that are older than
--max-age (default staging.partial_max_age_hours). Completed files are never
touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			age := maxAge
			if age <= 0 {
				age = time.Duration(cfg.Staging.PartialMaxAgeHours) * time.Hour
			}

			result := staging.CleanPartials(cmd.Context(), cfg.Paths.ManagedRoot, age, logger)
			if jsonOutput {
				return writeStagingCleanJSON(cmd, result)
			}
			return printStagingCleanResult(cmd, result)
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Only remove partial copies older than this")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func printStagingCleanResult(cmd *cobra.Command, result staging.CleanResult) error {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Locks) == 0 && len(result.Errors) == 0 {
		fmt.Fprintln(out, "No partial copies to clean")
		return nil
	}
	if len(result.Locks) > 0 {
		fmt.Fprintf(out, "Pruned %d unused destination locks\n", len(result.Locks))
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Removed %d partial copies, %d errors\n", len(result.Removed), len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
		}
		return nil
	}
	fmt.Fprintf(out, "Removed %d partial copies\n", len(result.Removed))
	return nil
}

func writeStagingCleanJSON(cmd *cobra.Command, result staging.CleanResult) error {
	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
	}
	removed := result.Removed
	if removed == nil {
		removed = []string{}
	}
	locks := result.Locks
	if locks == nil {
		locks = []string{}
	}
	return writeJSON(cmd, map[string]any{
		"removed": removed,
		"locks":   locks,
		"errors":  errs,
	})
}
