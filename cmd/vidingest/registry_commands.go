package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidingest/internal/config"
	"vidingest/internal/registry"
)

func newRegistryCommand(ctx *commandContext) *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect registered videos and experiment assignments",
	}

	registryCmd.AddCommand(newRegistryListCommand(ctx))
	registryCmd.AddCommand(newRegistryLinkCommand(ctx))
	registryCmd.AddCommand(newRegistryUnlinkCommand(ctx))
	registryCmd.AddCommand(newRegistryLinksCommand(ctx))
	registryCmd.AddCommand(newRegistrySetTimeCommand(ctx))
	registryCmd.AddCommand(newRegistryRunsCommand(ctx))

	return registryCmd
}

func newRegistryListCommand(ctx *commandContext) *cobra.Command {
	var unassigned bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(func(_ *config.Config, store *registry.Store) error {
				var (
					videos []*registry.UnassignedVideo
					err    error
				)
				if unassigned {
					videos, err = store.Unassigned(cmd.Context())
				} else {
					videos, err = store.Videos(cmd.Context())
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					if videos == nil {
						videos = []*registry.UnassignedVideo{}
					}
					return writeJSON(cmd, videos)
				}

				out := cmd.OutOrStdout()
				if len(videos) == 0 {
					fmt.Fprintln(out, "No videos registered")
					return nil
				}
				rows := make([][]string, 0, len(videos))
				for _, v := range videos {
					location := v.StagedPath
					if location == "" {
						location = v.Host + ":" + v.SourcePath
					}
					rows = append(rows, []string{
						shortHash(v.Hash),
						location,
						formatBytes(v.SizeBytes),
						formatTimestamp(v.CaptureTime()),
						orDash(string(v.RecordedTimeSource)),
						strconv.Itoa(v.LinkCount),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Hash", "Location", "Size", "Captured", "Time Source", "Experiments"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
				))
				fmt.Fprintf(out, "\nTotal: %d videos\n", len(videos))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "Only videos not linked to any experiment")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func newRegistryLinkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "link HASH EXPERIMENT",
		Short: "Assign a registered video to an experiment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, experiment, err := linkArgs(args)
			if err != nil {
				return err
			}
			return ctx.withRegistry(func(_ *config.Config, store *registry.Store) error {
				link, err := store.LinkToExperiment(cmd.Context(), hash, experiment)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Linked %s to %s (since %s)\n",
					shortHash(link.Hash), link.ExperimentID, formatTimestamp(link.LinkedAt))
				return nil
			})
		},
	}
}

func newRegistryUnlinkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink HASH EXPERIMENT",
		Short: "Remove a video from an experiment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, experiment, err := linkArgs(args)
			if err != nil {
				return err
			}
			return ctx.withRegistry(func(_ *config.Config, store *registry.Store) error {
				if err := store.Unlink(cmd.Context(), hash, experiment); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unlinked %s from %s\n", shortHash(hash), experiment)
				return nil
			})
		},
	}
}

func newRegistryLinksCommand(ctx *commandContext) *cobra.Command {
	var filter registry.LinkFilter
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "links",
		Short: "List experiment assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(func(_ *config.Config, store *registry.Store) error {
				links, err := store.Links(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					if links == nil {
						links = []registry.ExperimentVideoLink{}
					}
					return writeJSON(cmd, links)
				}
				out := cmd.OutOrStdout()
				if len(links) == 0 {
					fmt.Fprintln(out, "No links found")
					return nil
				}
				rows := make([][]string, 0, len(links))
				for _, l := range links {
					rows = append(rows, []string{l.ExperimentID, l.Hash, formatTimestamp(l.LinkedAt)})
				}
				fmt.Fprint(out, renderTable([]string{"Experiment", "Hash", "Linked"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.ExperimentID, "experiment", "", "Only links of this experiment")
	cmd.Flags().StringVar(&filter.Hash, "hash", "", "Only links of this video")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func newRegistrySetTimeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-time HASH RFC3339",
		Short: "Record a video's capture time by hand",
		Long: `Override the capture time of a registered video, for example when the
file's modification time was reset by a copy. The time source becomes "manual".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := strings.TrimSpace(args[0])
			recorded, err := time.Parse(time.RFC3339, strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("parse time %q: expected RFC 3339 like 2024-05-01T14:30:00Z", args[1])
			}
			return ctx.withRegistry(func(_ *config.Config, store *registry.Store) error {
				if err := store.SetRecordedTime(cmd.Context(), hash, recorded); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Capture time of %s set to %s\n", shortHash(hash), recorded.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
}

func newRegistryRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingest runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(func(_ *config.Config, store *registry.Store) error {
				runs, err := store.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					if runs == nil {
						runs = []registry.RunRecord{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					status := string(r.Status)
					if r.DryRun {
						status += " (dry run)"
					}
					rows = append(rows, []string{
						r.RunID,
						formatTimestamp(r.StartedAt),
						formatDuration(r.Duration()),
						status,
						strings.Join(r.Targets, ","),
						strconv.Itoa(r.Unique),
						strconv.Itoa(r.Staged),
						strconv.Itoa(r.Registered),
						strconv.Itoa(r.Failures),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Run", "Started", "Duration", "Status", "Targets", "Unique", "Staged", "Registered", "Failures"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func linkArgs(args []string) (string, string, error) {
	hash := strings.TrimSpace(args[0])
	experiment := strings.TrimSpace(args[1])
	if hash == "" || experiment == "" {
		return "", "", errors.New("hash and experiment must not be empty")
	}
	return hash, experiment, nil
}
