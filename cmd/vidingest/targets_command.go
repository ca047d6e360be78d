package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vidingest/internal/preflight"
)

func newTargetsCommand(ctx *commandContext) *cobra.Command {
	var check bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "targets [names...]",
		Short: "List configured scan targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			selected, err := cfg.SelectTargets(args)
			if err != nil {
				return err
			}

			if jsonOutput {
				type targetJSON struct {
					Name     string   `json:"name"`
					Kind     string   `json:"kind"`
					Host     string   `json:"host,omitempty"`
					Port     int      `json:"port,omitempty"`
					User     string   `json:"user,omitempty"`
					Platform string   `json:"platform"`
					Roots    []string `json:"roots"`
				}
				items := make([]targetJSON, 0, len(selected))
				for _, t := range selected {
					items = append(items, targetJSON{
						Name: t.Name, Kind: t.Kind, Host: t.Host, Port: t.Port,
						User: t.User, Platform: t.Platform, Roots: t.Roots,
					})
				}
				return writeJSON(cmd, items)
			}

			out := cmd.OutOrStdout()
			if len(selected) == 0 {
				fmt.Fprintln(out, "No targets configured")
			} else {
				rows := make([][]string, 0, len(selected))
				for _, t := range selected {
					host := "-"
					if t.Remote() {
						host = t.Host + ":" + strconv.Itoa(t.Port)
						if t.User != "" {
							host = t.User + "@" + host
						}
					}
					rows = append(rows, []string{t.Name, t.Kind, host, t.Platform, strings.Join(t.Roots, ", ")})
				}
				fmt.Fprint(out, renderTable([]string{"Name", "Kind", "Host", "Platform", "Roots"}, rows, nil))
			}

			if !check {
				return nil
			}
			colorize := shouldColorize(out)
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cmd.Context(), cfg, selected)
			for _, r := range results {
				kind := statusOK
				switch {
				case !r.Passed && r.Advisory:
					kind = statusWarn
				case !r.Passed:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			return preflight.Err(results)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Run preflight checks for the selected targets")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}
