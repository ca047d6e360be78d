package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"vidingest/internal/dedup"
	"vidingest/internal/media"
)

func newDedupCommand(_ *commandContext) *cobra.Command {
	var showConflicts bool

	cmd := &cobra.Command{
		Use:   "dedup [FILE|-]",
		Short: "Deduplicate a captured JSONL record stream",
		Long: `Read records written by "scan --jsonl" from FILE (or stdin when FILE is
omitted or "-") and print one record per unique video. The summary goes to
stderr so the output can be piped again.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			name := "stdin"
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open records: %w", err)
				}
				defer f.Close()
				in = f
				name = args[0]
			}

			deduper := dedup.New()
			read := 0
			err := media.ReadRecords(in, func(rec media.VideoRecord) error {
				read++
				deduper.Add(rec)
				return nil
			})
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			if err := writeRecords(cmd, deduper.Entries()); err != nil {
				return fmt.Errorf("write records: %w", err)
			}

			stderr := cmd.ErrOrStderr()
			fmt.Fprintf(stderr, "%d records: %d unique, %d duplicates discarded, %d conflicts\n",
				read, deduper.Len(), deduper.Discarded(), len(deduper.Conflicts()))
			if showConflicts {
				colorize := shouldColorize(stderr)
				for _, c := range deduper.Conflicts() {
					fmt.Fprintln(stderr, renderStatusLine(shortHash(c.SampleHash), statusWarn, c.Error(), colorize))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showConflicts, "conflicts", false, "List sample-hash conflicts on stderr")
	return cmd
}
