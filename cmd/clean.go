package cmd

import (
	"github.com/spf13/cobra"

	"github.com/osuchanglab/autoMLSA/config"
	"github.com/osuchanglab/autoMLSA/internal/pipeline"
)

// cleanCmd removes the downstream stage artifacts of a run so the next
// invocation recomputes everything after the cached searches. Use it
// after adding marker genes to an existing run.
var cleanCmd = &cobra.Command{
	Use:   "clean <runid>",
	Short: "Delete downstream artifacts (alignments, concatenation, partitions, model) keeping cached search output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runid := args[0]
		rundir, err := config.RunDirFor(runid)
		if err != nil {
			return err
		}
		if err := initLogger(rundir, runid); err != nil {
			return err
		}
		return pipeline.Clean(rundir, logger)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
