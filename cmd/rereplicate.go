package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/osuchanglab/autoMLSA/config"
	"github.com/osuchanglab/autoMLSA/internal/mlsa"
)

var rerepSelection string
var rerepOut string

// rereplicateCmd restores suppressed duplicate rows into the reduced
// alignment. The selection file uses the dereplication log format;
// editing the run's own log down to the rows to restore is the usual
// workflow.
var rereplicateCmd = &cobra.Command{
	Use:   "rereplicate <runid>",
	Short: "Restore selected duplicate rows into the dereplicated alignment",
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

		selectionPath := rerepSelection
		if selectionPath == "" {
			selectionPath = filepath.Join(rundir, "derep.log.tsv")
		}
		selection, err := mlsa.ReadDerepLog(selectionPath)
		if err != nil {
			return err
		}

		reduced, err := mlsa.ReadFasta(filepath.Join(rundir, "concatenated.derep.fasta"))
		if err != nil {
			return err
		}

		expanded := mlsa.Rereplicate(reduced, selection)
		outPath := rerepOut
		if outPath == "" {
			outPath = filepath.Join(rundir, "concatenated.rerep.fasta")
		}
		if err := mlsa.WriteFasta(outPath, expanded); err != nil {
			return err
		}
		logger.Infof("Restored %d rows into %s (%d total).", len(expanded)-len(reduced), outPath, len(expanded))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rereplicateCmd)
	rereplicateCmd.Flags().StringVar(&rerepSelection, "selection", "", "selection file (defaults to the run's full dereplication log)")
	rereplicateCmd.Flags().StringVar(&rerepOut, "out", "", "output FASTA (defaults to concatenated.rerep.fasta in the run directory)")
}
