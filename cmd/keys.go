package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/osuchanglab/autoMLSA/config"
	"github.com/osuchanglab/autoMLSA/internal/records"
)

var keysMerge string

// keysCmd inspects or updates a run's key file, the record store
// mapping accessions to organism identity.
var keysCmd = &cobra.Command{
	Use:   "keys <runid> [accession...]",
	Short: "Inspect a run's identity records, or merge another key file into them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runid := args[0]
		rundir, err := config.RunDirFor(runid)
		if err != nil {
			return err
		}
		if err := initLogger("", runid); err != nil {
			return err
		}
		keyFile := filepath.Join(rundir, "keys.tsv")

		if keysMerge != "" {
			if err := records.MergeFiles(keyFile, keysMerge, keyFile); err != nil {
				return err
			}
			logger.Infof("Merged %s into %s.", keysMerge, keyFile)
		}

		store, err := records.ReadFile(keyFile)
		if err != nil {
			return err
		}

		if len(args) > 1 {
			for _, acc := range args[1:] {
				rec, ok := store.Lookup(acc)
				if !ok {
					logger.Warnf("%s: not in key file", acc)
					continue
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", rec.Accession, rec.Group(), rec.Organism, rec.Label)
			}
			return nil
		}

		for _, rec := range store.Records() {
			fmt.Printf("%s\t%s\t%s\t%s\n", rec.Accession, rec.Group(), rec.Organism, rec.Label)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.Flags().StringVar(&keysMerge, "merge", "", "path to another key file to union into this run's records")
}
