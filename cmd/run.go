package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/osuchanglab/autoMLSA/config"
	"github.com/osuchanglab/autoMLSA/internal/mlsa"
	"github.com/osuchanglab/autoMLSA/internal/pipeline"
	"github.com/osuchanglab/autoMLSA/internal/resolve"
)

// runCmd represents the run command, the full pipeline for one run id.
var runCmd = &cobra.Command{
	Use:   "run <runid>",
	Short: "Run the MLSA pipeline for a run directory, resuming finished stages",
	Long: `Run the MLSA pipeline for a run directory.

Stages whose output artifacts already exist are skipped, so re-invoking
the same run id resumes after a failure or an operator checkpoint
instead of redoing finished work. Parameters given on the command line
are persisted to the run directory and reloaded on resume.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runid := args[0]
		rundir, err := config.RunDirFor(runid)
		if err != nil {
			return err
		}
		if err := initLogger(rundir, runid); err != nil {
			return err
		}

		// persisted run settings fill whatever the flags left unset
		if err := config.LoadRun(rundir); err != nil {
			return err
		}
		viper.Set("runid", runid)

		cfg, err := config.New()
		if err != nil {
			return err
		}
		cfg.RunDir = rundir
		if cfg.Resolve.Email == "" {
			cfg.Resolve.Email = os.Getenv("EMAIL")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if !pipeline.ValidCheckpoint(cfg.Checkpoint) {
			return fmt.Errorf("unknown checkpoint %q; use %q or %q", cfg.Checkpoint, pipeline.CheckpointFasta, pipeline.CheckpointModel)
		}
		if err := config.WriteRun(rundir); err != nil {
			return err
		}

		directory := resolve.NewEntrezDirectory(cfg.Resolve.Email)
		runner := &mlsa.Runner{
			Cfg:   cfg,
			Tools: mlsa.DefaultToolchain(cfg.Search.Program),
			Gate:  pipeline.NewGate(logger),
			Resolver: resolve.New(directory, logger, resolve.Config{
				Attempts:    cfg.Resolve.Attempts,
				StripStrain: cfg.Resolve.StripStrain,
			}),
			Log: logger,
		}

		logger.Infof("Welcome to automlsa version %s, run %s.", rootCmd.Version, runid)
		return runner.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceP("query", "q", nil, "paths to FASTA files with marker gene query sequences")
	runCmd.Flags().StringSlice("files", nil, "paths to target genome FASTA files")
	runCmd.Flags().StringSlice("dir", nil, "directories with target genome FASTA files")
	runCmd.Flags().Bool("dups", false, "allow duplicate query names across input files")
	runCmd.Flags().String("checkpoint", "", "pause point: fasta or model")
	runCmd.Flags().StringP("program", "p", "tblastn", "search program: tblastn or blastn")
	runCmd.Flags().Float64P("evalue", "e", 1e-5, "e-value cutoff for searches")
	runCmd.Flags().IntP("coverage", "c", 50, "coverage cutoff threshold in percent")
	runCmd.Flags().IntP("threads", "t", 1, "worker count for external tools")
	runCmd.Flags().String("email", "", "contact email for the identity service ($EMAIL also works)")
	runCmd.Flags().Int("attempts", resolve.DefaultAttempts, "retry ceiling for identity service calls")
	runCmd.Flags().Bool("strip-strain", false, "drop strain/str./substr. tokens from labels")

	viper.BindPFlag("query", runCmd.Flags().Lookup("query"))
	viper.BindPFlag("files", runCmd.Flags().Lookup("files"))
	viper.BindPFlag("dir", runCmd.Flags().Lookup("dir"))
	viper.BindPFlag("dups", runCmd.Flags().Lookup("dups"))
	viper.BindPFlag("checkpoint", runCmd.Flags().Lookup("checkpoint"))
	viper.BindPFlag("search.program", runCmd.Flags().Lookup("program"))
	viper.BindPFlag("search.evalue", runCmd.Flags().Lookup("evalue"))
	viper.BindPFlag("search.coverage", runCmd.Flags().Lookup("coverage"))
	viper.BindPFlag("search.threads", runCmd.Flags().Lookup("threads"))
	viper.BindPFlag("resolve.email", runCmd.Flags().Lookup("email"))
	viper.BindPFlag("resolve.attempts", runCmd.Flags().Lookup("attempts"))
	viper.BindPFlag("resolve.strip-strain", runCmd.Flags().Lookup("strip-strain"))
}
