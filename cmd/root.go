// Package cmd is for command line interactions with the automlsa
// application.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/osuchanglab/autoMLSA/internal/pipeline"
)

var (
	debug bool
	quiet bool

	logger = zap.NewNop().Sugar()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "automlsa",
	Short: `Generate automated multi-locus sequence analyses.
Searches marker genes against genome databases, resolves organism
identities, and builds a concatenated, partitioned alignment for
phylogenetic tree inference`,
	Version:       "3.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, pipeline.ErrCheckpoint) {
			// an operator stop, not a failure
			os.Exit(0)
		}
		logger.Errorf("%v", err)
		logger.Error("Check error messages to resolve the problem.")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "turn on debugging messages")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "turn off progress messages")
}

// initLogger builds the run logger: console at a level set by
// --debug/--quiet, plus a per-run logfile at debug level when a run
// directory is known.
func initLogger(rundir, runid string) error {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	} else if quiet {
		level = zapcore.WarnLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleEnc := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	if rundir != "" {
		path := filepath.Join(rundir, runid+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open logfile %s: %w", path, err)
		}
		cores = append(cores, zapcore.NewCore(consoleEnc, zapcore.AddSync(f), zapcore.DebugLevel))
	}

	logger = zap.New(zapcore.NewTee(cores...)).Sugar()
	return nil
}
