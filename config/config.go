// Package config is for run-wide settings that are unmarshalled from
// Viper (see: /cmd). Every run persists its effective parameters to the
// run directory; a resumed run reads that file first and command line
// flags override it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// ConfigFile is the persisted settings file name inside a run directory.
const ConfigFile = "config.yaml"

// SearchConfig is settings for the per-gene database searches.
type SearchConfig struct {
	// which search program to run: tblastn or blastn
	Program string `mapstructure:"program"`

	// e-value cutoff for reported hits
	EValue float64 `mapstructure:"evalue"`

	// coverage cutoff in percent; hits below are dropped at ingestion
	Coverage int `mapstructure:"coverage"`

	// worker count handed to the external tools
	Threads int `mapstructure:"threads"`
}

// ResolveConfig is settings for the identity directory service.
type ResolveConfig struct {
	// contact email the directory service requires
	Email string `mapstructure:"email"`

	// retry ceiling per directory call
	Attempts int `mapstructure:"attempts"`

	// drop strain/str./substr. tokens from display labels
	StripStrain bool `mapstructure:"strip-strain"`
}

// Config is the root-level settings struct, a mix of the persisted run
// settings and command line arguments.
type Config struct {
	// name of the run; also the run directory name
	RunID string `mapstructure:"runid"`

	// RunDir is derived from RunID, never persisted
	RunDir string `mapstructure:"-"`

	// paths to multi-FASTA files with marker gene query sequences
	Queries []string `mapstructure:"query"`

	// paths to target genome FASTA files
	Files []string `mapstructure:"files"`

	// directories scanned for target genome FASTA files
	Dirs []string `mapstructure:"dir"`

	// allow duplicate query names across input files
	Dups bool `mapstructure:"dups"`

	// named pause point ("fasta" or "model"), empty for a full run
	Checkpoint string `mapstructure:"checkpoint"`

	Search  SearchConfig  `mapstructure:"search"`
	Resolve ResolveConfig `mapstructure:"resolve"`
}

// New returns a Config populated from Viper: the persisted run config
// merged under any command line flags bound in /cmd.
func New() (Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return c, nil
}

// LoadRun merges a run directory's persisted config file into Viper, if
// one exists. Flags bound before this call keep precedence.
func LoadRun(rundir string) error {
	path := filepath.Join(rundir, ConfigFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read run config %s: %w", path, err)
	}
	return nil
}

// WriteRun persists the effective settings to the run directory so a
// later invocation can resume with the same parameters.
func WriteRun(rundir string) error {
	path := filepath.Join(rundir, ConfigFile)
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write run config %s: %w", path, err)
	}
	return nil
}

// Validate applies the argument checks a run cannot start without.
func (c Config) Validate() error {
	if c.RunID == "" {
		return fmt.Errorf("a run id is required")
	}
	if len(c.Queries) == 0 {
		return fmt.Errorf("at least one query file is required (--query)")
	}
	if len(c.Files) == 0 && len(c.Dirs) == 0 {
		return fmt.Errorf("target genomes are required (--files or --dir)")
	}
	if c.Search.EValue > 10 {
		return fmt.Errorf("evalue %g is greater than 10; give an evalue < 10", c.Search.EValue)
	}
	if c.Search.Coverage < 0 || c.Search.Coverage > 100 {
		return fmt.Errorf("coverage %d is not between 0 and 100", c.Search.Coverage)
	}
	if c.Search.Program != "tblastn" && c.Search.Program != "blastn" {
		return fmt.Errorf("program %q is not valid; give either tblastn or blastn", c.Search.Program)
	}
	if c.Search.Threads < 1 || c.Search.Threads > runtime.NumCPU() {
		return fmt.Errorf("threads %d is outside 1-%d", c.Search.Threads, runtime.NumCPU())
	}
	if c.Resolve.Email == "" {
		return fmt.Errorf("an email is required for the identity service; use --email or set $EMAIL")
	}
	return nil
}

// RunDirFor resolves (and creates, if needed) the run directory for a
// run id: an existing sibling directory wins, else one is created under
// the working directory.
func RunDirFor(runid string) (string, error) {
	if sibling, err := filepath.Abs(filepath.Join("..", runid)); err == nil {
		if info, statErr := os.Stat(sibling); statErr == nil && info.IsDir() {
			return sibling, nil
		}
	}
	rundir, err := filepath.Abs(runid)
	if err != nil {
		return "", fmt.Errorf("failed to resolve run directory for %s: %w", runid, err)
	}
	if err := os.MkdirAll(rundir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory %s: %w", rundir, err)
	}
	return rundir, nil
}
