package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// downstreamDirs are the stage output directories invalidated when the
// gene set changes. Raw search output is deliberately not listed:
// remote searches are the expensive stages, so their cache survives a
// clean while the cheap-to-repeat downstream stages recompute.
var downstreamDirs = []string{"unaligned", "aligned", "trimmed"}

// downstreamFiles are the single-file artifacts of the terminal stages.
var downstreamFiles = []string{
	"concatenated.fasta",
	"concatenated.derep.fasta",
	"derep.log.tsv",
	"partitions.txt",
	"model.txt",
}

// Clean deletes the downstream stage artifacts of a run directory so
// that adding a marker gene forces recomputation of everything after
// the raw searches. Missing artifacts are fine; clean is idempotent.
func Clean(rundir string, log *zap.SugaredLogger) error {
	for _, d := range downstreamDirs {
		p := filepath.Join(rundir, d)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		log.Infof("Removing %s.", p)
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("failed to clean %s: %w", p, err)
		}
	}
	for _, f := range downstreamFiles {
		p := filepath.Join(rundir, f)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		log.Infof("Removing %s.", p)
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("failed to clean %s: %w", p, err)
		}
	}
	return nil
}
