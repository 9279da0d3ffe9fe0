package pipeline

import (
	"errors"
	"fmt"
)

// Named pause points. Reaching one halts the run cleanly so the
// operator can inspect or edit an artifact before resuming.
const (
	// CheckpointFasta stops after the unaligned per-gene FASTA files
	// are written, so labels can be reviewed before alignment.
	CheckpointFasta = "fasta"

	// CheckpointModel stops after model selection, before tree input
	// is finalized.
	CheckpointModel = "model"
)

// ErrCheckpoint is returned when a requested pause point is reached.
// It is a stop, not a failure.
var ErrCheckpoint = errors.New("checkpoint reached")

// Checkpoint returns ErrCheckpoint when the run requested a pause at
// this point. The artifact path tells the operator what to review.
func (g *Gate) Checkpoint(requested, here, artifact string) error {
	if requested == "" || requested != here {
		return nil
	}
	g.log.Infof("Checkpoint %q reached. Review %s, then rerun without --checkpoint to continue.", here, artifact)
	return fmt.Errorf("checkpoint %q: %w", here, ErrCheckpoint)
}

// ValidCheckpoint reports whether a --checkpoint value names a known
// pause point.
func ValidCheckpoint(name string) bool {
	switch name {
	case "", CheckpointFasta, CheckpointModel:
		return true
	}
	return false
}
