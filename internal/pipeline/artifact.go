// Package pipeline is the stage gate: it decides, per pipeline stage,
// whether work can be skipped because its output artifacts already
// exist, and it guarantees that a failed stage never leaves a partial
// artifact behind to poison the next resume.
package pipeline

import (
	"fmt"
	"os"
)

// Artifact is a named output location for one stage. It is the unit of
// resumability: a stage whose artifacts are all Done is skipped.
type Artifact struct {
	Name string
	Path string
}

// Done reports whether the artifact exists and is non-empty. This is
// the whole resumability contract: no checksum, no content validation.
// A truncated artifact from a kill mid-write is indistinguishable from
// a finished one only if it is non-empty, which is why failed stages
// must remove their partial output before the process exits.
func (a Artifact) Done() bool {
	info, err := os.Stat(a.Path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

// Remove deletes the artifact if present.
func (a Artifact) Remove() error {
	err := os.Remove(a.Path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact %s (%s): %w", a.Name, a.Path, err)
	}
	return nil
}
