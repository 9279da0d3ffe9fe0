package mlsa

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/osuchanglab/autoMLSA/internal/pipeline"
)

// Toolchain names the external programs the pipeline shells out to.
// The engine treats every entry as an opaque collaborator: inputs go
// in, an artifact comes out, non-zero exit fails the stage.
type Toolchain struct {
	// Search is tblastn or blastn, per the configured program.
	Search string

	// MakeDB builds a nucleotide database next to each genome FASTA.
	MakeDB string

	// Align is the multiple aligner, writing to stdout.
	Align string

	// ModelTest selects substitution models from the concatenated
	// alignment and partition map. Empty disables the stage.
	ModelTest string
}

// DefaultToolchain matches the conventional executable names.
func DefaultToolchain(program string) Toolchain {
	return Toolchain{
		Search:    program,
		MakeDB:    "makeblastdb",
		Align:     "mafft-linsi",
		ModelTest: "modeltest-ng",
	}
}

// Validate confirms the required executables resolve and logs their
// versions, so a missing installation fails before any stage runs.
func (tc Toolchain) Validate(ctx context.Context, log *zap.SugaredLogger) error {
	required := []struct {
		name, exe, flag string
	}{
		{"search program", tc.Search, "-version"},
		{"makeblastdb", tc.MakeDB, "-version"},
		{"aligner", tc.Align, "--version"},
	}
	for _, r := range required {
		t := pipeline.Tool{Name: r.name, Exe: r.exe}
		if !t.Available() {
			return fmt.Errorf("unable to find %s executable %q in $PATH", r.name, r.exe)
		}
		if v, err := t.Version(ctx, r.flag); err == nil {
			log.Debugf("%s found: %s", r.name, v)
		}
	}
	if tc.ModelTest != "" {
		t := pipeline.Tool{Name: "model selection", Exe: tc.ModelTest}
		if !t.Available() {
			log.Warnf("Model selection executable %q not found; the model stage will be skipped.", tc.ModelTest)
		}
	}
	return nil
}
