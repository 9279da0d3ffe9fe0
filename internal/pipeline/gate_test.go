package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func artifactAt(t *testing.T, dir, name, content string) Artifact {
	t.Helper()
	p := filepath.Join(dir, name)
	if content != "" {
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return Artifact{Name: name, Path: p}
}

func TestArtifactDone(t *testing.T) {
	dir := t.TempDir()

	missing := Artifact{Name: "missing", Path: filepath.Join(dir, "nope")}
	assert.False(t, missing.Done())

	empty := artifactAt(t, dir, "empty", "")
	require.NoError(t, os.WriteFile(empty.Path, nil, 0o644))
	assert.False(t, empty.Done(), "empty file is not done")

	full := artifactAt(t, dir, "full", ">a\nACGT\n")
	assert.True(t, full.Done())
}

func TestGateSkipsWhenArtifactPresent(t *testing.T) {
	dir := t.TempDir()
	g := NewGate(zap.NewNop().Sugar())

	ran := false
	st := Stage{
		Name:      "align",
		Artifacts: []Artifact{artifactAt(t, dir, "aligned.fasta", ">a\nAC-T\n")},
		Work: func(context.Context) error {
			ran = true
			return nil
		},
	}

	require.NoError(t, g.Run(context.Background(), st))
	assert.False(t, ran, "stage with finished artifact must be skipped")
	assert.Equal(t, Skipped, g.State("align"))
}

func TestGateRunsWhenArtifactAbsent(t *testing.T) {
	dir := t.TempDir()
	g := NewGate(zap.NewNop().Sugar())

	out := Artifact{Name: "out", Path: filepath.Join(dir, "out.tsv")}
	st := Stage{
		Name:      "search",
		Artifacts: []Artifact{out},
		Work: func(context.Context) error {
			return os.WriteFile(out.Path, []byte("row\n"), 0o644)
		},
	}

	require.NoError(t, g.Run(context.Background(), st))
	assert.Equal(t, Ran, g.State("search"))
	assert.True(t, out.Done())

	// second run skips
	require.NoError(t, g.Run(context.Background(), st))
	assert.Equal(t, Skipped, g.State("search"))
}

func TestGateFailureRemovesPartialArtifact(t *testing.T) {
	dir := t.TempDir()
	g := NewGate(zap.NewNop().Sugar())

	out := Artifact{Name: "out", Path: filepath.Join(dir, "partial.fasta")}
	st := Stage{
		Name:      "concat",
		Artifacts: []Artifact{out},
		Work: func(context.Context) error {
			// simulate a stage dying mid-write
			_ = os.WriteFile(out.Path, []byte(">half"), 0o644)
			return errors.New("boom")
		},
		Remedy: "check the alignment inputs",
	}

	err := g.Run(context.Background(), st)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStageFailed))
	assert.Equal(t, Failed, g.State("concat"))
	_, statErr := os.Stat(out.Path)
	assert.True(t, os.IsNotExist(statErr), "partial artifact must be deleted")
}

func TestCheckpoint(t *testing.T) {
	g := NewGate(zap.NewNop().Sugar())

	assert.NoError(t, g.Checkpoint("", CheckpointFasta, "x"))
	assert.NoError(t, g.Checkpoint(CheckpointModel, CheckpointFasta, "x"))

	err := g.Checkpoint(CheckpointFasta, CheckpointFasta, "unaligned/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCheckpoint))
}

func TestValidCheckpoint(t *testing.T) {
	assert.True(t, ValidCheckpoint(""))
	assert.True(t, ValidCheckpoint("fasta"))
	assert.True(t, ValidCheckpoint("model"))
	assert.False(t, ValidCheckpoint("tree"))
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "aligned"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blast"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partitions.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blast", "geneA.tab"), []byte("x"), 0o644))

	require.NoError(t, Clean(dir, zap.NewNop().Sugar()))

	_, err := os.Stat(filepath.Join(dir, "aligned"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "partitions.txt"))
	assert.True(t, os.IsNotExist(err))
	// search cache survives
	_, err = os.Stat(filepath.Join(dir, "blast", "geneA.tab"))
	assert.NoError(t, err)
}
