package mlsa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestPrepareQueries(t *testing.T) {
	dir := t.TempDir()
	rundir := filepath.Join(dir, "run")
	require.NoError(t, os.MkdirAll(rundir, 0o755))
	in := writeFile(t, dir, "markers.fasta", ">rpoB gene\nMKLSE\n>gyrB\nMAQRT\n")

	queries, err := PrepareQueries(rundir, []string{in}, false, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "rpoB", queries[0].Gene)
	assert.Equal(t, "gyrB", queries[1].Gene)

	rows, err := ReadFasta(queries[0].Path)
	require.NoError(t, err)
	assert.Equal(t, []FastaRow{{ID: "rpoB", Seq: "MKLSE"}}, rows)
}

func TestPrepareQueriesDuplicateName(t *testing.T) {
	dir := t.TempDir()
	rundir := filepath.Join(dir, "run")
	require.NoError(t, os.MkdirAll(rundir, 0o755))
	a := writeFile(t, dir, "a.fasta", ">rpoB\nMKLSE\n")
	b := writeFile(t, dir, "b.fasta", ">rpoB\nMAQRT\n")

	_, err := PrepareQueries(rundir, []string{a, b}, false, zap.NewNop().Sugar())
	require.Error(t, err, "duplicate names are fatal without --dups")

	queries, err := PrepareQueries(rundir, []string{a, b}, true, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.NotEqual(t, queries[0].Gene, queries[1].Gene, "second copy gets a distinct name")
}

func TestPrepareQueriesSameSequenceTwoNames(t *testing.T) {
	dir := t.TempDir()
	rundir := filepath.Join(dir, "run")
	require.NoError(t, os.MkdirAll(rundir, 0o755))
	in := writeFile(t, dir, "markers.fasta", ">rpoB\nMKLSE\n>rpoB_copy\nMKLSE\n")

	_, err := PrepareQueries(rundir, []string{in}, true, zap.NewNop().Sugar())
	assert.Error(t, err, "one sequence under two names is always fatal")
}

func TestPrepareQueriesSameEntryTwiceIsFine(t *testing.T) {
	dir := t.TempDir()
	rundir := filepath.Join(dir, "run")
	require.NoError(t, os.MkdirAll(rundir, 0o755))
	in := writeFile(t, dir, "markers.fasta", ">rpoB\nMKLSE\n>rpoB\nMKLSE\n")

	queries, err := PrepareQueries(rundir, []string{in}, false, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Len(t, queries, 1)
}

func TestCollectGenomes(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "genomes")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeFile(t, sub, "b.fasta", ">chr\nACGT\n")
	writeFile(t, sub, "notes.txt", "not fasta")
	a := writeFile(t, dir, "a.fasta", ">chr\nACGT\n")

	genomes, err := CollectGenomes([]string{a}, []string{sub}, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Len(t, genomes, 2)
	assert.Equal(t, "a", genomes[0].Name)
	assert.Equal(t, "b", genomes[1].Name)
}

func TestCollectGenomesDuplicateBasename(t *testing.T) {
	dir := t.TempDir()
	d1 := filepath.Join(dir, "one")
	d2 := filepath.Join(dir, "two")
	require.NoError(t, os.MkdirAll(d1, 0o755))
	require.NoError(t, os.MkdirAll(d2, 0o755))
	writeFile(t, d1, "genome.fasta", ">c\nA\n")
	writeFile(t, d2, "genome.fasta", ">c\nC\n")

	_, err := CollectGenomes(nil, []string{d1, d2}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestCollectGenomesNone(t *testing.T) {
	_, err := CollectGenomes(nil, []string{t.TempDir()}, zap.NewNop().Sugar())
	assert.Error(t, err)
}
