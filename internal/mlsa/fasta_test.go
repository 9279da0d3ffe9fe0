package mlsa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFasta(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "in.fasta")
	content := ">seq1 some description\nACGT\nACGT\n\n>seq2\nTTTT\n"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	rows, err := ReadFasta(p)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, FastaRow{ID: "seq1", Seq: "ACGTACGT"}, rows[0], "wrapped lines concatenate, description dropped")
	assert.Equal(t, FastaRow{ID: "seq2", Seq: "TTTT"}, rows[1])
}

func TestReadFastaNoHeader(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.fasta")
	require.NoError(t, os.WriteFile(p, []byte("ACGT\n"), 0o644))
	_, err := ReadFasta(p)
	assert.Error(t, err)
}

func TestWriteFastaRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.fasta")
	rows := []FastaRow{{ID: "a", Seq: "ACGT"}, {ID: "b", Seq: "NNNN"}}
	require.NoError(t, WriteFasta(p, rows))

	got, err := ReadFasta(p)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestIsFasta(t *testing.T) {
	dir := t.TempDir()

	fa := filepath.Join(dir, "genome.fasta")
	require.NoError(t, os.WriteFile(fa, []byte(">chr1\nACGT\n"), 0o644))
	assert.True(t, IsFasta(fa))

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	assert.False(t, IsFasta(txt))

	// database index files are rejected by suffix
	idx := filepath.Join(dir, "genome.fasta.nin")
	require.NoError(t, os.WriteFile(idx, []byte(">"), 0o644))
	assert.False(t, IsFasta(idx))

	assert.False(t, IsFasta(filepath.Join(dir, "missing.fasta")))
}
