package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDirectory scripts the two-phase protocol for tests.
type fakeDirectory struct {
	submitErrs int // fail this many submits before succeeding
	count      int // acknowledged count; -1 means len(submitted)
	summaries  []Summary
	links      []AssemblyLink

	submitted []string
	calls     int
}

func (f *fakeDirectory) Submit(_ context.Context, accs []string) (Handle, int, error) {
	f.calls++
	if f.calls <= f.submitErrs {
		return Handle{}, 0, errors.New("service unavailable")
	}
	f.submitted = accs
	count := f.count
	if count < 0 {
		count = len(accs)
	}
	return Handle{Env: "env", Key: "1"}, count, nil
}

func (f *fakeDirectory) Summaries(context.Context, Handle) ([]Summary, error) {
	return f.summaries, nil
}

func (f *fakeDirectory) Assemblies(context.Context, Handle) ([]AssemblyLink, error) {
	return f.links, nil
}

func TestMasterKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AAAB01000001", "AAAB01000000"},
		{"JPSY01000243", "JPSY01000000"},
		{"CP000031", "CP000031"},       // not a WGS sub-record
		{"NZ_CM000955", "NZ_CM000955"}, // underscore breaks the pattern
		{"AAAB01000000", "AAAB01000000"},
	}
	for _, tt := range tests {
		if got := MasterKey(tt.in); got != tt.want {
			t.Errorf("MasterKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveCanonicalizesMasters(t *testing.T) {
	dir := &fakeDirectory{
		count: -1,
		summaries: []Summary{
			{Accession: "AAAB01000000", TaxID: "287", Organism: "Pseudomonas aeruginosa", Strain: "PA7"},
		},
	}
	r := New(dir, zap.NewNop().Sugar(), Config{})

	got, err := r.Resolve(context.Background(), []string{"AAAB01000001", "AAAB01000002"})
	require.NoError(t, err)

	// both sub-records resolved via one master submission
	assert.Equal(t, []string{"AAAB01000000"}, dir.submitted)
	require.Len(t, got, 2)
	for _, acc := range []string{"AAAB01000001", "AAAB01000002"} {
		rec := got[acc]
		assert.Equal(t, acc, rec.Accession)
		assert.Equal(t, "Pseudomonas aeruginosa", rec.Organism)
		// no assembly link, so the master key is the grouping fallback
		assert.Equal(t, "AAAB01000000", rec.Assembly)
	}
}

func TestResolveDegradedOnCountMismatch(t *testing.T) {
	dir := &fakeDirectory{
		count: 1,
		summaries: []Summary{
			{Accession: "CP000031", TaxID: "190650", Organism: "Silicibacter pomeroyi"},
		},
	}
	r := New(dir, zap.NewNop().Sugar(), Config{})

	got, err := r.Resolve(context.Background(), []string{"CP000031", "CP999999"})
	require.NoError(t, err, "count mismatch must not abort the batch")

	resolved := got["CP000031"]
	assert.True(t, resolved.Resolved())
	assert.Equal(t, "Silicibacter_pomeroyi", resolved.Label)

	missing := got["CP999999"]
	assert.False(t, missing.Resolved())
	// fallback display name is the accession itself
	assert.Equal(t, "CP999999", missing.Label)
}

func TestResolveRetriesAndGivesUp(t *testing.T) {
	dir := &fakeDirectory{submitErrs: 2, count: -1}
	r := New(dir, zap.NewNop().Sugar(), Config{Attempts: 3})

	_, err := r.Resolve(context.Background(), []string{"CP000031"})
	require.NoError(t, err, "third attempt should succeed")
	assert.Equal(t, 3, dir.calls)

	exhausted := &fakeDirectory{submitErrs: 10, count: -1}
	r = New(exhausted, zap.NewNop().Sugar(), Config{Attempts: 3})
	_, err = r.Resolve(context.Background(), []string{"CP000031"})
	require.Error(t, err)
	assert.Equal(t, 3, exhausted.calls)
}

func TestResolveAssemblyLinkWins(t *testing.T) {
	dir := &fakeDirectory{
		count: -1,
		summaries: []Summary{
			{Accession: "AE014292", Organism: "Brucella suis", Strain: "1330"},
		},
		links: []AssemblyLink{
			{Accession: "AE014292", Assembly: "GCF_000007765.2"},
		},
	}
	r := New(dir, zap.NewNop().Sugar(), Config{})

	got, err := r.Resolve(context.Background(), []string{"AE014292"})
	require.NoError(t, err)
	rec := got["AE014292"]
	assert.Equal(t, "GCF_000007765.2", rec.Group())
	assert.Equal(t, "Brucella_suis_1330", rec.Label)
}

func TestResolveEmptyInput(t *testing.T) {
	r := New(&fakeDirectory{}, zap.NewNop().Sugar(), Config{})
	got, err := r.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
