package mlsa

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osuchanglab/autoMLSA/config"
	"github.com/osuchanglab/autoMLSA/internal/records"
	"github.com/osuchanglab/autoMLSA/internal/resolve"
)

// emptyDirectory acknowledges every submission and returns nothing.
type emptyDirectory struct{}

func (emptyDirectory) Submit(_ context.Context, accs []string) (resolve.Handle, int, error) {
	return resolve.Handle{Env: "env", Key: "1"}, len(accs), nil
}

func (emptyDirectory) Summaries(context.Context, resolve.Handle) ([]resolve.Summary, error) {
	return nil, nil
}

func (emptyDirectory) Assemblies(context.Context, resolve.Handle) ([]resolve.AssemblyLink, error) {
	return nil, nil
}

func testRunner(t *testing.T) *Runner {
	t.Helper()
	log := zap.NewNop().Sugar()
	return &Runner{
		Cfg:      config.Config{RunDir: t.TempDir()},
		Resolver: resolve.New(emptyDirectory{}, log, resolve.Config{}),
		Log:      log,
	}
}

func TestResolveIdentitiesCorruptKeyFileFatal(t *testing.T) {
	r := testRunner(t)
	keyFile := filepath.Join(r.Cfg.RunDir, "keys.tsv")
	corrupt := "CP000031\tonly\tfour\tcolumns\n"
	require.NoError(t, os.WriteFile(keyFile, []byte(corrupt), 0o644))

	_, err := r.resolveIdentities(context.Background(), map[string][]Hit{
		"rpoB": {{Accession: "CP000031"}},
	})
	require.Error(t, err, "a key file that cannot be read must stop the run")

	// the unreadable file survives untouched for the operator
	data, readErr := os.ReadFile(keyFile)
	require.NoError(t, readErr)
	assert.Equal(t, corrupt, string(data))
}

func TestResolveIdentitiesMissingKeyFileIsFine(t *testing.T) {
	r := testRunner(t)
	store, err := r.resolveIdentities(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestResolveIdentitiesPrefillsTaxIDFromHits(t *testing.T) {
	r := testRunner(t)
	store, err := r.resolveIdentities(context.Background(), map[string][]Hit{
		"rpoB": {{Accession: "CP000031", TaxID: "190650"}},
	})
	require.NoError(t, err)

	rec, ok := store.Lookup("CP000031")
	require.True(t, ok)
	assert.Equal(t, "190650", rec.TaxID)

	// the persisted key file carries the taxonomy id too
	loaded, err := records.ReadFile(filepath.Join(r.Cfg.RunDir, "keys.tsv"))
	require.NoError(t, err)
	got, ok := loaded.Lookup("CP000031")
	require.True(t, ok)
	assert.Equal(t, "190650", got.TaxID)
}
