package resolve

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	epostXML = `<?xml version="1.0"?>
<ePostResult><QueryKey>1</QueryKey><WebEnv>MCID_test</WebEnv></ePostResult>`

	nuccoreSummaryXML = `<?xml version="1.0"?>
<eSummaryResult>
<DocSum>
	<Id>1154876</Id>
	<Item Name="Caption" Type="String">AAAB01000000</Item>
	<Item Name="TaxId" Type="Integer">180454</Item>
	<Item Name="Organism" Type="String">Anopheles gambiae str. PEST</Item>
	<Item Name="SubType" Type="String">strain|country</Item>
	<Item Name="SubName" Type="String">PEST|Kenya</Item>
</DocSum>
</eSummaryResult>`

	elinkXML = `<?xml version="1.0"?>
<eLinkResult><LinkSet>
	<DbFrom>nuccore</DbFrom>
	<IdList><Id>1154876</Id></IdList>
	<LinkSetDb><DbTo>assembly</DbTo><LinkName>nuccore_assembly</LinkName><Link><Id>287145</Id></Link></LinkSetDb>
</LinkSet></eLinkResult>`

	assemblySummaryXML = `<?xml version="1.0"?>
<eSummaryResult><DocumentSummarySet status="OK">
<DocumentSummary uid="287145"><AssemblyAccession>GCA_000005575.1</AssemblyAccession></DocumentSummary>
</DocumentSummarySet></eSummaryResult>`
)

// newEutilsServer replays canned E-utilities responses. elink and the
// nuccore summaries carry numeric UIDs, never accessions, as the live
// service does.
func newEutilsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch {
		case strings.HasSuffix(r.URL.Path, "epost.fcgi"):
			io.WriteString(w, epostXML)
		case strings.HasSuffix(r.URL.Path, "esummary.fcgi") && r.Form.Get("db") == "assembly":
			assert.Equal(t, "287145", r.Form.Get("id"))
			io.WriteString(w, assemblySummaryXML)
		case strings.HasSuffix(r.URL.Path, "esummary.fcgi"):
			io.WriteString(w, nuccoreSummaryXML)
		case strings.HasSuffix(r.URL.Path, "elink.fcgi"):
			io.WriteString(w, elinkXML)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testDirectory(t *testing.T) *EntrezDirectory {
	d := NewEntrezDirectory("user@example.org")
	d.BaseURL = newEutilsServer(t).URL
	return d
}

func TestEntrezAssembliesTranslatesUIDs(t *testing.T) {
	d := testDirectory(t)
	ctx := context.Background()

	h, count, err := d.Submit(ctx, []string{"AAAB01000000"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	links, err := d.Assemblies(ctx, h)
	require.NoError(t, err)
	// both sides of the link come back as accessions, not UIDs
	require.Len(t, links, 1)
	assert.Equal(t, "AAAB01000000", links[0].Accession)
	assert.Equal(t, "GCA_000005575.1", links[0].Assembly)
}

func TestEntrezSummaries(t *testing.T) {
	d := testDirectory(t)
	ctx := context.Background()

	h, _, err := d.Submit(ctx, []string{"AAAB01000000"})
	require.NoError(t, err)

	sums, err := d.Summaries(ctx, h)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "AAAB01000000", sums[0].Accession)
	assert.Equal(t, "180454", sums[0].TaxID)
	assert.Equal(t, "Anopheles gambiae str. PEST", sums[0].Organism)
	assert.Equal(t, "PEST", sums[0].Strain)
	assert.Equal(t, "Kenya", sums[0].Country)
}

func TestEntrezResolveGroupsByLinkedAssembly(t *testing.T) {
	r := New(testDirectory(t), zap.NewNop().Sugar(), Config{})

	got, err := r.Resolve(context.Background(), []string{"AAAB01000001"})
	require.NoError(t, err)

	rec := got["AAAB01000001"]
	assert.Equal(t, "AAAB01000001", rec.Accession)
	// the service-reported assembly wins over the master-key fallback
	assert.Equal(t, "GCA_000005575.1", rec.Assembly)
	assert.Equal(t, "GCA_000005575.1", rec.Group())
}
