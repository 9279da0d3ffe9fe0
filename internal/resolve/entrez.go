package resolve

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// DefaultBaseURL is the NCBI E-utilities endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// EntrezDirectory implements Directory against the NCBI E-utilities:
// epost for the bulk submit, esummary for per-record metadata, elink
// for assembly linkage. NCBI requires a contact email on every call.
type EntrezDirectory struct {
	BaseURL string
	Email   string
	Tool    string
	Client  *http.Client
}

// NewEntrezDirectory returns a directory client with sane defaults.
func NewEntrezDirectory(email string) *EntrezDirectory {
	return &EntrezDirectory{
		BaseURL: DefaultBaseURL,
		Email:   email,
		Tool:    "automlsa",
		Client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type epostResult struct {
	XMLName  xml.Name `xml:"ePostResult"`
	QueryKey string   `xml:"QueryKey"`
	WebEnv   string   `xml:"WebEnv"`
}

type esummaryResult struct {
	XMLName xml.Name `xml:"eSummaryResult"`
	DocSums []docSum `xml:"DocSum"`
}

type docSum struct {
	ID    string    `xml:"Id"`
	Items []sumItem `xml:"Item"`
}

type sumItem struct {
	Name  string    `xml:"Name,attr"`
	Value string    `xml:",chardata"`
	Items []sumItem `xml:"Item"`
}

type elinkResult struct {
	XMLName  xml.Name       `xml:"eLinkResult"`
	LinkSets []elinkLinkSet `xml:"LinkSet"`
}

type elinkLinkSet struct {
	IDs      []string `xml:"IdList>Id"`
	LinkedDB []struct {
		Name string   `xml:"LinkName"`
		IDs  []string `xml:"Link>Id"`
	} `xml:"LinkSetDb"`
}

// assembly esummary uses the version 2.0 DocumentSummary shape.
type assemblySummaryResult struct {
	XMLName xml.Name `xml:"eSummaryResult"`
	Docs    []struct {
		UID       string `xml:"uid,attr"`
		Accession string `xml:"AssemblyAccession"`
	} `xml:"DocumentSummarySet>DocumentSummary"`
}

// Submit posts the accession list to epost and returns the history
// handle plus the submitted count for verification.
func (d *EntrezDirectory) Submit(ctx context.Context, accessions []string) (Handle, int, error) {
	form := d.form()
	form.Set("db", "nuccore")
	form.Set("id", strings.Join(accessions, ","))

	var res epostResult
	if err := d.post(ctx, "epost.fcgi", form, &res); err != nil {
		return Handle{}, 0, err
	}
	if res.WebEnv == "" {
		return Handle{}, 0, fmt.Errorf("epost returned no history handle")
	}
	return Handle{Env: res.WebEnv, Key: res.QueryKey}, len(accessions), nil
}

// Summaries fetches the document summaries for a submitted batch and
// maps the fields the pipeline cares about.
func (d *EntrezDirectory) Summaries(ctx context.Context, h Handle) ([]Summary, error) {
	docs, err := d.nuccoreSummaries(ctx, h)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(docs))
	for _, doc := range docs {
		s := Summary{Accession: docAccession(doc)}
		for _, item := range flatten(doc.Items) {
			switch item.Name {
			case "TaxId":
				s.TaxID = item.Value
			case "Organism":
				s.Organism = item.Value
			case "Title":
				if s.Organism == "" {
					s.Organism = item.Value
				}
			}
		}
		// provenance arrives as paired qualifier name/value lists
		s.applyQualifiers(doc.Items)
		out = append(out, s)
	}
	return out, nil
}

// applyQualifiers decodes the SubType/SubName pipe-delimited pair that
// esummary uses for source qualifiers (strain, country, culture
// collection, isolation source, collection year).
func (s *Summary) applyQualifiers(items []sumItem) {
	var names, values []string
	for _, item := range flatten(items) {
		switch item.Name {
		case "SubType":
			names = strings.Split(item.Value, "|")
		case "SubName":
			values = strings.Split(item.Value, "|")
		}
	}
	for i, name := range names {
		if i >= len(values) || values[i] == "" {
			continue
		}
		switch name {
		case "strain":
			s.Strain = values[i]
		case "culture_collection":
			s.Culture = values[i]
		case "country", "geo_loc_name":
			s.Country = values[i]
		case "isolation_source":
			s.Source = values[i]
		case "collection_date":
			// keep just the year
			v := values[i]
			if len(v) >= 4 {
				s.Year = v[:4]
			} else {
				s.Year = v
			}
		}
	}
}

// Assemblies resolves the nuccore→assembly linkage for a batch. elink
// speaks numeric UIDs on both sides, so the batch's own esummary
// Id/Caption pairs translate the source UIDs back to accessions and a
// follow-up assembly esummary translates the linked UIDs into assembly
// accessions.
func (d *EntrezDirectory) Assemblies(ctx context.Context, h Handle) ([]AssemblyLink, error) {
	accByUID, err := d.accessionsByUID(ctx, h)
	if err != nil {
		return nil, err
	}

	form := d.form()
	form.Set("dbfrom", "nuccore")
	form.Set("db", "assembly")
	form.Set("WebEnv", h.Env)
	form.Set("query_key", h.Key)
	form.Set("cmd", "neighbor")

	var res elinkResult
	if err := d.post(ctx, "elink.fcgi", form, &res); err != nil {
		return nil, err
	}

	type link struct {
		accession string
		asmUID    string
	}
	var links []link
	asmUIDs := map[string]bool{}
	for _, set := range res.LinkSets {
		if len(set.IDs) == 0 {
			continue
		}
		acc, ok := accByUID[set.IDs[0]]
		if !ok {
			continue
		}
		for _, db := range set.LinkedDB {
			if db.Name != "nuccore_assembly" || len(db.IDs) == 0 {
				continue
			}
			links = append(links, link{accession: acc, asmUID: db.IDs[0]})
			asmUIDs[db.IDs[0]] = true
		}
	}
	if len(links) == 0 {
		return nil, nil
	}

	asmAcc, err := d.assemblyAccessions(ctx, asmUIDs)
	if err != nil {
		return nil, err
	}
	out := make([]AssemblyLink, 0, len(links))
	for _, l := range links {
		acc, ok := asmAcc[l.asmUID]
		if !ok || acc == "" {
			continue
		}
		out = append(out, AssemblyLink{Accession: l.accession, Assembly: acc})
	}
	return out, nil
}

// nuccoreSummaries fetches the raw document summaries for a batch.
func (d *EntrezDirectory) nuccoreSummaries(ctx context.Context, h Handle) ([]docSum, error) {
	form := d.form()
	form.Set("db", "nuccore")
	form.Set("WebEnv", h.Env)
	form.Set("query_key", h.Key)

	var res esummaryResult
	if err := d.post(ctx, "esummary.fcgi", form, &res); err != nil {
		return nil, err
	}
	return res.DocSums, nil
}

// accessionsByUID maps each record's numeric UID to its accession.
func (d *EntrezDirectory) accessionsByUID(ctx context.Context, h Handle) (map[string]string, error) {
	docs, err := d.nuccoreSummaries(ctx, h)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, doc := range docs {
		if acc := docAccession(doc); acc != "" {
			out[doc.ID] = acc
		}
	}
	return out, nil
}

// assemblyAccessions maps assembly UIDs to their assembly accessions.
func (d *EntrezDirectory) assemblyAccessions(ctx context.Context, uids map[string]bool) (map[string]string, error) {
	ids := make([]string, 0, len(uids))
	for uid := range uids {
		ids = append(ids, uid)
	}
	sort.Strings(ids)

	form := d.form()
	form.Set("db", "assembly")
	form.Set("id", strings.Join(ids, ","))

	var res assemblySummaryResult
	if err := d.post(ctx, "esummary.fcgi", form, &res); err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, doc := range res.Docs {
		out[doc.UID] = doc.Accession
	}
	return out, nil
}

// docAccession extracts the bare accession of one document summary:
// the Caption when present, else AccessionVersion with the version
// suffix stripped.
func docAccession(doc docSum) string {
	var version string
	for _, item := range flatten(doc.Items) {
		switch item.Name {
		case "Caption":
			if item.Value != "" {
				return item.Value
			}
		case "AccessionVersion":
			version = item.Value
		}
	}
	return strings.SplitN(version, ".", 2)[0]
}

func (d *EntrezDirectory) form() url.Values {
	form := url.Values{}
	form.Set("tool", d.Tool)
	form.Set("email", d.Email)
	return form
}

func (d *EntrezDirectory) post(ctx context.Context, endpoint string, form url.Values, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.BaseURL+"/"+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %s: %s", endpoint, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := xml.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func flatten(items []sumItem) []sumItem {
	out := []sumItem{}
	for _, item := range items {
		out = append(out, item)
		out = append(out, flatten(item.Items)...)
	}
	return out
}
