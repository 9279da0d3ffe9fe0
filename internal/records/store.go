package records

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// column order of the key file. Kept stable so files from different runs
// and different pipeline stages union cleanly.
var columns = []string{
	"accession", "assembly", "taxid", "organism", "label",
	"strain", "culture", "country", "source", "year",
}

// Store is the in-memory keyed table of records for one run. It is not
// safe for concurrent use; the pipeline is sequential and concurrent
// runs own separate run directories.
type Store struct {
	recs  map[string]Record
	order []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{recs: map[string]Record{}}
}

// Len returns the number of records in the store.
func (s *Store) Len() int { return len(s.recs) }

// Accessions returns the accessions in first-seen order.
func (s *Store) Accessions() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Lookup returns the record for an accession, if present.
func (s *Store) Lookup(accession string) (Record, bool) {
	r, ok := s.recs[accession]
	return r, ok
}

// Upsert inserts a record or fills the unresolved fields of an existing
// one. Resolution is monotonic: a field that already holds a real value
// is never overwritten, and sentinel input never downgrades anything.
func (s *Store) Upsert(rec Record) {
	cur, ok := s.recs[rec.Accession]
	if !ok {
		s.recs[rec.Accession] = rec
		s.order = append(s.order, rec.Accession)
		return
	}
	fill(&cur.Assembly, rec.Assembly)
	fill(&cur.TaxID, rec.TaxID)
	fill(&cur.Organism, rec.Organism)
	fill(&cur.Label, rec.Label)
	fill(&cur.Strain, rec.Strain)
	fill(&cur.Culture, rec.Culture)
	fill(&cur.Country, rec.Country)
	fill(&cur.Source, rec.Source)
	fill(&cur.Year, rec.Year)
	s.recs[rec.Accession] = cur
}

func fill(dst *string, src string) {
	if (*dst == Sentinel || *dst == "") && src != "" {
		*dst = src
	}
}

// Merge unions two record slices into one de-duplicated table sorted by
// accession. Within one accession the first slice wins field-by-field
// via the monotonic Upsert rule, matching the sort-and-dedup union the
// key files get on resume.
func Merge(a, b []Record) []Record {
	m := NewStore()
	for _, r := range a {
		m.Upsert(r)
	}
	for _, r := range b {
		m.Upsert(r)
	}
	out := make([]Record, 0, m.Len())
	for _, acc := range m.order {
		out = append(out, m.recs[acc])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Accession < out[j].Accession })
	return out
}

// Records returns all records sorted by accession.
func (s *Store) Records() []Record {
	out := make([]Record, 0, len(s.recs))
	for _, acc := range s.order {
		out = append(out, s.recs[acc])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Accession < out[j].Accession })
	return out
}

// WriteFile serializes the store to a tab-delimited key file with a
// leading header row.
func (s *Store) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create key file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "#"+strings.Join(columns, "\t"))
	for _, rec := range s.Records() {
		fmt.Fprintln(w, strings.Join(fields(rec), "\t"))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a key file previously written by WriteFile, merging its
// rows into the store via Upsert.
func ReadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %s: %w", path, err)
	}
	defer f.Close()

	s := NewStore()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) != len(columns) {
			return nil, fmt.Errorf("key file %s line %d: expected %d columns, found %d", path, line, len(columns), len(cols))
		}
		s.Upsert(Record{
			Accession: cols[0],
			Assembly:  cols[1],
			TaxID:     cols[2],
			Organism:  cols[3],
			Label:     cols[4],
			Strain:    cols[5],
			Culture:   cols[6],
			Country:   cols[7],
			Source:    cols[8],
			Year:      cols[9],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	return s, nil
}

// MergeFiles unions an existing key file with a newer one and writes the
// canonical result back to dst. Either input may be missing; resuming a
// run starts from whichever rows survive.
func MergeFiles(existing, incoming, dst string) error {
	var a, b []Record
	if s, err := ReadFile(existing); err == nil {
		a = s.Records()
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if s, err := ReadFile(incoming); err == nil {
		b = s.Records()
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	merged := NewStore()
	for _, r := range Merge(a, b) {
		merged.Upsert(r)
	}
	return merged.WriteFile(dst)
}

func fields(r Record) []string {
	return []string{
		r.Accession, r.Assembly, r.TaxID, r.Organism, r.Label,
		r.Strain, r.Culture, r.Country, r.Source, r.Year,
	}
}
