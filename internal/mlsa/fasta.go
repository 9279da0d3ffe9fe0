// Package mlsa holds the multi-locus engines: search-result ingestion,
// genome completeness filtering, alignment concatenation with partition
// tracking, and dereplication of identical rows.
package mlsa

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// FastaRow is one header/sequence pair. Sequences are kept as single
// strings; the files this pipeline reads are per-gene alignments small
// enough to hold in memory.
type FastaRow struct {
	ID  string
	Seq string
}

// ReadFasta parses a FASTA file into rows, concatenating wrapped
// sequence lines. The header is everything after ">" up to whitespace.
func ReadFasta(path string) ([]FastaRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FASTA %s: %w", path, err)
	}
	defer f.Close()

	var rows []FastaRow
	var cur *FastaRow
	var seq strings.Builder

	flush := func() {
		if cur != nil {
			cur.Seq = seq.String()
			rows = append(rows, *cur)
			seq.Reset()
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			id := strings.TrimPrefix(line, ">")
			if i := strings.IndexAny(id, " \t"); i >= 0 {
				id = id[:i]
			}
			cur = &FastaRow{ID: id}
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("FASTA %s: sequence data before first header", path)
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read FASTA %s: %w", path, err)
	}
	flush()
	return rows, nil
}

// WriteFasta writes rows as two-line FASTA records.
func WriteFasta(path string, rows []FastaRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create FASTA %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range rows {
		fmt.Fprintf(w, ">%s\n%s\n", r.ID, r.Seq)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write FASTA %s: %w", path, err)
	}
	return nil
}

// IsFasta sniffs whether a file starts with a FASTA header. Search
// database index files produced next to a FASTA are rejected by suffix
// before the file is opened.
func IsFasta(path string) bool {
	for _, suffix := range []string{".nsq", ".nin", ".nhr", ".nto", ".not", ".ndb", ".ntf"} {
		if strings.HasSuffix(path, suffix) {
			return false
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 1)
	if _, err := f.Read(buf); err != nil {
		return false
	}
	return buf[0] == '>'
}

// sortedKeys returns map keys sorted, for deterministic output files.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
