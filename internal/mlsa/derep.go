package mlsa

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DerepLog maps each retained representative identifier to the ordered
// identifiers it subsumed (rows with identical sequence content).
type DerepLog map[string][]string

// Dereplicate collapses rows with identical sequence content to one
// representative row. The first-seen row of each content group is kept;
// the rest are recorded in the log in first-seen order. Output rows are
// sorted by representative identifier.
func Dereplicate(rows []FastaRow) ([]FastaRow, DerepLog) {
	repFor := map[string]string{} // sequence content -> representative id
	kept := map[string]FastaRow{}
	log := DerepLog{}

	for _, row := range rows {
		if rep, seen := repFor[row.Seq]; seen {
			log[rep] = append(log[rep], row.ID)
			continue
		}
		repFor[row.Seq] = row.ID
		kept[row.ID] = row
	}

	out := make([]FastaRow, 0, len(kept))
	for _, id := range sortedKeys(kept) {
		out = append(out, kept[id])
	}
	return out, log
}

// Rereplicate restores selected subsumed identifiers as duplicate rows.
// Each representative row in the selection is followed by one row per
// selected identifier, carrying the representative's sequence verbatim.
// Rows outside the selection pass through unchanged; applying the same
// selection twice to the same reduced alignment is a no-op.
func Rereplicate(reduced []FastaRow, selection DerepLog) []FastaRow {
	out := make([]FastaRow, 0, len(reduced))
	for _, row := range reduced {
		out = append(out, row)
		for _, id := range selection[row.ID] {
			out = append(out, FastaRow{ID: id, Seq: row.Seq})
		}
	}
	return out
}

// WriteFile serializes the log as tab-delimited rows: representative
// first, subsumed identifiers after, sorted by representative.
func (l DerepLog) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dereplication log %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	reps := make([]string, 0, len(l))
	for rep := range l {
		reps = append(reps, rep)
	}
	sort.Strings(reps)
	for _, rep := range reps {
		fmt.Fprintln(w, rep+"\t"+strings.Join(l[rep], "\t"))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write dereplication log %s: %w", path, err)
	}
	return nil
}

// ReadDerepLog parses a log written by WriteFile. A selection file the
// operator trimmed down by hand parses the same way.
func ReadDerepLog(path string) (DerepLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dereplication log %s: %w", path, err)
	}
	defer f.Close()

	log := DerepLog{}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) < 2 {
			return nil, fmt.Errorf("dereplication log %s line %d: representative with no subsumed identifiers", path, line)
		}
		log[cols[0]] = append(log[cols[0]], cols[1:]...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dereplication log %s: %w", path, err)
	}
	return log, nil
}
