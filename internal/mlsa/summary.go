package mlsa

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
)

// Summary is the gene-by-genome presence overview written after hit
// ingestion, before filtering, so the operator can see what the
// completeness filter is about to remove.
type Summary struct {
	Genes          []string            `json:"genes"`
	Genomes        []string            `json:"genomes"`
	MissingByGroup map[string][]string `json:"missingByGenome"`
}

// Summarize builds the presence overview for the given gene sets.
func Summarize(geneSets []GeneSet) Summary {
	s := Summary{MissingByGroup: map[string][]string{}}
	all := map[string]bool{}
	for _, set := range geneSets {
		s.Genes = append(s.Genes, set.Gene)
		for key := range set.Seqs {
			all[key] = true
		}
	}
	s.Genomes = sortedKeys(all)
	for _, key := range s.Genomes {
		for _, set := range geneSets {
			if _, ok := set.Seqs[key]; !ok {
				s.MissingByGroup[key] = append(s.MissingByGroup[key], set.Gene)
			}
		}
	}
	return s
}

// Log reports incomplete genomes so removals never come as a surprise.
func (s Summary) Log(log *zap.SugaredLogger) {
	if len(s.MissingByGroup) == 0 {
		log.Infof("All %d genomes carry all %d genes.", len(s.Genomes), len(s.Genes))
		return
	}
	log.Warnf("%d of %d genomes are missing one or more genes and will be removed.", len(s.MissingByGroup), len(s.Genomes))
	for _, key := range sortedKeys(s.MissingByGroup) {
		log.Warnf("  %s missing: %v", key, s.MissingByGroup[key])
	}
}

// WriteMatrix writes the presence matrix as TSV: one row per genome,
// one column per gene, 1 for present.
func (s Summary) WriteMatrix(path string, geneSets []GeneSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create presence matrix %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprint(w, "genome")
	for _, set := range geneSets {
		fmt.Fprint(w, "\t"+set.Gene)
	}
	fmt.Fprintln(w)
	for _, key := range s.Genomes {
		fmt.Fprint(w, key)
		for _, set := range geneSets {
			n := 0
			if _, ok := set.Seqs[key]; ok {
				n = 1
			}
			fmt.Fprint(w, "\t"+strconv.Itoa(n))
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write presence matrix %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes the summary for tooling.
func (s Summary) WriteJSON(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write summary %s: %w", path, err)
	}
	return nil
}
