package mlsa

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// ErrNoGenes is returned when the filter receives an empty gene list.
var ErrNoGenes = errors.New("at least one gene set is required")

// ErrNoSurvivors is returned when no genome carries every gene; the
// downstream alignment would be empty.
var ErrNoSurvivors = errors.New("no genome carries every gene")

// FilterResult reports which genome group keys survived the
// completeness intersection and which were removed.
type FilterResult struct {
	Survivors []string // sorted
	Removed   []string // sorted
}

// Filter computes the set of genomes present in every gene set by
// iterative subtraction seeded from the first gene. Gene order does not
// change the result, only the order of removal log lines. The label
// function supplies the best-known display name for removal messages.
func Filter(geneSets []GeneSet, label func(key string) string, log *zap.SugaredLogger) (FilterResult, error) {
	if len(geneSets) == 0 {
		return FilterResult{}, ErrNoGenes
	}
	if len(geneSets) == 1 {
		log.Warnf("Only one gene set given; a meaningful MLSA needs at least two.")
	}

	candidates := map[string]bool{}
	for key := range geneSets[0].Seqs {
		candidates[key] = true
	}
	removed := map[string]bool{}

	for _, set := range geneSets[1:] {
		for _, key := range sortedKeys(candidates) {
			if _, ok := set.Seqs[key]; !ok {
				log.Infof("Removing genome %s (%s): missing gene %s.", key, label(key), set.Gene)
				delete(candidates, key)
				removed[key] = true
			}
		}
		// genomes never seen by the first gene are removed too
		for key := range set.Seqs {
			if !candidates[key] && !removed[key] {
				log.Infof("Removing genome %s (%s): missing gene %s.", key, label(key), geneSets[0].Gene)
				removed[key] = true
			}
		}
	}

	res := FilterResult{Survivors: sortedKeys(candidates), Removed: sortedKeys(removed)}
	if len(res.Survivors) == 0 {
		return res, fmt.Errorf("%w (checked %d genes)", ErrNoSurvivors, len(geneSets))
	}
	log.Infof("Keeping %d genomes present in all %d genes; removed %d.", len(res.Survivors), len(geneSets), len(res.Removed))
	return res, nil
}

// WriteFiltered writes one FASTA per gene containing only surviving
// keys, sorted by key so every downstream alignment sees the same
// deterministic input order.
func WriteFiltered(dir string, geneSets []GeneSet, survivors []string) ([]string, error) {
	keys := append([]string(nil), survivors...)
	sort.Strings(keys)

	var paths []string
	for _, set := range geneSets {
		rows := make([]FastaRow, 0, len(keys))
		for _, key := range keys {
			seq, ok := set.Seqs[key]
			if !ok {
				return nil, fmt.Errorf("gene %s: survivor %s has no sequence; completeness filter was bypassed", set.Gene, key)
			}
			rows = append(rows, FastaRow{ID: key, Seq: seq})
		}
		p := filepath.Join(dir, set.Gene+".filtered.fasta")
		if err := WriteFasta(p, rows); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
