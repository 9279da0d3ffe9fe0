package mlsa

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/osuchanglab/autoMLSA/internal/records"
)

// ErrDataIntegrity marks conditions that must be impossible after the
// completeness filter ran: a missing sequence at concatenation time or
// ragged aligned lengths within one gene. These abort the run.
var ErrDataIntegrity = errors.New("data integrity violation")

// Partition is one gene's contiguous column range in the concatenated
// alignment, 1-based inclusive.
type Partition struct {
	Gene  string
	Start int
	End   int
}

// PartitionMap is the ordered list of per-gene column ranges. Ranges
// are contiguous from column 1 and sum to the alignment width.
type PartitionMap []Partition

// Width returns the total alignment column count covered by the map.
func (pm PartitionMap) Width() int {
	if len(pm) == 0 {
		return 0
	}
	return pm[len(pm)-1].End
}

// WriteFile serializes the map in the partition file format consumed by
// model selection: "<model>, <gene> = <start>-<end>" per gene, with a
// placeholder model name the selection stage replaces.
func (pm PartitionMap) WriteFile(path, modelPlaceholder string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create partition file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range pm {
		fmt.Fprintf(w, "%s, %s = %d-%d\n", modelPlaceholder, p.Gene, p.Start, p.End)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write partition file %s: %w", path, err)
	}
	return nil
}

// Concatenation is the merged multi-gene alignment plus its partition
// map. Rows are ordered by label.
type Concatenation struct {
	Rows       []FastaRow
	Partitions PartitionMap
}

// Concatenate merges the aligned per-gene sets, in the given fixed gene
// order, into one alignment keyed by display label. Labels come from
// the record store's naming rule, sanitized, with collisions
// disambiguated by a numeric suffix. Per-gene aligned lengths must be
// uniform and every surviving genome must appear in every gene; either
// violation is fatal.
func Concatenate(geneSets []GeneSet, store *records.Store, stripStrain bool, log *zap.SugaredLogger) (Concatenation, error) {
	if len(geneSets) == 0 {
		return Concatenation{}, ErrNoGenes
	}

	// keys present in the first set; the completeness filter guarantees
	// these are present in all
	keys := sortedKeys(geneSets[0].Seqs)
	if len(keys) == 0 {
		return Concatenation{}, fmt.Errorf("%w: first gene set %s is empty", ErrDataIntegrity, geneSets[0].Gene)
	}

	// validate uniform aligned length per gene and build the partition map
	var partitions PartitionMap
	offset := 0
	for _, set := range geneSets {
		width := -1
		for _, key := range sortedKeys(set.Seqs) {
			l := len(set.Seqs[key])
			if width < 0 {
				width = l
				continue
			}
			if l != width {
				return Concatenation{}, fmt.Errorf(
					"%w: gene %s aligned lengths differ (%d vs %d at %s)",
					ErrDataIntegrity, set.Gene, width, l, key)
			}
		}
		if width < 0 {
			return Concatenation{}, fmt.Errorf("%w: gene set %s is empty", ErrDataIntegrity, set.Gene)
		}
		partitions = append(partitions, Partition{Gene: set.Gene, Start: offset + 1, End: offset + width})
		offset += width
	}

	labels := labelKeys(keys, store, stripStrain, log)

	rows := make([]FastaRow, 0, len(keys))
	for _, key := range keys {
		var b strings.Builder
		b.Grow(offset)
		for _, set := range geneSets {
			seq, ok := set.Seqs[key]
			if !ok {
				return Concatenation{}, fmt.Errorf(
					"%w: genome %s passed the completeness filter but gene %s has no sequence for it",
					ErrDataIntegrity, key, set.Gene)
			}
			b.WriteString(seq)
		}
		rows = append(rows, FastaRow{ID: labels[key], Seq: b.String()})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	log.Infof("Concatenated %d genes into %d columns for %d genomes.", len(geneSets), offset, len(rows))
	return Concatenation{Rows: rows, Partitions: partitions}, nil
}

// labelKeys resolves each genome key to a unique sanitized label.
// Collisions get an incrementing numeric suffix in key order.
func labelKeys(keys []string, store *records.Store, stripStrain bool, log *zap.SugaredLogger) map[string]string {
	labels := map[string]string{}
	used := map[string]int{}
	byGroup := map[string]records.Record{}
	for _, rec := range store.Records() {
		if _, ok := byGroup[rec.Group()]; !ok {
			byGroup[rec.Group()] = rec
		}
	}
	for _, key := range keys {
		name := key
		if rec, ok := byGroup[key]; ok {
			name = records.SanitizeLabel(rec.DisplayName(), stripStrain)
		}
		if n, taken := used[name]; taken {
			base := name
			for taken {
				name = fmt.Sprintf("%s_%d", base, n)
				n++
				_, taken = used[name]
			}
			used[base] = n
			log.Debugf("Label %s already used; renaming genome %s to %s.", base, key, name)
		}
		used[name] = 1
		labels[key] = name
	}
	return labels
}
