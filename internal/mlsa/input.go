package mlsa

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Query is one marker gene query sequence extracted from the input
// files, written to its own file for the search stage.
type Query struct {
	// Gene is the sanitized query identifier.
	Gene string

	// Path is the per-gene query FASTA inside the run directory.
	Path string
}

// PrepareQueries splits the multi-FASTA query inputs into one file per
// gene under <rundir>/queries. Duplicate query names across inputs are
// fatal unless dups is set; the same sequence appearing under two
// different names is always fatal (a misnamed query would silently
// merge two loci).
func PrepareQueries(rundir string, inputs []string, dups bool, log *zap.SugaredLogger) ([]Query, error) {
	querydir := filepath.Join(rundir, "queries")
	if err := os.MkdirAll(querydir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create query directory: %w", err)
	}

	var queries []Query
	seenName := map[string]string{} // sanitized name -> source file
	seenHash := map[string]string{} // content hash -> sanitized name

	for _, input := range inputs {
		rows, err := ReadFasta(input)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			gene := sanitizeFilename(row.ID)
			hash := sequenceHash(row.Seq)

			if prev, ok := seenHash[hash]; ok {
				if prev == gene {
					continue // same query appearing twice is harmless
				}
				return nil, fmt.Errorf(
					"same sequence found under two query names (%s and %s); fix the inputs and try again",
					prev, gene)
			}
			seenHash[hash] = gene

			if src, ok := seenName[gene]; ok {
				if !dups {
					return nil, fmt.Errorf(
						"query name %s appears in both %s and %s; remove one or use --dups",
						gene, src, input)
				}
				log.Infof("Keeping additional query %s with duplicate name from %s.", gene, input)
				gene = fmt.Sprintf("%s_%s", gene, hash[:8])
			}
			seenName[gene] = input

			p := filepath.Join(querydir, gene+".fasta")
			if _, err := os.Stat(p); os.IsNotExist(err) {
				log.Debugf("Writing query file %s.", p)
				if err := WriteFasta(p, []FastaRow{{ID: gene, Seq: row.Seq}}); err != nil {
					return nil, err
				}
			}
			queries = append(queries, Query{Gene: gene, Path: p})
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no query sequences found in %s", strings.Join(inputs, ", "))
	}
	return queries, nil
}

// Genome is one target genome FASTA with its stable base name, the
// grouping key for local-genome runs.
type Genome struct {
	Name string
	Path string
}

// CollectGenomes gathers genome FASTA files from explicit paths and
// scanned directories, deduplicates, sniffs the FASTA format, and
// rejects two genomes sharing one base name (the base name is the
// genome's identity downstream).
func CollectGenomes(files, dirs []string, log *zap.SugaredLogger) ([]Genome, error) {
	paths := append([]string(nil), files...)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read genome directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			p := filepath.Join(dir, e.Name())
			if IsFasta(p) {
				paths = append(paths, p)
			}
		}
	}

	seen := map[string]string{}
	var genomes []Genome
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve genome path %s: %w", p, err)
		}
		base := filepath.Base(abs)
		if prev, dup := seen[base]; dup {
			if prev == abs {
				continue
			}
			return nil, fmt.Errorf(
				"same genome name found in two locations:\n  %s\n  %s\nremove or rename one to continue",
				prev, abs)
		}
		if !IsFasta(abs) {
			log.Warnf("Skipping %s: not a FASTA file.", abs)
			continue
		}
		seen[base] = abs
		genomes = append(genomes, Genome{Name: strings.TrimSuffix(base, filepath.Ext(base)), Path: abs})
	}
	if len(genomes) == 0 {
		return nil, fmt.Errorf("no genome FASTA files found")
	}
	sort.Slice(genomes, func(i, j int) bool { return genomes[i].Name < genomes[j].Name })
	return genomes, nil
}

// sanitizeFilename strips everything but alphanumerics, dot, underscore
// and dash, after mapping spaces to underscores.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.' || c == '_' || c == '-':
			b.WriteRune(c)
		}
	}
	return b.String()
}

// sequenceHash fingerprints sequence content for duplicate detection.
func sequenceHash(seq string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(seq)))
	return hex.EncodeToString(sum[:16])
}
