package mlsa

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Hit is one row of tabular search output for a gene query against a
// sequence database.
type Hit struct {
	Query     string
	Subject   string
	Accession string
	Identity  float64
	QueryLen  int
	Length    int
	EValue    float64
	Coverage  int
	TaxID     string
	Title     string
	Sequence  string
}

// hitColumns is the expected tabular column count:
// qseqid sseqid saccver pident qlen length evalue qcovhsp staxid stitle sseq
const hitColumns = 11

// aa and nt residue alphabets plus alignment gap. Anything outside
// these is a sign of a malformed or masked hit row.
const allowedResidues = "ABCDEFGHIKLMNPQRSTUVWXYZabcdefghiklmnpqrstuvwxyz-*"

// GeneSet maps a genome grouping key to the one sequence that gene
// contributed for the genome.
type GeneSet struct {
	Gene string
	Seqs map[string]string
}

// ReadHits parses one tabular search output file, dropping rows below
// the coverage threshold and rows containing disallowed residue codes.
// Comment lines (leading '#') are skipped.
func ReadHits(path string, minCoverage int, log *zap.SugaredLogger) ([]Hit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open search output %s: %w", path, err)
	}
	defer f.Close()

	var hits []Hit
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) != hitColumns {
			return nil, fmt.Errorf("search output %s line %d: expected %d columns, found %d", path, line, hitColumns, len(cols))
		}

		h := Hit{
			Query:     cols[0],
			Subject:   cols[1],
			Accession: strings.SplitN(cols[2], ".", 2)[0],
			TaxID:     cols[8],
			Title:     cols[9],
			Sequence:  cols[10],
		}
		if h.Identity, err = strconv.ParseFloat(cols[3], 64); err != nil {
			return nil, fmt.Errorf("search output %s line %d: bad identity %q", path, line, cols[3])
		}
		if h.QueryLen, err = strconv.Atoi(cols[4]); err != nil {
			return nil, fmt.Errorf("search output %s line %d: bad query length %q", path, line, cols[4])
		}
		if h.Length, err = strconv.Atoi(cols[5]); err != nil {
			return nil, fmt.Errorf("search output %s line %d: bad length %q", path, line, cols[5])
		}
		if h.EValue, err = strconv.ParseFloat(cols[6], 64); err != nil {
			return nil, fmt.Errorf("search output %s line %d: bad evalue %q", path, line, cols[6])
		}
		if h.Coverage, err = strconv.Atoi(cols[7]); err != nil {
			return nil, fmt.Errorf("search output %s line %d: bad coverage %q", path, line, cols[7])
		}

		if h.Coverage < minCoverage {
			log.Debugf("Dropping %s hit %s: coverage %d below %d.", h.Query, h.Accession, h.Coverage, minCoverage)
			continue
		}
		if bad := badResidue(h.Sequence); bad != 0 {
			log.Warnf("Rejecting %s hit %s: disallowed residue code %q.", h.Query, h.Accession, string(bad))
			continue
		}
		hits = append(hits, h)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search output %s: %w", path, err)
	}
	return hits, nil
}

// BuildGeneSet folds hits from one or more per-database search outputs
// into a single per-gene sequence set keyed by genome group. Duplicate
// keys resolve first-seen-wins with a logged warning.
func BuildGeneSet(gene string, hits []Hit, group func(accession string) string, log *zap.SugaredLogger) GeneSet {
	set := GeneSet{Gene: gene, Seqs: map[string]string{}}
	firstAcc := map[string]string{}
	for _, h := range hits {
		key := group(h.Accession)
		if _, dup := set.Seqs[key]; dup {
			log.Warnf("Gene %s: genome %s already has a sequence (from %s); ignoring duplicate hit %s.",
				gene, key, firstAcc[key], h.Accession)
			continue
		}
		set.Seqs[key] = h.Sequence
		firstAcc[key] = h.Accession
	}
	return set
}

// Accessions returns the distinct subject accessions of a hit list, in
// first-seen order, for identity resolution.
func Accessions(hits []Hit) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range hits {
		if !seen[h.Accession] {
			seen[h.Accession] = true
			out = append(out, h.Accession)
		}
	}
	return out
}

func badResidue(seq string) byte {
	for i := 0; i < len(seq); i++ {
		if strings.IndexByte(allowedResidues, seq[i]) < 0 {
			return seq[i]
		}
	}
	return 0
}
