// Package records holds the keyed table mapping sequence accessions to
// resolved organism identity and provenance. The table is the pipeline's
// shared state across runs: it is serialized to one tab-delimited file per
// run directory and merged by union on resume.
package records

import (
	"strings"
)

// Sentinel marks a field that has not been resolved yet. It is written
// verbatim to the key file so that resumed runs can tell unresolved
// fields from real values.
const Sentinel = "NULL"

// Record is one resolved (or not yet resolved) sequence accession.
type Record struct {
	// Accession is the raw sequence identifier as seen in search output.
	Accession string

	// Assembly is the genome grouping key: the linked assembly accession
	// when one exists, else the master-record key derived from the
	// accession itself.
	Assembly string

	// TaxID is the taxonomy identifier reported by the directory service.
	TaxID string

	// Organism is the resolved organism name.
	Organism string

	// Label is the display name used in alignments and tree files.
	Label string

	// Provenance fields. All default to Sentinel.
	Strain  string
	Culture string
	Country string
	Source  string
	Year    string
}

// NewRecord returns a record with every field unresolved.
func NewRecord(accession string) Record {
	return Record{
		Accession: accession,
		Assembly:  Sentinel,
		TaxID:     Sentinel,
		Organism:  Sentinel,
		Label:     Sentinel,
		Strain:    Sentinel,
		Culture:   Sentinel,
		Country:   Sentinel,
		Source:    Sentinel,
		Year:      Sentinel,
	}
}

// Resolved reports whether the organism name has been filled in.
func (r Record) Resolved() bool {
	return r.Organism != Sentinel && r.Organism != ""
}

// Group returns the genome grouping key for the record: the assembly
// accession when resolved, else the accession itself.
func (r Record) Group() string {
	if r.Assembly != Sentinel && r.Assembly != "" {
		return r.Assembly
	}
	return r.Accession
}

// DisplayName derives the human-readable name for the record.
// Preference order: organism + strain when the strain is not already
// part of the organism name, then organism + culture collection code,
// then the organism name alone. An unresolved record falls back to its
// own accession so downstream stages never see an empty name.
func (r Record) DisplayName() string {
	if !r.Resolved() {
		return r.Accession
	}
	if r.Strain != Sentinel && r.Strain != "" && !strings.Contains(r.Organism, r.Strain) {
		return r.Organism + " " + r.Strain
	}
	if r.Culture != Sentinel && r.Culture != "" {
		return r.Organism + " " + r.Culture
	}
	return r.Organism
}

// strainTokens are dropped from labels when requested; they add length
// without distinguishing anything once the strain value follows them.
var strainTokens = []string{"substr.", "str.", "strain"}

// SanitizeLabel turns a display name into a label safe for FASTA headers
// and tree files. Spaces become underscores and characters that break
// Newick or downstream parsers are removed. When stripStrain is set the
// "strain"/"str."/"substr." tokens are dropped first.
func SanitizeLabel(name string, stripStrain bool) string {
	if stripStrain {
		for _, tok := range strainTokens {
			name = strings.ReplaceAll(name, tok+" ", "")
			name = strings.ReplaceAll(name, tok, "")
		}
	}
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")

	var b strings.Builder
	for _, c := range name {
		switch c {
		case '(', ')', '[', ']', '\'', '"', ':', ',', ';':
			// unsafe for tree labels and shell use
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
