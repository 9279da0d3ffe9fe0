// Package resolve turns raw sequence accessions into organism identity
// and provenance records using an external batch directory service.
package resolve

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/osuchanglab/autoMLSA/internal/records"
)

// DefaultAttempts is the retry ceiling for directory calls. It is a
// pragmatic constant, not a tuned value; override via Config.
const DefaultAttempts = 5

// Handle is the opaque cross-reference returned by a bulk submit. The
// follow-up fetches replay it instead of resending the accession list.
type Handle struct {
	Env string
	Key string
}

// Summary is the per-record metadata row returned by the directory.
type Summary struct {
	Accession string
	TaxID     string
	Organism  string
	Strain    string
	Culture   string
	Country   string
	Source    string
	Year      string
}

// AssemblyLink ties an accession to its genome assembly accession.
type AssemblyLink struct {
	Accession string
	Assembly  string
}

// Directory is the two-phase batch lookup protocol: one submit that
// yields a handle plus a count for verification, then two bulk fetches
// against the handle.
type Directory interface {
	Submit(ctx context.Context, accessions []string) (Handle, int, error)
	Summaries(ctx context.Context, h Handle) ([]Summary, error)
	Assemblies(ctx context.Context, h Handle) ([]AssemblyLink, error)
}

// Config adjusts resolver behavior.
type Config struct {
	// Attempts is the retry ceiling per directory call.
	Attempts int

	// StripStrain drops strain/str./substr. tokens from labels.
	StripStrain bool
}

// Resolver batches unresolved accessions against a Directory and
// normalizes the results into records.
type Resolver struct {
	dir Directory
	log *zap.SugaredLogger
	cfg Config
}

// New returns a resolver over the given directory service.
func New(dir Directory, log *zap.SugaredLogger, cfg Config) *Resolver {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	return &Resolver{dir: dir, log: log, cfg: cfg}
}

// wgsMaster matches accessions that are sub-records of a WGS master
// record: a four-letter project prefix, a two-digit version block, then
// the per-contig digits.
var wgsMaster = regexp.MustCompile(`^([A-Za-z]{4})(\d{2})(\d+)$`)

// MasterKey canonicalizes an accession to its WGS master record key so
// that sub-records of one genomic project resolve once. Accessions that
// are not WGS sub-records map to themselves.
func MasterKey(accession string) string {
	m := wgsMaster.FindStringSubmatch(accession)
	if m == nil {
		return accession
	}
	zeros := make([]byte, len(m[3]))
	for i := range zeros {
		zeros[i] = '0'
	}
	return m[1] + m[2] + string(zeros)
}

// Resolve maps every input accession to a record. Unresolvable
// accessions come back as sentinel records rather than an error;
// only an exhausted retry ceiling fails the batch.
func (r *Resolver) Resolve(ctx context.Context, accessions []string) (map[string]records.Record, error) {
	if len(accessions) == 0 {
		return map[string]records.Record{}, nil
	}

	// canonicalize to master keys, remembering which raw accessions
	// each key stands for
	byMaster := map[string][]string{}
	for _, acc := range accessions {
		key := MasterKey(acc)
		byMaster[key] = append(byMaster[key], acc)
	}
	keys := make([]string, 0, len(byMaster))
	for key := range byMaster {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	r.log.Infof("Resolving %d accessions (%d master records).", len(accessions), len(keys))

	var handle Handle
	var count int
	err := r.retry(ctx, "submit", func() error {
		var err error
		handle, count, err = r.dir.Submit(ctx, keys)
		return err
	})
	if err != nil {
		return nil, err
	}
	if count != len(keys) {
		r.log.Warnf("Directory acknowledged %d of %d submitted accessions; continuing in degraded mode.", count, len(keys))
	}

	var summaries []Summary
	if err := r.retry(ctx, "summary fetch", func() error {
		var err error
		summaries, err = r.dir.Summaries(ctx, handle)
		return err
	}); err != nil {
		return nil, err
	}

	var links []AssemblyLink
	if err := r.retry(ctx, "assembly fetch", func() error {
		var err error
		links, err = r.dir.Assemblies(ctx, handle)
		return err
	}); err != nil {
		return nil, err
	}

	// keyed join on accession; never positional
	byAcc := map[string]Summary{}
	for _, s := range summaries {
		byAcc[s.Accession] = s
	}
	assembly := map[string]string{}
	for _, l := range links {
		assembly[l.Accession] = l.Assembly
	}

	out := map[string]records.Record{}
	unresolved := 0
	for _, key := range keys {
		rec := records.NewRecord(key)
		if sum, ok := byAcc[key]; ok {
			rec.TaxID = orSentinel(sum.TaxID)
			rec.Organism = orSentinel(sum.Organism)
			rec.Strain = orSentinel(sum.Strain)
			rec.Culture = orSentinel(sum.Culture)
			rec.Country = orSentinel(sum.Country)
			rec.Source = orSentinel(sum.Source)
			rec.Year = orSentinel(sum.Year)
		} else {
			unresolved++
			r.log.Warnf("No identity returned for %s; keeping sentinel record.", key)
		}
		if asm, ok := assembly[key]; ok && asm != "" {
			rec.Assembly = asm
		}
		rec.Label = records.SanitizeLabel(rec.DisplayName(), r.cfg.StripStrain)

		for _, raw := range byMaster[key] {
			sub := rec
			sub.Accession = raw
			if sub.Assembly == records.Sentinel {
				// fall back to the master key so sub-records still
				// group as one genome
				sub.Assembly = key
			}
			out[raw] = sub
		}
	}
	if unresolved > 0 {
		r.log.Warnf("%d of %d master records left unresolved.", unresolved, len(keys))
	}
	return out, nil
}

// retry re-attempts a directory call up to the configured ceiling with
// no backoff, then abandons the batch.
func (r *Resolver) retry(ctx context.Context, what string, call func() error) error {
	var err error
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = call(); err == nil {
			return nil
		}
		r.log.Warnf("Directory %s failed (attempt %d/%d): %v", what, attempt, r.cfg.Attempts, err)
	}
	return fmt.Errorf("directory %s failed after %d attempts: %w", what, r.cfg.Attempts, err)
}

func orSentinel(s string) string {
	if s == "" {
		return records.Sentinel
	}
	return s
}
