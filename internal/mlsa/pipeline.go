package mlsa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/osuchanglab/autoMLSA/config"
	"github.com/osuchanglab/autoMLSA/internal/pipeline"
	"github.com/osuchanglab/autoMLSA/internal/records"
	"github.com/osuchanglab/autoMLSA/internal/resolve"
)

// ModelPlaceholder is written into the partition map until the model
// selection stage fills in real substitution models.
const ModelPlaceholder = "AUTO"

// Runner owns one sequential pipeline run inside one run directory.
// It wires the stage gate, the record store, the identity resolver and
// the domain engines into the fixed stage order. Nothing here is
// concurrent: external tools get a thread count, the runner blocks.
type Runner struct {
	Cfg      config.Config
	Tools    Toolchain
	Gate     *pipeline.Gate
	Resolver *resolve.Resolver
	Log      *zap.SugaredLogger
}

// Run executes the pipeline end to end. A pipeline.ErrCheckpoint return
// is a clean operator stop; everything else is a failure.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Tools.Validate(ctx, r.Log); err != nil {
		return err
	}

	queries, err := PrepareQueries(r.Cfg.RunDir, r.Cfg.Queries, r.Cfg.Dups, r.Log)
	if err != nil {
		return err
	}
	genomes, err := CollectGenomes(r.Cfg.Files, r.Cfg.Dirs, r.Log)
	if err != nil {
		return err
	}
	r.Log.Infof("Prepared %d queries against %d genomes.", len(queries), len(genomes))

	if err := r.makeDatabases(ctx, genomes); err != nil {
		return err
	}
	if err := r.search(ctx, queries, genomes); err != nil {
		return err
	}

	hitsByGene, err := r.ingest(queries, genomes)
	if err != nil {
		return err
	}

	store, err := r.resolveIdentities(ctx, hitsByGene)
	if err != nil {
		return err
	}

	geneSets := r.buildGeneSets(queries, hitsByGene, store)

	summary := Summarize(geneSets)
	summary.Log(r.Log)
	if err := summary.WriteMatrix(r.path("presence_matrix.tsv"), geneSets); err != nil {
		return err
	}
	if err := summary.WriteJSON(r.path("summary.json")); err != nil {
		return err
	}

	label := func(key string) string {
		for _, rec := range store.Records() {
			if rec.Group() == key {
				return rec.Label
			}
		}
		return key
	}
	result, err := Filter(geneSets, label, r.Log)
	if err != nil {
		return err
	}

	unalignedDir := r.path("unaligned")
	if err := os.MkdirAll(unalignedDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", unalignedDir, err)
	}
	if _, err := WriteFiltered(unalignedDir, geneSets, result.Survivors); err != nil {
		return err
	}
	if err := r.Gate.Checkpoint(r.Cfg.Checkpoint, pipeline.CheckpointFasta, unalignedDir); err != nil {
		return err
	}

	aligned, err := r.align(ctx, geneSets)
	if err != nil {
		return err
	}

	if err := r.concatenate(ctx, aligned, store); err != nil {
		return err
	}

	if err := r.selectModel(ctx); err != nil {
		return err
	}
	if err := r.Gate.Checkpoint(r.Cfg.Checkpoint, pipeline.CheckpointModel, r.path("model.txt")); err != nil {
		return err
	}

	r.Log.Infof("Run %s complete. Tree inference can consume %s, %s and %s.",
		r.Cfg.RunID, r.path("concatenated.derep.fasta"), r.path("partitions.txt"), r.path("model.txt"))
	return nil
}

func (r *Runner) path(parts ...string) string {
	return filepath.Join(append([]string{r.Cfg.RunDir}, parts...)...)
}

// makeDatabases builds a search database next to each genome FASTA.
// The database index is the stage artifact, so finished databases skip.
func (r *Runner) makeDatabases(ctx context.Context, genomes []Genome) error {
	for _, g := range genomes {
		g := g
		st := pipeline.Stage{
			Name:      "makedb " + g.Name,
			Artifacts: []pipeline.Artifact{{Name: g.Name + " db index", Path: g.Path + ".nin"}},
			Work: func(ctx context.Context) error {
				t := pipeline.Tool{
					Name: "makeblastdb",
					Exe:  r.Tools.MakeDB,
					Args: []string{"-dbtype", "nucl", "-in", g.Path},
				}
				return t.Exec(ctx)
			},
			Remedy: "Check that " + g.Path + " is a readable nucleotide FASTA.",
		}
		if err := r.Gate.Run(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// hitTabFormat matches the ingestion columns in ReadHits.
const hitTabFormat = "7 qseqid sseqid saccver pident qlen length evalue qcovhsp staxid stitle sseq"

// search runs one external search per gene and genome. Each search is
// its own stage: finished outputs are skipped, which is what makes the
// expensive search layer cache across runs.
func (r *Runner) search(ctx context.Context, queries []Query, genomes []Genome) error {
	blastdir := r.path("blast")
	if err := os.MkdirAll(blastdir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", blastdir, err)
	}
	for _, q := range queries {
		for _, g := range genomes {
			q, g := q, g
			out := pipeline.Artifact{
				Name: q.Gene + " vs " + g.Name,
				Path: filepath.Join(blastdir, q.Gene+"_vs_"+g.Name+".tab"),
			}
			st := pipeline.Stage{
				Name:      "search " + out.Name,
				Artifacts: []pipeline.Artifact{out},
				Work: func(ctx context.Context) error {
					t := pipeline.Tool{
						Name:   r.Cfg.Search.Program,
						Exe:    r.Tools.Search,
						Output: out,
						Args: []string{
							"-db", g.Path,
							"-query", q.Path,
							"-out", out.Path,
							"-outfmt", hitTabFormat,
							"-evalue", strconv.FormatFloat(r.Cfg.Search.EValue, 'g', -1, 64),
							"-num_threads", strconv.Itoa(r.Cfg.Search.Threads),
						},
					}
					return t.Exec(ctx)
				},
				Remedy: "Re-run to retry the search, or remove " + out.Path + " to force it.",
			}
			if err := r.Gate.Run(ctx, st); err != nil {
				return err
			}
		}
	}
	return nil
}

// ingest reads every search output into per-gene hit lists. An empty
// result from one genome is logged and the run continues on the others.
func (r *Runner) ingest(queries []Query, genomes []Genome) (map[string][]Hit, error) {
	out := map[string][]Hit{}
	for _, q := range queries {
		for _, g := range genomes {
			p := r.path("blast", q.Gene+"_vs_"+g.Name+".tab")
			hits, err := ReadHits(p, r.Cfg.Search.Coverage, r.Log)
			if err != nil {
				return nil, err
			}
			if len(hits) == 0 {
				r.Log.Warnf("No sequences from %s for gene %s.", g.Name, q.Gene)
				continue
			}
			out[q.Gene] = append(out[q.Gene], hits...)
		}
	}
	return out, nil
}

// resolveIdentities sends every distinct accession through the
// directory service, merges the results with the run's existing key
// file, and returns the canonical store.
func (r *Runner) resolveIdentities(ctx context.Context, hitsByGene map[string][]Hit) (*records.Store, error) {
	var all []Hit
	for _, hits := range hitsByGene {
		all = append(all, hits...)
	}
	accessions := Accessions(all)

	keyFile := r.path("keys.tsv")
	store := records.NewStore()
	switch existing, err := records.ReadFile(keyFile); {
	case err == nil:
		store = existing
	case !errors.Is(err, os.ErrNotExist):
		// never overwrite resolved identities over a read failure
		return nil, err
	}

	// search output already knows each hit's taxonomy id
	for _, hits := range hitsByGene {
		for _, h := range hits {
			if h.TaxID == "" {
				continue
			}
			rec := records.NewRecord(h.Accession)
			rec.TaxID = h.TaxID
			store.Upsert(rec)
		}
	}

	var unresolved []string
	for _, acc := range accessions {
		if rec, ok := store.Lookup(acc); !ok || !rec.Resolved() {
			unresolved = append(unresolved, acc)
		}
	}
	if len(unresolved) == 0 {
		r.Log.Infof("All %d accessions already resolved in %s.", len(accessions), keyFile)
		return store, nil
	}

	resolved, err := r.Resolver.Resolve(ctx, unresolved)
	if err != nil {
		return nil, err
	}
	for _, acc := range unresolved {
		if rec, ok := resolved[acc]; ok {
			store.Upsert(rec)
		} else {
			store.Upsert(records.NewRecord(acc))
		}
	}
	if err := store.WriteFile(keyFile); err != nil {
		return nil, err
	}
	return store, nil
}

// buildGeneSets folds hits into per-gene sequence sets keyed by the
// resolved genome group, in query order.
func (r *Runner) buildGeneSets(queries []Query, hitsByGene map[string][]Hit, store *records.Store) []GeneSet {
	group := func(accession string) string {
		if rec, ok := store.Lookup(accession); ok {
			return rec.Group()
		}
		return resolve.MasterKey(accession)
	}
	var sets []GeneSet
	for _, q := range queries {
		sets = append(sets, BuildGeneSet(q.Gene, hitsByGene[q.Gene], group, r.Log))
	}
	return sets
}

// align shells out to the aligner for each gene's filtered FASTA and
// reads the aligned sets back, preserving gene order.
func (r *Runner) align(ctx context.Context, geneSets []GeneSet) ([]GeneSet, error) {
	aligneddir := r.path("aligned")
	if err := os.MkdirAll(aligneddir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", aligneddir, err)
	}

	var aligned []GeneSet
	for _, set := range geneSets {
		set := set
		in := r.path("unaligned", set.Gene+".filtered.fasta")
		out := pipeline.Artifact{
			Name: set.Gene + " alignment",
			Path: filepath.Join(aligneddir, set.Gene+".aligned.fasta"),
		}
		st := pipeline.Stage{
			Name:      "align " + set.Gene,
			Artifacts: []pipeline.Artifact{out},
			Work: func(ctx context.Context) error {
				t := pipeline.Tool{
					Name:           "aligner",
					Exe:            r.Tools.Align,
					Output:         out,
					StdoutToOutput: true,
					Args: []string{
						"--thread", strconv.Itoa(r.Cfg.Search.Threads),
						"--quiet",
						in,
					},
				}
				return t.Exec(ctx)
			},
			Remedy: "Inspect " + in + " for malformed sequences.",
		}
		if err := r.Gate.Run(ctx, st); err != nil {
			return nil, err
		}

		rows, err := ReadFasta(out.Path)
		if err != nil {
			return nil, err
		}
		alignedSet := GeneSet{Gene: set.Gene, Seqs: map[string]string{}}
		for _, row := range rows {
			alignedSet.Seqs[row.ID] = row.Seq
		}
		aligned = append(aligned, alignedSet)
	}
	return aligned, nil
}

// concatenate merges the aligned gene sets and writes the alignment,
// the partition map, the dereplicated alignment and the dereplication
// log, all behind one gated stage.
func (r *Runner) concatenate(ctx context.Context, aligned []GeneSet, store *records.Store) error {
	artifacts := []pipeline.Artifact{
		{Name: "concatenated alignment", Path: r.path("concatenated.fasta")},
		{Name: "partition map", Path: r.path("partitions.txt")},
		{Name: "dereplicated alignment", Path: r.path("concatenated.derep.fasta")},
		{Name: "dereplication log", Path: r.path("derep.log.tsv")},
	}
	st := pipeline.Stage{
		Name:      "concatenate",
		Artifacts: artifacts,
		Work: func(ctx context.Context) error {
			cat, err := Concatenate(aligned, store, r.Cfg.Resolve.StripStrain, r.Log)
			if err != nil {
				return err
			}
			if err := WriteFasta(artifacts[0].Path, cat.Rows); err != nil {
				return err
			}
			if err := cat.Partitions.WriteFile(artifacts[1].Path, ModelPlaceholder); err != nil {
				return err
			}
			reduced, log := Dereplicate(cat.Rows)
			if len(reduced) < len(cat.Rows) {
				r.Log.Infof("Dereplication collapsed %d rows to %d.", len(cat.Rows), len(reduced))
			}
			if err := WriteFasta(artifacts[2].Path, reduced); err != nil {
				return err
			}
			return log.WriteFile(artifacts[3].Path)
		},
		Remedy: "Inspect the aligned FASTA files for ragged lengths, then re-run.",
	}
	return r.Gate.Run(ctx, st)
}

// selectModel runs substitution-model selection over the dereplicated
// alignment when a model tool is configured and present.
func (r *Runner) selectModel(ctx context.Context) error {
	if r.Tools.ModelTest == "" {
		return nil
	}
	t := pipeline.Tool{Name: "model selection", Exe: r.Tools.ModelTest}
	if !t.Available() {
		r.Log.Warnf("Skipping model selection: %q not found.", r.Tools.ModelTest)
		return nil
	}
	out := pipeline.Artifact{Name: "model selection", Path: r.path("model.txt")}
	st := pipeline.Stage{
		Name:      "model selection",
		Artifacts: []pipeline.Artifact{out},
		Work: func(ctx context.Context) error {
			t := pipeline.Tool{
				Name:   "model selection",
				Exe:    r.Tools.ModelTest,
				Output: out,
				Args: []string{
					"-i", r.path("concatenated.derep.fasta"),
					"-q", r.path("partitions.txt"),
					"-o", out.Path,
					"-p", strconv.Itoa(r.Cfg.Search.Threads),
				},
			}
			return t.Exec(ctx)
		},
		Remedy: "Check the partition map against the alignment width.",
	}
	return r.Gate.Run(ctx, st)
}
