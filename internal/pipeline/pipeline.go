// Package pipeline sequences a full run: load configuration, enrich
// targets (or load the term cache), merge the hierarchy, validate and
// persist the artifacts.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"assayspec/internal/artifact"
	"assayspec/internal/loader"
	"assayspec/internal/merge"
	"assayspec/internal/model"
	"assayspec/internal/terms"
)

// Layout of the source and destination directories.
const (
	ProtocolsDir  = "protocols"
	TemplatesDir  = "templates"
	AttributesDir = "attributes"
	TargetFile    = "targets.json.gz"
	AssayFile     = "assays.json.gz"
)

// Pipeline owns the registries of one run and the run configuration.
type Pipeline struct {
	cfg Config
	log *zap.Logger
}

// New creates a pipeline.
func New(cfg Config, log *zap.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, log: log}
}

// assayDoc is the on-disk shape of the final artifact.
type assayDoc struct {
	Meta    artifact.Meta                  `json:"meta"`
	Assays  []model.AssaySpec              `json:"assays"`
	Targets map[string]terms.CategoryTerms `json:"targets"`
	Terms   map[string]string              `json:"terms"`
}

// ProcessAll runs load -> enrich-or-load-cache -> merge -> persist.
// The term cache artifact in destDir, when present, replaces the
// network enrichment entirely.
func (pl *Pipeline) ProcessAll(ctx context.Context, srcDir, destDir string) error {
	pl.log.Info("loading specification files", zap.String("src", srcDir))
	protocols, err := loader.LoadProtocols(filepath.Join(srcDir, ProtocolsDir), pl.log)
	if err != nil {
		return err
	}
	templates, err := loader.LoadTemplates(filepath.Join(srcDir, TemplatesDir), pl.log)
	if err != nil {
		return err
	}
	attributes, err := loader.LoadAttributes(filepath.Join(srcDir, AttributesDir), pl.log)
	if err != nil {
		return err
	}

	registry, err := pl.targetRegistry(ctx, protocols, templates, destDir)
	if err != nil {
		return err
	}

	termDict := collectTermDict(protocols, templates, attributes)
	for id, name := range registry.Names() {
		termDict[id] = name
	}

	pl.log.Info("generating assay specifications")
	merger := merge.New(templates, attributes, registry, pl.log)
	rows, err := merger.Generate(protocols)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []model.AssaySpec{}
	}

	doc := assayDoc{
		Meta:    artifact.NewMeta(),
		Assays:  rows,
		Targets: registry.TargetTerms(),
		Terms:   termDict,
	}
	out := filepath.Join(destDir, AssayFile)
	if err := artifact.WriteGzipJSON(out, doc); err != nil {
		return err
	}
	pl.log.Info("saved assay specifications", zap.String("file", out), zap.Int("rows", len(rows)))
	return nil
}

// targetRegistry loads the persisted term cache when one exists, and
// otherwise enriches every distinct target accession over the network
// and persists the result.
func (pl *Pipeline) targetRegistry(ctx context.Context, protocols []model.Protocol, templates map[string]model.ProtocolTemplate, destDir string) (*terms.Registry, error) {
	cachePath := filepath.Join(destDir, TargetFile)
	if !pl.cfg.RefreshTerms {
		registry, ok, err := terms.LoadCache(cachePath)
		if err != nil {
			return nil, err
		}
		if ok {
			pl.log.Info("loaded target term cache", zap.String("file", cachePath))
			return registry, nil
		}
	}

	pl.log.Info("target term cache not found, fetching targets")
	registry := terms.NewRegistry()
	client := terms.NewClient(terms.ClientConfig{
		UniProtBaseURL: pl.cfg.UniProtBaseURL,
		OLSBaseURL:     pl.cfg.OLSBaseURL,
		Timeout:        pl.cfg.HTTPTimeout,
		MaxRetries:     pl.cfg.MaxRetries,
	}, pl.log)
	if err := registry.Enrich(ctx, client, collectAccessions(protocols, templates), pl.cfg.Workers); err != nil {
		return nil, fmt.Errorf("target enrichment: %w", err)
	}
	if err := registry.SaveCache(cachePath); err != nil {
		return nil, err
	}
	pl.log.Info("saved target term cache", zap.String("file", cachePath))
	return registry, nil
}

// collectAccessions gathers every target accession declared at any
// level of any template or protocol. Order is irrelevant (the
// registry deduplicates before dispatch) but kept deterministic.
func collectAccessions(protocols []model.Protocol, templates map[string]model.ProtocolTemplate) []string {
	var accs []string
	add := func(targets []model.Target) {
		for _, t := range targets {
			accs = append(accs, t.AccessionID)
		}
	}
	for _, id := range sortedKeys(templates) {
		tmpl := templates[id]
		add(tmpl.Targets)
		for _, ro := range tmpl.Readouts {
			add(ro.Targets)
		}
	}
	for _, p := range protocols {
		add(p.Targets)
		for _, ro := range p.Readouts {
			add(ro.Targets)
		}
	}
	return accs
}

// collectTermDict maps every term id declared in any configuration
// file to its declared name.
func collectTermDict(protocols []model.Protocol, templates map[string]model.ProtocolTemplate, attributes map[string]model.Attribute) map[string]string {
	dict := make(map[string]string)
	add := func(ts []model.TermRef) {
		for _, t := range ts {
			dict[t.ID] = t.Name
		}
	}
	for _, id := range sortedKeys(attributes) {
		add(attributes[id].Terms)
	}
	for _, id := range sortedKeys(templates) {
		tmpl := templates[id]
		add(tmpl.Terms)
		for _, ro := range tmpl.Readouts {
			add(ro.Terms)
		}
	}
	for _, p := range protocols {
		add(p.Terms)
		for _, ro := range p.Readouts {
			add(ro.Terms)
		}
		for _, a := range p.Assays {
			add(a.Terms)
		}
	}
	return dict
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
