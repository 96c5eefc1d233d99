// Package merge implements the four-level resolution hierarchy that
// turns templates, protocols, readouts and assays into flat AssaySpec
// records.
//
// Override/union rules: a non-empty targets list at a more specific
// level replaces the inherited targets entirely; terms and parameters
// union (append) across levels and are deduplicated only at row
// finalization, where the most specific level wins per (category, name)
// parameter key. Every step builds fresh values from the parent
// baseline plus the level's deltas, so sibling readouts and assays
// never alias each other's slices.
//
// The merge is pure and deterministic: identical inputs produce an
// identical row set in identical order - protocol file order, declared
// readout order, declared assay order, datasource declaration order.
package merge

import (
	"slices"
	"sort"

	"go.uber.org/zap"

	"assayspec/internal/attr"
	"assayspec/internal/model"
	"assayspec/internal/terms"
	"assayspec/internal/validate"
)

// TermSource resolves a target accession to its categorized term ids.
// Satisfied by *terms.Registry.
type TermSource interface {
	Resolve(accession string) (terms.CategoryTerms, bool)
}

// baseline is the accumulated state of one hierarchy level.
type baseline struct {
	targets []model.Target
	terms   []string
	params  []model.Parameter
}

// clone returns a baseline whose slices are independent copies.
func (b baseline) clone() baseline {
	return baseline{
		targets: slices.Clone(b.targets),
		terms:   slices.Clone(b.terms),
		params:  slices.Clone(b.params),
	}
}

// Merger resolves protocols into AssaySpec records. The registries it
// holds are read-only for its lifetime.
type Merger struct {
	templates map[string]model.ProtocolTemplate
	attrs     attr.Registry
	termSrc   TermSource
	log       *zap.Logger

	// Template resolution is memoized: many protocols share a template.
	resolved map[string]baseline
	readouts map[string][]model.Readout
}

// New creates a Merger over loaded templates, attributes and the
// target-term mapping.
func New(templates map[string]model.ProtocolTemplate, attrs attr.Registry, termSrc TermSource, log *zap.Logger) *Merger {
	return &Merger{
		templates: templates,
		attrs:     attrs,
		termSrc:   termSrc,
		log:       log,
		resolved:  make(map[string]baseline),
		readouts:  make(map[string][]model.Readout),
	}
}

// Generate produces the ordered, validated list of AssaySpec records
// for every protocol, in protocol order.
func (m *Merger) Generate(protocols []model.Protocol) ([]model.AssaySpec, error) {
	var rows []model.AssaySpec
	for i := range protocols {
		protoRows, err := m.generateProtocol(&protocols[i])
		if err != nil {
			return nil, err
		}
		rows = append(rows, protoRows...)
	}
	return rows, nil
}

func (m *Merger) generateProtocol(p *model.Protocol) ([]model.AssaySpec, error) {
	m.log.Info("merging protocol", zap.String("protocol", p.ProtocolID))

	base, readouts, err := m.templateBaseline(p)
	if err != nil {
		return nil, err
	}

	// Protocol-level overrides: targets replace, terms/params union.
	if len(p.Targets) > 0 {
		base.targets = slices.Clone(p.Targets)
	}
	pTerms, pParams, err := attr.Expand(p.Terms, p.Parameters, p.AttributeIDs, m.attrs, p.ProtocolID)
	if err != nil {
		return nil, err
	}
	base.terms = append(base.terms, pTerms...)
	base.params = append(base.params, pParams...)

	if len(p.Readouts) > 0 {
		readouts = p.Readouts
	}
	if len(readouts) == 0 && len(p.Assays) > 0 {
		return nil, model.NewConfigError(p.ProtocolID, "assays defined but no readouts found")
	}

	if err := checkDataSourceLengths(p, len(readouts)); err != nil {
		return nil, err
	}

	var rows []model.AssaySpec
	for ridx := range readouts {
		ro := &readouts[ridx]
		roRows, err := m.generateReadout(p, base, ro, ridx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, roRows...)
	}
	m.log.Info("protocol merged", zap.String("protocol", p.ProtocolID), zap.Int("rows", len(rows)))
	return rows, nil
}

// templateBaseline returns the protocol's starting baseline and readout
// list: the attribute-expanded template contents when the protocol
// references one, empty otherwise. Resolution is memoized by templateId.
func (m *Merger) templateBaseline(p *model.Protocol) (baseline, []model.Readout, error) {
	if p.TemplateID == "" {
		return baseline{}, nil, nil
	}
	if b, ok := m.resolved[p.TemplateID]; ok {
		return b.clone(), m.readouts[p.TemplateID], nil
	}
	tmpl, ok := m.templates[p.TemplateID]
	if !ok {
		return baseline{}, nil, model.NewConfigError(p.ProtocolID, "unresolved template reference %q", p.TemplateID)
	}
	tTerms, tParams, err := attr.Expand(tmpl.Terms, tmpl.Parameters, tmpl.AttributeIDs, m.attrs, tmpl.TemplateID)
	if err != nil {
		return baseline{}, nil, err
	}
	b := baseline{targets: tmpl.Targets, terms: tTerms, params: tParams}
	m.resolved[p.TemplateID] = b
	m.readouts[p.TemplateID] = tmpl.Readouts
	return b.clone(), tmpl.Readouts, nil
}

func (m *Merger) generateReadout(p *model.Protocol, protoBase baseline, ro *model.Readout, ridx int) ([]model.AssaySpec, error) {
	roPath := p.ProtocolID + "/" + ro.ReadoutID
	b := protoBase.clone()

	if len(ro.Targets) > 0 {
		b.targets = slices.Clone(ro.Targets)
	}
	roTerms, roParams, err := attr.Expand(ro.Terms, ro.Parameters, ro.AttributeIDs, m.attrs, roPath)
	if err != nil {
		return nil, err
	}
	b.terms = append(b.terms, roTerms...)
	b.params = append(b.params, roParams...)

	// Ontology enrichment: the four categories of every resolved
	// target, in fixed Function, Process, Component, ChEBI order.
	for _, tg := range b.targets {
		ct, ok := m.termSrc.Resolve(tg.AccessionID)
		if !ok {
			return nil, model.NewConfigError(roPath, "no term mapping for target %q", tg.AccessionID)
		}
		b.terms = append(b.terms, ct.Function...)
		b.terms = append(b.terms, ct.Process...)
		b.terms = append(b.terms, ct.Component...)
		b.terms = append(b.terms, ct.ChEBI...)
	}

	var rows []model.AssaySpec
	for aidx := range p.Assays {
		row, ok, err := m.generateAssay(p, b, ro, &p.Assays[aidx], ridx)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// generateAssay builds the row for one (assay, readout) pair. ok is
// false when no datasource contributes for this readout index, which
// is a silent skip, not an error.
func (m *Merger) generateAssay(p *model.Protocol, roBase baseline, ro *model.Readout, a *model.Assay, ridx int) (model.AssaySpec, bool, error) {
	aPath := p.ProtocolID + "/" + a.AssayID
	data := sliceDataSources(a.DataSources, ridx)
	if len(data) == 0 {
		m.log.Debug("no datasource for readout, skipping",
			zap.String("assay", aPath), zap.String("readout", ro.ReadoutID))
		return model.AssaySpec{}, false, nil
	}

	b := roBase.clone()
	aTerms, aParams, err := attr.Expand(a.Terms, a.Parameters, a.AttributeIDs, m.attrs, aPath)
	if err != nil {
		return model.AssaySpec{}, false, err
	}
	b.terms = append(b.terms, aTerms...)
	b.params = append(b.params, aParams...)
	if b.targets == nil {
		b.targets = []model.Target{}
	}

	row := model.AssaySpec{
		ProtocolID:  p.ProtocolID,
		AssayID:     a.AssayID,
		ReadoutID:   ro.ReadoutID,
		ReadoutMode: ro.ReadoutMode,
		ValueType:   a.ValueType,
		Targets:     b.targets,
		Terms:       dedupSortTerms(b.terms),
		Parameters:  dedupParams(b.params),
		DataSources: data,
	}
	if ro.ReadoutRange != nil {
		rr := *ro.ReadoutRange
		row.ReadoutRange = &rr
	}
	if err := validate.Spec(&row); err != nil {
		return model.AssaySpec{}, false, err
	}
	return row, true, nil
}

// sliceDataSources extracts the per-readout slice of each datasource.
// A datasource whose indexed slot is null contributes nothing for this
// readout.
func sliceDataSources(sources []model.DataSource, ridx int) []model.SpecData {
	var data []model.SpecData
	for i := range sources {
		d := &sources[i]
		switch d.SourceType {
		case model.SourceScreener:
			if d.LayerIndices[ridx] == nil {
				continue
			}
			idx := *d.LayerIndices[ridx]
			entry := model.SpecData{
				SourceType:    model.SourceScreener,
				SessionID:     d.SessionID,
				LayerIndex:    &idx,
				SampleMapping: d.SampleMapping,
			}
			for _, se := range d.SubExperiments {
				if v := se.SubExpValues[ridx]; v != nil {
					entry.SubExperiment = append(entry.SubExperiment, model.SpecSubExperiment{
						SubExpKey:   se.SubExpKey,
						SubExpValue: *v,
					})
				}
			}
			data = append(data, entry)
		case model.SourceCSV:
			if d.ValueColumns[ridx] == nil {
				continue
			}
			data = append(data, model.SpecData{
				SourceType:     model.SourceCSV,
				SourcePath:     d.SourcePath,
				SampleIDColumn: d.SampleIDColumn,
				ValueColumn:    *d.ValueColumns[ridx],
				SampleMapping:  d.SampleMapping,
			})
		}
	}
	return data
}

// checkDataSourceLengths verifies that every readout-indexed array has
// one slot per resolved readout. Only the merger can check this: the
// readout count may come from a template.
func checkDataSourceLengths(p *model.Protocol, readoutCount int) error {
	for i := range p.Assays {
		a := &p.Assays[i]
		aPath := p.ProtocolID + "/" + a.AssayID
		for j := range a.DataSources {
			d := &a.DataSources[j]
			switch d.SourceType {
			case model.SourceScreener:
				if len(d.LayerIndices) != readoutCount {
					return model.NewConfigError(aPath, "layerIndices has %d slots for %d readouts", len(d.LayerIndices), readoutCount)
				}
				for _, se := range d.SubExperiments {
					if len(se.SubExpValues) != readoutCount {
						return model.NewConfigError(aPath, "subExpValues of %q has %d slots for %d readouts", se.SubExpKey, len(se.SubExpValues), readoutCount)
					}
				}
			case model.SourceCSV:
				if len(d.ValueColumns) != readoutCount {
					return model.NewConfigError(aPath, "valueColumns has %d slots for %d readouts", len(d.ValueColumns), readoutCount)
				}
			}
		}
	}
	return nil
}

// dedupSortTerms makes the accumulated term ids unique and
// lexicographically sorted.
func dedupSortTerms(ts []string) []string {
	seen := make(map[string]bool, len(ts))
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// dedupParams keeps one parameter per (category, name) key: scanning
// from the most specific level (the accumulated list ends with the
// assay's contributions) backwards, the first occurrence wins, then
// the surviving parameters are restored to ascending specificity
// order. Keys compare case-sensitively.
func dedupParams(ps []model.Parameter) []model.Parameter {
	seen := make(map[[2]string]bool, len(ps))
	out := make([]model.Parameter, 0, len(ps))
	for i := len(ps) - 1; i >= 0; i-- {
		if k := ps[i].Key(); !seen[k] {
			seen[k] = true
			out = append(out, ps[i])
		}
	}
	slices.Reverse(out)
	return out
}
