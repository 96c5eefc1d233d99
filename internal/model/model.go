// Package model defines the typed records for assay specification
// configuration: templates, attributes, protocols and the resolved
// AssaySpec output records. All configuration documents are decoded
// strictly - unknown fields at any nesting level are rejected.
package model

import (
	"fmt"
)

// TargetSourceType identifies the database a target accession belongs to.
type TargetSourceType string

const (
	SourceUniProt TargetSourceType = "UniProt"
)

// DataSourceType discriminates the DataSource tagged variant.
type DataSourceType string

const (
	SourceScreener DataSourceType = "Screener"
	SourceCSV      DataSourceType = "CSV"
)

// ReadoutMode is the measured signal direction of a readout channel.
type ReadoutMode string

const (
	ModeInhibition ReadoutMode = "inhibition"
	ModeActivation ReadoutMode = "activation"
)

// ValueType is the suggested value type of an assay. Data source APIs
// retrieve values in the format appropriate for this type.
type ValueType string

const (
	ValueAC50       ValueType = "AC50"
	ValueZScore     ValueType = "Z-score"
	ValueRZScore    ValueType = "RZ-score"
	ValuePercentage ValueType = "percentage"
	ValueCategory   ValueType = "category" // nominal
)

func (t TargetSourceType) valid() bool { return t == SourceUniProt }

func (t DataSourceType) valid() bool { return t == SourceScreener || t == SourceCSV }

func (m ReadoutMode) valid() bool { return m == ModeInhibition || m == ModeActivation }

func (v ValueType) valid() bool {
	switch v {
	case ValueAC50, ValueZScore, ValueRZScore, ValuePercentage, ValueCategory:
		return true
	}
	return false
}

// Target is a biological target identified by a database accession.
type Target struct {
	SourceType  TargetSourceType `yaml:"sourceType" json:"sourceType"`
	AccessionID string           `yaml:"accessionId" json:"accessionId"`
	Name        string           `yaml:"name" json:"name,omitempty"`
}

// Attribute is a named, reusable bundle of ontology terms and
// parameters. Attributes are referenced by id and never embedded.
type Attribute struct {
	AttributeID string      `yaml:"attributeId"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Active      *bool       `yaml:"active"`
	Terms       []TermRef   `yaml:"terms"`
	Parameters  []Parameter `yaml:"parameters"`
}

// Readout is one measured channel within a protocol.
type Readout struct {
	ReadoutID    string      `yaml:"readoutId"`
	ReadoutMode  ReadoutMode `yaml:"readoutMode"`
	ReadoutRange *Range      `yaml:"readoutRange"`
	Targets      []Target    `yaml:"targets"`
	AttributeIDs []string    `yaml:"attributes"`
	Terms        []TermRef   `yaml:"terms"`
	Parameters   []Parameter `yaml:"parameters"`
}

// ProtocolTemplate is a reusable baseline of targets, attributes,
// terms, parameters and readouts shared by many protocols.
type ProtocolTemplate struct {
	TemplateID   string      `yaml:"templateId"`
	Name         string      `yaml:"name"`
	Description  string      `yaml:"description"`
	Active       *bool       `yaml:"active"`
	Targets      []Target    `yaml:"targets"`
	AttributeIDs []string    `yaml:"attributes"`
	Terms        []TermRef   `yaml:"terms"`
	Parameters   []Parameter `yaml:"parameters"`
	Readouts     []Readout   `yaml:"readouts"`
}

// SubExperiment carries one per-readout sub-experiment value list for a
// Screener datasource. Slots are nullable, one per readout.
type SubExperiment struct {
	SubExpKey    string    `yaml:"subExpKey"`
	SubExpValues []*string `yaml:"subExpValues"`
}

// DataSource points at where numeric values live. It is a tagged
// variant on SourceType: Screener fields or CSV fields, never both.
// The readout-indexed slices (LayerIndices, ValueColumns and each
// SubExperiment's values) have one nullable slot per readout of the
// owning protocol.
type DataSource struct {
	SourceType     DataSourceType  `yaml:"sourceType"`
	SessionID      string          `yaml:"sessionId"`
	LayerIndices   []*int          `yaml:"layerIndices"`
	SubExperiments []SubExperiment `yaml:"subExperiments"`
	SourcePath     string          `yaml:"sourcePath"`
	SampleIDColumn string          `yaml:"sampleIdColumn"`
	ValueColumns   []*string       `yaml:"valueColumns"`
	SampleMapping  string          `yaml:"sampleMapping"`
}

// Assay is a named value-producing unit within a protocol, tied to
// readouts through its datasources.
type Assay struct {
	AssayID      string       `yaml:"assayId"`
	ValueType    ValueType    `yaml:"valueType"`
	AttributeIDs []string     `yaml:"attributes"`
	Terms        []TermRef    `yaml:"terms"`
	Parameters   []Parameter  `yaml:"parameters"`
	DataSources  []DataSource `yaml:"datasources"`
}

// AttributeSet is one attribute configuration file.
type AttributeSet struct {
	Version string         `yaml:"assayAttributesVersion"`
	Name    string         `yaml:"name"`
	Meta    map[string]any `yaml:"meta"`
	Items   []Attribute    `yaml:"items"`
}

// TemplateSet is one template configuration file.
type TemplateSet struct {
	Version string             `yaml:"assayTemplatesVersion"`
	Name    string             `yaml:"name"`
	Meta    map[string]any     `yaml:"meta"`
	Items   []ProtocolTemplate `yaml:"items"`
}

// Protocol is one protocol configuration file. ProtocolID is derived
// from the file name by the loader, not declared in YAML.
type Protocol struct {
	Version      string         `yaml:"assayProtocolVersion"`
	Meta         map[string]any `yaml:"meta"`
	TemplateID   string         `yaml:"templateId"`
	Targets      []Target       `yaml:"targets"`
	AttributeIDs []string       `yaml:"attributes"`
	Terms        []TermRef      `yaml:"terms"`
	Parameters   []Parameter    `yaml:"parameters"`
	Readouts     []Readout      `yaml:"readouts"`
	Assays       []Assay        `yaml:"assays"`

	ProtocolID string `yaml:"-"`
}

// DefaultRange is the readout range assumed when a readout declares none.
func DefaultRange() *Range { return &Range{0, 100} }

// Normalize fills enum defaults and validates enum membership for the
// whole protocol document. path is the identifier path used in errors.
func (p *Protocol) Normalize(path string) error {
	if err := normalizeTargets(p.Targets, path); err != nil {
		return err
	}
	for i := range p.Readouts {
		if err := p.Readouts[i].normalize(path); err != nil {
			return err
		}
	}
	for i := range p.Assays {
		a := &p.Assays[i]
		apath := path + "/" + a.AssayID
		if a.ValueType == "" {
			a.ValueType = ValueAC50
		}
		if !a.ValueType.valid() {
			return NewConfigError(apath, "invalid valueType %q", a.ValueType)
		}
		for j := range a.DataSources {
			if err := a.DataSources[j].normalize(apath); err != nil {
				return err
			}
		}
	}
	return nil
}

// Normalize fills enum defaults and validates enum membership.
func (t *ProtocolTemplate) Normalize(path string) error {
	if err := normalizeTargets(t.Targets, path); err != nil {
		return err
	}
	for i := range t.Readouts {
		if err := t.Readouts[i].normalize(path); err != nil {
			return err
		}
	}
	return nil
}

func (r *Readout) normalize(path string) error {
	rpath := path + "/" + r.ReadoutID
	if r.ReadoutMode == "" {
		r.ReadoutMode = ModeInhibition
	}
	if !r.ReadoutMode.valid() {
		return NewConfigError(rpath, "invalid readoutMode %q", r.ReadoutMode)
	}
	if r.ReadoutRange == nil {
		r.ReadoutRange = DefaultRange()
	}
	return normalizeTargets(r.Targets, rpath)
}

func (d *DataSource) normalize(path string) error {
	if d.SourceType == "" {
		d.SourceType = SourceScreener
	}
	if !d.SourceType.valid() {
		return NewConfigError(path, "invalid datasource sourceType %q", d.SourceType)
	}
	switch d.SourceType {
	case SourceScreener:
		if d.SessionID == "" || len(d.LayerIndices) == 0 {
			return NewConfigError(path, "Screener datasource requires sessionId and layerIndices")
		}
	case SourceCSV:
		if d.SourcePath == "" || d.SampleIDColumn == "" || len(d.ValueColumns) == 0 {
			return NewConfigError(path, "CSV datasource requires sourcePath, sampleIdColumn and valueColumns")
		}
	}
	return nil
}

func normalizeTargets(targets []Target, path string) error {
	for i := range targets {
		if targets[i].SourceType == "" {
			targets[i].SourceType = SourceUniProt
		}
		if !targets[i].SourceType.valid() {
			return NewConfigError(path, "invalid target sourceType %q", targets[i].SourceType)
		}
		if targets[i].AccessionID == "" {
			return NewConfigError(path, "target accessionId is required")
		}
	}
	return nil
}

// IsActive reports whether the attribute is active. Missing flags
// default to true; the flag is advisory metadata and does not exclude
// the attribute from resolution.
func (a *Attribute) IsActive() bool { return a.Active == nil || *a.Active }

// IsActive reports whether the template is active.
func (t *ProtocolTemplate) IsActive() bool { return t.Active == nil || *t.Active }

// ConfigError is a fatal configuration error carrying the identifier
// path (template/protocol/readout/assay) it was detected at.
type ConfigError struct {
	Path string
	Msg  string
}

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(path, format string, args ...any) *ConfigError {
	return &ConfigError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Path, e.Msg)
}
