package model

// SpecSubExperiment is one resolved sub-experiment key/value for a
// single readout of a Screener datasource.
type SpecSubExperiment struct {
	SubExpKey   string `json:"subExpKey"`
	SubExpValue string `json:"subExpValue"`
}

// SpecData is one resolved datasource entry of an AssaySpec: the slice
// of a DataSource that applies to a single readout.
type SpecData struct {
	SourceType     DataSourceType      `json:"sourceType"`
	SessionID      string              `json:"sessionId,omitempty"`
	LayerIndex     *int                `json:"layerIndex,omitempty"`
	SubExperiment  []SpecSubExperiment `json:"subExperiment,omitempty"`
	SourcePath     string              `json:"sourcePath,omitempty"`
	SampleIDColumn string              `json:"sampleIdColumn,omitempty"`
	ValueColumn    string              `json:"valueColumn,omitempty"`
	SampleMapping  string              `json:"sampleMapping,omitempty"`
}

// AssaySpec is one fully resolved, validated assay specification record.
// Records are produced fresh each run and never mutated after emission.
// Terms are globally unique term ids in lexicographic order; parameters
// are unique per (category, name) with the most specific level's value.
type AssaySpec struct {
	ProtocolID   string      `json:"protocolId"`
	AssayID      string      `json:"assayId"`
	ReadoutID    string      `json:"readoutId"`
	ReadoutMode  ReadoutMode `json:"readoutMode"`
	ReadoutRange *Range      `json:"readoutRange,omitempty"`
	ValueType    ValueType   `json:"valueType"`
	Targets      []Target    `json:"targets"`
	Terms        []string    `json:"terms"`
	Parameters   []Parameter `json:"parameters"`
	DataSources  []SpecData  `json:"datasources"`
}

// Path is the identifier path used when reporting errors on this record.
func (s *AssaySpec) Path() string {
	return s.ProtocolID + "/" + s.AssayID + "/" + s.ReadoutID
}
