// Package validate enforces the final structural contract on resolved
// assay specification records and normalizes typed parameter values to
// their base units.
package validate

import (
	"assayspec/internal/model"
)

// Spec checks one finalized AssaySpec against the output contract:
// required identifiers, enum membership and the per-variant datasource
// field requirements. Unit-range checks happen in NormalizeParameter,
// not here.
func Spec(s *model.AssaySpec) error {
	path := s.Path()
	if s.ProtocolID == "" || s.AssayID == "" || s.ReadoutID == "" {
		return model.NewConfigError(path, "protocolId, assayId and readoutId are required")
	}
	switch s.ReadoutMode {
	case model.ModeInhibition, model.ModeActivation:
	default:
		return model.NewConfigError(path, "invalid readoutMode %q", s.ReadoutMode)
	}
	switch s.ValueType {
	case model.ValueAC50, model.ValueZScore, model.ValueRZScore, model.ValuePercentage, model.ValueCategory:
	default:
		return model.NewConfigError(path, "invalid valueType %q", s.ValueType)
	}
	if len(s.DataSources) == 0 {
		return model.NewConfigError(path, "record has no datasources")
	}
	for i := range s.DataSources {
		if err := specData(&s.DataSources[i], path); err != nil {
			return err
		}
	}
	return nil
}

func specData(d *model.SpecData, path string) error {
	switch d.SourceType {
	case model.SourceScreener:
		if d.SessionID == "" || d.LayerIndex == nil {
			return model.NewConfigError(path, "Screener entry requires sessionId and layerIndex")
		}
		if d.SourcePath != "" || d.SampleIDColumn != "" || d.ValueColumn != "" {
			return model.NewConfigError(path, "Screener entry carries CSV fields")
		}
		for _, se := range d.SubExperiment {
			if se.SubExpKey == "" {
				return model.NewConfigError(path, "sub-experiment entry without subExpKey")
			}
		}
	case model.SourceCSV:
		if d.SourcePath == "" || d.SampleIDColumn == "" || d.ValueColumn == "" {
			return model.NewConfigError(path, "CSV entry requires sourcePath, sampleIdColumn and valueColumn")
		}
		if d.SessionID != "" || d.LayerIndex != nil || len(d.SubExperiment) > 0 {
			return model.NewConfigError(path, "CSV entry carries Screener fields")
		}
	default:
		return model.NewConfigError(path, "invalid datasource sourceType %q", d.SourceType)
	}
	return nil
}
