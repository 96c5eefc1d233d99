package validate

import (
	"testing"

	"assayspec/internal/model"
)

func intp(i int) *int { return &i }

func validSpec() model.AssaySpec {
	return model.AssaySpec{
		ProtocolID:  "proto1",
		AssayID:     "assay1",
		ReadoutID:   "readout1",
		ReadoutMode: model.ModeInhibition,
		ValueType:   model.ValueAC50,
		Terms:       []string{},
		Parameters:  []model.Parameter{},
		DataSources: []model.SpecData{{
			SourceType: model.SourceScreener,
			SessionID:  "S-100",
			LayerIndex: intp(3),
		}},
	}
}

func TestSpec_Valid(t *testing.T) {
	s := validSpec()
	if err := Spec(&s); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
}

func TestSpec_VariantContract(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.AssaySpec)
	}{
		{"screener without sessionId", func(s *model.AssaySpec) {
			s.DataSources[0].SessionID = ""
		}},
		{"screener without layerIndex", func(s *model.AssaySpec) {
			s.DataSources[0].LayerIndex = nil
		}},
		{"screener with csv fields", func(s *model.AssaySpec) {
			s.DataSources[0].SourcePath = "data.csv"
		}},
		{"csv without valueColumn", func(s *model.AssaySpec) {
			s.DataSources[0] = model.SpecData{
				SourceType:     model.SourceCSV,
				SourcePath:     "data.csv",
				SampleIDColumn: "sample",
			}
		}},
		{"csv with screener fields", func(s *model.AssaySpec) {
			s.DataSources[0] = model.SpecData{
				SourceType:     model.SourceCSV,
				SourcePath:     "data.csv",
				SampleIDColumn: "sample",
				ValueColumn:    "ic50",
				SessionID:      "S-100",
			}
		}},
		{"unknown sourceType", func(s *model.AssaySpec) {
			s.DataSources[0].SourceType = "Excel"
		}},
		{"no datasources", func(s *model.AssaySpec) {
			s.DataSources = nil
		}},
		{"missing readoutId", func(s *model.AssaySpec) {
			s.ReadoutID = ""
		}},
		{"bad readoutMode", func(s *model.AssaySpec) {
			s.ReadoutMode = "sideways"
		}},
		{"bad valueType", func(s *model.AssaySpec) {
			s.ValueType = "IC99"
		}},
		{"sub-experiment without key", func(s *model.AssaySpec) {
			s.DataSources[0].SubExperiment = []model.SpecSubExperiment{{SubExpValue: "10"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSpec()
			tt.mutate(&s)
			if err := Spec(&s); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSpec_ValidCSV(t *testing.T) {
	s := validSpec()
	s.DataSources[0] = model.SpecData{
		SourceType:     model.SourceCSV,
		SourcePath:     "plates/run1.csv",
		SampleIDColumn: "compound_id",
		ValueColumn:    "inhibition_pct",
	}
	if err := Spec(&s); err != nil {
		t.Fatalf("valid CSV spec rejected: %v", err)
	}
}
