package validate

import (
	"fmt"

	"assayspec/internal/model"
)

// Base-unit factors for molar and mass concentrations.
var (
	molFactor = map[string]float64{
		"M": 1, "mM": 1e-3, "uM": 1e-6, "nM": 1e-9, "pM": 1e-12,
	}
	gramFactor = map[string]float64{
		"g/L": 1, "mg/L": 1e-3, "ug/L": 1e-6, "ng/L": 1e-9, "pg/L": 1e-12,
		"mg/mL": 1, "ug/mL": 1e-3, "ng/mL": 1e-6, "pg/mL": 1e-9,
		"ug/uL": 1, "ng/uL": 1e-3, "pg/uL": 1e-6,
	}
	timeFactor = map[string]float64{
		"sec": 1, "min": 60, "hour": 3600, "day": 86400,
	}
)

// ConvertConcentration converts a concentration value to its base unit:
// M for molar units, g/L for mass units, ratio for v/v%, dilution and
// ratio notations.
func ConvertConcentration(value float64, unit string) (float64, string, error) {
	if value < 0 {
		return 0, "", fmt.Errorf("concentration must be non-negative, got %v", value)
	}
	if f, ok := molFactor[unit]; ok {
		return value * f, "M", nil
	}
	if f, ok := gramFactor[unit]; ok {
		return value * f, "g/L", nil
	}
	switch unit {
	case "v/v%":
		if value > 100 {
			return 0, "", fmt.Errorf("v/v%% must be in the range 0-100, got %v", value)
		}
		return value * 0.01, "ratio", nil
	case "dilution":
		if value < 1 {
			return 0, "", fmt.Errorf("dilution must be 1 or larger, got %v", value)
		}
		return 1.0 / value, "ratio", nil
	case "ratio":
		if value > 1 {
			return 0, "", fmt.Errorf("ratio must be 1 or smaller, got %v", value)
		}
		return value, "ratio", nil
	}
	return 0, "", fmt.Errorf("invalid concentration unit notation: %q", unit)
}

// ConvertTime converts a time value to seconds.
func ConvertTime(value float64, unit string) (float64, string, error) {
	if value < 0 {
		return 0, "", fmt.Errorf("time must be non-negative, got %v", value)
	}
	f, ok := timeFactor[unit]
	if !ok {
		return 0, "", fmt.Errorf("invalid time unit notation: %q", unit)
	}
	return value * f, "sec", nil
}

// NormalizeParameter converts a typed parameter to its base unit and
// enforces the per-category value ranges (pH in [0,14], wavelength in
// [200,900] nm, concentrations non-negative). Parameters of categories
// without a normalization rule pass through unchanged.
func NormalizeParameter(p model.Parameter) (model.Parameter, error) {
	switch p.Category {
	case "concentration":
		v, ok := numeric(p.Value)
		if !ok {
			return p, fmt.Errorf("parameter %s/%s: concentration value %v is not numeric", p.Category, p.Name, p.Value)
		}
		if p.Unit == nil {
			return p, fmt.Errorf("parameter %s/%s: concentration requires a unit", p.Category, p.Name)
		}
		nv, nu, err := ConvertConcentration(v, *p.Unit)
		if err != nil {
			return p, fmt.Errorf("parameter %s/%s: %w", p.Category, p.Name, err)
		}
		p.Value = nv
		p.Unit = &nu
	case "time":
		v, ok := numeric(p.Value)
		if !ok {
			return p, fmt.Errorf("parameter %s/%s: time value %v is not numeric", p.Category, p.Name, p.Value)
		}
		if p.Unit == nil {
			return p, fmt.Errorf("parameter %s/%s: time requires a unit", p.Category, p.Name)
		}
		nv, nu, err := ConvertTime(v, *p.Unit)
		if err != nil {
			return p, fmt.Errorf("parameter %s/%s: %w", p.Category, p.Name, err)
		}
		p.Value = nv
		p.Unit = &nu
	case "pH":
		v, ok := numeric(p.Value)
		if !ok {
			return p, fmt.Errorf("parameter %s/%s: pH value %v is not numeric", p.Category, p.Name, p.Value)
		}
		if v < 0 || v > 14 {
			return p, fmt.Errorf("parameter %s/%s: pH %v out of range [0,14]", p.Category, p.Name, v)
		}
	case "wavelength":
		v, ok := numeric(p.Value)
		if !ok {
			return p, fmt.Errorf("parameter %s/%s: wavelength value %v is not numeric", p.Category, p.Name, p.Value)
		}
		if p.Unit == nil || *p.Unit != "nm" {
			return p, fmt.Errorf("parameter %s/%s: wavelength must be given in nm", p.Category, p.Name)
		}
		if v < 200 || v > 900 {
			return p, fmt.Errorf("parameter %s/%s: wavelength %v nm out of range [200,900]", p.Category, p.Name, v)
		}
	}
	return p, nil
}

// numeric widens the YAML scalar types a parameter value may decode to.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
