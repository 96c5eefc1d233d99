package model

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// TermRef is an ontology term declared in a configuration file as a
// [termId, termName] pair (YAML flow sequence).
type TermRef struct {
	ID   string
	Name string
}

// UnmarshalYAML decodes a two-element [id, name] sequence.
func (t *TermRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: term must be a [termId, termName] pair", value.Line)
	}
	if err := value.Content[0].Decode(&t.ID); err != nil {
		return fmt.Errorf("term id: %w", err)
	}
	if err := value.Content[1].Decode(&t.Name); err != nil {
		return fmt.Errorf("term name: %w", err)
	}
	return nil
}

// Parameter is one experimental parameter declared as a
// [category, name, value, unit] quadruple. Unit may be null. Value is
// heterogeneous (string, int or float). Identity for override purposes
// is the (Category, Name) pair, compared case-sensitively.
type Parameter struct {
	Category string
	Name     string
	Value    any
	Unit     *string
}

// Key is the dedup/override identity of the parameter.
func (p Parameter) Key() [2]string { return [2]string{p.Category, p.Name} }

// UnmarshalYAML decodes a four-element [category, name, value, unit]
// sequence; the unit slot may be null.
func (p *Parameter) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 4 {
		return fmt.Errorf("line %d: parameter must be a [category, name, value, unit] quadruple", value.Line)
	}
	if err := value.Content[0].Decode(&p.Category); err != nil {
		return fmt.Errorf("parameter category: %w", err)
	}
	if err := value.Content[1].Decode(&p.Name); err != nil {
		return fmt.Errorf("parameter name: %w", err)
	}
	if err := value.Content[2].Decode(&p.Value); err != nil {
		return fmt.Errorf("parameter value: %w", err)
	}
	if err := value.Content[3].Decode(&p.Unit); err != nil {
		return fmt.Errorf("parameter unit: %w", err)
	}
	return nil
}

// MarshalJSON emits the [category, name, value, unit] quadruple, the
// shape downstream tooling consumes from the artifacts.
func (p Parameter) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]any{p.Category, p.Name, p.Value, p.Unit})
}

// UnmarshalJSON decodes the [category, name, value, unit] quadruple.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) != 4 {
		return fmt.Errorf("parameter must be a [category, name, value, unit] quadruple")
	}
	if err := json.Unmarshal(raw[0], &p.Category); err != nil {
		return fmt.Errorf("parameter category: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Name); err != nil {
		return fmt.Errorf("parameter name: %w", err)
	}
	if err := json.Unmarshal(raw[2], &p.Value); err != nil {
		return fmt.Errorf("parameter value: %w", err)
	}
	if err := json.Unmarshal(raw[3], &p.Unit); err != nil {
		return fmt.Errorf("parameter unit: %w", err)
	}
	return nil
}

// Range is an inclusive [low, high] pair, e.g. a readout range.
type Range [2]float64

// UnmarshalYAML decodes a two-element numeric sequence.
func (r *Range) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: range must be a [low, high] pair", value.Line)
	}
	if err := value.Content[0].Decode(&r[0]); err != nil {
		return fmt.Errorf("range low: %w", err)
	}
	if err := value.Content[1].Decode(&r[1]); err != nil {
		return fmt.Errorf("range high: %w", err)
	}
	return nil
}

// DecodeStrict decodes a single YAML document into out, rejecting
// unknown fields at any nesting level.
func DecodeStrict(r io.Reader, out any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}
	// A second document in the same file is a config mistake, not data.
	var extra yaml.Node
	if err := dec.Decode(&extra); err != io.EOF {
		if err != nil {
			return err
		}
		return fmt.Errorf("unexpected second YAML document")
	}
	return nil
}
