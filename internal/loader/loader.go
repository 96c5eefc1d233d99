// Package loader reads assay configuration directories into typed,
// structurally validated registries. Files are visited in sorted name
// order so every run sees protocols in the same order; files whose
// name starts with "_" are skipped as examples or drafts.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"assayspec/internal/model"
)

// LoadProtocols loads every protocol file in dir. The protocol id is
// the file name without extension. Duplicate readout or assay ids
// inside a protocol are configuration errors.
func LoadProtocols(dir string, log *zap.Logger) ([]model.Protocol, error) {
	paths, err := specFiles(dir)
	if err != nil {
		return nil, err
	}
	protocols := make([]model.Protocol, 0, len(paths))
	for _, path := range paths {
		log.Info("loading protocol", zap.String("file", filepath.Base(path)))
		var p model.Protocol
		if err := decodeFile(path, &p); err != nil {
			return nil, err
		}
		p.ProtocolID = stem(path)
		if err := p.Normalize(p.ProtocolID); err != nil {
			return nil, err
		}
		if err := checkProtocolIDs(&p); err != nil {
			return nil, err
		}
		protocols = append(protocols, p)
	}
	return protocols, nil
}

// LoadTemplates loads every template file in dir into a registry keyed
// by templateId. A templateId declared twice, in one file or across
// files, is a configuration error.
func LoadTemplates(dir string, log *zap.Logger) (map[string]model.ProtocolTemplate, error) {
	paths, err := specFiles(dir)
	if err != nil {
		return nil, err
	}
	templates := make(map[string]model.ProtocolTemplate)
	for _, path := range paths {
		log.Info("loading templates", zap.String("file", filepath.Base(path)))
		var set model.TemplateSet
		if err := decodeFile(path, &set); err != nil {
			return nil, err
		}
		for _, tmpl := range set.Items {
			if tmpl.TemplateID == "" {
				return nil, model.NewConfigError(filepath.Base(path), "template with empty templateId")
			}
			if _, dup := templates[tmpl.TemplateID]; dup {
				return nil, model.NewConfigError(tmpl.TemplateID, "duplicate templateId")
			}
			if err := tmpl.Normalize(tmpl.TemplateID); err != nil {
				return nil, err
			}
			templates[tmpl.TemplateID] = tmpl
		}
	}
	return templates, nil
}

// LoadAttributes loads every attribute file in dir into a registry
// keyed by attributeId. Duplicate attributeIds are configuration errors.
func LoadAttributes(dir string, log *zap.Logger) (map[string]model.Attribute, error) {
	paths, err := specFiles(dir)
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]model.Attribute)
	for _, path := range paths {
		log.Info("loading attributes", zap.String("file", filepath.Base(path)))
		var set model.AttributeSet
		if err := decodeFile(path, &set); err != nil {
			return nil, err
		}
		for _, attr := range set.Items {
			if attr.AttributeID == "" {
				return nil, model.NewConfigError(filepath.Base(path), "attribute with empty attributeId")
			}
			if _, dup := attrs[attr.AttributeID]; dup {
				return nil, model.NewConfigError(attr.AttributeID, "duplicate attributeId")
			}
			attrs[attr.AttributeID] = attr
		}
	}
	return attrs, nil
}

func specFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading spec dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "_") || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

func decodeFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := model.DecodeStrict(f, out); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func checkProtocolIDs(p *model.Protocol) error {
	seen := make(map[string]bool, len(p.Readouts))
	for _, r := range p.Readouts {
		if r.ReadoutID == "" {
			return model.NewConfigError(p.ProtocolID, "readout with empty readoutId")
		}
		if seen[r.ReadoutID] {
			return model.NewConfigError(p.ProtocolID+"/"+r.ReadoutID, "duplicate readoutId")
		}
		seen[r.ReadoutID] = true
	}
	seen = make(map[string]bool, len(p.Assays))
	for _, a := range p.Assays {
		if a.AssayID == "" {
			return model.NewConfigError(p.ProtocolID, "assay with empty assayId")
		}
		if seen[a.AssayID] {
			return model.NewConfigError(p.ProtocolID+"/"+a.AssayID, "duplicate assayId")
		}
		seen[a.AssayID] = true
	}
	return nil
}
