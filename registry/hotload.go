// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package registry

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// fileVariant mirrors Variant but with exported, serialization-friendly
// field names matching the JSON/YAML hot-load schema. Kept distinct from
// Variant so the in-code struct is free to
// evolve without being pinned to a wire format.
type fileVariant struct {
	Operation     string         `json:"operation" yaml:"operation"`
	Variant       string         `json:"variant" yaml:"variant"`
	ShaderFile    string         `json:"shaderFile" yaml:"shaderFile"`
	EntryPoint    string         `json:"entryPoint" yaml:"entryPoint"`
	WorkgroupSize [3]uint32      `json:"workgroupSize" yaml:"workgroupSize"`
	Requires      []string       `json:"requires,omitempty" yaml:"requires,omitempty"`
	OutputDType   string         `json:"outputDType,omitempty" yaml:"outputDType,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type fileRegistry struct {
	Variants []fileVariant `json:"variants" yaml:"variants"`
}

func fromFileVariant(fv fileVariant) Variant {
	return Variant{
		Operation:     fv.Operation,
		Variant:       fv.Variant,
		ShaderFile:    fv.ShaderFile,
		EntryPoint:    fv.EntryPoint,
		WorkgroupSize: fv.WorkgroupSize,
		Requires:      fv.Requires,
		OutputDType:   fv.OutputDType,
		Metadata:      fv.Metadata,
	}
}

// LoadJSON parses a hot-load registry document. The returned Registry is
// empty of built-ins; callers
// typically Merge it into a registry first and NewStatic() after it, so
// the compiled-in table still wins on key collision.
func LoadJSON(data []byte) (*Registry, error) {
	var doc fileRegistry
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse json: %w", err)
	}
	return fromFileRegistry(doc)
}

// LoadYAML parses a hot-load registry document in YAML form, using the
// same schema as LoadJSON.
func LoadYAML(data []byte) (*Registry, error) {
	var doc fileRegistry
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse yaml: %w", err)
	}
	return fromFileRegistry(doc)
}

func fromFileRegistry(doc fileRegistry) (*Registry, error) {
	r := New()
	for i, fv := range doc.Variants {
		if err := r.Register(fromFileVariant(fv)); err != nil {
			return nil, fmt.Errorf("registry: entry %d: %w", i, err)
		}
	}
	return r, nil
}

// MarshalJSON renders the registry's current contents back to the
// hot-load schema, so the effective table (static plus any merged overlay)
// can be dumped for inspection and loaded again with LoadJSON.
func (r *Registry) MarshalJSON() ([]byte, error) {
	doc := fileRegistry{}
	for _, op := range r.Operations() {
		for _, name := range r.Variants(op) {
			v, _ := r.Lookup(op, name)
			doc.Variants = append(doc.Variants, fileVariant{
				Operation:     v.Operation,
				Variant:       v.Variant,
				ShaderFile:    v.ShaderFile,
				EntryPoint:    v.EntryPoint,
				WorkgroupSize: v.WorkgroupSize,
				Requires:      v.Requires,
				OutputDType:   v.OutputDType,
				Metadata:      v.Metadata,
			})
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}
