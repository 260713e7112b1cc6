// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package kernelpath implements the kernel path resolver: a named, declarative
// description of the preferred kernel per role per layer, loadable from a
// built-in preset, a literal caller-supplied Path, or a JSON/YAML file.
package kernelpath

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step is one declarative kernel selection.
type Step struct {
	Op        string         `json:"op" yaml:"op"`
	Kernel    string         `json:"kernel" yaml:"kernel"`
	Entry     string         `json:"entry,omitempty" yaml:"entry,omitempty"`
	Weights   string         `json:"weights,omitempty" yaml:"weights,omitempty"`
	Constants map[string]any `json:"constants,omitempty" yaml:"constants,omitempty"`
}

// Section holds one phase's ordered step list.
type Section struct {
	Steps []Step `json:"steps" yaml:"steps"`
}

// LayerOverride replaces a phase's steps for a specific set of layer
// indices.
type LayerOverride struct {
	Layers []int  `json:"layers" yaml:"layers"`
	Steps  []Step `json:"steps" yaml:"steps"`
}

func (o LayerOverride) appliesTo(layerIdx int) bool {
	for _, l := range o.Layers {
		if l == layerIdx {
			return true
		}
	}
	return false
}

// Path is a named end-to-end kernel selection plan.
type Path struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Description    string          `json:"description,omitempty" yaml:"description,omitempty"`
	Decode         Section         `json:"decode" yaml:"decode"`
	Prefill        *Section        `json:"prefill,omitempty" yaml:"prefill,omitempty"`
	PreLayer       []Step          `json:"preLayer,omitempty" yaml:"preLayer,omitempty"`
	PostLayer      []Step          `json:"postLayer,omitempty" yaml:"postLayer,omitempty"`
	Sampling       []Step          `json:"sampling,omitempty" yaml:"sampling,omitempty"`
	LayerOverrides []LayerOverride `json:"layerOverrides,omitempty" yaml:"layerOverrides,omitempty"`
}

// Phase selects decode vs. prefill steps.
type Phase int

const (
	PhaseDecode Phase = iota
	PhasePrefill
)

// section returns the phase's step list, falling back to Decode when
// Prefill is unset (a path need not declare a separate prefill section).
func (p Path) section(phase Phase) Section {
	if phase == PhasePrefill && p.Prefill != nil {
		return *p.Prefill
	}
	return p.Decode
}

// GetLayerSteps returns phase's steps for layerIdx, with any matching
// LayerOverride's steps substituted in.
func (p Path) GetLayerSteps(layerIdx int, phase Phase) []Step {
	for _, o := range p.LayerOverrides {
		if o.appliesTo(layerIdx) {
			return o.Steps
		}
	}
	return p.section(phase).Steps
}

// Source tags where an active kernel path setting came from.
type Source int

const (
	SourceNone Source = iota
	SourceAuto
	SourceRuntime
	SourceProfile
	SourceManifest
)

func (s Source) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceAuto:
		return "auto"
	case SourceRuntime:
		return "runtime"
	case SourceProfile:
		return "profile"
	case SourceManifest:
		return "manifest"
	default:
		return "unknown"
	}
}

// Strict reports whether this source engages strict kernel-path
// validation. Source priority runs manifest highest, then profile, then
// runtime, then auto, then none; manifest outranking profile and runtime
// reflects that an operator-authored deployment manifest is the most
// deliberate override, a profile derived from a detected platform file
// is next, and a one-off runtime call is the least durable of the three
// strict sources.
func (s Source) Strict() bool {
	return s == SourceManifest || s == SourceProfile || s == SourceRuntime
}

// ParseSource parses the canonical source tag strings.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(s) {
	case "none":
		return SourceNone, nil
	case "auto":
		return SourceAuto, nil
	case "manifest":
		return SourceManifest, nil
	case "profile":
		return SourceProfile, nil
	case "runtime":
		return SourceRuntime, nil
	default:
		return SourceNone, fmt.Errorf("kernelpath: unknown source tag %q", s)
	}
}

// RoleAliases maps a caller-supplied weight role to the ordered list of
// step names to try when looking it up in a path's step list. Different
// path presets name fused vs. split projections differently (a path that
// fuses q/k/v into one step names it qkv_proj; one that doesn't falls
// back to q_proj), so role resolution tries each alias in order and takes
// the first step list match.
var RoleAliases = map[string][]string{
	"q_proj":   {"q_proj"},
	"k_proj":   {"k_proj"},
	"v_proj":   {"v_proj"},
	"qkv_proj": {"qkv_proj", "q_proj"},
	"o_proj":   {"o_proj", "out_proj"},
	"ffn_up":   {"ffn_up", "up_proj"},
	"ffn_gate": {"ffn_gate", "gate_proj"},
	"ffn_down": {"ffn_down", "down_proj"},
	"lm_head":  {"lm_head"},
	"embed":    {"embed", "tok_embeddings"},
}

// FindStepForRole searches steps for the first entry whose Op or Kernel
// matches one of role's aliases, trying alias names in priority order.
func FindStepForRole(steps []Step, role string) (Step, bool) {
	candidates, ok := RoleAliases[role]
	if !ok {
		candidates = []string{role}
	}
	for _, name := range candidates {
		for _, s := range steps {
			if s.Op == name || s.Kernel == name {
				return s, true
			}
		}
	}
	return Step{}, false
}

// Resolver resolves a path identifier (built-in preset id, registered
// alias, or literal Path) and tracks the process-wide active path
// setting. A host normally owns one Resolver per Engine rather than a
// hidden global.
type Resolver struct {
	presets map[string]Path
	aliases map[string]string

	active       Path
	activeSource Source
	hasActive    bool
}

// NewResolver constructs a Resolver pre-populated with the built-in
// presets and semantic aliases.
func NewResolver() *Resolver {
	r := &Resolver{presets: make(map[string]Path), aliases: make(map[string]string)}
	for _, p := range builtinPresets() {
		r.presets[p.ID] = p
	}
	for alias, target := range builtinAliases() {
		r.aliases[alias] = target
	}
	return r
}

// RegisterPreset adds or replaces a named preset, for hosts that want to
// extend the built-in set (e.g. from a hot-loaded platform file).
func (r *Resolver) RegisterPreset(p Path) {
	r.presets[p.ID] = p
}

// RegisterAlias maps a semantic alias name to a preset id.
func (r *Resolver) RegisterAlias(alias, targetID string) {
	r.aliases[alias] = targetID
}

// Resolve returns the Path for identifier, following at most one alias
// hop.
func (r *Resolver) Resolve(identifier string) (Path, error) {
	id := identifier
	if target, ok := r.aliases[id]; ok {
		id = target
	}
	p, ok := r.presets[id]
	if !ok {
		return Path{}, fmt.Errorf("kernelpath: unknown path identifier %q", identifier)
	}
	return p, nil
}

// SetActive sets the active path, honoring source priority: a call with a
// lower-priority source than the currently active one is rejected.
// Returns whether the call took effect.
func (r *Resolver) SetActive(p Path, source Source) bool {
	if r.hasActive && source < r.activeSource {
		return false
	}
	r.active, r.activeSource, r.hasActive = p, source, true
	return true
}

// SetActiveByID resolves identifier and calls SetActive.
func (r *Resolver) SetActiveByID(identifier string, source Source) (bool, error) {
	p, err := r.Resolve(identifier)
	if err != nil {
		return false, err
	}
	return r.SetActive(p, source), nil
}

// ClearActive resets the active path to "none set".
func (r *Resolver) ClearActive() {
	r.active, r.activeSource, r.hasActive = Path{}, SourceNone, false
}

// Active returns the current active path and its source. ok is false when
// no path has ever been set.
func (r *Resolver) Active() (Path, Source, bool) {
	return r.active, r.activeSource, r.hasActive
}

// LoadFile reads a Path from a JSON or YAML file, sniffing the form from
// the extension.
func LoadFile(path string) (Path, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Path{}, fmt.Errorf("kernelpath: read %s: %w", path, err)
	}
	var p Path
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return Path{}, fmt.Errorf("kernelpath: parse yaml %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &p); err != nil {
			return Path{}, fmt.Errorf("kernelpath: parse json %s: %w", path, err)
		}
	}
	if p.ID == "" {
		return Path{}, fmt.Errorf("kernelpath: %s: missing required \"id\" field", path)
	}
	return p, nil
}
