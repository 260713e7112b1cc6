// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlatformDetection is the adapter-info match block of a platform file.
// Empty fields match anything; non-empty fields match case-insensitively
// as substrings, since adapter description strings vary wildly in casing
// and padding across drivers.
type PlatformDetection struct {
	Vendor       string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Architecture string `json:"architecture,omitempty" yaml:"architecture,omitempty"`
	Device       string `json:"device,omitempty" yaml:"device,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
}

func (d PlatformDetection) empty() bool {
	return d.Vendor == "" && d.Architecture == "" && d.Device == "" && d.Description == ""
}

// AdapterStrings carries the adapter-info fields platform detection runs
// against, decoupled from the GPU binding's own AdapterInfo type so this
// package stays free of a wgpu import.
type AdapterStrings struct {
	Vendor       string
	Architecture string
	Device       string
	Description  string
}

// Platform is one platform-override file: a
// detection block plus per-operation kernel overrides and memory hints for
// the matched hardware. Platform files pair with a hot-load registry
// document.
type Platform struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Detection PlatformDetection `json:"detection" yaml:"detection"`
	IsGeneric bool              `json:"isGeneric,omitempty" yaml:"isGeneric,omitempty"`

	// KernelOverrides maps an operation name to the variant the platform
	// prefers for it, consumed by selectors as a platform-sourced override.
	KernelOverrides map[string]string `json:"kernelOverrides,omitempty" yaml:"kernelOverrides,omitempty"`

	// MemoryHints carries named byte quantities (e.g. preferred pool caps)
	// a host may apply to its buffer-pool configuration.
	MemoryHints map[string]uint64 `json:"memoryHints,omitempty" yaml:"memoryHints,omitempty"`
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// Matches reports whether this platform's detection block matches info.
// Generic platforms never match directly; they are the fallback
// MatchPlatform applies when nothing else matched. A non-generic platform
// with an empty detection block matches nothing, so a mis-edited file
// cannot silently become a catch-all.
func (p Platform) Matches(info AdapterStrings) bool {
	if p.IsGeneric || p.Detection.empty() {
		return false
	}
	d := p.Detection
	if d.Vendor != "" && !containsFold(info.Vendor, d.Vendor) {
		return false
	}
	if d.Architecture != "" && !containsFold(info.Architecture, d.Architecture) {
		return false
	}
	if d.Device != "" && !containsFold(info.Device, d.Device) {
		return false
	}
	if d.Description != "" && !containsFold(info.Description, d.Description) {
		return false
	}
	return true
}

// MatchPlatform picks the platform for info: the first non-generic match
// in slice order wins, else the first generic entry. ok is false
// only when there is no match and no generic fallback.
func MatchPlatform(platforms []Platform, info AdapterStrings) (Platform, bool) {
	for _, p := range platforms {
		if p.Matches(info) {
			return p, true
		}
	}
	for _, p := range platforms {
		if p.IsGeneric {
			return p, true
		}
	}
	return Platform{}, false
}

// LoadPlatformJSON parses one platform document.
func LoadPlatformJSON(data []byte) (Platform, error) {
	var p Platform
	if err := json.Unmarshal(data, &p); err != nil {
		return Platform{}, fmt.Errorf("registry: parse platform json: %w", err)
	}
	return validatePlatform(p)
}

// LoadPlatformYAML parses one platform document in YAML form.
func LoadPlatformYAML(data []byte) (Platform, error) {
	var p Platform
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Platform{}, fmt.Errorf("registry: parse platform yaml: %w", err)
	}
	return validatePlatform(p)
}

// LoadPlatformFile reads a platform document from disk, sniffing JSON vs.
// YAML from the extension the way kernelpath.LoadFile does.
func LoadPlatformFile(path string) (Platform, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Platform{}, fmt.Errorf("registry: read platform file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadPlatformYAML(raw)
	default:
		return LoadPlatformJSON(raw)
	}
}

func validatePlatform(p Platform) (Platform, error) {
	if p.ID == "" {
		return Platform{}, fmt.Errorf("registry: platform document missing required \"id\" field")
	}
	if !p.IsGeneric && p.Detection.empty() {
		return Platform{}, fmt.Errorf("registry: platform %q is not generic but has an empty detection block", p.ID)
	}
	return p, nil
}
