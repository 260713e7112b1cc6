// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package registry implements the kernel variant registry: the static
// table mapping each logical operation to its pre-authored shader
// variants. The table is a plain Go map
// literal (an exhaustive static table, not a dynamically built dispatch
// structure) keyed by a small interned Key struct rather than a raw
// "operation:variant" string; the string form is
// kept only at the JSON hot-load boundary.
//
// The registry is the sole source of truth for valid (operation, variant)
// pairs — launchers in package kernels never hard-code a
// shader file path; they always resolve one through here.
package registry

import (
	"fmt"
	"sort"
)

// Key identifies a single registered variant. It is comparable so it can
// key maps directly.
type Key struct {
	Operation string
	Variant   string
}

func (k Key) String() string { return k.Operation + ":" + k.Variant }

// Variant is one pre-authored shader entry point for a logical operation.
type Variant struct {
	Operation     string
	Variant       string
	ShaderFile    string
	EntryPoint    string
	WorkgroupSize [3]uint32
	Requires      []string
	OutputDType   string // empty means "infer from operands"
	Metadata      map[string]any
}

func (v Variant) Key() Key { return Key{Operation: v.Operation, Variant: v.Variant} }

// MetaInt reads an integer-valued metadata entry, returning (0, false) if
// absent or not an int. Covers variantMetadata fields like colsPerWg,
// tileM, maxKVLen, outputBinding.
func (v Variant) MetaInt(key string) (int, bool) {
	raw, ok := v.Metadata[key]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// MetaIntOr is MetaInt with a fallback default.
func (v Variant) MetaIntOr(key string, def int) int {
	if n, ok := v.MetaInt(key); ok {
		return n
	}
	return def
}

// Registry is the per-operation variant table. The zero value is not
// usable; construct with New or NewStatic.
type Registry struct {
	variants map[Key]Variant
	byOp     map[string][]string // operation -> variant names, insertion order
}

// New returns an empty Registry. Used by tests and by JSON hot-loading
// before merging in entries; production code normally starts from
// NewStatic.
func New() *Registry {
	return &Registry{
		variants: make(map[Key]Variant),
		byOp:     make(map[string][]string),
	}
}

// Register adds or replaces a variant. Returns an error if Operation or
// Variant is empty, or ShaderFile/EntryPoint is empty (every registered
// variant must be dispatchable).
func (r *Registry) Register(v Variant) error {
	if v.Operation == "" || v.Variant == "" {
		return fmt.Errorf("registry: operation and variant name are required")
	}
	if v.ShaderFile == "" || v.EntryPoint == "" {
		return fmt.Errorf("registry: %s: shaderFile and entryPoint are required", v.Key())
	}
	key := v.Key()
	if _, exists := r.variants[key]; !exists {
		r.byOp[v.Operation] = append(r.byOp[v.Operation], v.Variant)
	}
	r.variants[key] = v
	return nil
}

// MustRegister is Register but panics on error; used for the built-in
// static table where every entry is a compile-time constant.
func (r *Registry) MustRegister(v Variant) {
	if err := r.Register(v); err != nil {
		panic(err)
	}
}

// Lookup returns the variant for (operation, variant), or ok=false if not
// registered — the single place the "exists in registry" check of
// override validation is implemented.
func (r *Registry) Lookup(operation, variant string) (Variant, bool) {
	v, ok := r.variants[Key{Operation: operation, Variant: variant}]
	return v, ok
}

// Variants returns the variant names registered for an operation, in
// registration order.
func (r *Registry) Variants(operation string) []string {
	names := r.byOp[operation]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Operations returns every operation name with at least one registered
// variant, sorted.
func (r *Registry) Operations() []string {
	ops := make([]string, 0, len(r.byOp))
	for op := range r.byOp {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Describe renders a human-readable listing of every registered variant
// for operation, including required features and workgroup size — used by
// `cmd/llmkernel-bench variants`.
func (r *Registry) Describe(operation string) string {
	var out string
	for _, name := range r.Variants(operation) {
		v, _ := r.Lookup(operation, name)
		out += fmt.Sprintf("%-28s shader=%-32s entry=%-20s wg=(%d,%d,%d) requires=%v\n",
			v.Key(), v.ShaderFile, v.EntryPoint,
			v.WorkgroupSize[0], v.WorkgroupSize[1], v.WorkgroupSize[2], v.Requires)
	}
	return out
}

// Merge copies every variant from other into r, overwriting on key
// collision. Used to layer a hot-loaded JSON registry over the static
// in-code table for profile-driven deployments — though per
// the static in-code table remains authoritative at runtime, so production
// callers merge the JSON registry first and the static table second.
func (r *Registry) Merge(other *Registry) {
	for _, v := range other.variants {
		r.MustRegister(v)
	}
}
