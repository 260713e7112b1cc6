// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package autotune implements the micro-benchmarking auto-tuner: for a
// given (kernel, input shape), generate workgroup-size candidates
// filtered by device limits, benchmark each with a warmup then timed
// iterations, and persist the best candidate under a per-device key.
//
// Tuning is never on the hot path; results are consumed by launchers
// only through the cache. This package has no dependency on package
// kernels; it drives an injected BenchFunc supplied by whatever host
// wires a concrete kernel's dispatch into it (normally package runtime),
// keeping the tuner itself kernel-agnostic.
package autotune

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gogpu/llmkernel"
)

// WorkgroupCandidate is one workgroup-size point in the search space.
type WorkgroupCandidate struct {
	Size [3]uint32
}

func (c WorkgroupCandidate) invocations() uint32 { return c.Size[0] * c.Size[1] * c.Size[2] }

// Candidates1D returns the 1-D workgroup candidate set.
func Candidates1D() []WorkgroupCandidate {
	return []WorkgroupCandidate{
		{Size: [3]uint32{64, 1, 1}},
		{Size: [3]uint32{128, 1, 1}},
		{Size: [3]uint32{256, 1, 1}},
		{Size: [3]uint32{512, 1, 1}},
	}
}

// Candidates2D returns the 2-D candidate set: every combination of
// {8,16,32} on each axis.
func Candidates2D() []WorkgroupCandidate {
	sizes := []uint32{8, 16, 32}
	out := make([]WorkgroupCandidate, 0, len(sizes)*len(sizes))
	for _, x := range sizes {
		for _, y := range sizes {
			out = append(out, WorkgroupCandidate{Size: [3]uint32{x, y, 1}})
		}
	}
	return out
}

// FilterByLimits drops candidates that exceed the device's per-axis
// workgroup size limits or its total invocations-per-workgroup limit.
func FilterByLimits(candidates []WorkgroupCandidate, limits llmkernel.DeviceLimits) []WorkgroupCandidate {
	out := make([]WorkgroupCandidate, 0, len(candidates))
	for _, c := range candidates {
		if limits.MaxComputeWorkgroupSizeX != 0 && c.Size[0] > limits.MaxComputeWorkgroupSizeX {
			continue
		}
		if limits.MaxComputeWorkgroupSizeY != 0 && c.Size[1] > limits.MaxComputeWorkgroupSizeY {
			continue
		}
		if limits.MaxComputeWorkgroupSizeZ != 0 && c.Size[2] > limits.MaxComputeWorkgroupSizeZ {
			continue
		}
		if limits.MaxComputeInvocationsPerWorkgroup != 0 && c.invocations() > limits.MaxComputeInvocationsPerWorkgroup {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Result is a persisted tuning outcome.
type Result struct {
	OptimalWorkgroupSize [3]uint32 `json:"optimalWorkgroupSize"`
	OptimalTileSize      int       `json:"optimalTileSize"`
	Throughput           float64   `json:"throughput"`
	TimeMs               float64   `json:"timeMs"`
	DeviceInfo           string    `json:"deviceInfo"`
}

// Options configures a single TuneKernel call.
type Options struct {
	Warmup      int
	Iterations  int
	ForceRetune bool
	// TileSize is recorded verbatim into the winning Result; the tuner
	// itself only searches over workgroup size, matching the
	// candidate-generation rule (tile size is a per-kernel concept the
	// BenchFunc closure already bakes in via its own candidate encoding
	// when relevant, e.g. matmul's tileM).
	TileSize int
}

// DefaultOptions returns {warmup: 3, iterations: 10}.
func DefaultOptions() Options {
	return Options{Warmup: 3, Iterations: 10}
}

// BenchFunc runs one untimed-or-timed dispatch of candidate against
// synthetic inputs sized for the kernel/shape under tune, returning the
// element or FLOP count the dispatch processed (used to derive
// throughput). The caller is responsible for awaiting GPU completion
// before returning, so elapsed wall-clock time reflects true kernel
// latency.
type BenchFunc func(ctx context.Context, candidate WorkgroupCandidate) (workDone float64, err error)

// CandidateSource selects which candidate set (1-D or 2-D) a kernel
// searches over.
type CandidateSource func() []WorkgroupCandidate

// Key identifies one (kernel, input shape) tuning target; the store key
// is (kernelName, JSON(inputSizes)).
type Key struct {
	KernelName string
	InputSizes []int64
}

func (k Key) storeKey() string {
	sizes, _ := json.Marshal(k.InputSizes)
	return k.KernelName + "|" + string(sizes)
}

// Store persists Results under a device signature.
type Store interface {
	Get(deviceSig string, key Key) (Result, bool, error)
	Put(deviceSig string, key Key, result Result) error
}

// Tuner is the process-wide (here: per-Engine) auto-tuner.
type Tuner struct {
	store      Store
	deviceSig  string
	deviceInfo string
}

// New constructs a Tuner persisting results for deviceSig (see
// llmkernel.DeviceSignature) through store.
func New(store Store, deviceSig, deviceInfo string) *Tuner {
	return &Tuner{store: store, deviceSig: deviceSig, deviceInfo: deviceInfo}
}

// TuneKernel is the tuning entry point: on a cache hit (and !ForceRetune),
// return the persisted Result; on a miss, generate candidates via
// candidateSource, filter by limits, benchmark each with warmup+timed
// iterations, and persist the candidate with the lowest median time.
func (t *Tuner) TuneKernel(ctx context.Context, key Key, limits llmkernel.DeviceLimits, candidateSource CandidateSource, opts Options, bench BenchFunc) (Result, error) {
	if !opts.ForceRetune {
		if cached, ok, err := t.store.Get(t.deviceSig, key); err != nil {
			return Result{}, fmt.Errorf("autotune: load cached result: %w", err)
		} else if ok {
			return cached, nil
		}
	}

	candidates := FilterByLimits(candidateSource(), limits)
	if len(candidates) == 0 {
		return Result{}, fmt.Errorf("autotune: %s: no workgroup candidate satisfies device limits", key.KernelName)
	}

	warmup, iterations := opts.Warmup, opts.Iterations
	if warmup < 0 {
		warmup = 0
	}
	if iterations < 1 {
		iterations = 1
	}

	var best Result
	bestMedian := -1.0
	for _, c := range candidates {
		for i := 0; i < warmup; i++ {
			if _, err := bench(ctx, c); err != nil {
				return Result{}, fmt.Errorf("autotune: %s: warmup candidate %v: %w", key.KernelName, c.Size, err)
			}
		}

		samples := make([]float64, 0, iterations)
		var workDone float64
		unpin := pinCurrentThread()
		for i := 0; i < iterations; i++ {
			start := now()
			var err error
			workDone, err = bench(ctx, c)
			if err != nil {
				unpin()
				return Result{}, fmt.Errorf("autotune: %s: timed candidate %v: %w", key.KernelName, c.Size, err)
			}
			samples = append(samples, now().Sub(start).Seconds()*1000)
		}
		unpin()

		medianMs := median(samples)
		if bestMedian < 0 || medianMs < bestMedian {
			bestMedian = medianMs
			throughput := 0.0
			if medianMs > 0 {
				throughput = workDone / (medianMs / 1000)
			}
			best = Result{
				OptimalWorkgroupSize: c.Size,
				OptimalTileSize:      opts.TileSize,
				Throughput:           throughput,
				TimeMs:               medianMs,
				DeviceInfo:           t.deviceInfo,
			}
		}
	}

	if err := t.store.Put(t.deviceSig, key, best); err != nil {
		return Result{}, fmt.Errorf("autotune: persist result: %w", err)
	}
	return best, nil
}

// Clear removes every persisted result for this tuner's device signature.
func (t *Tuner) Clear(clearer interface {
	Clear(deviceSig string) error
}) error {
	return clearer.Clear(t.deviceSig)
}

func median(samples []float64) float64 {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

var now = time.Now
