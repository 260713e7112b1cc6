// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package llmkernel_test

import (
	"testing"

	"github.com/gogpu/llmkernel"
	"github.com/stretchr/testify/require"
)

func TestAllowReadbackIncrementsCounter(t *testing.T) {
	g := llmkernel.NewPerfGuard(llmkernel.PerfGuardConfig{AllowGPUReadback: true})
	ok, err := g.AllowReadback("test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), g.Counters().Readbacks)
}

func TestAllowReadbackDeniedSoft(t *testing.T) {
	g := llmkernel.NewPerfGuard(llmkernel.PerfGuardConfig{AllowGPUReadback: false})
	ok, err := g.AllowReadback("logits")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, g.Counters().Readbacks)
}

func TestAllowReadbackDeniedStrict(t *testing.T) {
	g := llmkernel.NewPerfGuard(llmkernel.PerfGuardConfig{AllowGPUReadback: false, StrictMode: true})
	ok, err := g.AllowReadback("logits")
	require.False(t, ok)
	require.ErrorIs(t, err, llmkernel.ErrReadbackDisallowed)
}

func TestCountersRespectTrackingFlags(t *testing.T) {
	g := llmkernel.NewPerfGuard(llmkernel.PerfGuardConfig{})
	g.CountSubmit()
	g.CountAllocation()
	require.Zero(t, g.Counters().Submits)
	require.Zero(t, g.Counters().Allocations)

	g = llmkernel.NewPerfGuard(llmkernel.PerfGuardConfig{TrackSubmitCount: true, TrackAllocations: true})
	g.CountSubmit()
	g.CountSubmit()
	g.CountAllocation()
	c := g.Counters()
	require.Equal(t, uint64(2), c.Submits)
	require.Equal(t, uint64(1), c.Allocations)
}

func TestSetStrictModeAtRuntime(t *testing.T) {
	g := llmkernel.NewPerfGuard(llmkernel.PerfGuardConfig{AllowGPUReadback: false})
	_, err := g.AllowReadback("x")
	require.NoError(t, err)
	g.SetStrictMode(true)
	_, err = g.AllowReadback("x")
	require.ErrorIs(t, err, llmkernel.ErrReadbackDisallowed)
}
