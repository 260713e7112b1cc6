// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package llmkernel_test

import (
	"context"
	"testing"

	"github.com/gogpu/llmkernel"
	"github.com/stretchr/testify/require"
)

func TestCapabilityHasFeature(t *testing.T) {
	c := llmkernel.Capability{F16: true, Subgroups: true}
	require.True(t, c.HasFeature("f16"))
	require.True(t, c.HasFeature("subgroups"))
	require.False(t, c.HasFeature("subgroups_f16"))
	require.False(t, c.HasFeature("timestamp_query"))
	require.False(t, c.HasFeature("nonsense"))
}

func TestCapabilityMissingFeatures(t *testing.T) {
	c := llmkernel.Capability{F16: true}
	missing := c.MissingFeatures([]string{"f16", "subgroups", "timestamp_query"})
	require.Equal(t, []string{"subgroups", "timestamp_query"}, missing)
	require.Nil(t, c.MissingFeatures([]string{"f16"}))
}

func TestDeviceStateLifecycle(t *testing.T) {
	d := llmkernel.NewDevice(nil)
	require.Equal(t, llmkernel.DeviceUninitialized, d.State())
	require.Nil(t, d.GetDevice())

	require.NoError(t, d.InitDevice(context.Background()))
	require.Equal(t, llmkernel.DeviceReady, d.State())
	require.NotNil(t, d.GetDevice())

	// Idempotent: a second init is a no-op on the same device.
	gpu := d.GetDevice()
	require.NoError(t, d.InitDevice(context.Background()))
	require.Same(t, gpu, d.GetDevice())

	d.Release()
	require.Equal(t, llmkernel.DeviceUninitialized, d.State())
}

func TestNotifyLostRunsCallbacksOnce(t *testing.T) {
	d := llmkernel.NewDevice(nil)
	require.NoError(t, d.InitDevice(context.Background()))

	calls := 0
	d.OnLost(func() { calls++ })

	d.NotifyLost()
	require.Equal(t, llmkernel.DeviceLost, d.State())
	require.Equal(t, 1, calls)
	require.Nil(t, d.GetDevice(), "a lost device must stop handing out its GPU handle")

	d.NotifyLost()
	require.Equal(t, 1, calls)
}

func TestDeviceStateStrings(t *testing.T) {
	require.Equal(t, "uninitialized", llmkernel.DeviceUninitialized.String())
	require.Equal(t, "initializing", llmkernel.DeviceInitializing.String())
	require.Equal(t, "ready", llmkernel.DeviceReady.String())
	require.Equal(t, "lost", llmkernel.DeviceLost.String())
}
