// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/llmkernel/autotune"
)

var (
	tuneKernel      string
	tuneInputSizes  []int64
	tuneCandidate2D bool
	tuneWarmup      int
	tuneIterations  int
	tuneForce       bool
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Auto-tune the workgroup size of a kernel against this device",
	Long: `Runs the auto-tuner's warmup+timed-iteration search over workgroup-size
candidates for a given kernel and input shape, then persists and prints
the winning candidate.

Examples:
  llmkernel-bench tune --kernel matmul --input 4096,4096,1
  llmkernel-bench tune --kernel attention --input 32,128,4096 --2d --force`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVar(&tuneKernel, "kernel", "", "Kernel name to tune (required)")
	tuneCmd.Flags().Int64SliceVar(&tuneInputSizes, "input", nil, "Input shape, comma-separated (required)")
	tuneCmd.Flags().BoolVar(&tuneCandidate2D, "2d", false, "Search the 2-D workgroup candidate set instead of 1-D")
	tuneCmd.Flags().IntVar(&tuneWarmup, "warmup", autotune.DefaultOptions().Warmup, "Warmup iterations per candidate")
	tuneCmd.Flags().IntVar(&tuneIterations, "iterations", autotune.DefaultOptions().Iterations, "Timed iterations per candidate")
	tuneCmd.Flags().BoolVar(&tuneForce, "force", false, "Re-benchmark even if a cached result exists")
	_ = tuneCmd.MarkFlagRequired("kernel")
	_ = tuneCmd.MarkFlagRequired("input")
	RootCmd.AddCommand(tuneCmd)
}

func runTune(cobraCmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e, err := buildEngine(ctx)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer e.Release()

	candidateSource := autotune.Candidates1D
	if tuneCandidate2D {
		candidateSource = autotune.Candidates2D
	}

	key := autotune.Key{KernelName: tuneKernel, InputSizes: tuneInputSizes}
	opts := autotune.Options{Warmup: tuneWarmup, Iterations: tuneIterations, ForceRetune: tuneForce}

	// No real shader is loaded for an arbitrary --kernel without a bound
	// model, so bench runs a synthetic busy-loop sized by candidate
	// occupancy and reports its invocation count as the work done; the
	// tuner times it — enough to exercise and demonstrate the search, not
	// a substitute for benchmarking a real dispatch.
	bench := func(ctx context.Context, c autotune.WorkgroupCandidate) (float64, error) {
		invocations := int(c.Size[0]) * int(c.Size[1]) * int(c.Size[2])
		sink := 0.0
		for i := 0; i < invocations*64; i++ {
			sink += float64(i) * 1.0000001
		}
		_ = sink
		return float64(invocations), nil
	}

	result, err := e.Tuner.TuneKernel(ctx, key, e.Device.GetDeviceLimits(), candidateSource, opts, bench)
	if err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		return printJSON(result)
	default:
		fmt.Printf("kernel:     %s\n", tuneKernel)
		fmt.Printf("input:      %v\n", tuneInputSizes)
		fmt.Printf("workgroup:  %v\n", result.OptimalWorkgroupSize)
		fmt.Printf("throughput: %.2f\n", result.Throughput)
		fmt.Printf("time:       %.4fms\n", result.TimeMs)
		fmt.Printf("device:     %s\n", result.DeviceInfo)
		return nil
	}
}
