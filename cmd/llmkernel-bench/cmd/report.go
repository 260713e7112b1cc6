// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/llmkernel/profiler"
)

var reportDemo bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a profiler aggregate report",
	Long: `Prints an aggregate report of recorded profiler intervals, ranked by
total time share, with heuristic bottleneck tags.

Without --demo this reports an empty profiler (an Engine's profiler only
accumulates entries while a host records dispatches against it via
profiler.ProfileKernel/ProfileSync within the same process). --demo
records a short synthetic workload first so the report command is
runnable standalone.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportDemo, "demo", false, "Record a synthetic workload before reporting")
	RootCmd.AddCommand(reportCmd)
}

func runReport(cobraCmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e, err := buildEngine(ctx)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer e.Release()

	if reportDemo {
		recordDemoWorkload(e.Profiler)
	}

	report := profiler.BuildReport(e.Profiler.Entries())
	if outputFormat == "json" {
		return printJSON(report)
	}
	fmt.Print(report.String())
	return nil
}

func recordDemoWorkload(p *profiler.Profiler) {
	p.ProfileSync("q_proj.matmul", profiler.CategoryKernel, func() { time.Sleep(2 * time.Millisecond) })
	p.ProfileSync("k_proj.matmul", profiler.CategoryKernel, func() { time.Sleep(2 * time.Millisecond) })
	p.ProfileSync("attention.decode", profiler.CategoryKernel, func() { time.Sleep(6 * time.Millisecond) })
	p.ProfileSync("uniform.upload", profiler.CategoryMemory, func() { time.Sleep(1 * time.Millisecond) })
	p.ProfileSync("submit.wait", profiler.CategorySync, func() { time.Sleep(3 * time.Millisecond) })
}
