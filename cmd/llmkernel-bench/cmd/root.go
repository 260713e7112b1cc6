// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cmd implements the llmkernel-bench CLI, an inspection and
// auto-tuning tool for the kernel dispatch core: `tune` drives the
// auto-tuner against a chosen kernel, `variants` dumps the registry and
// explains variant selection, and `report` prints a profiler aggregate.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	tuneStorePath string
	shaderDir     string
	outputFormat  string
)

// RootCmd is the top-level CLI command.
var RootCmd = &cobra.Command{
	Use:   "llmkernel-bench",
	Short: "Inspect and auto-tune the llmkernel GPU dispatch core",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&tuneStorePath, "tune-store", envOrDefault("LLMKERNEL_TUNE_STORE", ""), "Path to a bbolt tuning-result store (empty uses an in-memory store)")
	RootCmd.PersistentFlags().StringVar(&shaderDir, "shader-dir", envOrDefault("LLMKERNEL_SHADER_DIR", "."), "Directory WGSL source files are resolved relative to")
	RootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
