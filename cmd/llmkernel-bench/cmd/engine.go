// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gogpu/llmkernel/pipecache"
	"github.com/gogpu/llmkernel/runtime"
)

// fileSourceLoader resolves a WGSL source path against dir, the form
// every shader file reference in the registry's static table and
// kernel-path step files use (a relative path under the host's shader
// tree).
func fileSourceLoader(dir string) pipecache.SourceLoader {
	return func(path string) (string, error) {
		raw, err := os.ReadFile(filepath.Join(dir, path))
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

func buildEngine(ctx context.Context) (*runtime.Engine, error) {
	opts := []runtime.Option{runtime.WithSourceLoader(fileSourceLoader(shaderDir))}
	if tuneStorePath != "" {
		opts = append(opts, runtime.WithTuneStorePath(tuneStorePath))
	}
	return runtime.NewEngine(ctx, opts...)
}
