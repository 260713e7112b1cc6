// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package selector

import (
	"fmt"

	"github.com/gogpu/llmkernel/registry"
)

// Explain renders a human-readable line describing the outcome of a
// selector call, for `cmd/llmkernel-bench variants`:
// which key was picked, or why selection failed. Not part of the hot
// path — selectors return (registry.Key, error) directly for that; this
// is purely an inspection aid.
func Explain(operation string, key registry.Key, err error) string {
	if err != nil {
		return fmt.Sprintf("%-12s FAILED: %v", operation, err)
	}
	return fmt.Sprintf("%-12s -> %s", operation, key)
}
