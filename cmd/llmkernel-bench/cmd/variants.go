// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/llmkernel/selector"
	"github.com/gogpu/llmkernel/tensor"
)

var (
	variantsOp string
	variantsM  int64
	variantsK  int64
	variantsN  int64
)

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List registered kernel variants and explain matmul selection for a shape",
	Long: `With no --op, dumps every registered variant for every operation.
With no --op or with --op matmul, also prints which variant the matmul
selector would currently choose for the --m/--k/--n shape (q4k weights,
f32 activations) on this device.`,
	RunE: runVariants,
}

func init() {
	variantsCmd.Flags().StringVar(&variantsOp, "op", "", "Restrict listing to one operation")
	variantsCmd.Flags().Int64Var(&variantsM, "m", 1, "M dimension for matmul selection explain")
	variantsCmd.Flags().Int64Var(&variantsK, "k", 4096, "K dimension for matmul selection explain")
	variantsCmd.Flags().Int64Var(&variantsN, "n", 4096, "N dimension for matmul selection explain")
	RootCmd.AddCommand(variantsCmd)
}

func runVariants(cobraCmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e, err := buildEngine(ctx)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer e.Release()

	ops := e.Registry.Operations()
	if variantsOp != "" {
		ops = []string{variantsOp}
	}
	for _, op := range ops {
		fmt.Printf("# %s\n", op)
		fmt.Print(e.Registry.Describe(op))
	}

	if variantsOp == "matmul" || variantsOp == "" {
		req := selector.MatmulRequest{
			M: variantsM, K: variantsK, N: variantsN,
			WeightDType: tensor.Q4K,
			ActDType:    tensor.F32,
		}
		key, selErr := selector.Matmul(e.Registry, e.Device.GetKernelCapabilities(), selector.ModeAuto, req, nil)
		fmt.Println(selector.Explain(fmt.Sprintf("matmul(m=%d,k=%d,n=%d)", variantsM, variantsK, variantsN), key, selErr))
	}
	return nil
}
