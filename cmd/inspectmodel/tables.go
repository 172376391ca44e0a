// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/cometnet/pkg/models"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)

	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
)

// newPlainTable creates a table with alternating row styles. The first column is right aligned.
func newPlainTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				return headerRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
}

// summaryTable reports the global step and the number and size of the variables under scope.
func summaryTable(ctx *context.Context, modelDir, scope, checkpoint string) string {
	table := newPlainTable()
	table.Row("model", modelDir)
	table.Row("checkpoint", checkpoint)
	table.Row("scope", scope)
	if model, found := ctx.GetParam(models.ParamModel); found {
		table.Row("model type", fmt.Sprintf("%v", model))
	}
	table.Row("global_step", humanize.Comma(optimizers.GetGlobalStep(ctx)))

	scopedCtx := ctx
	if scope != "" && scope != context.ScopeSeparator {
		scopedCtx = ctx.InAbsPath(scope)
	}
	var numVars, totalSize int
	var totalMemory uintptr
	scopedCtx.EnumerateVariablesInScope(func(v *context.Variable) {
		if v.Name() == optimizers.GlobalStepVariableName {
			return
		}
		numVars++
		totalSize += v.Shape().Size()
		totalMemory += v.Shape().Memory()
	})
	table.Row("# variables", humanize.Comma(int64(numVars)))
	table.Row("# parameters", humanize.Comma(int64(totalSize)))
	table.Row("# bytes", humanize.Bytes(uint64(totalMemory)))
	return table.Render()
}

// paramsTable lists every hyperparameter, sorted by scope and name.
func paramsTable(ctx *context.Context) string {
	var rows [][]string
	ctx.EnumerateParams(func(scope, key string, value any) {
		rows = append(rows, []string{scope, key, fmt.Sprintf("%T", value), fmt.Sprintf("%v", value)})
	})
	slices.SortFunc(rows, func(a, b []string) int {
		if cmp := strings.Compare(a[0], b[0]); cmp != 0 {
			return cmp
		}
		return strings.Compare(a[1], b[1])
	})
	table := newPlainTable().Headers("Scope", "Name", "Type", "Value")
	for _, row := range rows {
		table.Row(row...)
	}
	return table.Render()
}
