// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package training

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1).Align(lipgloss.Right)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1).Align(lipgloss.Right)
	bestRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1).Align(lipgloss.Right)
)

// SummaryTable renders the per-epoch metrics of h as a table, highlighting the best epoch.
func SummaryTable(h *History) string {
	bestRow := -1
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("Epoch", "Loss", "Acc", "Val Loss", "Val Acc").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row < 0:
				return headerRowStyle
			case row == bestRow:
				return bestRowStyle
			case row%2 == 0:
				return oddRowStyle
			default:
				return evenRowStyle
			}
		})
	for ii, epoch := range h.Epochs {
		if epoch == h.BestEpoch {
			bestRow = ii
		}
		table.Row(
			fmt.Sprintf("%d", epoch),
			fmt.Sprintf("%.4f", h.Loss[ii]),
			fmt.Sprintf("%.2f%%", 100*h.Acc[ii]),
			fmt.Sprintf("%.4f", h.ValLoss[ii]),
			fmt.Sprintf("%.2f%%", 100*h.ValAcc[ii]),
		)
	}
	return table.Render()
}
