package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jackzampolin/clinex/internal/eval"
	"github.com/jackzampolin/clinex/internal/metrics"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
	overallStyle = numberStyle.Bold(true)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Table renders the per-label rows and the overall row as a bordered table.
func Table(s metrics.Summary) string {
	rows := make([][]string, 0, len(s.Labels)+1)
	for _, row := range s.Labels {
		rows = append(rows, tsvRow(row))
	}
	rows = append(rows, tsvRow(s.Overall))
	overall := len(rows) - 1

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(tsvHeader...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == overall:
				if col == 0 {
					return cellStyle.Bold(true)
				}
				return overallStyle
			case col == 0:
				return cellStyle
			}
			return numberStyle
		}).
		String()
}

// Render writes the metrics table and a one-line skip summary to w.
func Render(w io.Writer, r *Report) error {
	if _, err := fmt.Fprintln(w, Table(r.Summary())); err != nil {
		return err
	}
	line := fmt.Sprintf("%d documents scored, %d skipped, %d records rejected",
		r.Documents, r.Skipped.Documents, r.Skipped.Records)
	if reasons := skipReasons(r.Skipped.ByReason); reasons != "" {
		line += " (" + reasons + ")"
	}
	_, err := fmt.Fprintln(w, mutedStyle.Render(line))
	return err
}

func skipReasons(counts map[eval.SkipReason]int) string {
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)

	var out string
	for i, reason := range reasons {
		if i > 0 {
			out += ", "
		}
		out += reason + ": " + strconv.Itoa(counts[eval.SkipReason(reason)])
	}
	return out
}
