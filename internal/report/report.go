// Package report writes evaluation results to an output directory and
// renders them for the terminal.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/clinex/internal/annotation"
	"github.com/jackzampolin/clinex/internal/eval"
	"github.com/jackzampolin/clinex/internal/match"
	"github.com/jackzampolin/clinex/internal/metrics"
)

// ErrOutputWrite is returned when a report file cannot be written.
var ErrOutputWrite = errors.New("failed to write report")

const (
	// ResultsName is the base name of the full results file.
	ResultsName = "eval_results"

	// MetricsName is the tab-separated per-label metrics table.
	MetricsName = "metrics.tsv"
)

// Report is the machine-readable result of one evaluation run.
type Report struct {
	RunID      string                `json:"run_id" yaml:"run_id"`
	CreatedAt  time.Time             `json:"created_at" yaml:"created_at"`
	SamplesDir string                `json:"samples_dir" yaml:"samples_dir"`
	Policy     match.Policy          `json:"policy" yaml:"policy"`
	Documents  int                   `json:"documents" yaml:"documents"`
	Overall    metrics.Row           `json:"overall" yaml:"overall"`
	Labels     []metrics.Row         `json:"labels" yaml:"labels"`
	Files      []eval.DocumentResult `json:"files" yaml:"files"`
	Skipped    SkipSummary           `json:"skipped" yaml:"skipped"`
}

// SkipSummary reports what was left out of the metrics.
type SkipSummary struct {
	Documents int                       `json:"documents" yaml:"documents"`
	ByReason  map[eval.SkipReason]int   `json:"by_reason" yaml:"by_reason"`
	Records   int                       `json:"records" yaml:"records"`
	Details   []eval.Skipped            `json:"details" yaml:"details"`
	Rejected  []*annotation.RecordError `json:"rejected_records" yaml:"rejected_records"`
}

// New builds a report from an evaluation outcome.
func New(samplesDir string, out *eval.Outcome) *Report {
	return &Report{
		RunID:      uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
		SamplesDir: samplesDir,
		Policy:     out.Policy,
		Documents:  out.Summary.Documents,
		Overall:    out.Summary.Overall,
		Labels:     out.Summary.Labels,
		Files:      out.Documents,
		Skipped: SkipSummary{
			Documents: len(out.Skipped),
			ByReason:  out.SkipCounts(),
			Records:   len(out.Rejected),
			Details:   out.Skipped,
			Rejected:  out.Rejected,
		},
	}
}

// Summary returns the per-label and overall rows of the report.
func (r *Report) Summary() metrics.Summary {
	return metrics.Summary{Documents: r.Documents, Labels: r.Labels, Overall: r.Overall}
}

// Write creates dir if needed and writes the results file in format plus
// the metrics table. It returns the paths written. Any failure wraps
// ErrOutputWrite.
func Write(dir string, r *Report, format Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}

	resultsPath := filepath.Join(dir, ResultsName+format.Ext())
	if err := writeFile(resultsPath, func(f *os.File) error {
		return Encode(f, format, r)
	}); err != nil {
		return nil, err
	}

	metricsPath := filepath.Join(dir, MetricsName)
	if err := writeFile(metricsPath, func(f *os.File) error {
		return writeTSV(f, r.Summary())
	}); err != nil {
		return nil, err
	}

	return []string{resultsPath, metricsPath}, nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %s: %w", ErrOutputWrite, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputWrite, path, err)
	}
	return nil
}

var tsvHeader = []string{"label", "tp", "fp", "fn", "precision", "recall", "f1"}

// writeTSV writes one row per label, sorted, followed by the overall row.
func writeTSV(out io.Writer, s metrics.Summary) error {
	w := csv.NewWriter(out)
	w.Comma = '\t'

	rows := append([]metrics.Row(nil), s.Labels...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Label < rows[j].Label })
	rows = append(rows, s.Overall)

	if err := w.Write(tsvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(tsvRow(row)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func tsvRow(row metrics.Row) []string {
	return []string{
		row.Label,
		strconv.Itoa(row.TP),
		strconv.Itoa(row.FP),
		strconv.Itoa(row.FN),
		score(row.Precision),
		score(row.Recall),
		score(row.F1),
	}
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
