// Package eval runs an evaluation over a samples directory: it pairs each
// note with its gold and predicted records, matches them, and aggregates the
// counts.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackzampolin/clinex/internal/annotation"
	"github.com/jackzampolin/clinex/internal/corpus"
	"github.com/jackzampolin/clinex/internal/match"
	"github.com/jackzampolin/clinex/internal/metrics"
)

// ErrNoDocuments is returned when no sample had both gold and predictions.
var ErrNoDocuments = errors.New("no documents were scored")

// Extractor produces predicted records for a note.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]annotation.Record, error)
}

// SkipReason says why a sample was left out of the metrics.
type SkipReason string

const (
	SkipMissingGold          SkipReason = "missing_gold"
	SkipMissingPredictions   SkipReason = "missing_predictions"
	SkipMalformedGold        SkipReason = "malformed_gold"
	SkipMalformedPredictions SkipReason = "malformed_predictions"
	SkipExtractionFailed     SkipReason = "extraction_failed"
	SkipUnreadable           SkipReason = "unreadable"
)

// Skipped is a sample that was not scored.
type Skipped struct {
	ID     string     `json:"id" yaml:"id"`
	Path   string     `json:"path" yaml:"path"`
	Reason SkipReason `json:"reason" yaml:"reason"`
	Error  string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// PredictionSource says where a document's predictions came from.
type PredictionSource string

const (
	FromFile      PredictionSource = "file"
	FromExtractor PredictionSource = "extractor"
)

// DocumentResult holds the counts of one scored document.
type DocumentResult struct {
	ID             string           `json:"id" yaml:"id"`
	Source         PredictionSource `json:"source" yaml:"source"`
	GoldCount      int              `json:"gold" yaml:"gold"`
	PredictedCount int              `json:"predicted" yaml:"predicted"`

	metrics.Counts `yaml:",inline"`
	metrics.Scores `yaml:",inline"`

	Labels         metrics.ByLabel `json:"labels" yaml:"labels"`
	UnmatchedGold  []int           `json:"unmatched_gold,omitempty" yaml:"unmatched_gold,omitempty"`
	UnmatchedPreds []int           `json:"unmatched_predicted,omitempty" yaml:"unmatched_predicted,omitempty"`
}

// Outcome is the result of one evaluation run.
type Outcome struct {
	Policy    match.Policy              `json:"policy" yaml:"policy"`
	Summary   metrics.Summary           `json:"summary" yaml:"summary"`
	Documents []DocumentResult          `json:"documents" yaml:"documents"`
	Skipped   []Skipped                 `json:"skipped" yaml:"skipped"`
	Rejected  []*annotation.RecordError `json:"rejected_records" yaml:"rejected_records"`
}

// SkipCounts tallies skipped samples by reason.
func (o *Outcome) SkipCounts() map[SkipReason]int {
	counts := make(map[SkipReason]int)
	for _, s := range o.Skipped {
		counts[s.Reason]++
	}
	return counts
}

// Runner evaluates a samples directory.
type Runner struct {
	Policy match.Policy

	// Extractor, when set, produces predictions for samples that have no
	// predictions file.
	Extractor Extractor

	// SavePredictions writes extractor output next to the sample as
	// <stem>_pred.json.
	SavePredictions bool

	Logger *slog.Logger
}

// Run scores every sample in dir, one at a time. Samples that cannot be scored
// are recorded in Outcome.Skipped; malformed records are recorded in
// Outcome.Rejected and left out of matching. Run returns ErrNoDocuments, along
// with the outcome, when nothing could be scored.
func (r *Runner) Run(ctx context.Context, dir string) (*Outcome, error) {
	if err := r.Policy.Validate(); err != nil {
		return nil, err
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	samples, err := corpus.Discover(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("evaluating samples", "dir", dir, "samples", len(samples), "policy", r.Policy.String())

	out := &Outcome{
		Policy:    r.Policy,
		Documents: []DocumentResult{},
		Skipped:   []Skipped{},
		Rejected:  []*annotation.RecordError{},
	}
	agg := metrics.NewAggregator()

	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, source, skip := r.load(ctx, s, out, logger)
		if skip != nil {
			logger.Warn("skipping sample", "id", s.ID, "reason", skip.Reason, "error", skip.Error)
			out.Skipped = append(out.Skipped, *skip)
			continue
		}

		res := match.Match(doc.Predicted, doc.Gold, r.Policy)
		agg.Add(res.Counts)
		out.Documents = append(out.Documents, documentResult(doc, source, res))

		total := res.Counts.Total()
		logger.Debug("scored document", "id", doc.ID,
			"tp", total.TP, "fp", total.FP, "fn", total.FN)
	}

	out.Summary = agg.Summary()
	if len(out.Documents) == 0 {
		return out, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}
	logger.Info("evaluation complete",
		"documents", len(out.Documents),
		"skipped", len(out.Skipped),
		"rejected_records", len(out.Rejected),
		"f1", out.Summary.Overall.F1)
	return out, nil
}

// load builds the document for a sample, or reports why it was skipped.
// Rejected records are appended to out.
func (r *Runner) load(ctx context.Context, s corpus.Sample, out *Outcome, logger *slog.Logger) (*annotation.Document, PredictionSource, *Skipped) {
	skip := func(reason SkipReason, err error) *Skipped {
		sk := &Skipped{ID: s.ID, Path: s.TextPath, Reason: reason}
		if err != nil {
			sk.Error = err.Error()
		}
		return sk
	}

	text, err := corpus.ReadText(s.TextPath)
	if err != nil {
		return nil, "", skip(SkipUnreadable, err)
	}
	if !s.HasGold() {
		return nil, "", skip(SkipMissingGold, annotation.ErrMissingGold)
	}

	opts := annotation.LoadOptions{RequireSpan: r.Policy.RequiresSpan()}
	gold, err := annotation.Load(s.GoldPath, text, opts)
	if err != nil {
		return nil, "", skip(SkipMalformedGold, err)
	}

	doc := &annotation.Document{ID: s.ID, Path: s.TextPath, Text: text, Gold: gold.Records}
	var rejected []*annotation.RecordError
	rejected = append(rejected, gold.Rejected...)

	var source PredictionSource
	switch {
	case s.HasPredictions():
		pred, err := annotation.Load(s.PredPath, text, opts)
		if err != nil {
			return nil, "", skip(SkipMalformedPredictions, err)
		}
		doc.Predicted = pred.Records
		rejected = append(rejected, pred.Rejected...)
		source = FromFile

	case r.Extractor != nil:
		records, err := r.Extractor.Extract(ctx, text)
		if err != nil {
			return nil, "", skip(SkipExtractionFailed, err)
		}
		if r.SavePredictions {
			if err := annotation.Save(s.PredictionsPath(), text, records); err != nil {
				logger.Warn("failed to save predictions", "id", s.ID, "error", err)
			}
		}
		kept, dropped := splitUngrounded(s.PredictionsPath(), records, opts)
		doc.Predicted = kept
		rejected = append(rejected, dropped...)
		source = FromExtractor

	default:
		return nil, "", skip(SkipMissingPredictions, annotation.ErrMissingPredictions)
	}

	for _, re := range rejected {
		logger.Warn("skipping malformed record", "path", re.Path, "index", re.Index, "reason", re.Reason)
	}
	out.Rejected = append(out.Rejected, rejected...)
	return doc, source, nil
}

// splitUngrounded applies the span requirement to extractor output the same
// way Load applies it to a predictions file.
func splitUngrounded(path string, records []annotation.Record, opts annotation.LoadOptions) ([]annotation.Record, []*annotation.RecordError) {
	if !opts.RequireSpan {
		return records, nil
	}
	kept := make([]annotation.Record, 0, len(records))
	var dropped []*annotation.RecordError
	for i, rec := range records {
		if !rec.HasSpan() {
			dropped = append(dropped, &annotation.RecordError{Path: path, Index: i, Reason: "span is missing"})
			continue
		}
		kept = append(kept, rec)
	}
	return kept, dropped
}

func documentResult(doc *annotation.Document, source PredictionSource, res match.Result) DocumentResult {
	total := res.Counts.Total()
	labels := make(metrics.ByLabel, len(res.Counts))
	labels.Merge(res.Counts)

	unmatchedGold := append([]int(nil), res.UnmatchedGold...)
	unmatchedPred := append([]int(nil), res.UnmatchedPredicted...)
	sort.Ints(unmatchedGold)
	sort.Ints(unmatchedPred)

	return DocumentResult{
		ID:             doc.ID,
		Source:         source,
		GoldCount:      len(doc.Gold),
		PredictedCount: len(doc.Predicted),
		Counts:         total,
		Scores:         total.Scores(),
		Labels:         labels,
		UnmatchedGold:  unmatchedGold,
		UnmatchedPreds: unmatchedPred,
	}
}
