// Package annotation defines entity records and reads/writes the annotation
// files that hold gold references and model predictions.
package annotation

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingGold is returned when a sample has no paired gold file.
	ErrMissingGold = errors.New("missing gold file")

	// ErrMissingPredictions is returned when a sample has neither a
	// predictions file nor an extractor to produce predictions.
	ErrMissingPredictions = errors.New("missing predictions")

	// ErrMalformedAnnotation marks a record (or a whole file) that cannot be
	// used for scoring.
	ErrMalformedAnnotation = errors.New("malformed annotation")
)

// Record is a single extracted or reference entity.
type Record struct {
	Label      string            `json:"label" yaml:"label"`
	Text       string            `json:"text" yaml:"text"`
	Span       *Span             `json:"span,omitempty" yaml:"span,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// HasSpan reports whether the record is grounded in the source text.
func (r Record) HasSpan() bool {
	return r.Span != nil
}

// Document is one clinical sample with its gold and predicted records.
// A Document is not modified after it has been loaded.
type Document struct {
	ID        string
	Path      string
	Text      string
	Gold      []Record
	Predicted []Record
}

// RecordError describes a record that was rejected while loading a file.
type RecordError struct {
	Path   string `json:"path" yaml:"path"`
	Index  int    `json:"index" yaml:"index"`
	Reason string `json:"reason" yaml:"reason"`
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: record %d: %s", e.Path, e.Index, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrMalformedAnnotation
}
