// Package match aligns predicted entity records with gold records and counts
// true positives, false positives and false negatives per label.
package match

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/jackzampolin/clinex/internal/annotation"
)

// ErrInvalidPolicy is returned for an unknown mode or out-of-range threshold.
var ErrInvalidPolicy = errors.New("invalid match policy")

// Mode selects how a same-label predicted/gold pair is accepted.
type Mode string

const (
	// ModeExact accepts a pair whose spans are identical.
	ModeExact Mode = "exact"

	// ModeOverlap accepts a pair whose spans intersect with an
	// intersection-over-union of at least the policy threshold. A threshold
	// of 0 accepts any positive overlap.
	ModeOverlap Mode = "overlap"

	// ModeText accepts a pair whose normalized texts are equal. Spans are
	// not required.
	ModeText Mode = "text"

	// ModePartial accepts a pair when either normalized text contains the
	// other. Spans are not required.
	ModePartial Mode = "partial"
)

// Modes lists the supported modes.
var Modes = []Mode{ModeExact, ModeOverlap, ModeText, ModePartial}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown mode %q (want one of exact, overlap, text, partial)", ErrInvalidPolicy, s)
}

// Policy is the matching rule applied to every candidate pair.
type Policy struct {
	Mode      Mode    `json:"mode" yaml:"mode"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// DefaultPolicy matches same-label spans that overlap at all.
func DefaultPolicy() Policy {
	return Policy{Mode: ModeOverlap, Threshold: 0}
}

// Validate checks the mode and that the threshold is within [0, 1].
func (p Policy) Validate() error {
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return err
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0, 1]", ErrInvalidPolicy, p.Threshold)
	}
	return nil
}

// RequiresSpan reports whether records must carry offsets under p.
func (p Policy) RequiresSpan() bool {
	return p.Mode == ModeExact || p.Mode == ModeOverlap
}

func (p Policy) String() string {
	if p.Mode == ModeOverlap {
		return fmt.Sprintf("%s(iou>=%g)", p.Mode, p.Threshold)
	}
	return string(p.Mode)
}

// accepts reports whether two records with equal labels match under p.
func (p Policy) accepts(pred, gold annotation.Record) bool {
	switch p.Mode {
	case ModeExact:
		return pred.Span != nil && gold.Span != nil && *pred.Span == *gold.Span
	case ModeOverlap:
		if pred.Span == nil || gold.Span == nil {
			return false
		}
		if pred.Span.Overlap(*gold.Span) == 0 {
			return false
		}
		return pred.Span.IoU(*gold.Span) >= p.Threshold
	case ModeText:
		pt, gt := Normalize(pred.Text), Normalize(gold.Text)
		return pt != "" && pt == gt
	case ModePartial:
		pt, gt := Normalize(pred.Text), Normalize(gold.Text)
		if pt == "" || gt == "" {
			return false
		}
		return strings.Contains(gt, pt) || strings.Contains(pt, gt)
	}
	return false
}

// Normalize prepares text for comparison: NFKC, Unicode case folding, and
// whitespace collapsed to single spaces.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
