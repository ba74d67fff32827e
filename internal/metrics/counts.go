// Package metrics holds match counts and the precision/recall/F1 scores
// derived from them.
package metrics

import "sort"

// Counts are the match outcomes for one label (or a total over labels).
type Counts struct {
	TP int `json:"true_positive" yaml:"true_positive"`
	FP int `json:"false_positive" yaml:"false_positive"`
	FN int `json:"false_negative" yaml:"false_negative"`
}

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{TP: c.TP + o.TP, FP: c.FP + o.FP, FN: c.FN + o.FN}
}

// IsZero reports whether no outcome has been counted.
func (c Counts) IsZero() bool {
	return c.TP == 0 && c.FP == 0 && c.FN == 0
}

// Predicted is the number of predicted records, tp + fp.
func (c Counts) Predicted() int { return c.TP + c.FP }

// Gold is the number of gold records, tp + fn.
func (c Counts) Gold() int { return c.TP + c.FN }

// Scores bundles the derived metrics. Counts has no methods of the same
// names, so a struct embedding both promotes these fields unambiguously.
type Scores struct {
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
}

// Scores computes precision = tp/(tp+fp), recall = tp/(tp+fn) and their
// harmonic mean. Each is 0 when its denominator is 0.
func (c Counts) Scores() Scores {
	s := Scores{
		Precision: ratio(c.TP, c.Predicted()),
		Recall:    ratio(c.TP, c.Gold()),
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ByLabel maps a label to its counts.
type ByLabel map[string]Counts

// Add accumulates counts for label.
func (b ByLabel) Add(label string, c Counts) {
	b[label] = b[label].Add(c)
}

// Merge accumulates every label of o into b.
func (b ByLabel) Merge(o ByLabel) {
	for label, c := range o {
		b.Add(label, c)
	}
}

// Total sums the counts of all labels (micro-averaging input).
func (b ByLabel) Total() Counts {
	var total Counts
	for _, c := range b {
		total = total.Add(c)
	}
	return total
}

// Labels returns the labels in sorted order.
func (b ByLabel) Labels() []string {
	labels := make([]string, 0, len(b))
	for label := range b {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
