package metrics

import (
	"encoding/json"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

func TestCounts_Scores(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		want   Scores
	}{
		{"perfect", Counts{TP: 1}, Scores{Precision: 1, Recall: 1, F1: 1}},
		{"only false negatives", Counts{FN: 1}, Scores{}},
		{"only false positives", Counts{FP: 3}, Scores{}},
		{"empty", Counts{}, Scores{}},
		{"mixed", Counts{TP: 2, FP: 2, FN: 6}, Scores{Precision: 0.5, Recall: 0.25, F1: 1.0 / 3.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.counts.Scores()
			if !almostEqual(got.Precision, tt.want.Precision) ||
				!almostEqual(got.Recall, tt.want.Recall) ||
				!almostEqual(got.F1, tt.want.F1) {
				t.Errorf("Scores() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCounts_ScoresBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		c := Counts{TP: rng.Intn(5), FP: rng.Intn(5), FN: rng.Intn(5)}
		s := c.Scores()
		for _, v := range []float64{s.Precision, s.Recall, s.F1} {
			if math.IsNaN(v) || v < 0 || v > 1 {
				t.Fatalf("score out of range for %+v: %+v", c, s)
			}
		}
	}
}

func TestByLabel(t *testing.T) {
	b := ByLabel{}
	b.Add("medication", Counts{TP: 1})
	b.Add("medication", Counts{FP: 1})
	b.Add("dosage", Counts{FN: 2})

	if got := b["medication"]; got != (Counts{TP: 1, FP: 1}) {
		t.Errorf("medication counts = %+v", got)
	}
	if got := b.Total(); got != (Counts{TP: 1, FP: 1, FN: 2}) {
		t.Errorf("Total() = %+v", got)
	}
	if got := b.Labels(); !reflect.DeepEqual(got, []string{"dosage", "medication"}) {
		t.Errorf("Labels() = %v", got)
	}
}

func TestAggregator_MicroAverage(t *testing.T) {
	agg := NewAggregator()
	agg.Add(ByLabel{"medication": {TP: 3, FP: 1}, "dosage": {TP: 1, FN: 3}})
	agg.Add(ByLabel{"medication": {FN: 1}})

	s := agg.Summary()
	if s.Documents != 2 {
		t.Errorf("Documents = %d, want 2", s.Documents)
	}
	if len(s.Labels) != 2 || s.Labels[0].Label != "dosage" || s.Labels[1].Label != "medication" {
		t.Fatalf("unexpected label rows %+v", s.Labels)
	}
	if s.Overall.Label != OverallLabel {
		t.Errorf("overall label = %q", s.Overall.Label)
	}
	if s.Overall.Counts != (Counts{TP: 4, FP: 1, FN: 4}) {
		t.Errorf("overall counts = %+v", s.Overall.Counts)
	}
	// Micro: 4/5 and 4/8, not the mean of per-label scores.
	if !almostEqual(s.Overall.Precision, 0.8) || !almostEqual(s.Overall.Recall, 0.5) {
		t.Errorf("overall scores = %+v", s.Overall.Scores)
	}
}

func TestAggregator_OrderIndependent(t *testing.T) {
	docs := []ByLabel{
		{"medication": {TP: 1, FP: 2}},
		{"dosage": {FN: 1}, "route": {TP: 2}},
		{},
		{"medication": {FN: 3}, "route": {FP: 1}},
	}

	forward := NewAggregator()
	for _, d := range docs {
		forward.Add(d)
	}
	backward := NewAggregator()
	for i := len(docs) - 1; i >= 0; i-- {
		backward.Add(docs[i])
	}

	if !reflect.DeepEqual(forward.Summary(), backward.Summary()) {
		t.Errorf("summaries differ:\n%+v\n%+v", forward.Summary(), backward.Summary())
	}
}

func TestRow_PromotedFields(t *testing.T) {
	row := NewRow("route", Counts{TP: 1, FP: 1, FN: 3})

	if row.TP != 1 || row.FP != 1 || row.FN != 3 {
		t.Errorf("counts = %+v", row.Counts)
	}
	if !almostEqual(row.Precision, 0.5) || !almostEqual(row.Recall, 0.25) || !almostEqual(row.F1, 1.0/3.0) {
		t.Errorf("scores = %+v", row.Scores)
	}
	if row.Scores != row.Counts.Scores() {
		t.Errorf("row scores %+v differ from counts %+v", row.Scores, row.Counts.Scores())
	}
}

func TestRow_JSONIsFlat(t *testing.T) {
	data, err := json.Marshal(NewRow("medication", Counts{TP: 1}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"label"`, `"true_positive"`, `"precision"`, `"f1"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("expected %s in %s", key, data)
		}
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
