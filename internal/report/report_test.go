package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/clinex/internal/annotation"
	"github.com/jackzampolin/clinex/internal/eval"
	"github.com/jackzampolin/clinex/internal/match"
	"github.com/jackzampolin/clinex/internal/metrics"
)

func testOutcome() *eval.Outcome {
	agg := metrics.NewAggregator()
	agg.Add(metrics.ByLabel{
		"medication": {TP: 1, FP: 1},
		"dosage":     {TP: 1, FN: 1},
	})
	return &eval.Outcome{
		Policy:  match.DefaultPolicy(),
		Summary: agg.Summary(),
		Documents: []eval.DocumentResult{{
			ID:     "a.txt",
			Source: eval.FromFile,
			Counts: metrics.Counts{TP: 2, FP: 1, FN: 1},
		}},
		Skipped: []eval.Skipped{
			{ID: "b.txt", Reason: eval.SkipMissingGold},
		},
		Rejected: []*annotation.RecordError{
			{Path: "a.json", Index: 3, Reason: "label is missing"},
		},
	}
}

func TestWrite_JSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")
	r := New("samples", testOutcome())

	paths, err := Write(dir, r, FormatJSON)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "eval_results.json" || filepath.Base(paths[1]) != MetricsName {
		t.Fatalf("paths = %v", paths)
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("results are not JSON: %v", err)
	}
	if got["run_id"] != r.RunID || r.RunID == "" {
		t.Errorf("run_id = %v", got["run_id"])
	}
	overall := got["overall"].(map[string]any)
	if overall["label"] != metrics.OverallLabel || overall["true_positive"] != float64(2) {
		t.Errorf("overall = %v", overall)
	}
	skipped := got["skipped"].(map[string]any)
	if skipped["documents"] != float64(1) || skipped["records"] != float64(1) {
		t.Errorf("skipped = %v", skipped)
	}
}

func TestWrite_YAML(t *testing.T) {
	dir := t.TempDir()
	paths, err := Write(dir, New("samples", testOutcome()), FormatYAML)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if filepath.Base(paths[0]) != "eval_results.yaml" {
		t.Fatalf("results path = %s", paths[0])
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Policy  match.Policy `yaml:"policy"`
		Overall struct {
			Label string  `yaml:"label"`
			TP    int     `yaml:"true_positive"`
			F1    float64 `yaml:"f1"`
		} `yaml:"overall"`
	}
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("results are not YAML: %v", err)
	}
	if got.Policy != match.DefaultPolicy() || got.Overall.TP != 2 || got.Overall.F1 == 0 {
		t.Errorf("unexpected results %+v", got)
	}
}

func TestWrite_MetricsTable(t *testing.T) {
	dir := t.TempDir()
	if _, err := Write(dir, New("samples", testOutcome()), FormatJSON); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, MetricsName))
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"label\ttp\tfp\tfn\tprecision\trecall\tf1",
		"dosage\t1\t0\t1\t1.0000\t0.5000\t0.6667",
		"medication\t1\t1\t0\t0.5000\t1.0000\t0.6667",
		"overall\t2\t1\t1\t0.6667\t0.6667\t0.6667",
	}, "\n") + "\n"
	if string(data) != want {
		t.Errorf("metrics.tsv =\n%s\nwant\n%s", data, want)
	}
}

func TestWrite_Unwritable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Write(filepath.Join(blocker, "out"), New("samples", testOutcome()), FormatJSON)
	if !errors.Is(err, ErrOutputWrite) {
		t.Fatalf("expected ErrOutputWrite, got %v", err)
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, New("samples", testOutcome())); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"medication", "dosage", "overall", "0.6667", "1 skipped", "missing_gold: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "dosage") > strings.Index(out, "medication") ||
		strings.Index(out, "medication") > strings.Index(out, "overall") {
		t.Errorf("rows out of order:\n%s", out)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yaml": FormatYAML, "yml": FormatYAML}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}
