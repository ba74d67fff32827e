package metrics

// OverallLabel names the micro-averaged row in summaries.
const OverallLabel = "overall"

// Row is one line of a metrics table.
type Row struct {
	Label string `json:"label" yaml:"label"`
	Counts `yaml:",inline"`
	Scores `yaml:",inline"`
}

// NewRow builds a row from counts.
func NewRow(label string, c Counts) Row {
	return Row{Label: label, Counts: c, Scores: c.Scores()}
}

// Summary is the corpus-level result: one row per label and a micro-averaged
// overall row.
type Summary struct {
	Documents int   `json:"documents" yaml:"documents"`
	Labels    []Row `json:"labels" yaml:"labels"`
	Overall   Row   `json:"overall" yaml:"overall"`
}

// Aggregator sums per-document counts into corpus counts. Addition commutes,
// so the order documents are added in does not change the summary.
type Aggregator struct {
	byLabel   ByLabel
	documents int
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{byLabel: make(ByLabel)}
}

// Add accumulates the counts of one document.
func (a *Aggregator) Add(doc ByLabel) {
	a.byLabel.Merge(doc)
	a.documents++
}

// Counts returns a copy of the accumulated per-label counts.
func (a *Aggregator) Counts() ByLabel {
	out := make(ByLabel, len(a.byLabel))
	out.Merge(a.byLabel)
	return out
}

// Summary computes per-label scores and the micro-averaged overall row, which
// sums tp/fp/fn across labels before dividing.
func (a *Aggregator) Summary() Summary {
	s := Summary{
		Documents: a.documents,
		Labels:    make([]Row, 0, len(a.byLabel)),
	}
	for _, label := range a.byLabel.Labels() {
		s.Labels = append(s.Labels, NewRow(label, a.byLabel[label]))
	}
	s.Overall = NewRow(OverallLabel, a.byLabel.Total())
	return s
}
