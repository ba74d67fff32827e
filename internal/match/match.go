package match

import (
	"math"
	"sort"

	"github.com/jackzampolin/clinex/internal/annotation"
	"github.com/jackzampolin/clinex/internal/metrics"
)

// Pair is an accepted predicted/gold correspondence.
type Pair struct {
	Predicted int     `json:"predicted"`
	Gold      int     `json:"gold"`
	Label     string  `json:"label"`
	IoU       float64 `json:"iou"`
}

// Result is the outcome of matching one document.
type Result struct {
	Pairs              []Pair
	UnmatchedPredicted []int
	UnmatchedGold      []int
	Counts             metrics.ByLabel
}

type candidate struct {
	pred, gold int
	iou        float64
	inter      int
	predStart  int
	goldStart  int
}

// Match pairs predicted with gold records one-to-one.
//
// Every same-label pair accepted by the policy is a candidate. Candidates are
// taken greedily in order of greatest span overlap, measured as IoU; the count
// of overlapping characters only breaks IoU ties. A short prediction that
// covers most of its gold span therefore beats a longer one that shares more
// characters but a smaller fraction of the union. Remaining ties go to the
// earliest predicted span, then the earliest gold span, with record order
// last. A candidate is kept only if neither of its records is already paired. Matched pairs count as true positives,
// leftover predictions as false positives, and leftover gold records as false
// negatives, each under its own label. Match has no side effects and the
// result depends only on its inputs.
func Match(predicted, gold []annotation.Record, p Policy) Result {
	var cands []candidate
	for i, pr := range predicted {
		for j, gr := range gold {
			if pr.Label != gr.Label || !p.accepts(pr, gr) {
				continue
			}
			c := candidate{
				pred:      i,
				gold:      j,
				predStart: spanStart(pr),
				goldStart: spanStart(gr),
			}
			if pr.Span != nil && gr.Span != nil {
				c.iou = pr.Span.IoU(*gr.Span)
				c.inter = pr.Span.Overlap(*gr.Span)
			}
			cands = append(cands, c)
		}
	}

	sort.Slice(cands, func(a, b int) bool {
		x, y := cands[a], cands[b]
		switch {
		case x.iou != y.iou:
			return x.iou > y.iou
		case x.inter != y.inter:
			return x.inter > y.inter
		case x.predStart != y.predStart:
			return x.predStart < y.predStart
		case x.pred != y.pred:
			return x.pred < y.pred
		case x.goldStart != y.goldStart:
			return x.goldStart < y.goldStart
		}
		return x.gold < y.gold
	})

	predUsed := make([]bool, len(predicted))
	goldUsed := make([]bool, len(gold))
	res := Result{Counts: make(metrics.ByLabel)}

	for _, c := range cands {
		if predUsed[c.pred] || goldUsed[c.gold] {
			continue
		}
		predUsed[c.pred] = true
		goldUsed[c.gold] = true
		label := predicted[c.pred].Label
		res.Pairs = append(res.Pairs, Pair{Predicted: c.pred, Gold: c.gold, Label: label, IoU: c.iou})
		res.Counts.Add(label, metrics.Counts{TP: 1})
	}

	for i, used := range predUsed {
		if !used {
			res.UnmatchedPredicted = append(res.UnmatchedPredicted, i)
			res.Counts.Add(predicted[i].Label, metrics.Counts{FP: 1})
		}
	}
	for j, used := range goldUsed {
		if !used {
			res.UnmatchedGold = append(res.UnmatchedGold, j)
			res.Counts.Add(gold[j].Label, metrics.Counts{FN: 1})
		}
	}

	sort.Slice(res.Pairs, func(a, b int) bool {
		return res.Pairs[a].Predicted < res.Pairs[b].Predicted
	})
	return res
}

// spanStart orders ungrounded records after grounded ones.
func spanStart(r annotation.Record) int {
	if r.Span == nil {
		return math.MaxInt
	}
	return r.Span.Start
}
