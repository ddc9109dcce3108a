// Package evaluate scores binary fraud predictions against labels.
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

var ErrLengthMismatch = errors.New("labels and scores differ in length")

// AUC is the area under the ROC curve. Rows with a NaN score or label are
// ignored. The result is NaN when fewer than one positive and one negative
// remain.
func AUC(labels, scores []float64) float64 {
	y, classes := paired(labels, scores)
	if !bothClasses(classes) {
		return math.NaN()
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// AveragePrecision is the step-wise area under the precision-recall curve,
// with tied scores treated as a single threshold.
func AveragePrecision(labels, scores []float64) float64 {
	y, classes := paired(labels, scores)
	if !bothClasses(classes) {
		return math.NaN()
	}
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return y[idx[a]] > y[idx[b]] })

	var pos float64
	for _, c := range classes {
		if c {
			pos++
		}
	}
	var ap, tp, seen, prevRecall float64
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && y[idx[j]] == y[idx[i]] {
			if classes[idx[j]] {
				tp++
			}
			seen++
			j++
		}
		recall := tp / pos
		ap += (recall - prevRecall) * (tp / seen)
		prevRecall = recall
		i = j
	}
	return ap
}

// Confusion counts outcomes at a threshold; a score >= threshold is positive.
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// Report is the full metric set for one prediction vector.
type Report struct {
	AUC              Metric    `json:"auc"`
	AveragePrecision Metric    `json:"averagePrecision"`
	Accuracy         float64   `json:"accuracy"`
	Precision        float64   `json:"precision"`
	Recall           float64   `json:"recall"`
	F1               float64   `json:"f1"`
	Threshold        float64   `json:"threshold"`
	Confusion        Confusion `json:"confusion"`
	Rows             int       `json:"rows"`
}

// Evaluate computes every metric. Ratios with a zero denominator are 0.
func Evaluate(labels, scores []float64, threshold float64) (*Report, error) {
	if len(labels) != len(scores) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(labels), len(scores))
	}
	r := &Report{Threshold: threshold}
	y, classes := paired(labels, scores)
	r.Rows = len(y)
	for i, s := range y {
		switch pred := s >= threshold; {
		case pred && classes[i]:
			r.Confusion.TP++
		case pred:
			r.Confusion.FP++
		case classes[i]:
			r.Confusion.FN++
		default:
			r.Confusion.TN++
		}
	}
	c := r.Confusion
	r.Accuracy = ratio(c.TP+c.TN, r.Rows)
	r.Precision = ratio(c.TP, c.TP+c.FP)
	r.Recall = ratio(c.TP, c.TP+c.FN)
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	r.AUC = Metric(AUC(labels, scores))
	r.AveragePrecision = Metric(AveragePrecision(labels, scores))
	return r, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// paired drops rows with a NaN label or score and returns copies safe to sort.
func paired(labels, scores []float64) ([]float64, []bool) {
	n := min(len(labels), len(scores))
	y := make([]float64, 0, n)
	classes := make([]bool, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(labels[i]) || math.IsNaN(scores[i]) {
			continue
		}
		y = append(y, scores[i])
		classes = append(classes, labels[i] > 0.5)
	}
	return y, classes
}

func bothClasses(classes []bool) bool {
	var pos, neg bool
	for _, c := range classes {
		if c {
			pos = true
		} else {
			neg = true
		}
		if pos && neg {
			return true
		}
	}
	return false
}
