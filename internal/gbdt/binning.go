package gbdt

import (
	"math"
	"slices"
	"sort"
)

// binner maps raw values to histogram bins. Bin 0 holds missing values;
// a present value x lands in bin 1 + (number of cuts < x).
type binner struct {
	cuts [][]float64
}

// fitBinner computes per-feature cut points from the rows in idx.
func fitBinner(cols [][]float64, idx []int, maxBins int) *binner {
	b := &binner{cuts: make([][]float64, len(cols))}
	vals := make([]float64, 0, len(idx))
	for f, col := range cols {
		vals = vals[:0]
		for _, i := range idx {
			if v := col[i]; !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		b.cuts[f] = cutPoints(vals, maxBins-1)
	}
	return b
}

// cutPoints returns ascending thresholds splitting vals
// into at most maxValueBins bins. vals is sorted in place.
func cutPoints(vals []float64, maxValueBins int) []float64 {
	if len(vals) == 0 {
		return nil
	}
	slices.Sort(vals)
	uniq := slices.Compact(slices.Clone(vals))
	if len(uniq) <= maxValueBins {
		return uniq[:len(uniq)-1]
	}
	cuts := make([]float64, 0, maxValueBins-1)
	for k := 1; k < maxValueBins; k++ {
		v := vals[k*len(vals)/maxValueBins]
		if len(cuts) > 0 && v <= cuts[len(cuts)-1] {
			continue
		}
		cuts = append(cuts, v)
	}
	if len(cuts) > 0 && cuts[len(cuts)-1] >= uniq[len(uniq)-1] {
		cuts = cuts[:len(cuts)-1]
	}
	return cuts
}

func (b *binner) numBins(f int) int { return len(b.cuts[f]) + 2 }

func (b *binner) bin(f int, v float64) uint16 {
	if math.IsNaN(v) {
		return 0
	}
	return uint16(sort.SearchFloat64s(b.cuts[f], v) + 1)
}

// binAll bins the rows in idx; the result is indexed [feature][position in idx].
func (b *binner) binAll(cols [][]float64, idx []int) [][]uint16 {
	out := make([][]uint16, len(cols))
	for f, col := range cols {
		bins := make([]uint16, len(idx))
		for p, i := range idx {
			bins[p] = b.bin(f, col[i])
		}
		out[f] = bins
	}
	return out
}

// threshold is the raw split value for "bin <= b goes left".
func (b *binner) threshold(f int, bin int) float64 {
	return b.cuts[f][bin-1]
}
