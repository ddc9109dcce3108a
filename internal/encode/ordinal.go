package encode

import (
	"math"
	"slices"
	"sort"

	"github.com/mbd888/fraudscore/internal/frame"
)

// UnseenCode is the ordinal code of a value absent from the population.
const UnseenCode = -1

func buildOrdinal(c frame.Column) []string {
	counts := frame.CountValues(c)
	vals := make([]string, 0, len(counts))
	for v := range counts {
		vals = append(vals, v)
	}
	slices.Sort(vals)
	return vals
}

// applyOrdinal replaces c with the position of each value in the sorted
// pooled values. Nulls stay null.
func applyOrdinal(c frame.Column, vals []string) frame.Column {
	out := make([]float64, c.Len())
	for i := range out {
		k, ok := c.Key(i)
		if !ok {
			out[i] = math.NaN()
			continue
		}
		j := sort.SearchStrings(vals, k)
		if j < len(vals) && vals[j] == k {
			out[i] = float64(j)
		} else {
			out[i] = UnseenCode
		}
	}
	return frame.NewNumeric(c.Name(), out)
}
