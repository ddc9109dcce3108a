package encode

import (
	"math"

	"github.com/mbd888/fraudscore/internal/frame"
)

// applyFrequency emits <col>_fq (pooled count) and <col>_fq_norm (count over
// pooled rows). Nulls stay null; values the population never saw get 0.
func applyFrequency(c frame.Column, counts map[string]int, rows int) []frame.Column {
	n := c.Len()
	fq := make([]float64, n)
	norm := make([]float64, n)
	for i := 0; i < n; i++ {
		k, ok := c.Key(i)
		if !ok {
			fq[i], norm[i] = math.NaN(), math.NaN()
			continue
		}
		cnt := float64(counts[k])
		fq[i] = cnt
		if rows > 0 {
			norm[i] = cnt / float64(rows)
		}
	}
	return []frame.Column{
		frame.NewNumeric(c.Name()+"_fq", fq),
		frame.NewNumeric(c.Name()+"_fq_norm", norm),
	}
}
