package encode

import (
	"math"

	"github.com/mbd888/fraudscore/internal/frame"
)

// TimeBlock counts each value of Column within each Bucket (typically the
// month index DT_M). Output columns are <col>_<bucket>_ct and
// <col>_<bucket>_share, the count over the bucket's row count.
type TimeBlock struct {
	Column string `yaml:"column" json:"column"`
	Bucket string `yaml:"bucket" json:"bucket"`
}

func (b TimeBlock) name() string { return b.Column + "_" + b.Bucket }

func buildBlock(t *frame.Table, b TimeBlock) (map[string]map[string]int, map[string]int) {
	col, _ := t.Column(b.Column)
	bucket, _ := t.Column(b.Bucket)
	counts := make(map[string]map[string]int)
	rows := make(map[string]int)
	for i := 0; i < t.NumRows(); i++ {
		bk, ok := bucket.Key(i)
		if !ok {
			continue
		}
		rows[bk]++
		v, ok := col.Key(i)
		if !ok {
			continue
		}
		m := counts[bk]
		if m == nil {
			m = make(map[string]int)
			counts[bk] = m
		}
		m[v]++
	}
	return counts, rows
}

func applyBlock(t *frame.Table, b TimeBlock, counts map[string]map[string]int, rows map[string]int) []frame.Column {
	col, _ := t.Column(b.Column)
	bucket, _ := t.Column(b.Bucket)
	n := t.NumRows()
	ct := make([]float64, n)
	share := make([]float64, n)
	for i := 0; i < n; i++ {
		bk, okB := bucket.Key(i)
		v, okV := col.Key(i)
		if !okB || !okV {
			ct[i], share[i] = math.NaN(), math.NaN()
			continue
		}
		c := float64(counts[bk][v])
		ct[i] = c
		if r := rows[bk]; r > 0 {
			share[i] = c / float64(r)
		}
	}
	return []frame.Column{
		frame.NewNumeric(b.name()+"_ct", ct),
		frame.NewNumeric(b.name()+"_share", share),
	}
}
