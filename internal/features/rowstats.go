package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/mbd888/fraudscore/internal/frame"
)

// VGroups partitions the V1..V137 block by correlated missingness.
var VGroups = []struct {
	Name     string
	From, To int
}{
	{"v1", 1, 11},
	{"v2", 12, 26},
	{"v3", 27, 34},
	{"v4", 35, 52},
	{"v5", 53, 74},
	{"v6", 75, 94},
	{"v7", 95, 137},
}

// DeriveRowStats adds per-row summaries of the anonymous V block and the
// numeric identity block, identity Found/New flags and address/distance
// missingness flags. Groups whose columns are all absent are skipped.
func DeriveRowStats(t *frame.Table) (*frame.Table, error) {
	var cols []frame.Column

	var allV []string
	for _, g := range VGroups {
		var names []string
		for i := g.From; i <= g.To; i++ {
			if name := fmt.Sprintf("V%d", i); t.Has(name) {
				names = append(names, name)
			}
		}
		allV = append(allV, names...)
		if len(names) == 0 {
			continue
		}
		block, err := numericBlock(t, names)
		if err != nil {
			return nil, err
		}
		cols = append(cols, blockStats(g.Name, block, true)...)
	}
	if len(allV) > 0 {
		block, err := numericBlock(t, allV)
		if err != nil {
			return nil, err
		}
		cols = append(cols, blockStats("V_all", block, true)...)
	}

	var idNum []string
	for i := 1; i <= 11; i++ {
		if name := fmt.Sprintf("id_%02d", i); t.Has(name) {
			idNum = append(idNum, name)
		}
	}
	if len(idNum) > 0 {
		block, err := numericBlock(t, idNum)
		if err != nil {
			return nil, err
		}
		cols = append(cols, blockStats("id_num", block, false)...)
	}

	n := t.NumRows()
	for _, f := range []struct{ col, value, out string }{
		{"id_12", "Found", "id_12_is_found"},
		{"id_15", "New", "id_15_is_new"},
		{"id_15", "Found", "id_15_is_found"},
		{"id_16", "Found", "id_16_is_found"},
		{"id_28", "New", "id_28_is_new"},
		{"id_28", "Found", "id_28_is_found"},
		{"id_29", "Found", "id_29_is_found"},
	} {
		if !t.Has(f.col) {
			continue
		}
		vals := categoricalOrNull(t, f.col, n)
		flag := make([]float64, n)
		for i, v := range vals {
			flag[i] = boolFloat(v == f.value)
		}
		cols = append(cols, frame.NewNumeric(f.out, flag))
	}

	for _, name := range []string{"addr1", "addr2", "dist1", "dist2"} {
		c, err := t.Column(name)
		if err != nil {
			continue
		}
		flag := make([]float64, n)
		for i := range flag {
			flag[i] = boolFloat(c.IsNull(i))
		}
		cols = append(cols, frame.NewNumeric(name+"_missing", flag))
	}
	if d1, err := t.Numeric("dist1"); err == nil {
		logd := make([]float64, n)
		for i := range logd {
			v, ok := d1.Float(i)
			if !ok {
				v = 0
			}
			logd[i] = math.Log1p(math.Max(v, 0))
		}
		cols = append(cols, frame.NewNumeric("dist1_log", logd))
	}

	if len(cols) == 0 {
		return t, nil
	}
	return t.With(cols...)
}

func numericBlock(t *frame.Table, names []string) ([][]float64, error) {
	block := make([][]float64, len(names))
	for i, name := range names {
		c, err := t.Numeric(name)
		if err != nil {
			return nil, fmt.Errorf("row stats: %w", err)
		}
		block[i] = c.Values()
	}
	return block, nil
}

// blockStats computes per-row sum (optional), mean, sample std and null
// count across the block's columns.
func blockStats(prefix string, block [][]float64, withSum bool) []frame.Column {
	n := len(block[0])
	sum := make([]float64, n)
	mean := make([]float64, n)
	std := make([]float64, n)
	nan := make([]float64, n)
	row := make([]float64, 0, len(block))
	for i := 0; i < n; i++ {
		row = row[:0]
		for _, col := range block {
			if math.IsNaN(col[i]) {
				nan[i]++
				continue
			}
			row = append(row, col[i])
			sum[i] += col[i]
		}
		switch len(row) {
		case 0:
			mean[i], std[i] = math.NaN(), math.NaN()
		case 1:
			mean[i], std[i] = row[0], math.NaN()
		default:
			mean[i], std[i] = stat.MeanStdDev(row, nil)
		}
	}
	out := make([]frame.Column, 0, 4)
	if withSum {
		out = append(out, frame.NewNumeric(prefix+"_sum", sum))
	}
	return append(out,
		frame.NewNumeric(prefix+"_mean", mean),
		frame.NewNumeric(prefix+"_std", std),
		frame.NewNumeric(prefix+"_nan_count", nan),
	)
}
