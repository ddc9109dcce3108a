package features

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/mbd888/fraudscore/internal/frame"
)

// CardColumns make up the raw card fingerprint used by sequence features.
var CardColumns = []string{"card1", "card2", "card3", "card4", "card5", "card6"}

const (
	spikeRatio    = 5
	rollingWindow = 5
	velocityWin   = 3600
)

// DeriveSequence adds per-card history features. Rows are grouped by the raw
// card fingerprint and ordered by TransactionDT; every feature looks only at
// earlier transactions of the same card.
//
//	prev_amt_ratio   amount / (previous amount + 1); first row uses its own amount
//	is_amount_spike  prev_amt_ratio > 5
//	amt_vs_rolling   amount / (median of up to 5 previous amounts + 1)
//	card_time_gap    seconds since previous transaction, null for the first
//	card_cnt_1hr     earlier transactions of the card within the last hour
func DeriveSequence(t *frame.Table) (*frame.Table, error) {
	if err := t.Require(append([]string{TimeColumn, AmountColumn}, CardColumns...)...); err != nil {
		return nil, fmt.Errorf("derive sequence: %w", err)
	}
	dt, err := t.Numeric(TimeColumn)
	if err != nil {
		return nil, fmt.Errorf("derive sequence: %w", err)
	}
	amt, err := t.Numeric(AmountColumn)
	if err != nil {
		return nil, fmt.Errorf("derive sequence: %w", err)
	}
	cards := make([]frame.Column, len(CardColumns))
	for i, name := range CardColumns {
		cards[i], _ = t.Column(name)
	}

	n := t.NumRows()
	groups := make(map[string][]int)
	var order []string
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.Reset()
		for j, c := range cards {
			if j > 0 {
				sb.WriteByte('_')
			}
			if k, ok := c.Key(i); ok {
				sb.WriteString(k)
			} else {
				sb.WriteString("nan")
			}
		}
		key := sb.String()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	var (
		ratio   = make([]float64, n)
		spike   = make([]float64, n)
		rolling = make([]float64, n)
		gap     = make([]float64, n)
		cnt1h   = make([]float64, n)
	)
	times := dt.Values()
	amounts := amt.Values()
	for _, key := range order {
		rows := groups[key]
		sort.SliceStable(rows, func(a, b int) bool {
			return lessNaNLast(times[rows[a]], times[rows[b]])
		})
		window := 0
		for pos, r := range rows {
			cur := amounts[r]
			if pos == 0 {
				ratio[r] = cur / (cur + 1)
				rolling[r] = cur / (cur + 1)
				gap[r] = math.NaN()
				cnt1h[r] = 0
			} else {
				prev := rows[pos-1]
				ratio[r] = cur / (amounts[prev] + 1)
				lo := max(0, pos-rollingWindow)
				rolling[r] = cur / (median(amounts, rows[lo:pos]) + 1)
				gap[r] = times[r] - times[prev]
				for window < pos && times[r]-times[rows[window]] > velocityWin {
					window++
				}
				cnt1h[r] = float64(pos - window)
			}
			if math.IsNaN(ratio[r]) {
				spike[r] = math.NaN()
			} else {
				spike[r] = boolFloat(ratio[r] > spikeRatio)
			}
		}
	}

	return t.With(
		frame.NewNumeric("prev_amt_ratio", ratio),
		frame.NewNumeric("is_amount_spike", spike),
		frame.NewNumeric("amt_vs_rolling", rolling),
		frame.NewNumeric("card_time_gap", gap),
		frame.NewNumeric("card_cnt_1hr", cnt1h),
	)
}

func lessNaNLast(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}

// median of vals[idx], ignoring NaN. Returns NaN when nothing is left.
func median(vals []float64, idx []int) float64 {
	xs := make([]float64, 0, len(idx))
	for _, i := range idx {
		if !math.IsNaN(vals[i]) {
			xs = append(xs, vals[i])
		}
	}
	if len(xs) == 0 {
		return math.NaN()
	}
	slices.Sort(xs)
	m := len(xs) / 2
	if len(xs)%2 == 1 {
		return xs[m]
	}
	return (xs[m-1] + xs[m]) / 2
}
