package features

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mbd888/fraudscore/internal/frame"
)

// AmountColumn is the transaction amount in USD.
const AmountColumn = "TransactionAmt"

// AmountBins are the right-closed upper edges of amt_bin.
var AmountBins = []float64{50, 100, 200, 500, 1000, 5000, 10000, math.Inf(1)}

var (
	thousand = decimal.NewFromInt(1000)
	hundred  = decimal.NewFromInt(100)
)

// DeriveAmount adds amount-shape features. The fractional features are
// computed in decimal arithmetic on the amount rounded to a tenth of a cent,
// so $100.00 and $99.99 land on different amt_decimal values even when the
// amount was stored as float32.
func DeriveAmount(t *frame.Table) (*frame.Table, error) {
	amt, err := t.Numeric(AmountColumn)
	if err != nil {
		return nil, fmt.Errorf("derive amount: %w", err)
	}
	n := amt.Len()
	var (
		intLog  = make([]float64, n)
		logAmt  = make([]float64, n)
		frac    = make([]float64, n)
		cents   = make([]float64, n)
		isRound = make([]float64, n)
		isMicro = make([]float64, n)
		bin     = make([]float64, n)
	)
	for i := 0; i < n; i++ {
		v, ok := amt.Float(i)
		if !ok {
			for _, s := range [][]float64{intLog, logAmt, frac, cents, isRound, isMicro, bin} {
				s[i] = math.NaN()
			}
			continue
		}
		d := decimal.NewFromFloat(v).Round(3)
		whole := d.Truncate(0)
		fraction := d.Sub(whole)

		intLog[i] = math.Log1p(math.Max(whole.InexactFloat64(), 0))
		logAmt[i] = math.Log1p(math.Max(v, 0))
		frac[i] = float64(fraction.Mul(thousand).IntPart())
		cents[i] = float64(d.Mul(hundred).Truncate(0).Mod(hundred).IntPart())
		isRound[i] = boolFloat(fraction.IsZero())
		isMicro[i] = boolFloat(v < 10)
		bin[i] = amountBin(v)
	}
	return t.With(
		frame.NewNumeric("amt_int_log", intLog),
		frame.NewNumeric("amt_log", logAmt),
		frame.NewNumeric("amt_decimal", frac),
		frame.NewNumeric("amt_cents", cents),
		frame.NewNumeric("amt_is_round", isRound),
		frame.NewNumeric("amt_is_micro", isMicro),
		frame.NewNumeric("amt_bin", bin),
	)
}

func amountBin(v float64) float64 {
	if v <= 0 {
		return math.NaN()
	}
	for i, edge := range AmountBins {
		if v <= edge {
			return float64(i)
		}
	}
	return math.NaN()
}
