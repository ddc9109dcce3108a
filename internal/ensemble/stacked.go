package ensemble

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// fitStacked fits an L2 logistic regression on the logits of the
// out-of-fold predictions.
func fitStacked(oof [][]float64, labels []float64, l2 float64) (*Model, error) {
	k := len(oof)
	var z [][]float64
	var y []float64
	for i := range labels {
		if math.IsNaN(labels[i]) {
			continue
		}
		row := make([]float64, k)
		ok := true
		for m := range oof {
			if math.IsNaN(oof[m][i]) {
				ok = false
				break
			}
			row[m] = logit(oof[m][i])
		}
		if ok {
			z = append(z, row)
			y = append(y, labels[i])
		}
	}
	if len(z) == 0 {
		return nil, fmt.Errorf("%w: no rows with predictions from every model", ErrTooFewModels)
	}
	n := float64(len(z))

	// x[0] is the intercept, x[1:] the coefficients.
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			var loss float64
			for i, row := range z {
				s := linear(x, row)
				loss += softplus(s) - y[i]*s
			}
			var reg float64
			for _, w := range x[1:] {
				reg += w * w
			}
			return loss/n + 0.5*l2*reg
		},
		Grad: func(grad, x []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i, row := range z {
				d := sigmoid(linear(x, row)) - y[i]
				grad[0] += d
				for m, v := range row {
					grad[m+1] += d * v
				}
			}
			for j := range grad {
				grad[j] /= n
				if j > 0 {
					grad[j] += l2 * x[j]
				}
			}
		},
	}
	x0 := make([]float64, k+1)
	for m := 1; m <= k; m++ {
		x0[m] = 1 / float64(k)
	}
	// A line-search failure near the optimum still yields a usable location.
	res, err := optimize.Minimize(problem, x0, nil, &optimize.LBFGS{})
	if res == nil {
		return nil, fmt.Errorf("stacked ensemble: %w", err)
	}
	if math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return nil, fmt.Errorf("stacked ensemble: non-finite loss %v", res.F)
	}
	return &Model{Strategy: StrategyStacked, Intercept: res.X[0], Weights: append([]float64(nil), res.X[1:]...)}, nil
}

func (m *Model) stack(preds [][]float64) []float64 {
	out := make([]float64, len(preds[0]))
	for i := range out {
		s := m.Intercept
		for j, p := range preds {
			s += m.Weights[j] * logit(p[i])
		}
		out[i] = sigmoid(s)
	}
	return out
}

func linear(x, row []float64) float64 {
	s := x[0]
	for m, v := range row {
		s += x[m+1] * v
	}
	return s
}

func logit(p float64) float64 {
	p = clip(p)
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// softplus is log(1+e^x) without overflow.
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
