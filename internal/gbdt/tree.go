package gbdt

import "math"

// Node is one tree node. Leaves have Feature == -1.
type Node struct {
	Feature     int     `json:"f"`
	Threshold   float64 `json:"t,omitempty"`
	DefaultLeft bool    `json:"d,omitempty"`
	Left        int     `json:"l,omitempty"`
	Right       int     `json:"r,omitempty"`
	Value       float64 `json:"v,omitempty"`
}

// Tree is a flat array of nodes rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// predict walks row i of cols. A present value <= Threshold goes left;
// a missing value follows DefaultLeft.
func (t *Tree) predict(cols [][]float64, i int) float64 {
	n := &t.Nodes[0]
	for n.Feature >= 0 {
		v := cols[n.Feature][i]
		var left bool
		if math.IsNaN(v) {
			left = n.DefaultLeft
		} else {
			left = v <= n.Threshold
		}
		if left {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Value
}

// grower builds one tree from binned gradients.
type grower struct {
	p        Params
	bins     [][]uint16 // [feature][position]
	binner   *binner
	grad     []float64 // by position
	hess     []float64
	features []int
	gain     []float64 // accumulated split gain per feature
	tree     Tree
}

type split struct {
	feature     int
	bin         int
	defaultLeft bool
	gain        float64
}

func (g *grower) leafValue(gs, hs float64) float64 {
	return -gs / (hs + g.p.Lambda) * g.p.LearningRate
}

func (g *grower) score(gs, hs float64) float64 {
	return gs * gs / (hs + g.p.Lambda)
}

// grow adds the subtree over rows (positions) and returns its node index.
func (g *grower) grow(rows []int, depth int) int {
	var gs, hs float64
	for _, r := range rows {
		gs += g.grad[r]
		hs += g.hess[r]
	}
	idx := len(g.tree.Nodes)
	g.tree.Nodes = append(g.tree.Nodes, Node{Feature: -1, Value: g.leafValue(gs, hs)})
	if depth >= g.p.MaxDepth || hs < 2*g.p.MinChildWeight {
		return idx
	}

	best, ok := g.bestSplit(rows, gs, hs)
	if !ok {
		return idx
	}
	var left, right []int
	for _, r := range rows {
		b := int(g.bins[best.feature][r])
		if (b == 0 && best.defaultLeft) || (b != 0 && b <= best.bin) {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	g.gain[best.feature] += best.gain

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.tree.Nodes[idx] = Node{
		Feature:     best.feature,
		Threshold:   g.binner.threshold(best.feature, best.bin),
		DefaultLeft: best.defaultLeft,
		Left:        l,
		Right:       r,
	}
	return idx
}

// bestSplit scans the gradient histogram of every sampled feature. Each
// candidate is tried with missing values sent left and right.
func (g *grower) bestSplit(rows []int, gs, hs float64) (split, bool) {
	parent := g.score(gs, hs)
	best := split{gain: g.p.Gamma}
	found := false
	for _, f := range g.features {
		nb := g.binner.numBins(f)
		if nb <= 2 {
			continue
		}
		hg := make([]float64, nb)
		hh := make([]float64, nb)
		col := g.bins[f]
		for _, r := range rows {
			b := col[r]
			hg[b] += g.grad[r]
			hh[b] += g.hess[r]
		}
		missG, missH := hg[0], hh[0]
		var lg, lh float64
		for b := 1; b < nb-1; b++ {
			lg += hg[b]
			lh += hh[b]
			rg, rh := gs-missG-lg, hs-missH-lh
			for _, missLeft := range []bool{true, false} {
				gl, hl, gr, hr := lg, lh, rg, rh
				if missLeft {
					gl, hl = gl+missG, hl+missH
				} else {
					gr, hr = gr+missG, hr+missH
				}
				if hl < g.p.MinChildWeight || hr < g.p.MinChildWeight {
					continue
				}
				gain := 0.5 * (g.score(gl, hl) + g.score(gr, hr) - parent)
				if gain > best.gain {
					best = split{feature: f, bin: b, defaultLeft: missLeft, gain: gain}
					found = true
				}
			}
		}
	}
	return best, found
}
