// Package drift compares served fraud probabilities against the out-of-fold
// scores the model was trained with.
package drift

import (
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/mbd888/fraudscore/internal/metrics"
)

const (
	DefaultWindow    = 10000
	DefaultMinRows   = 100
	DefaultThreshold = 0.5
)

// Config bounds the monitor's sliding window.
type Config struct {
	// Window is the number of most recent predictions kept.
	Window int
	// MinRows is the window size below which drift is not reported.
	MinRows int
	// Threshold separates predicted fraud from predicted legitimate.
	Threshold float64
}

func DefaultConfig() Config {
	return Config{Window: DefaultWindow, MinRows: DefaultMinRows, Threshold: DefaultThreshold}
}

// Report is a drift snapshot.
type Report struct {
	Rows int `json:"rows"`
	// Ready is false until the window holds MinRows predictions; the drift
	// values are zero until then.
	Ready bool `json:"ready"`
	// PredictionDrift is the two-sample Kolmogorov-Smirnov statistic between
	// the window and the reference scores.
	PredictionDrift float64 `json:"predictionDrift"`
	// LabelDrift is |share of window above Threshold - BaselineShare|.
	LabelDrift    float64 `json:"labelDrift"`
	WindowShare   float64 `json:"windowShare"`
	BaselineShare float64 `json:"baselineShare"`
}

// Monitor keeps the most recent served predictions. It is safe for
// concurrent use.
type Monitor struct {
	cfg       Config
	reference []float64
	baseline  float64

	mu     sync.Mutex
	window []float64
	next   int
	full   bool
}

// NewMonitor copies and sorts reference. NaN reference values are dropped.
func NewMonitor(reference []float64, cfg Config) *Monitor {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = DefaultThreshold
	}
	ref := make([]float64, 0, len(reference))
	for _, v := range reference {
		if !math.IsNaN(v) {
			ref = append(ref, v)
		}
	}
	slices.Sort(ref)
	return &Monitor{
		cfg:       cfg,
		reference: ref,
		baseline:  shareAbove(ref, cfg.Threshold),
		window:    make([]float64, 0, cfg.Window),
	}
}

// Observe appends served probabilities, evicting the oldest once the window
// is full.
func (m *Monitor) Observe(probs ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range probs {
		if math.IsNaN(p) {
			continue
		}
		if !m.full {
			m.window = append(m.window, p)
			if len(m.window) == m.cfg.Window {
				m.full = true
			}
			continue
		}
		m.window[m.next] = p
		m.next = (m.next + 1) % m.cfg.Window
	}
	metrics.DriftWindowRows.Set(float64(len(m.window)))
}

// Snapshot computes drift over the current window and publishes it to the
// drift gauges once the window is ready.
func (m *Monitor) Snapshot() Report {
	m.mu.Lock()
	win := slices.Clone(m.window)
	m.mu.Unlock()

	r := Report{Rows: len(win), BaselineShare: m.baseline}
	if len(win) < m.cfg.MinRows || len(win) == 0 || len(m.reference) == 0 {
		return r
	}
	slices.Sort(win)
	r.Ready = true
	r.WindowShare = shareAbove(win, m.cfg.Threshold)
	r.LabelDrift = math.Abs(r.WindowShare - m.baseline)
	r.PredictionDrift = stat.KolmogorovSmirnov(win, nil, m.reference, nil)

	metrics.PredictionDrift.Set(r.PredictionDrift)
	metrics.LabelDrift.Set(r.LabelDrift)
	return r
}

// Reset empties the window, typically after a model reload.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.window = m.window[:0]
	m.next = 0
	m.full = false
	m.mu.Unlock()
	metrics.DriftWindowRows.Set(0)
}

// shareAbove returns the fraction of sorted values strictly above t.
func shareAbove(sorted []float64, t float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	i, _ := slices.BinarySearch(sorted, math.Nextafter(t, math.Inf(1)))
	return float64(len(sorted)-i) / float64(len(sorted))
}
