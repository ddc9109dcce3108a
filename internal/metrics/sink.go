package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/mbd888/fraudscore/internal/retry"
)

// Sink receives named training measurements. Log must not block or fail.
type Sink interface {
	Log(name string, value float64)
}

// NopSink discards every value.
type NopSink struct{}

func (NopSink) Log(string, float64) {}

// LogSink writes each value as a structured log record.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Log(name string, value float64) {
	s.Logger.Info("metric", "name", name, "value", value)
}

// Multi fans each value out to every sink.
type Multi []Sink

func (m Multi) Log(name string, value float64) {
	for _, s := range m {
		s.Log(name, value)
	}
}

var invalidMetricChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// PushSink records values as gauges and pushes them to a Prometheus
// Pushgateway on Flush.
type PushSink struct {
	url      string
	job      string
	grouping map[string]string

	mu     sync.Mutex
	values map[string]float64
}

// NewPushSink targets the Pushgateway at url under job. grouping labels,
// typically the run ID, identify the pushed group.
func NewPushSink(url, job string, grouping map[string]string) *PushSink {
	return &PushSink{url: url, job: job, grouping: grouping, values: make(map[string]float64)}
}

func (s *PushSink) Log(name string, value float64) {
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
}

// Flush pushes every recorded value, retrying transient failures.
func (s *PushSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	reg := prometheus.NewRegistry()
	for name, v := range s.values {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      invalidMetricChars.ReplaceAllString(name, "_"),
			Help:      "Training measurement " + name + ".",
		})
		g.Set(v)
		if err := reg.Register(g); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	s.mu.Unlock()

	pusher := push.New(s.url, s.job).Gatherer(reg)
	for k, v := range s.grouping {
		pusher = pusher.Grouping(k, v)
	}
	return retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		return pusher.PushContext(ctx)
	})
}
