// Package metrics exposes run transitions as Prometheus metrics and pushes
// them to a Pushgateway at the end of a one-shot run.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sirupsen/logrus"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
)

const namespace = "presale_bundle"

// Sink is a bundlecore.EventSink backed by its own registry.
type Sink struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	included    prometheus.Gauge
	targetBlock prometheus.Gauge
	lastChange  prometheus.Gauge
	runStarted  time.Time
	duration    prometheus.Gauge

	mu  sync.Mutex
	log logrus.FieldLogger
}

func NewSink(log logrus.FieldLogger) *Sink {
	s := &Sink{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions by target state.",
		}, []string{"to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed runs by error kind and failing step.",
		}, []string{"kind", "step"}),
		included: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "included",
			Help:      "1 if the last bundle was included, 0 otherwise.",
		}),
		targetBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_block",
			Help:      "Target block of the last submitted bundle.",
		}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_transition_timestamp_seconds",
			Help:      "Unix time of the last state transition.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from the first to the last transition.",
		}),
		log: log.WithField("component", "metrics"),
	}
	s.registry.MustRegister(s.transitions, s.failures, s.included, s.targetBlock, s.lastChange, s.duration)
	return s
}

// Registry returns the registry the sink writes to.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

func (s *Sink) Emit(ev bundlecore.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runStarted.IsZero() {
		s.runStarted = ev.Time
	}
	s.transitions.WithLabelValues(string(ev.To)).Inc()
	s.lastChange.Set(float64(ev.Time.Unix()))
	s.duration.Set(ev.Time.Sub(s.runStarted).Seconds())

	switch ev.To {
	case bundlecore.StateSubmitted:
		if tb, ok := ev.Fields["target_block"].(uint64); ok {
			s.targetBlock.Set(float64(tb))
		}
	case bundlecore.StateIncluded:
		s.included.Set(1)
	case bundlecore.StateNotIncluded:
		s.included.Set(0)
	case bundlecore.StateFailed:
		s.included.Set(0)
		kind := "unknown"
		if k := bundlecore.KindOf(ev.Err); k != nil {
			kind = k.Error()
		}
		s.failures.WithLabelValues(kind, string(ev.From)).Inc()
	}
}

// Push sends the registry to a Pushgateway under job, grouped by run id.
func (s *Sink) Push(ctx context.Context, url, job, runID string) error {
	p := push.New(url, job).Gatherer(s.registry)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	s.log.WithField("pushgateway", url).Debug("Pushed run metrics")
	return nil
}
