// Package metrics contains the prometheus instrumentation of giveaway runs.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MessageOutcome labels what the coordinator did with an inbound message.
type MessageOutcome string

const (
	MessageAccepted      MessageOutcome = "accepted"
	MessageDuplicate     MessageOutcome = "duplicate"
	MessageMalformed     MessageOutcome = "malformed"
	MessageLate          MessageOutcome = "late"
	MessageUnknownSender MessageOutcome = "unknown_sender" // Reveal without a recorded commitment.
)

// Default metrics of the giveaway protocol.
type GiveawayMetrics struct {
	// Counts of inbound protocol messages.
	messages *prometheus.CounterVec

	// Counts of finished runs, partitioned by terminal phase.
	runs *prometheus.CounterVec

	// Durations of the commit and reveal phases.
	phaseDurations *prometheus.HistogramVec

	// Size of the valid-reveal set per completed run.
	validReveals prometheus.Histogram

	// Reveals that failed hash verification.
	invalidReveals prometheus.Counter
}

// NewDefaultGiveawayMetrics creates Prometheus metric instrumentation for
// giveaway runs. Metric names are prefixed with pkg.
func NewDefaultGiveawayMetrics(pkg string) *GiveawayMetrics {
	m := &GiveawayMetrics{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_messages", pkg),
				Help: "How many protocol messages were received, partitioned by kind and outcome.",
			},
			[]string{"kind", "outcome"}, // Labels.
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_runs", pkg),
				Help: "How many giveaway runs finished, partitioned by terminal phase.",
			},
			[]string{"phase"},
		),
		phaseDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    fmt.Sprintf("%s_phase_durations", pkg),
				Help:    "How long protocol phases lasted in seconds, partitioned by phase.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"phase"},
		),
		validReveals: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    fmt.Sprintf("%s_valid_reveals", pkg),
				Help:    "Number of valid reveals contributing entropy to a completed run.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		invalidReveals: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_invalid_reveals", pkg),
				Help: "How many reveals were excluded for not matching their commitment.",
			},
		),
	}
	m.messages = registerOnce(m.messages).(*prometheus.CounterVec)
	m.runs = registerOnce(m.runs).(*prometheus.CounterVec)
	m.phaseDurations = registerOnce(m.phaseDurations).(*prometheus.HistogramVec)
	m.validReveals = registerOnce(m.validReveals).(prometheus.Histogram)
	m.invalidReveals = registerOnce(m.invalidReveals).(prometheus.Counter)
	return m
}

// Message counts one inbound message. Safe on a nil receiver.
func (m *GiveawayMetrics) Message(kind string, outcome MessageOutcome) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind, string(outcome)).Inc()
}

// RunFinished counts a run reaching a terminal phase.
func (m *GiveawayMetrics) RunFinished(phase string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(phase).Inc()
}

// PhaseFinished records how long phase lasted.
func (m *GiveawayMetrics) PhaseFinished(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDurations.WithLabelValues(phase).Observe(d.Seconds())
}

// Reveals records the verification outcome of a completed run.
func (m *GiveawayMetrics) Reveals(valid, invalid int) {
	if m == nil {
		return
	}
	m.validReveals.Observe(float64(valid))
	m.invalidReveals.Add(float64(invalid))
}

// Registers the collector with Prometheus. If an identical collector is already
// registered, returns the existing collector, otherwise returns the provided collector.
// Panics if the collector cannot be registered.
func registerOnce(collector prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(collector); err != nil {
		are := &prometheus.AlreadyRegisteredError{}
		if errors.As(err, are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return collector
}
