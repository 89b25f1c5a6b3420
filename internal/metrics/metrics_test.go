package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGiveawayMetrics(t *testing.T) {
	m := NewDefaultGiveawayMetrics("metrics_test")

	m.Message("commit", MessageAccepted)
	m.Message("commit", MessageAccepted)
	m.Message("reveal", MessageLate)
	m.RunFinished("complete")
	m.Reveals(2, 1)
	m.PhaseFinished("committing", 30*time.Second)
	m.PhaseFinished("revealing", 10*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("commit", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues("reveal", "late")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalidReveals))
	assert.Equal(t, 2, testutil.CollectAndCount(m.phaseDurations, "metrics_test_phase_durations"))
}

func TestRegisterOnceReusesCollectors(t *testing.T) {
	a := NewDefaultGiveawayMetrics("metrics_reuse_test")
	b := NewDefaultGiveawayMetrics("metrics_reuse_test")

	a.RunFinished("cancelled")
	assert.Equal(t, 1.0, testutil.ToFloat64(b.runs.WithLabelValues("cancelled")))
}

func TestNilMetrics(t *testing.T) {
	var m *GiveawayMetrics
	assert.NotPanics(t, func() {
		m.Message("commit", MessageDuplicate)
		m.RunFinished("complete")
		m.Reveals(1, 0)
		m.PhaseFinished("committing", time.Second)
	})
}
