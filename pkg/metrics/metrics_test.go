package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Inbound("accepted")
	m.Inbound("accepted")
	m.Inbound("duplicate")
	m.Turn("fallback")
	m.SweepRecovered(3)
	m.SweepRecovered(0)
	m.MeetingNotified()
	m.ObserveModel("reply", time.Now(), errors.New("x"))
	m.SetPendingSessions(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.inbound.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inbound.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues("fallback")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pending))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Inbound("accepted")
	m.Turn("replied")
	m.Extraction("parsed")
	m.ObserveModel("reply", time.Now(), nil)
	m.MeetingNotified()
	m.SetPendingSessions(1)
}
