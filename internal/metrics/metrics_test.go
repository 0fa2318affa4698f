package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEscrow_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Transition("order", "completed", "user")
	m.Transition("order", "completed", "user")
	m.Transition("order", "auto_released", "")
	m.SweepRecord("auto_release", "processed")
	m.SweepDuration(150 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("order", "completed", "user")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("order", "auto_released", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRecords.WithLabelValues("auto_release", "processed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.sweepDuration))
}

func TestEscrow_NilSafe(t *testing.T) {
	var m *Escrow
	assert.NotPanics(t, func() {
		m.Transition("order", "completed", "user")
		m.SweepRecord("auto_release", "failed")
		m.SweepDuration(time.Second)
	})
}
