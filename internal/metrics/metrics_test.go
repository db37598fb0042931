package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Submitted("accepted")
	m.Submitted("policy")
	m.Completed("DONE")
	m.ObserveStep(StepOK, 150*time.Millisecond)
	m.ObserveStep(StepTimeout, 10*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsSubmitted.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsSubmitted.WithLabelValues("policy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsCompleted.WithLabelValues("DONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues(StepTimeout)))

	n, err := testutil.GatherAndCount(reg, "hostcheck_step_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Submitted("accepted")
	m.Completed("FAILED")
	m.ObserveStep(StepOK, time.Second)
}

func TestStepResult(t *testing.T) {
	assert.Equal(t, StepOK, StepResult(0))
	assert.Equal(t, StepNonzero, StepResult(1))
	assert.Equal(t, StepTimeout, StepResult(124))
	assert.Equal(t, StepError, StepResult(255))
}
