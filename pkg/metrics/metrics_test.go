package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.InstanceBuilt("mock", "success")
	m.InstanceBuilt("mock", "success")
	m.SignatureLookup(LookupHit)
	m.InstanceBuildLatency("mock", "31337", 25*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.instanceBuildCount.WithLabelValues("mock", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signatureLookupCount.WithLabelValues(LookupHit)))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.instanceBuildLatencyMS.WithLabelValues("mock", "31337")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.InstanceBuilt("remote", "error")
		m.InstanceBuildLatency("remote", "1", time.Second)
		m.LifecycleTransition("ready")
		m.SignatureLookup(LookupMiss)
		m.SignaturePrompt("signed")
		m.EncryptedInput("success")
	})
}
