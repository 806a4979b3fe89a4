// Package metrics exposes Prometheus collectors for instance construction,
// lifecycle transitions and the decryption signature cache. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fhevm_session"

// Signature cache lookup outcomes.
const (
	LookupHit      = "hit"
	LookupMiss     = "miss"
	LookupExpired  = "expired"
	LookupMismatch = "mismatch"
	LookupCorrupt  = "corrupt"
)

type Metrics struct {
	instanceBuildCount     *prometheus.CounterVec
	instanceBuildLatencyMS *prometheus.GaugeVec
	lifecycleTransitions   *prometheus.CounterVec
	signatureLookupCount   *prometheus.CounterVec
	signaturePromptCount   *prometheus.CounterVec
	encryptedInputCount    *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		instanceBuildCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instance_build_count",
				Help:      "Number of instance constructions by path and result",
			},
			[]string{"path", "result"},
		),
		instanceBuildLatencyMS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "instance_build_latency_ms",
				Help:      "Latency of the last successful instance construction in milliseconds",
			},
			[]string{"path", "chain_id"},
		),
		lifecycleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_transition_count",
				Help:      "Number of lifecycle status transitions by target status",
			},
			[]string{"status"},
		),
		signatureLookupCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signature_lookup_count",
				Help:      "Number of decryption signature cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		signaturePromptCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signature_prompt_count",
				Help:      "Number of signing prompts by result",
			},
			[]string{"result"},
		),
		encryptedInputCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "encrypted_input_count",
				Help:      "Number of encrypted inputs by result",
			},
			[]string{"result"},
		),
	}

	registerer.MustRegister(m.instanceBuildCount)
	registerer.MustRegister(m.instanceBuildLatencyMS)
	registerer.MustRegister(m.lifecycleTransitions)
	registerer.MustRegister(m.signatureLookupCount)
	registerer.MustRegister(m.signaturePromptCount)
	registerer.MustRegister(m.encryptedInputCount)

	return &m
}

func (m *Metrics) InstanceBuilt(path, result string) {
	if m == nil {
		return
	}
	m.instanceBuildCount.WithLabelValues(path, result).Inc()
}

// InstanceBuildCounter returns the build counter for path and result.
func (m *Metrics) InstanceBuildCounter(path, result string) prometheus.Counter {
	return m.instanceBuildCount.WithLabelValues(path, result)
}

func (m *Metrics) InstanceBuildLatency(path, chainID string, d time.Duration) {
	if m == nil {
		return
	}
	m.instanceBuildLatencyMS.WithLabelValues(path, chainID).Set(float64(d.Milliseconds()))
}

func (m *Metrics) LifecycleTransition(status string) {
	if m == nil {
		return
	}
	m.lifecycleTransitions.WithLabelValues(status).Inc()
}

// LifecycleTransitionCounter returns the transition counter for status.
func (m *Metrics) LifecycleTransitionCounter(status string) prometheus.Counter {
	return m.lifecycleTransitions.WithLabelValues(status)
}

func (m *Metrics) SignatureLookup(outcome string) {
	if m == nil {
		return
	}
	m.signatureLookupCount.WithLabelValues(outcome).Inc()
}

// SignatureLookupCounter returns the lookup counter for outcome.
func (m *Metrics) SignatureLookupCounter(outcome string) prometheus.Counter {
	return m.signatureLookupCount.WithLabelValues(outcome)
}

func (m *Metrics) SignaturePrompt(result string) {
	if m == nil {
		return
	}
	m.signaturePromptCount.WithLabelValues(result).Inc()
}

// SignaturePromptCounter returns the prompt counter for result.
func (m *Metrics) SignaturePromptCounter(result string) prometheus.Counter {
	return m.signaturePromptCount.WithLabelValues(result)
}

func (m *Metrics) EncryptedInput(result string) {
	if m == nil {
		return
	}
	m.encryptedInputCount.WithLabelValues(result).Inc()
}
