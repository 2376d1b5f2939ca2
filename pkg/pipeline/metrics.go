package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hostscan/hostscan/pkg/normalize"
)

const metricsNamespace = "hostscan"

// Metrics are the import counters of one pipeline. Each instance owns a
// private registry so concurrent runs never share counters.
type Metrics struct {
	registry         *prometheus.Registry
	Lines            prometheus.Counter
	Records          prometheus.Counter
	Responses        prometheus.Counter
	TLSResponses     prometheus.Counter
	UnknownVersions  prometheus.Counter
	UnknownCiphers   prometheus.Counter
	DecodeFailures   prometheus.Counter
	TransformSeconds prometheus.Histogram
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "import",
		Name:      name,
		Help:      help,
	})
}

// NewMetrics creates and registers the import metrics.
func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry:        r,
		Lines:           counter("lines_total", "Non-blank input lines read"),
		Records:         counter("records_total", "Records written to the sink"),
		Responses:       counter("responses_total", "Responses normalized"),
		TLSResponses:    counter("tls_responses_total", "Responses with a TLS handshake summary"),
		UnknownVersions: counter("unknown_tls_versions_total", "TLS version codes missing from the catalog"),
		UnknownCiphers:  counter("unknown_cipher_suites_total", "Cipher suite codes missing from the catalog"),
		DecodeFailures:  counter("decode_failures_total", "Lines that failed to decode"),
		TransformSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "import",
			Name:      "transform_duration_seconds",
			Help:      "Time spent normalizing one record",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
	r.MustRegister(m.Lines, m.Records, m.Responses, m.TLSResponses,
		m.UnknownVersions, m.UnknownCiphers, m.DecodeFailures, m.TransformSeconds)
	return m
}

func (m *Metrics) observe(st normalize.Stats) {
	m.Records.Inc()
	m.Responses.Add(float64(st.Responses))
	m.TLSResponses.Add(float64(st.WithTLS))
	m.UnknownVersions.Add(float64(st.UnknownVersions))
	m.UnknownCiphers.Add(float64(st.UnknownCiphers))
}

// Snapshot gathers every counter into a name -> value map. Histograms report
// their sample count.
func (m *Metrics) Snapshot() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				out[mf.GetName()] += metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				out[mf.GetName()+"_count"] += float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}
