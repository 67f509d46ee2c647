package metrics

import "github.com/prometheus/client_golang/prometheus"

// InflationMetrics tracks calculator invocations.
type InflationMetrics struct {
	calculations *prometheus.CounterVec
	percent      prometheus.Histogram
}

// NewInflationMetrics registers the calculator metrics on the provided registerer.
func NewInflationMetrics(reg prometheus.Registerer) *InflationMetrics {
	if reg == nil {
		return &InflationMetrics{}
	}
	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inflation",
		Name:      "calculations_total",
		Help:      "Inflation calculations by outcome.",
	}, []string{"outcome"})
	percent := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "inflation",
		Name:      "percent",
		Help:      "Basket inflation percent produced by successful calculations.",
		Buckets:   []float64{-20, -10, -5, -2, 0, 2, 5, 10, 20, 50},
	})
	reg.MustRegister(calculations, percent)
	return &InflationMetrics{calculations: calculations, percent: percent}
}

// Observe records a successful calculation.
func (m *InflationMetrics) Observe(percent float64) {
	if m == nil || m.calculations == nil {
		return
	}
	m.calculations.WithLabelValues("ok").Inc()
	m.percent.Observe(percent)
}

// IncFailure records a failed calculation by error code.
func (m *InflationMetrics) IncFailure(code string) {
	if m == nil || m.calculations == nil {
		return
	}
	m.calculations.WithLabelValues(normalizeLabel(code)).Inc()
}
