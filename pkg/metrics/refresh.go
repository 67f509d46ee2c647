package metrics

import "github.com/prometheus/client_golang/prometheus"

// RefreshMetrics counts the outcome of price refresh batches.
type RefreshMetrics struct {
	appended     *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	storesFailed prometheus.Counter
}

// NewRefreshMetrics registers the refresh metrics on the provided registerer.
func NewRefreshMetrics(reg prometheus.Registerer) *RefreshMetrics {
	if reg == nil {
		return &RefreshMetrics{}
	}
	appended := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "refresh",
		Name:      "price_points_appended_total",
		Help:      "Price points appended by refresh runs.",
	}, []string{"store_id"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "refresh",
		Name:      "items_skipped_total",
		Help:      "Products without a usable price during refresh runs.",
	}, []string{"reason"})
	storesFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "refresh",
		Name:      "stores_failed_total",
		Help:      "Store batches that failed and were recorded to the error log.",
	})
	reg.MustRegister(appended, skipped, storesFailed)
	return &RefreshMetrics{appended: appended, skipped: skipped, storesFailed: storesFailed}
}

// AddAppended adds n appended price points for the store.
func (r *RefreshMetrics) AddAppended(storeID string, n int) {
	if r == nil || r.appended == nil || n <= 0 {
		return
	}
	r.appended.WithLabelValues(normalizeLabel(storeID)).Add(float64(n))
}

// IncSkipped counts one product skipped for the given reason.
func (r *RefreshMetrics) IncSkipped(reason string) {
	if r == nil || r.skipped == nil {
		return
	}
	r.skipped.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncStoreFailed counts one failed store batch.
func (r *RefreshMetrics) IncStoreFailed() {
	if r == nil || r.storesFailed == nil {
		return
	}
	r.storesFailed.Inc()
}
