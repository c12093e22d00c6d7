package inventory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "kitchen_cost"

// Metrics holds the Prometheus collectors for the costing engine.
// A nil *Metrics is valid and records nothing.
// 原価計算エンジンのPrometheusメトリクス（nilの場合は何も記録しない）
type Metrics struct {
	warnings        *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	matches         *prometheus.CounterVec
	negativeUsage   prometheus.Counter
	orderGuideLines *prometheus.CounterVec
	skippedWaste    *prometheus.CounterVec
}

// NewMetrics creates collectors and registers them with reg
// メトリクスを作成して登録
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "explosion_warnings_total",
			Help:      "Non-fatal data quality issues absorbed during recipe explosion.",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "theoretical_runs_total",
			Help:      "Theoretical usage runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "theoretical_run_duration_seconds",
			Help:      "Wall time of theoretical usage runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "vendor_matches_total",
			Help:      "Vendor product matches by confidence tier.",
		}, []string{"confidence"}),
		negativeUsage: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "negative_usage_rows_total",
			Help:      "Usage rows flagged negative between counts.",
		}),
		orderGuideLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "order_guide_lines_total",
			Help:      "Order guide lines by processing outcome.",
		}, []string{"outcome"}),
		skippedWaste: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "waste_logs_skipped_total",
			Help:      "Waste logs left out of on-hand estimates.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.warnings, m.runs, m.runDuration, m.matches, m.negativeUsage, m.orderGuideLines, m.skippedWaste)
	}
	return m
}

func (m *Metrics) warning(kind WarningKind) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) runFinished(status RunStatus, started time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) match(c Confidence) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) negativeUsageRow() {
	if m == nil {
		return
	}
	m.negativeUsage.Inc()
}

func (m *Metrics) orderGuideLine(outcome string) {
	if m == nil {
		return
	}
	m.orderGuideLines.WithLabelValues(outcome).Inc()
}

func (m *Metrics) wasteSkipped(reason string) {
	if m == nil {
		return
	}
	m.skippedWaste.WithLabelValues(reason).Inc()
}
