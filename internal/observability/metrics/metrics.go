package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "gelato_"

	resultSuccess = "success"
	resultError   = "error"
	resultPartial = "partial"
)

var (
	registerOnce sync.Once

	backfillTotal    *prometheus.CounterVec
	backfillLatency  *prometheus.HistogramVec
	backfillGroups   *prometheus.CounterVec
	exportTotal      *prometheus.CounterVec
	exportLatency    *prometheus.HistogramVec
	reportTotal      *prometheus.CounterVec
	reportRows       prometheus.Histogram
	priceBatchTotal  *prometheus.CounterVec
	uploadTotal      *prometheus.CounterVec
	totalsDriftTotal prometheus.Counter
)

// Init registers metrics and DB-backed gauges. Safe to call more than once.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		backfillTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_backfill_total",
				Help: "Total statement backfill runs by result",
			},
			[]string{"result"},
		)
		backfillLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_backfill_latency_seconds",
				Help:    "Statement backfill latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		backfillGroups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_backfill_groups_total",
				Help: "Client-month groups processed by backfill, by outcome",
			},
			[]string{"outcome"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "document_export_total",
				Help: "Total document exports by document, format and result",
			},
			[]string{"document", "format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "document_export_latency_seconds",
				Help:    "Document export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"document", "format"},
		)
		reportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "production_report_total",
				Help: "Total production reports by result",
			},
			[]string{"result"},
		)
		reportRows = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "production_report_rows",
				Help:    "Rows per production report",
				Buckets: prometheus.ExponentialBuckets(1, 4, 6),
			},
		)
		priceBatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "custom_price_batch_total",
				Help: "Custom price batches by result",
			},
			[]string{"result"},
		)
		uploadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "client_document_upload_total",
				Help: "Client document uploads by result",
			},
			[]string{"result"},
		)
		totalsDriftTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_totals_drift_total",
				Help: "Invoices whose line totals drift from the stored order total beyond tolerance",
			},
		)

		prometheus.MustRegister(
			backfillTotal,
			backfillLatency,
			backfillGroups,
			exportTotal,
			exportLatency,
			reportTotal,
			reportRows,
			priceBatchTotal,
			uploadTotal,
			totalsDriftTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveBackfill records a backfill run.
func ObserveBackfill(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if backfillTotal != nil {
		backfillTotal.WithLabelValues(result).Inc()
	}
	if backfillLatency != nil {
		backfillLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddBackfillGroups counts groups by outcome (created, updated, failed).
func AddBackfillGroups(outcome string, count int) {
	if count <= 0 {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if backfillGroups != nil {
		backfillGroups.WithLabelValues(outcome).Add(float64(count))
	}
}

// ObserveExport records document export latency and result.
func ObserveExport(document, format, result string, duration time.Duration) {
	if document == "" {
		document = "unknown"
	}
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(document, format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(document, format).Observe(duration.Seconds())
	}
}

// ObserveReport records a production report.
func ObserveReport(result string, rows int) {
	if result == "" {
		result = resultSuccess
	}
	if reportTotal != nil {
		reportTotal.WithLabelValues(result).Inc()
	}
	if reportRows != nil && result == resultSuccess {
		reportRows.Observe(float64(rows))
	}
}

// IncPriceBatch counts a custom price batch.
func IncPriceBatch(result string) {
	if result == "" {
		result = resultSuccess
	}
	if priceBatchTotal != nil {
		priceBatchTotal.WithLabelValues(result).Inc()
	}
}

// IncUpload counts a client document upload.
func IncUpload(result string) {
	if result == "" {
		result = resultSuccess
	}
	if uploadTotal != nil {
		uploadTotal.WithLabelValues(result).Inc()
	}
}

// IncTotalsDrift counts an out-of-tolerance invoice.
func IncTotalsDrift() {
	if totalsDriftTotal != nil {
		totalsDriftTotal.Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultPartial = resultPartial
)
