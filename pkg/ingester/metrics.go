package ingester

import (
	"github.com/ValerySidorin/ferry/pkg/batch"
	"github.com/ValerySidorin/ferry/pkg/reconcile"
	"github.com/ValerySidorin/ferry/pkg/transfer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	runs               *prometheus.CounterVec
	runDuration        prometheus.Histogram
	lastRun            prometheus.Gauge
	extractionFailures prometheus.Counter
	transfers          *prometheus.CounterVec
	chunks             prometheus.Counter
	peakInFlight       prometheus.Gauge
	moves              *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)

	return &metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ferry_runs_total",
			Help: "Pipeline runs by result.",
		}, []string{"result"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ferry_run_duration_seconds",
			Help:    "Duration of completed pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "ferry_last_run_completed_timestamp_seconds",
			Help: "Unix time the last pipeline run completed.",
		}),
		extractionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ferry_extraction_failures_total",
			Help: "Metadata files that could not be parsed.",
		}),
		transfers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ferry_transfers_total",
			Help: "Transfer outcomes by status.",
		}, []string{"status"}),
		chunks: f.NewCounter(prometheus.CounterOpts{
			Name: "ferry_chunks_sent_total",
			Help: "Chunk requests answered by the archive.",
		}),
		peakInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "ferry_batch_peak_in_flight",
			Help: "Highest number of concurrent transfers in the last run.",
		}),
		moves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ferry_reconciled_pairs_total",
			Help: "File pairs handled by reconciliation by result.",
		}, []string{"result"}),
	}
}

func (m *metrics) observeTransfers(outcomes []transfer.Outcome, stats batch.Stats) {
	for _, o := range outcomes {
		m.transfers.WithLabelValues(o.Status).Inc()
		m.chunks.Add(float64(o.Chunks))
	}
	m.peakInFlight.Set(float64(stats.PeakInFlight))
}

func (m *metrics) observeReconcile(s reconcile.Summary) {
	m.moves.WithLabelValues("backup").Add(float64(s.BackedUp))
	m.moves.WithLabelValues("error").Add(float64(s.Errored))
	m.moves.WithLabelValues("skipped").Add(float64(s.Skipped))
	m.moves.WithLabelValues("failed").Add(float64(s.Failed))
}
