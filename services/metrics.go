package services

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rfm"

// Metrics holds the counters and gauges emitted by one pipeline. Each
// Metrics owns its registry, so independent pipelines never share series.
type Metrics struct {
	Registry *prometheus.Registry

	RawRows                 prometheus.Counter
	FullRowDuplicates       prometheus.Counter
	TransactionIDDuplicates prometheus.Counter
	DroppedRows             prometheus.Counter
	CleanRows               prometheus.Counter
	Customers               prometheus.Gauge
	MeanRFMScore            prometheus.Gauge
	QuintileEdges           *prometheus.GaugeVec
	ClampedMonetary         prometheus.Counter
	StageSeconds            *prometheus.GaugeVec
}

// NewMetrics creates a Metrics with a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RawRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "cleaner", Name: "raw_rows_total",
			Help: "Ledger rows received by the cleaner.",
		}),
		FullRowDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "cleaner", Name: "full_row_duplicates_total",
			Help: "Rows identical in every column to an earlier row.",
		}),
		TransactionIDDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "cleaner", Name: "transaction_id_duplicates_total",
			Help: "Rows whose transaction id appeared on an earlier row.",
		}),
		DroppedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "cleaner", Name: "dropped_missing_total",
			Help: "Rows dropped for a missing or unparsable field.",
		}),
		CleanRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "cleaner", Name: "clean_rows_total",
			Help: "Rows that survived cleaning.",
		}),
		Customers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "aggregator", Name: "customers",
			Help: "Distinct customers in the last aggregation.",
		}),
		MeanRFMScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "scorer", Name: "mean_rfm_score",
			Help: "Mean composite RFM score of the last scoring pass.",
		}),
		QuintileEdges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "scorer", Name: "distinct_quintile_edges",
			Help: "Distinct quintile edges per metric; below 6 means tied bins were collapsed.",
		}, []string{"metric"}),
		ClampedMonetary: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "features", Name: "clamped_monetary_total",
			Help: "Negative Monetary values clamped to zero before the log transform.",
		}),
		StageSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "pipeline", Name: "stage_seconds",
			Help: "Wall time of each pipeline stage in the last run.",
		}, []string{"stage"}),
	}

	m.Registry.MustRegister(
		m.RawRows,
		m.FullRowDuplicates,
		m.TransactionIDDuplicates,
		m.DroppedRows,
		m.CleanRows,
		m.Customers,
		m.MeanRFMScore,
		m.QuintileEdges,
		m.ClampedMonetary,
		m.StageSeconds,
	)
	return m
}

// WriteTextfile writes the current values in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("metrics: write %q: %w", path, err)
	}
	return nil
}
