package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Keys for outcome labels.
const (
	Fail = "fail"
	Ok   = "ok"
)

// Collectors for the store session and lock manager.
var (
	StatementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ggc_statements_total",
		Help: "Cumulative number of statements sent to the database, by outcome.",
	}, []string{"outcome"})
	LockAcquisitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ggc_lock_acquisitions_total",
		Help: "Cumulative number of table lock requests, by outcome.",
	}, []string{"outcome"})
	IDsAllocatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ggc_ids_allocated_total",
		Help: "Cumulative number of surrogate ids allocated, by id class.",
	}, []string{"class"})
)

// Collectors for the bulk exporter.
var (
	ExportPagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ggc_export_pages_total",
		Help: "Cumulative number of export pages written.",
	})
	ExportRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ggc_export_records_total",
		Help: "Cumulative number of record blocks rendered.",
	})
	ExportBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ggc_export_bytes_total",
		Help: "Cumulative number of compressed bytes written to export shards.",
	})
	ExportPageSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ggc_export_page_seconds",
		Help:    "Time spent querying and writing one export page.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		StatementsTotal,
		LockAcquisitionsTotal,
		IDsAllocatedTotal,
		ExportPagesTotal,
		ExportRecordsTotal,
		ExportBytesTotal,
		ExportPageSeconds,
	}
}

// Register adds every collector to reg
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return nil
}

// MustRegister registers every collector, panicking on conflict
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(collectors()...)
}

// ObservePage records the duration of one export page
func ObservePage(start time.Time) {
	ExportPageSeconds.Observe(time.Since(start).Seconds())
}
