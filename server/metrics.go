package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan pipeline metrics exposed on /metrics.
var (
	scansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keyvet",
		Name:      "scans_total",
		Help:      "Completed full scans.",
	})
	scansFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keyvet",
		Name:      "scans_failed_total",
		Help:      "Full scans that returned a fatal error.",
	})
	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "keyvet",
		Name:      "scan_duration_seconds",
		Help:      "Wall-clock duration of full scans.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	findingsLastScan = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "keyvet",
		Name:      "findings_last_scan",
		Help:      "Findings produced by the most recent scan.",
	})
)
