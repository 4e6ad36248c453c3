package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	setPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftlink",
		Subsystem: "store",
		Name:      "last_set_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout set written to the record store.",
	})
	prRecomputeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftlink",
		Subsystem: "store",
		Name:      "last_pr_recompute_timestamp_seconds",
		Help:      "Unix timestamp of the most recent full personal-record recompute.",
	})
	prBrokenCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlink",
		Subsystem: "session",
		Name:      "personal_records_broken_total",
		Help:      "Number of personal records broken, grouped by metric.",
	}, []string{"metric"})
)

func init() {
	prometheus.MustRegister(setPersistGauge, prRecomputeGauge, prBrokenCounter)
}

// RecordSetPersisted updates the persistence watermark gauge.
func RecordSetPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	setPersistGauge.Set(float64(ts.Unix()))
}

// RecordPRRecompute updates the recompute watermark gauge.
func RecordPRRecompute(ts time.Time) {
	if ts.IsZero() {
		return
	}
	prRecomputeGauge.Set(float64(ts.Unix()))
}

// RecordPRBroken counts newly broken records per metric.
func RecordPRBroken(metric string) {
	prBrokenCounter.WithLabelValues(metric).Inc()
}
