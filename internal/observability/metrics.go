package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	entryPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_tracker",
		Subsystem: "ledger",
		Name:      "last_entry_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent ledger entry persisted to Postgres.",
	})
	awardsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_tracker",
		Subsystem: "achievements",
		Name:      "awards_total",
		Help:      "Number of achievement awards persisted.",
	})
	evaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activity_tracker",
		Subsystem: "achievements",
		Name:      "evaluation_duration_seconds",
		Help:      "Time spent running the achievement rule evaluator.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(entryPersistGauge, awardsCounter, evaluationDuration)
}

// RecordEntryPersisted updates the ledger watermark gauge.
func RecordEntryPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	entryPersistGauge.Set(float64(ts.Unix()))
}

// RecordAchievementAwarded counts a persisted award.
func RecordAchievementAwarded() {
	awardsCounter.Inc()
}

// ObserveEvaluation records how long one evaluator pass took.
func ObserveEvaluation(d time.Duration) {
	evaluationDuration.Observe(d.Seconds())
}
