package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "indexing",
		Name:      "records_indexed_total",
		Help:      "Records indexed, by collection and outcome.",
	}, []string{"collection", "outcome"})

	RecordsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "indexing",
		Name:      "records_deleted_total",
		Help:      "Records deleted, by collection.",
	}, []string{"collection"})

	NotificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "indexing",
		Name:      "notifications_emitted_total",
		Help:      "Notification events emitted, by reason.",
	}, []string{"reason"})

	IndexingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "meridian",
		Subsystem: "indexing",
		Name:      "duration_seconds",
		Help:      "Wall time of record indexing transactions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"collection"})
)

const (
	OutcomeIndexed   = "indexed"
	OutcomeSkipped   = "skipped"
	OutcomeDuplicate = "duplicate"
)
