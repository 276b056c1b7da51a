package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreak_events_published_total",
		Help: "Total number of payment events published to the event log.",
	})

	EventsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreak_events_consumed_total",
		Help: "Total number of payment events fully processed by the subscriber.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreak_events_dropped_total",
		Help: "Total number of payment events dropped after a validation or handler failure.",
	})

	RewardsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreak_rewards_issued_total",
		Help: "Total number of loyalty rewards issued.",
	})

	EventHandlingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paystreak_event_handling_duration_seconds",
		Help:    "Per-event handling latency (cache update through issuance) in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)
