package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	TurnsStarted        prometheus.Counter
	TurnsCompleted      prometheus.Counter
	TurnsFailed         *prometheus.CounterVec
	TurnsCancelled      prometheus.Counter
	TurnsRejected       prometheus.Counter
	RateLimited         *prometheus.CounterVec
	DeltasRelayed       prometheus.Counter
	PersistenceFailures prometheus.Counter
	TurnDuration        prometheus.Histogram
	Uploads             *prometheus.CounterVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			TurnsStarted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "gochat",
				Name:      "turns_started_total",
				Help:      "Chat turns that reached the model call",
			}),
			TurnsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "gochat",
				Name:      "turns_completed_total",
				Help:      "Chat turns whose stream finished normally",
			}),
			TurnsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gochat",
				Name:      "turns_failed_total",
				Help:      "Chat turns that failed, by error type",
			}, []string{"type"}),
			TurnsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "gochat",
				Name:      "turns_cancelled_total",
				Help:      "Chat turns cancelled by the consumer",
			}),
			TurnsRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "gochat",
				Name:      "turns_rejected_total",
				Help:      "Chat turns rejected because another turn held the chat",
			}),
			RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gochat",
				Name:      "rate_limited_total",
				Help:      "Requests blocked by a rate limiter, by limiter name",
			}, []string{"limiter"}),
			DeltasRelayed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "gochat",
				Name:      "stream_deltas_total",
				Help:      "Text deltas relayed to clients",
			}),
			PersistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "gochat",
				Name:      "persistence_failures_total",
				Help:      "Post-stream writes that failed and were swallowed",
			}),
			TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "gochat",
				Name:      "turn_duration_seconds",
				Help:      "Wall time from model call to end of stream",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			}),
			Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gochat",
				Name:      "uploads_total",
				Help:      "File uploads by outcome",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			global.TurnsStarted,
			global.TurnsCompleted,
			global.TurnsFailed,
			global.TurnsCancelled,
			global.TurnsRejected,
			global.RateLimited,
			global.DeltasRelayed,
			global.PersistenceFailures,
			global.TurnDuration,
			global.Uploads,
		)
	})
	return global
}
