package metrics

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics for the sync engine and the reference server REST API
var (
	// to prevent metrics from being initialized multiple times
	isMetricsInitVar uint32 = 0

	// Number of completed background sync cycles by outcome (clean, error)
	SyncCyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_cycles_total",
		Help: "The total number of completed background sync cycles",
	}, []string{"outcome"})

	// Number of cycle failures by stage (fetch, merge, detect, persist)
	SyncStageFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_stage_failures_total",
		Help: "The total number of sync cycle failures by stage",
	}, []string{"stage"})

	// Number of keys added to the local store by merges
	KeysMergedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keys_merged_total",
		Help: "The total number of diagnosis keys added by merges",
	})

	// Number of keys removed from the local store by merges
	KeysRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keys_removed_total",
		Help: "The total number of diagnosis keys removed by merges",
	})

	// Number of exposure entities persisted
	ExposuresPersistedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exposures_persisted_total",
		Help: "The total number of exposure match results persisted",
	})

	// Number of exposure notifications dispatched and confirmed
	NotificationsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "The total number of exposure notifications dispatched",
	})

	// active REST API connections
	activeRESTConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_rest_connections",
			Help: "Number of active REST API connections",
		},
	)

	// response times for REST APIs
	responseTimeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_response_time_milliseconds",
			Help:    "REST API response time distributions",
			Buckets: []float64{1, 10, 50, 100, 200, 300, 400, 500},
		},
		[]string{"method", "endpoint"},
	)

	// Number of requests processed by REST API
	RESTRequestMetricsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rest_requests_processed_total",
		Help: "The total number of processed REST requests",
	}, []string{"method", "endpoint"})
)

func setIsMetricsInit() {
	atomic.StoreUint32(&isMetricsInitVar, 1)
}

func isMetricsInit() bool {
	return atomic.LoadUint32(&isMetricsInitVar) == 1
}

func InitMetrics() {
	if !isMetricsInit() {
		setIsMetricsInit()

		// Metrics have to be registered to be exposed
		prometheus.MustRegister(SyncCyclesTotal)
		prometheus.MustRegister(SyncStageFailures)
		prometheus.MustRegister(KeysMergedTotal)
		prometheus.MustRegister(KeysRemovedTotal)
		prometheus.MustRegister(ExposuresPersistedTotal)
		prometheus.MustRegister(NotificationsSentTotal)
		prometheus.MustRegister(activeRESTConnections)
		prometheus.MustRegister(responseTimeRESTAPI)
		prometheus.MustRegister(RESTRequestMetricsTotal)
	}
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Increment the counter for the given endpoint:
		RESTRequestMetricsTotal.WithLabelValues(c.Request.Method, c.FullPath()).Inc()

		// Start timing responseTime histogram
		start := time.Now()

		// Set activeConnections gauge
		activeRESTConnections.Inc()
		defer activeRESTConnections.Dec()

		c.Next()

		// Set responseTime histogram
		latency := time.Since(start)
		responseTimeRESTAPI.WithLabelValues(c.Request.Method, c.Request.URL.Path).Observe(float64(latency.Milliseconds()))
	}
}
