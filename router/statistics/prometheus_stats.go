package statistics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StatisticsType distinguishes a logical request from the physical calls it
// fans out into.
type StatisticsType string

const (
	StatisticsTypeLogical  = StatisticsType("logical")
	StatisticsTypePhysical = StatisticsType("physical")
)

const (
	OutcomeOk    = "ok"
	OutcomeError = "error"
)

var durationBuckets = []float64{
	0.0001, // 100µs
	0.0005, // 500µs
	0.001,  // 1ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.5,    // 500ms
	1.0,    // 1s
	5.0,    // 5s
	10.0,   // 10s
}

var (
	logicalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dataplane_logical_request_duration_seconds",
		Help:    "Logical request duration in seconds, fan-out included",
		Buckets: durationBuckets,
	}, []string{"method"})

	physicalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dataplane_physical_call_duration_seconds",
		Help:    "Duration of a single call to a storage node in seconds",
		Buckets: durationBuckets,
	}, []string{"method"})

	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataplane_calls_total",
		Help: "Physical calls by method and outcome",
	}, []string{"method", "outcome"})

	limiterLimit = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataplane_limiter_limit",
		Help: "Current concurrency limit estimated by the adaptive limiter",
	}, []string{"limiter"})

	limiterInflight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataplane_limiter_inflight",
		Help: "Calls currently admitted by the limiter",
	}, []string{"limiter"})

	limiterRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataplane_limiter_rejected_total",
		Help: "Calls rejected because the concurrency limit was reached",
	}, []string{"limiter", "method"})

	routeCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dataplane_route_cache_size",
		Help: "Number of routes held in the route cache",
	})

	routeCacheEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dataplane_route_cache_evicted_total",
		Help: "Routes evicted by the route cache garbage collector",
	})
)

// RecordCall records one finished physical or logical call.
func RecordCall(statType StatisticsType, method string, d time.Duration, err error) {
	switch statType {
	case StatisticsTypeLogical:
		logicalDuration.WithLabelValues(method).Observe(d.Seconds())
	case StatisticsTypePhysical:
		physicalDuration.WithLabelValues(method).Observe(d.Seconds())
		outcome := OutcomeOk
		if err != nil {
			outcome = OutcomeError
		}
		callsTotal.WithLabelValues(method, outcome).Inc()
	}
}

func SetLimiterLimit(limiter string, limit int) {
	limiterLimit.WithLabelValues(limiter).Set(float64(limit))
}

func SetLimiterInflight(limiter string, inflight int) {
	limiterInflight.WithLabelValues(limiter).Set(float64(inflight))
}

func LimiterRejected(limiter, method string) {
	limiterRejected.WithLabelValues(limiter, method).Inc()
}

func SetRouteCacheSize(n int) {
	routeCacheSize.Set(float64(n))
}

func RouteCacheEvicted(n int) {
	routeCacheEvicted.Add(float64(n))
}
