// Package metrics exposes dispatch, worker, wallet and HTTP telemetry as
// Prometheus collectors on a private registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes used as the "outcome" label.
const (
	OutcomeCompleted  = "completed"
	OutcomeFailed     = "failed"
	OutcomeTimeout    = "timeout"
	OutcomeUnresolved = "unresolved"
)

// Recorder is the subset of the collector the rest of the service writes to.
type Recorder interface {
	RecordNoMatch()
	RecordDispatch(handler, outcome string, duration time.Duration)
	IncInFlight(handler string)
	DecInFlight(handler string)
	RecordWorkerPermits(active, waiting int)
	RecordWalletLookup(store string, requested, matched int, duration time.Duration, err error)
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncHTTPInFlight()
	DecHTTPInFlight()
}

// Collector implements Recorder on Prometheus.
type Collector struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchLatency  *prometheus.HistogramVec
	dispatchInFlight *prometheus.GaugeVec
	noMatchTotal     prometheus.Counter

	workerActive  prometheus.Gauge
	workerWaiting prometheus.Gauge

	walletLookups *prometheus.CounterVec
	walletLatency *prometheus.HistogramVec
	walletMatched prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewCollector creates a collector under namespace ("dispatcher" when empty).
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "dispatcher"
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	c.dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "total",
			Help:      "Dispatches that matched a selector, by handler and outcome",
		},
		[]string{"handler", "outcome"},
	)
	c.dispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time from selector match to handler result",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"handler"},
	)
	c.dispatchInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "in_flight",
			Help:      "Handler invocations currently awaited",
		},
		[]string{"handler"},
	)
	c.noMatchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "no_match_total",
		Help:      "Dispatches whose call data matched no selector",
	})

	c.workerActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "active",
		Help:      "Worker permits in use",
	})
	c.workerWaiting = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "waiting",
		Help:      "Tasks waiting for a worker permit",
	})

	c.walletLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "lookups_total",
			Help:      "Wallet-by-contact lookups, by store and result",
		},
		[]string{"store", "result"},
	)
	c.walletLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "lookup_duration_seconds",
			Help:      "Wallet lookup latency",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"store"},
	)
	c.walletMatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wallet",
		Name:      "matched_total",
		Help:      "Wallets returned by contact lookups",
	})

	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)
	c.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	c.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "HTTP requests being served",
	})

	c.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the collector was created",
		},
		func() float64 { return time.Since(c.startTime).Seconds() },
	)

	c.registry.MustRegister(
		c.dispatchTotal,
		c.dispatchLatency,
		c.dispatchInFlight,
		c.noMatchTotal,
		c.workerActive,
		c.workerWaiting,
		c.walletLookups,
		c.walletLatency,
		c.walletMatched,
		c.httpRequests,
		c.httpLatency,
		c.httpInFlight,
		c.uptime,
	)

	return c
}

// Registry returns the Prometheus registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordNoMatch counts a dispatch that matched nothing.
func (c *Collector) RecordNoMatch() {
	c.noMatchTotal.Inc()
}

// RecordDispatch records the outcome and latency of a matched dispatch.
func (c *Collector) RecordDispatch(handler, outcome string, duration time.Duration) {
	c.dispatchTotal.WithLabelValues(handler, outcome).Inc()
	c.dispatchLatency.WithLabelValues(handler).Observe(duration.Seconds())
}

func (c *Collector) IncInFlight(handler string) {
	c.dispatchInFlight.WithLabelValues(handler).Inc()
}

func (c *Collector) DecInFlight(handler string) {
	c.dispatchInFlight.WithLabelValues(handler).Dec()
}

// RecordWorkerPermits samples the worker pool.
func (c *Collector) RecordWorkerPermits(active, waiting int) {
	c.workerActive.Set(float64(active))
	c.workerWaiting.Set(float64(waiting))
}

// RecordWalletLookup records one wallet-by-contact query.
func (c *Collector) RecordWalletLookup(store string, requested, matched int, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.walletLookups.WithLabelValues(store, result).Inc()
	c.walletLatency.WithLabelValues(store).Observe(duration.Seconds())
	c.walletMatched.Add(float64(matched))
}

// RecordHTTPRequest records a served request.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, path, status).Inc()
	c.httpLatency.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (c *Collector) IncHTTPInFlight() { c.httpInFlight.Inc() }
func (c *Collector) DecHTTPInFlight() { c.httpInFlight.Dec() }

// NoOp is a Recorder that records nothing.
type NoOp struct{}

func (NoOp) RecordNoMatch()                                            {}
func (NoOp) RecordDispatch(string, string, time.Duration)              {}
func (NoOp) IncInFlight(string)                                        {}
func (NoOp) DecInFlight(string)                                        {}
func (NoOp) RecordWorkerPermits(int, int)                              {}
func (NoOp) RecordWalletLookup(string, int, int, time.Duration, error) {}
func (NoOp) RecordHTTPRequest(string, string, string, time.Duration)   {}
func (NoOp) IncHTTPInFlight()                                          {}
func (NoOp) DecHTTPInFlight()                                          {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = NoOp{}
)
