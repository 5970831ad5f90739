// monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/boomberg/logger"
)

type Metrics struct {
	OpenStreams        prometheus.Gauge
	EventsPublished    prometheus.Counter
	EventsDelivered    prometheus.Counter
	HeartbeatsSent     prometheus.Counter
	TickerRejections   prometheus.Counter
	TickerCollisions   prometheus.Counter
	AllocationFailures prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OpenStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_streams",
			Help:      "Number of open event streams",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of broker publishes",
		}),
		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Total number of handler invocations caused by publishes",
		}),
		HeartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_sent_total",
			Help:      "Total number of heartbeat frames written",
		}),
		TickerRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticker_rejections_total",
			Help:      "Random draws discarded by rejection sampling",
		}),
		TickerCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticker_collisions_total",
			Help:      "Drawn tickers already held by an active game",
		}),
		AllocationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticker_allocation_failures_total",
			Help:      "Ticker allocations that ran out of attempts",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.OpenStreams,
		m.EventsPublished,
		m.EventsDelivered,
		m.HeartbeatsSent,
		m.TickerRejections,
		m.TickerCollisions,
		m.AllocationFailures,
		m.RequestDuration,
	)

	return m
}

// Monitor owns a private registry so several instances (tests) never clash.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
	server    *http.Server
	mutex     sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		registry:  reg,
		startTime: time.Now(),
	}
}

func (m *Monitor) Metrics() *Metrics { return m.metrics }

func (m *Monitor) Registry() *prometheus.Registry { return m.registry }

var publishUptime sync.Once

// Handler serves /metrics and expvar's /debug/vars.
func (m *Monitor) Handler() http.Handler {
	// 添加expvar指标, 全局只能注册一次
	publishUptime.Do(func() {
		start := m.startTime
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(start).Seconds()
		}))
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

func (m *Monitor) StartServer(addr string) {
	m.mutex.Lock()
	m.server = &http.Server{Addr: addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	srv := m.server
	m.mutex.Unlock()

	go func() {
		logger.Log.Infof("Metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("metrics server: %v", err)
		}
	}()
}

func (m *Monitor) Shutdown(ctx context.Context) error {
	m.mutex.Lock()
	srv := m.server
	m.mutex.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// network.StreamMetrics

func (m *Monitor) StreamOpened()  { m.metrics.OpenStreams.Inc() }
func (m *Monitor) StreamClosed()  { m.metrics.OpenStreams.Dec() }
func (m *Monitor) HeartbeatSent() { m.metrics.HeartbeatsSent.Inc() }

// tickers.Metrics

func (m *Monitor) IncTickerRejections()         { m.metrics.TickerRejections.Inc() }
func (m *Monitor) IncTickerCollisions()         { m.metrics.TickerCollisions.Inc() }
func (m *Monitor) IncTickerAllocationFailures() { m.metrics.AllocationFailures.Inc() }

// ObservePublish is installed as the broker's publish hook.
func (m *Monitor) ObservePublish(delivered int) {
	m.metrics.EventsPublished.Inc()
	m.metrics.EventsDelivered.Add(float64(delivered))
}

func (m *Monitor) ObserveRequest(route string, duration time.Duration) {
	m.metrics.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
