package obs

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	cacheStoreFail   *prometheus.CounterVec
	networkErrors    *prometheus.CounterVec
	lifecycleEvents  *prometheus.CounterVec
	generationDelete *prometheus.CounterVec
	hookEvents       *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	activeVersion    *prometheus.GaugeVec
	mu               sync.Mutex
	lastVersion      string
}

var (
	defaultMetricsMu sync.RWMutex
	defaultMetrics   *Metrics
)

func SetDefaultMetrics(metrics *Metrics) {
	defaultMetricsMu.Lock()
	defaultMetrics = metrics
	defaultMetricsMu.Unlock()
}

func DefaultMetrics() *Metrics {
	defaultMetricsMu.RLock()
	defer defaultMetricsMu.RUnlock()
	return defaultMetrics
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_requests_total",
		Help: "Total intercepted requests",
	}, []string{"class", "source"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_cache_lookups_total",
		Help: "Total cache lookups",
	}, []string{"result"})

	cacheStoreFail := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_cache_store_fail_total",
		Help: "Total failed cache writes",
	}, []string{"role"})

	networkErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_network_errors_total",
		Help: "Total network failures seen by the interceptor",
	}, []string{"class"})

	lifecycleEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_lifecycle_events_total",
		Help: "Total lifecycle events",
	}, []string{"event", "result"})

	generationDelete := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_generation_deletes_total",
		Help: "Total stale generation deletions",
	}, []string{"result"})

	hookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_hook_events_total",
		Help: "Total sync, push and notification click events",
	}, []string{"hook", "result"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_request_duration_seconds",
		Help:    "Interception duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"class"})

	activeVersion := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "worker_active_version_info",
		Help: "Active worker version",
	}, []string{"version"})

	registry.MustRegister(requests, cacheLookups, cacheStoreFail, networkErrors, lifecycleEvents, generationDelete, hookEvents, requestDuration, activeVersion)

	return &Metrics{
		registry:         registry,
		requests:         requests,
		cacheLookups:     cacheLookups,
		cacheStoreFail:   cacheStoreFail,
		networkErrors:    networkErrors,
		lifecycleEvents:  lifecycleEvents,
		generationDelete: generationDelete,
		hookEvents:       hookEvents,
		requestDuration:  requestDuration,
		activeVersion:    activeVersion,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(class string, source string, duration time.Duration) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	m.requests.WithLabelValues(defaultString(class, "unknown"), defaultString(source, "none")).Inc()
	m.requestDuration.WithLabelValues(defaultString(class, "unknown")).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCacheStoreFail(role string) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	m.cacheStoreFail.WithLabelValues(defaultString(role, "unknown")).Inc()
}

func (m *Metrics) RecordNetworkError(class string) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	m.networkErrors.WithLabelValues(defaultString(class, "unknown")).Inc()
}

func (m *Metrics) RecordLifecycle(event string, result string) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	m.lifecycleEvents.WithLabelValues(event, result).Inc()
}

func (m *Metrics) RecordGenerationDelete(result string) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	m.generationDelete.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordHook(hook string, result string) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	m.hookEvents.WithLabelValues(hook, result).Inc()
}

// SetActiveVersion keeps exactly one version series at 1.
func (m *Metrics) SetActiveVersion(version string) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastVersion != "" && m.lastVersion != version {
		m.activeVersion.DeleteLabelValues(m.lastVersion)
	}
	m.lastVersion = version
	m.activeVersion.WithLabelValues(version).Set(1)
}
