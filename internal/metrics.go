package internal

import (
	"context"
	"net/http"
	"time"

	"it-asset-manager-api/pkg/models"
	"it-asset-manager-api/pkg/store"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for HTTP requests and store operations
type Metrics struct {
	reqTotal   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec
	storeOps   *prometheus.CounterVec
	storeTime  *prometheus.HistogramVec
	registry   *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with a private Prometheus registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	reqTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	reqLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	storeOps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_operations_total",
			Help: "Asset store operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	storeTime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_store_operation_duration_seconds",
			Help:    "Asset store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	registry.MustRegister(reqTotal, reqLatency, storeOps, storeTime)

	return &Metrics{
		reqTotal:   reqTotal,
		reqLatency: reqLatency,
		storeOps:   storeOps,
		storeTime:  storeTime,
		registry:   registry,
	}
}

// Middleware returns a Chi middleware that collects metrics
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

			next.ServeHTTP(rw, r)

			// label by route pattern so ids do not explode cardinality
			path := r.URL.Path
			if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil {
				if p := chiCtx.RoutePattern(); p != "" {
					path = p
				}
			}

			status := http.StatusText(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentStore wraps next so every call is counted by op and outcome
func (m *Metrics) InstrumentStore(next store.Store) store.Store {
	return &instrumentedStore{next: next, m: m}
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = store.KindOf(err).String()
	}
	m.storeOps.WithLabelValues(op, outcome).Inc()
	m.storeTime.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

type instrumentedStore struct {
	next store.Store
	m    *Metrics
}

func (s *instrumentedStore) Create(ctx context.Context, req models.CreateAssetRequest) (models.Asset, error) {
	start := time.Now()
	a, err := s.next.Create(ctx, req)
	s.m.observe("create", start, err)
	return a, err
}

func (s *instrumentedStore) List(ctx context.Context) ([]models.Asset, error) {
	start := time.Now()
	assets, err := s.next.List(ctx)
	s.m.observe("list", start, err)
	return assets, err
}

func (s *instrumentedStore) Get(ctx context.Context, id int64) (models.Asset, error) {
	start := time.Now()
	a, err := s.next.Get(ctx, id)
	s.m.observe("get", start, err)
	return a, err
}

func (s *instrumentedStore) Update(ctx context.Context, id int64, req models.UpdateAssetRequest) (models.Asset, error) {
	start := time.Now()
	a, err := s.next.Update(ctx, id, req)
	s.m.observe("update", start, err)
	return a, err
}

func (s *instrumentedStore) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	err := s.next.Delete(ctx, id)
	s.m.observe("delete", start, err)
	return err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}

// statusRecorder captures the HTTP status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	return sr.ResponseWriter.Write(b)
}
