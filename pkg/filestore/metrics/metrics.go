// Package metrics exposes Prometheus metrics for file operations and HTTP
// traffic. File metrics are fed through the filestore.EventSink interface.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-filestore/pkg/filestore"
)

const namespace = "filestore"

// Metrics holds the collectors and implements filestore.EventSink
type Metrics struct {
	gatherer prometheus.Gatherer

	uploads       *prometheus.CounterVec
	uploadedBytes prometheus.Counter
	downloads     prometheus.Counter
	deletes       prometheus.Counter
	renames       prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers all collectors on reg and serves them from
// gatherer. Registration panics on duplicates, as MustRegister does.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Files uploaded, by visibility.",
		}, []string{"visibility"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes stored by successful uploads.",
		}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Download streams handed out.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Files deleted.",
		}),
		renames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renames_total",
			Help:      "Files renamed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.uploads, m.uploadedBytes, m.downloads, m.deletes, m.renames,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler serves the gathered metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) FileUploaded(ctx context.Context, file *filestore.FileRecord) error {
	m.uploads.WithLabelValues(string(file.Visibility)).Inc()
	m.uploadedBytes.Add(float64(file.SizeBytes))
	return nil
}

func (m *Metrics) FileRenamed(ctx context.Context, file *filestore.FileRecord, oldName string) error {
	m.renames.Inc()
	return nil
}

func (m *Metrics) FileDeleted(ctx context.Context, file *filestore.FileRecord) error {
	m.deletes.Inc()
	return nil
}

func (m *Metrics) FileDownloaded(ctx context.Context, file *filestore.FileRecord, requesterID string) error {
	m.downloads.Inc()
	return nil
}

// Middleware records request count and latency. Routes are labelled with the
// chi route pattern so ids do not blow up label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
