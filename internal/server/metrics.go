package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/recognizer"
)

// Metrics holds the server and pipeline collectors. It implements
// pipeline.Observer so the same set records region and image events.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	imagesTotal     *prometheus.CounterVec
	imageDuration   prometheus.Histogram
	recordsPerImage prometheus.Histogram
	regionsTotal    prometheus.Counter
	regionsSkipped  *prometheus.CounterVec
	decodeSteps     prometheus.Histogram
	decodeOverruns  prometheus.Counter
	regionDuration  prometheus.Histogram

	rateLimitHits          prometheus.Counter
	uploadSizeBytes        prometheus.Histogram
	websocketConnections   prometheus.Gauge
	websocketMessagesTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg, or with a fresh registry
// when reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cyrocr_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cyrocr_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		imagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cyrocr_images_total",
			Help: "Images processed by the pipeline",
		}, []string{"status"}),
		imageDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyrocr_image_duration_seconds",
			Help:    "End-to-end processing time per image",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		}),
		recordsPerImage: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyrocr_records_per_image",
			Help:    "Transcription records produced per image",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		regionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "cyrocr_regions_recognized_total",
			Help: "Regions transcribed",
		}),
		regionsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cyrocr_regions_skipped_total",
			Help: "Regions skipped, by reason",
		}, []string{"reason"}),
		decodeSteps: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyrocr_decode_steps",
			Help:    "Decode steps per region",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 60, 80, 100},
		}),
		decodeOverruns: f.NewCounter(prometheus.CounterOpts{
			Name: "cyrocr_decode_overruns_total",
			Help: "Regions whose decode hit the step limit without EOS",
		}),
		regionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyrocr_region_duration_seconds",
			Help:    "Recognition time per region",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),

		rateLimitHits: f.NewCounter(prometheus.CounterOpts{
			Name: "cyrocr_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		}),
		uploadSizeBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyrocr_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		}),
		websocketConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "cyrocr_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		}),
		websocketMessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cyrocr_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		}, []string{"direction"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RegionDone implements pipeline.Observer.
func (m *Metrics) RegionDone(tr recognizer.Transcript, d time.Duration) {
	m.regionsTotal.Inc()
	m.decodeSteps.Observe(float64(tr.Steps))
	m.regionDuration.Observe(d.Seconds())
	if !tr.Terminated {
		m.decodeOverruns.Inc()
	}
}

// RegionSkipped implements pipeline.Observer.
func (m *Metrics) RegionSkipped(reason string) {
	m.regionsSkipped.WithLabelValues(reason).Inc()
}

// ImageDone implements pipeline.Observer.
func (m *Metrics) ImageDone(records int, d time.Duration, err error) {
	status := "ok"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = "cancelled"
	case err != nil:
		status = "error"
	}
	m.imagesTotal.WithLabelValues(status).Inc()
	if err == nil {
		m.imageDuration.Observe(d.Seconds())
		m.recordsPerImage.Observe(float64(records))
	}
}
