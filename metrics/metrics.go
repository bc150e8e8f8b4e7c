package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and
// records nothing, so components can run without a registry.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Upload metrics
	UploadsTotal  *prometheus.CounterVec
	UploadBytes   prometheus.Counter
	UploadsActive prometheus.Gauge

	// Pipeline metrics
	PipelineRuns          *prometheus.CounterVec
	PipelineStageDuration *prometheus.HistogramVec
	PipelinesActive       prometheus.Gauge

	// Node metrics
	NodeOps *prometheus.CounterVec

	// Sweeper metrics
	BlobsSwept prometheus.Counter
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nanodrive_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nanodrive_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nanodrive_uploads_total",
				Help: "Completed file transfers by result",
			},
			[]string{"result"},
		),
		UploadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nanodrive_upload_bytes_total",
				Help: "Bytes stored by successful uploads",
			},
		),
		UploadsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nanodrive_uploads_active",
				Help: "Transfers currently in flight",
			},
		),
		PipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nanodrive_pipeline_runs_total",
				Help: "Transform pipeline runs by terminal stage",
			},
			[]string{"result", "mode"},
		),
		PipelineStageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nanodrive_pipeline_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		PipelinesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nanodrive_pipelines_active",
				Help: "Pipeline runs currently executing",
			},
		),
		NodeOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nanodrive_node_operations_total",
				Help: "Folder and file operations by result",
			},
			[]string{"op", "kind", "result"},
		),
		BlobsSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nanodrive_blobs_swept_total",
				Help: "Orphaned blobs removed by the sweeper",
			},
		),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) UploadStarted() {
	if m == nil {
		return
	}
	m.UploadsActive.Inc()
}

func (m *Metrics) UploadFinished(size int64, err error) {
	if m == nil {
		return
	}
	m.UploadsActive.Dec()
	m.UploadsTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.UploadBytes.Add(float64(size))
	}
}

func (m *Metrics) PipelineStarted() {
	if m == nil {
		return
	}
	m.PipelinesActive.Inc()
}

func (m *Metrics) PipelineFinished(mode string, err error) {
	if m == nil {
		return
	}
	m.PipelinesActive.Dec()
	m.PipelineRuns.WithLabelValues(result(err), mode).Inc()
}

func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PipelineStageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) NodeOp(op, kind string, err error) {
	if m == nil {
		return
	}
	m.NodeOps.WithLabelValues(op, kind, result(err)).Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil {
		return
	}
	m.BlobsSwept.Add(float64(n))
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
