package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-validator/internal/core/domain"
	"github.com/kirillkom/document-validator/internal/core/ports"
)

// PipelineMetrics records validation outcomes. It satisfies
// ports.PipelineObserver.
type PipelineMetrics struct {
	service string

	verdictTotal    *prometheus.CounterVec
	verdictDuration *prometheus.HistogramVec
	stageDuration   *prometheus.HistogramVec
	semanticTotal   *prometheus.CounterVec
	ocrTotal        *prometheus.CounterVec
	ocrDuration     *prometheus.HistogramVec
}

func NewPipelineMetrics(service string, registry *prometheus.Registry) *PipelineMetrics {
	verdictTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "verdicts_total",
			Help:      "Validation verdicts by status, deciding method and error kind.",
		},
		[]string{"service", "status", "method", "error_kind"},
	)
	verdictDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "End-to-end validation duration by deciding method.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"service", "method"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "stage"},
	)
	semanticTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "verdicts_total",
			Help:      "Verdicts decided by the semantic classifier, by mode and outcome.",
		},
		[]string{"service", "mode", "outcome"},
	)

	ocrTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ocr",
			Name:      "calls_total",
			Help:      "OCR calls by outcome.",
		},
		[]string{"service", "outcome"},
	)
	ocrDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ocr",
			Name:      "call_duration_seconds",
			Help:      "OCR call duration, retries included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service"},
	)

	registry.MustRegister(verdictTotal, verdictDuration, stageDuration, semanticTotal, ocrTotal, ocrDuration)

	return &PipelineMetrics{
		service:         service,
		verdictTotal:    verdictTotal,
		verdictDuration: verdictDuration,
		stageDuration:   stageDuration,
		semanticTotal:   semanticTotal,
		ocrTotal:        ocrTotal,
		ocrDuration:     ocrDuration,
	}
}

func (m *PipelineMetrics) ObserveStage(stage string, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(m.service, stage).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) ObserveVerdict(verdict domain.ValidationVerdict, elapsed time.Duration) {
	method := string(verdict.Method)
	if method == "" {
		method = "unknown"
	}
	kind := string(verdict.ErrorKind)
	if kind == "" {
		kind = "none"
	}

	m.verdictTotal.WithLabelValues(m.service, string(verdict.Status), method, kind).Inc()
	m.verdictDuration.WithLabelValues(m.service, method).Observe(elapsed.Seconds())

	switch verdict.Method {
	case domain.MethodSemanticVisual:
		m.semanticTotal.WithLabelValues(m.service, "visual", semanticOutcome(verdict)).Inc()
	case domain.MethodSemanticText:
		m.semanticTotal.WithLabelValues(m.service, "text", semanticOutcome(verdict)).Inc()
	}
}

func semanticOutcome(verdict domain.ValidationVerdict) string {
	switch {
	case verdict.OK():
		return "accepted"
	case verdict.Retryable:
		return "unavailable"
	default:
		return "rejected"
	}
}

// InstrumentOCR wraps an OCR capability so every call is counted and timed.
func (m *PipelineMetrics) InstrumentOCR(next ports.OCRService) ports.OCRService {
	return &instrumentedOCR{next: next, metrics: m}
}

type instrumentedOCR struct {
	next    ports.OCRService
	metrics *PipelineMetrics
}

func (o *instrumentedOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	start := time.Now()
	text, err := o.next.Recognize(ctx, image)
	o.metrics.ocrDuration.WithLabelValues(o.metrics.service).Observe(time.Since(start).Seconds())

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case text == "":
		outcome = "empty"
	}
	o.metrics.ocrTotal.WithLabelValues(o.metrics.service, outcome).Inc()
	return text, err
}
