package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/authflow/httpapi"

// RequestMetrics holds the HTTP request series.
type RequestMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewRequestMetrics creates the request series and registers them on reg.
func NewRequestMetrics(reg prometheus.Registerer) *RequestMetrics {
	m := &RequestMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authflow_http_requests_total",
				Help: "HTTP requests by route pattern and status code.",
			},
			[]string{"route", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authflow_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
	reg.MustRegister(m.Requests, m.Duration)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestLogger opens a server span per request, logs one line when it
// completes and feeds metrics when set. The span is taken from the global
// tracer provider, so log lines written under it carry its ids. Matched
// requests are logged by route pattern only.
func RequestLogger(logger *slog.Logger, metrics *RequestMetrics) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			ctx, span := tracer.Start(r.Context(), r.Method, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			r = r.WithContext(ctx)

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}

			span.SetName(route)
			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", rec.status),
			)
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(otelcodes.Error, http.StatusText(rec.status))
			}

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []any{
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration", elapsed,
				"client_ip", authflow.ClientIPFromContext(r.Context()),
			}
			// Matched paths may embed credentials such as reset tokens.
			if r.Pattern == "" {
				attrs = append(attrs, "path", r.URL.Path)
			}
			logger.Log(r.Context(), level, "http request", attrs...)

			if metrics != nil {
				metrics.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
				metrics.Duration.WithLabelValues(route).Observe(elapsed.Seconds())
			}
		})
	}
}
