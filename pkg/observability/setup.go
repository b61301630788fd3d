// Package observability wires Prometheus metrics and optional OTLP tracing.
// A nil *Provider is valid and records nothing.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/config"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const (
	namespace   = "callaudit"
	serviceName = "call-auditor"
)

type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	promHandler    http.Handler
	shutdownFuncs  []func(context.Context) error

	httpRequestCounter *promreg.CounterVec
	httpRequestLatency *promreg.HistogramVec
	stepCounter        *promreg.CounterVec
	stepLatency        *promreg.HistogramVec
	tokenCounter       otelmetric.Int64Counter
}

// Setup returns nil when both metrics and OTLP export are disabled.
func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableOTLP && !cfg.EnableMetrics {
		return nil, nil
	}

	provider := &Provider{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	if cfg.EnableOTLP {
		endpoint, opts := otlpEndpoint(cfg.OTLPEndpoint)
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))

		exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
		if err != nil {
			return nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		provider.tracerProvider = tp
		provider.shutdownFuncs = append(provider.shutdownFuncs, tp.Shutdown)
	}

	if cfg.EnableMetrics {
		if err := provider.setupMetrics(res); err != nil {
			return nil, err
		}
	}

	return provider, nil
}

func (p *Provider) setupMetrics(res *resource.Resource) error {
	registry := promreg.NewRegistry()
	promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return err
	}
	mp := metric.NewMeterProvider(
		metric.WithReader(promExporter),
		metric.WithResource(res),
	)
	p.meterProvider = mp
	p.promHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
	p.shutdownFuncs = append(p.shutdownFuncs, mp.Shutdown)

	tokens, err := mp.Meter(serviceName).Int64Counter(
		namespace+".tokens",
		otelmetric.WithDescription("Prompt and completion tokens reported by the provider."),
	)
	if err != nil {
		return err
	}
	p.tokenCounter = tokens

	httpRequests := promreg.NewCounterVec(
		promreg.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	httpLatency := promreg.NewHistogramVec(
		promreg.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "route", "status"},
	)
	steps := promreg.NewCounterVec(
		promreg.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Workflow steps by outcome; failures carry their kind.",
		},
		[]string{"step", "provider", "outcome"},
	)
	stepLatency := promreg.NewHistogramVec(
		promreg.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of workflow steps including provider round trips.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"step", "provider", "outcome"},
	)
	for _, c := range []promreg.Collector{httpRequests, httpLatency, steps, stepLatency} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	p.httpRequestCounter = httpRequests
	p.httpRequestLatency = httpLatency
	p.stepCounter = steps
	p.stepLatency = stepLatency
	return nil
}

func otlpEndpoint(raw string) (string, []otlptracegrpc.Option) {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), nil
	default:
		return endpoint, []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
	}
}

func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil || p.promHandler == nil {
		return nil
	}
	return p.promHandler
}

func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracerProvider
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) RecordHTTPRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	if p == nil {
		return
	}

	statusLabel := strconv.Itoa(status)
	if p.httpRequestCounter != nil {
		p.httpRequestCounter.WithLabelValues(method, route, statusLabel).Inc()
	}
	if p.httpRequestLatency != nil {
		p.httpRequestLatency.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
	}
}

// RecordStep counts one workflow step. outcome is "ok" or a failure kind.
func (p *Provider) RecordStep(_ context.Context, step, provider, outcome string, duration time.Duration) {
	if p == nil {
		return
	}
	if p.stepCounter != nil {
		p.stepCounter.WithLabelValues(step, provider, outcome).Inc()
	}
	if p.stepLatency != nil {
		p.stepLatency.WithLabelValues(step, provider, outcome).Observe(duration.Seconds())
	}
}

// RecordTokens adds the token counts found in a step's generation metadata.
func (p *Provider) RecordTokens(ctx context.Context, provider, modelName string, meta model.GenerationMetadata) {
	if p == nil || p.tokenCounter == nil {
		return
	}
	for key, kind := range map[string]string{
		model.MetadataKeyInputTokens:  "prompt",
		model.MetadataKeyOutputTokens: "completion",
	} {
		count, err := strconv.ParseInt(meta[key], 10, 64)
		if err != nil || count <= 0 {
			continue
		}
		p.tokenCounter.Add(ctx, count, otelmetric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", modelName),
			attribute.String("type", kind),
		))
	}
}
