package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	logins              metric.Int64Counter
	quotaDenied         metric.Int64Counter
	authorizationDenied metric.Int64Counter
	auditFailures       metric.Int64Counter
	rateLimitDenied     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "taskhub"
	}
	meter := provider.Meter(name)

	logins, err := meter.Int64Counter("taskhub_logins_total")
	if err != nil {
		return nil, err
	}
	quotaDenied, err := meter.Int64Counter("taskhub_quota_denied_total")
	if err != nil {
		return nil, err
	}
	authorizationDenied, err := meter.Int64Counter("taskhub_authorization_denied_total")
	if err != nil {
		return nil, err
	}
	auditFailures, err := meter.Int64Counter("taskhub_audit_write_failures_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("taskhub_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		logins:              logins,
		quotaDenied:         quotaDenied,
		authorizationDenied: authorizationDenied,
		auditFailures:       auditFailures,
		rateLimitDenied:     rateLimitDenied,
	}, nil
}

// NewNoop returns instruments backed by a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordLogin counts login attempts by outcome (success, invalid_credentials, ...).
func (m *Metrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.logins.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordQuotaDenied counts create requests rejected by a plan limit.
func (m *Metrics) RecordQuotaDenied(ctx context.Context, resource, plan string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("resource", strings.TrimSpace(resource)),
		attribute.String("plan", strings.TrimSpace(plan)),
	)
	m.quotaDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAuthorizationDenied counts role checks that failed.
func (m *Metrics) RecordAuthorizationDenied(ctx context.Context, role, object, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("role", strings.TrimSpace(role)),
		attribute.String("object", strings.TrimSpace(object)),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.authorizationDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAuditFailure counts audit entries that could not be persisted.
func (m *Metrics) RecordAuditFailure(ctx context.Context, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action", strings.TrimSpace(action)))
	m.auditFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// tenant and user ids are deliberately absent: they are unbounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":     {},
	"resource":    {},
	"plan":        {},
	"role":        {},
	"object":      {},
	"action":      {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
