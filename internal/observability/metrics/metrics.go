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
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultMeterName      = "marketplace"
	defaultExportInterval = 15 * time.Second
)

// Config configures the OTLP meter provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
	ExportInterval   time.Duration
}

// Metrics holds the entitlement engine instruments. A nil *Metrics records nothing.
type Metrics struct {
	resolutions        metric.Int64Counter
	resolutionDuration metric.Float64Histogram
	gateDecisions      metric.Int64Counter
	invitationEvents   metric.Int64Counter
	subscriptionEvents metric.Int64Counter
}

// NewProvider registers the global meter provider. With export disabled the
// provider is a noop and instruments cost nothing.
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
	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", meterName(cfg.ServiceName)),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("metrics exporter started",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
			zap.Duration("interval", interval),
		)
	}
	return provider, nil
}

// New creates the instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName(cfg.ServiceName))

	var (
		m    Metrics
		errs []error
	)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return c
	}

	m.resolutions = counter("marketplace_entitlement_resolutions_total", "Entitlement snapshots resolved, by outcome.")
	m.gateDecisions = counter("marketplace_gate_decisions_total", "Feature gate evaluations, by level and reason.")
	m.invitationEvents = counter("marketplace_invitation_events_total", "Invitation lifecycle events.")
	m.subscriptionEvents = counter("marketplace_subscription_events_total", "Subscription lifecycle events, by resulting status.")

	histogram, err := meter.Float64Histogram("marketplace_entitlement_resolution_seconds",
		metric.WithDescription("Time spent resolving one entitlement snapshot."),
		metric.WithUnit("s"),
	)
	if err != nil {
		errs = append(errs, err)
	}
	m.resolutionDuration = histogram

	if len(errs) > 0 {
		return nil, errs[0]
	}
	return &m, nil
}

// NewNoop returns instruments backed by the noop provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordResolution counts one snapshot resolution and its latency.
func (m *Metrics) RecordResolution(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))...)
	m.resolutions.Add(ctx, 1, opt)
	m.resolutionDuration.Record(ctx, elapsed.Seconds(), opt)
}

// RecordGateDecision counts gate evaluations by level and reason.
func (m *Metrics) RecordGateDecision(ctx context.Context, level, reason string) {
	if m == nil {
		return
	}
	m.gateDecisions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("level", strings.TrimSpace(level)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)...))
}

func (m *Metrics) RecordInvitationEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.invitationEvents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)...))
}

func (m *Metrics) RecordSubscriptionEvent(ctx context.Context, eventType, status string) {
	if m == nil {
		return
	}
	m.subscriptionEvents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("status", strings.TrimSpace(status)),
	)...))
}

func meterName(serviceName string) string {
	if name := strings.TrimSpace(serviceName); name != "" {
		return name
	}
	return defaultMeterName
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Team, user and invitation ids never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":    {},
	"level":      {},
	"reason":     {},
	"event_type": {},
	"status":     {},
	"plan_code":  {},
}

// FilterAttributes keeps only the low-cardinality label keys.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
