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

	"github.com/rovamart/payguard/internal/config"
)

// Metrics exposes the compliance workflow instruments.
type Metrics struct {
	otpSubmissions metric.Int64Counter
	otpFailures    metric.Int64Counter
	payoutLocks    metric.Int64Counter
	payoutUnlocks  metric.Int64Counter
	confirmations  metric.Int64Counter
	rejections     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Metrics.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.Metrics.ExporterProtocol, cfg.Metrics.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.Metrics.ExporterEndpoint),
		zap.String("protocol", cfg.Metrics.ExporterProtocol),
	)

	return provider, nil
}

// New configures the domain instruments.
func New(cfg config.Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "payguard"
	}
	meter := provider.Meter(name)

	otpSubmissions, err := meter.Int64Counter("payguard_otp_submissions_total")
	if err != nil {
		return nil, err
	}
	otpFailures, err := meter.Int64Counter("payguard_otp_failures_total")
	if err != nil {
		return nil, err
	}
	payoutLocks, err := meter.Int64Counter("payguard_payout_locks_total")
	if err != nil {
		return nil, err
	}
	payoutUnlocks, err := meter.Int64Counter("payguard_payout_unlocks_total")
	if err != nil {
		return nil, err
	}
	confirmations, err := meter.Int64Counter("payguard_receipt_confirmations_total")
	if err != nil {
		return nil, err
	}
	rejections, err := meter.Int64Counter("payguard_receipt_rejections_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		otpSubmissions: otpSubmissions,
		otpFailures:    otpFailures,
		payoutLocks:    payoutLocks,
		payoutUnlocks:  payoutUnlocks,
		confirmations:  confirmations,
		rejections:     rejections,
	}, nil
}

// RecordOTPSubmission increments successful OTP submissions.
func (m *Metrics) RecordOTPSubmission(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.otpSubmissions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOTPFailure increments failed OTP submissions.
func (m *Metrics) RecordOTPFailure(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.otpFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPayoutLock increments payout lock counts by lock type.
func (m *Metrics) RecordPayoutLock(ctx context.Context, lockType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("lock_type", strings.TrimSpace(lockType)))
	m.payoutLocks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPayoutUnlock increments payout unlock counts.
func (m *Metrics) RecordPayoutUnlock(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.payoutUnlocks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConfirmation increments receipt confirmation counts.
func (m *Metrics) RecordConfirmation(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.confirmations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRejection increments receipt rejection counts.
func (m *Metrics) RecordRejection(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.rejections.Add(ctx, 1, metric.WithAttributes(attrs...))
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"role":        {},
	"lock_type":   {},
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
