package observability

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"coino/config"
	"coino/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the round engine.
// A nil *MetricsProvider is valid and records nothing.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	betsPlacedCounter            metric.Int64Counter
	betsRejectedCounter          metric.Int64Counter
	roundsOpenedCounter          metric.Int64Counter
	roundsSettledCounter         metric.Int64Counter
	settlementRetriesCounter     metric.Int64Counter
	settlementDurationHist       metric.Float64Histogram
	natsMessagesReceivedCounter  metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// NewMetricsProviderWithMeterProvider wires instruments onto an existing SDK
// meter provider, typically one backed by a manual reader in tests
func NewMetricsProviderWithMeterProvider(cfg *config.Config, provider *sdkmetric.MeterProvider) (*MetricsProvider, error) {
	mp := &MetricsProvider{
		config:        cfg,
		meterProvider: provider,
		meter:         provider.Meter("coino"),
	}
	if err := mp.createInstruments(); err != nil {
		return nil, err
	}
	mp.initialized = true
	return mp, nil
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Println("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Println("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Println("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.Printf("Using OTLP metric exporter: %s", mp.config.OTelOTLPEndpoint)

	case "none":
		log.Println("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)

	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("coino")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Println("Metrics provider initialized successfully")
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&mp.betsPlacedCounter, BetsPlacedTotal, "Total number of accepted bets"},
		{&mp.betsRejectedCounter, BetsRejectedTotal, "Total number of rejected bets"},
		{&mp.roundsOpenedCounter, RoundsOpenedTotal, "Total number of rounds opened"},
		{&mp.roundsSettledCounter, RoundsSettledTotal, "Total number of rounds fully settled"},
		{&mp.settlementRetriesCounter, SettlementRetriesTotal, "Total number of retried store transactions"},
		{&mp.natsMessagesReceivedCounter, NATSMessagesReceivedTotal, "Total number of NATS messages received"},
		{&mp.natsMessagesPublishedCounter, NATSMessagesPublishedTotal, "Total number of NATS messages published"},
	}

	for _, c := range counters {
		counter, err := mp.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.target = counter
	}

	var err error
	mp.settlementDurationHist, err = mp.meter.Float64Histogram(
		SettlementDuration,
		metric.WithDescription("Duration of round settlement in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create settlement duration histogram: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp == nil {
		return nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

func scopeKind(scope models.Scope) string {
	if scope.IsRoom() {
		return ScopeKindRoom
	}
	return ScopeKindPublic
}

// RecordBetPlaced records an accepted bet
func (mp *MetricsProvider) RecordBetPlaced(scope models.Scope, outcome models.Outcome) {
	if !mp.isEnabled() {
		return
	}

	mp.betsPlacedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelScope, scopeKind(scope)),
			attribute.String(LabelOutcome, string(outcome)),
		),
	)
}

// RecordBetRejected records a bet refused with the given reason
func (mp *MetricsProvider) RecordBetRejected(scope models.Scope, reason string) {
	if !mp.isEnabled() {
		return
	}

	mp.betsRejectedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelScope, scopeKind(scope)),
			attribute.String(LabelReason, reason),
		),
	)
}

// RecordRoundOpened records a newly created round
func (mp *MetricsProvider) RecordRoundOpened(scope models.Scope) {
	if !mp.isEnabled() {
		return
	}

	mp.roundsOpenedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelScope, scopeKind(scope))),
	)
}

// RecordRoundSettled records a completed settlement and how long it took
func (mp *MetricsProvider) RecordRoundSettled(scope models.Scope, outcome models.Outcome, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelScope, scopeKind(scope)),
		attribute.String(LabelOutcome, string(outcome)),
	)
	mp.roundsSettledCounter.Add(context.Background(), 1, attrs)
	mp.settlementDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordRetry records a transaction retried after a transient store failure
func (mp *MetricsProvider) RecordRetry(operation string) {
	if !mp.isEnabled() {
		return
	}

	mp.settlementRetriesCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelOperation, operation)),
	)
}

// RecordNATSMessageReceived records a NATS message being received
func (mp *MetricsProvider) RecordNATSMessageReceived(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesReceivedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// isEnabled checks if metrics are enabled and instruments exist
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meter != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider, or nil before initialization
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	return globalMetrics.Shutdown(ctx)
}
