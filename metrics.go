// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package microversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	promclient "github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultDurationBuckets are histogram boundaries for validation latency
// in seconds. Body validation is fast; the buckets lean low.
var DefaultDurationBuckets = []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1}

// Dispatch outcome attribute values.
const (
	outcomeServed       = "served"
	outcomeNotAvailable = "not_available"
	outcomeInvalidBody  = "invalid_body"
	outcomeSchemaGap    = "schema_gap"
)

// EventType represents the severity of an internal operational event.
type EventType int

const (
	// EventError indicates an error event (e.g., failed to export metrics).
	EventError EventType = iota
	// EventWarning indicates a warning event.
	EventWarning
	// EventInfo indicates an informational event (e.g., metrics server started).
	EventInfo
	// EventDebug indicates a debug event.
	EventDebug
)

// Event is an internal operational event from the metrics recorder.
type Event struct {
	Type    EventType
	Message string
	Args    []any // slog-style key-value pairs
}

// EventHandler processes internal operational events from the recorder.
//
// Example:
//
//	microversion.WithEventHandler(func(e microversion.Event) {
//	    if e.Type == microversion.EventError {
//	        alerting.Notify(e.Message)
//	    }
//	})
type EventHandler func(Event)

// DefaultEventHandler returns an [EventHandler] that logs events to the
// given logger. A nil logger produces a handler that discards everything.
func DefaultEventHandler(logger *slog.Logger) EventHandler {
	if logger == nil {
		return func(Event) {}
	}

	return func(e Event) {
		switch e.Type {
		case EventError:
			logger.Error(e.Message, e.Args...)
		case EventWarning:
			logger.Warn(e.Message, e.Args...)
		case EventInfo:
			logger.Info(e.Message, e.Args...)
		case EventDebug:
			logger.Debug(e.Message, e.Args...)
		}
	}
}

// Provider represents the available metrics providers.
type Provider string

const (
	// PrometheusProvider exposes metrics on a scrape endpoint (default).
	PrometheusProvider Provider = "prometheus"
	// OTLPProvider pushes metrics to an OTLP HTTP collector.
	OTLPProvider Provider = "otlp"
	// StdoutProvider prints metrics to stdout (development/testing).
	StdoutProvider Provider = "stdout"
)

// Recorder records negotiation and dispatch metrics through OpenTelemetry.
// All methods are safe for concurrent use.
//
// By default the recorder does NOT set the global OpenTelemetry meter
// provider; use [WithGlobalMeterProvider] to opt in. This lets several
// recorders coexist in one process.
type Recorder struct {
	meter              metric.Meter
	meterProvider      metric.MeterProvider
	prometheusHandler  http.Handler
	prometheusRegistry *promclient.Registry
	metricsServer      *http.Server
	eventHandler       EventHandler

	negotiations       metric.Int64Counter
	dispatches         metric.Int64Counter
	deprecatedUse      metric.Int64Counter
	validationDuration metric.Float64Histogram

	serviceName    string
	serviceVersion string
	otlpEndpoint   string
	metricsAddr    string
	metricsPath    string
	exportInterval time.Duration

	durationBuckets []float64

	serviceNameAttr    attribute.KeyValue
	serviceVersionAttr attribute.KeyValue

	validationErrors []error

	serverMutex    sync.Mutex
	isShuttingDown atomic.Bool
	isStarted      atomic.Bool

	provider            Provider
	providerSetCount    int
	enabled             bool
	autoStartServer     bool
	strictPort          bool
	customMeterProvider bool
	registerGlobal      bool
}

// NewRecorder creates a [Recorder] with the given options. The meter
// provider and instruments are initialized here; [Recorder.Start] only
// runs the scrape server.
//
// Example:
//
//	recorder, err := microversion.NewRecorder(
//	    microversion.WithServiceName("compute-api"),
//	    microversion.WithPrometheus(":9090", "/metrics"),
//	)
func NewRecorder(opts ...RecorderOption) (*Recorder, error) {
	r := newDefaultRecorder()

	for _, opt := range opts {
		opt(r)
	}

	if err := r.validateConfig(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := r.initializeProvider(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return r, nil
}

// MustNewRecorder is like [NewRecorder] but panics on error.
func MustNewRecorder(opts ...RecorderOption) *Recorder {
	r, err := NewRecorder(opts...)
	if err != nil {
		panic(fmt.Sprintf("microversion: MustNewRecorder: %v", err))
	}
	return r
}

func newDefaultRecorder() *Recorder {
	r := &Recorder{
		enabled:         true,
		serviceName:     "microversion-service",
		serviceVersion:  "1.0.0",
		provider:        PrometheusProvider,
		exportInterval:  30 * time.Second,
		metricsAddr:     ":9090",
		metricsPath:     "/metrics",
		autoStartServer: true,
		durationBuckets: DefaultDurationBuckets,
	}

	r.serviceNameAttr = attribute.String("service.name", r.serviceName)
	r.serviceVersionAttr = attribute.String("service.version", r.serviceVersion)

	return r
}

func (r *Recorder) validateConfig() error {
	if len(r.validationErrors) > 0 {
		return fmt.Errorf("configuration errors: %v", r.validationErrors)
	}

	if r.providerSetCount > 1 {
		return errors.New("conflicting provider options: only one of WithPrometheus, WithOTLP, or WithStdout can be used")
	}
	if r.customMeterProvider && r.meterProvider == nil {
		return errors.New("custom meter provider cannot be nil")
	}
	if r.serviceName == "" {
		return errors.New("service name cannot be empty")
	}
	if r.serviceVersion == "" {
		return errors.New("service version cannot be empty")
	}
	if r.exportInterval < time.Second {
		r.emitWarning("Export interval is very low, may cause high CPU usage", "interval", r.exportInterval)
	}

	switch r.provider {
	case PrometheusProvider:
		if r.metricsAddr == "" {
			return errors.New("metrics address cannot be empty for Prometheus provider")
		}
		if r.metricsPath == "" {
			return errors.New("metrics path cannot be empty for Prometheus provider")
		}
	case OTLPProvider:
		if r.otlpEndpoint == "" {
			r.emitWarning("OTLP endpoint not specified, will use default", "default", "http://localhost:4318")
			r.otlpEndpoint = "http://localhost:4318"
		}
	case StdoutProvider:
		// Nothing to validate.
	default:
		return fmt.Errorf("unsupported metrics provider: %s", r.provider)
	}

	// Refresh attributes in case options changed the identity.
	r.serviceNameAttr = attribute.String("service.name", r.serviceName)
	r.serviceVersionAttr = attribute.String("service.version", r.serviceVersion)

	return nil
}

// initializeInstruments creates the metric instruments on the meter.
func (r *Recorder) initializeInstruments() error {
	var err error

	r.negotiations, err = r.meter.Int64Counter(
		"microversion_negotiations_total",
		metric.WithDescription("Total number of version negotiations by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create negotiations counter: %w", err)
	}

	r.dispatches, err = r.meter.Int64Counter(
		"microversion_dispatch_total",
		metric.WithDescription("Total number of endpoint dispatches by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create dispatch counter: %w", err)
	}

	r.deprecatedUse, err = r.meter.Int64Counter(
		"microversion_deprecated_use_total",
		metric.WithDescription("Total number of requests negotiating deprecated versions"),
	)
	if err != nil {
		return fmt.Errorf("failed to create deprecated use counter: %w", err)
	}

	r.validationDuration, err = r.meter.Float64Histogram(
		"microversion_validation_duration_seconds",
		metric.WithDescription("Duration of request body validation in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(r.durationBuckets...),
	)
	if err != nil {
		return fmt.Errorf("failed to create validation duration histogram: %w", err)
	}

	return nil
}

// recordNegotiation counts an accepted negotiation.
func (r *Recorder) recordNegotiation(ctx context.Context, rv RequestVersion) {
	if !r.enabled || r.negotiations == nil {
		return
	}
	r.negotiations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", "accepted"),
		attribute.String("version", rv.Version.String()),
		attribute.String("source", string(rv.Source)),
		r.serviceNameAttr,
		r.serviceVersionAttr,
	))
}

// recordRejection counts a rejected negotiation. The raw header value is
// client-controlled and unbounded, so it never becomes an attribute.
func (r *Recorder) recordRejection(ctx context.Context, err error) {
	if !r.enabled || r.negotiations == nil {
		return
	}
	outcome := "rejected_unsupported"
	if errors.Is(err, ErrMalformedVersion) {
		outcome = "rejected_malformed"
	}
	r.negotiations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		r.serviceNameAttr,
		r.serviceVersionAttr,
	))
}

// recordDispatch counts a dispatch by endpoint and outcome.
func (r *Recorder) recordDispatch(ctx context.Context, endpoint, outcome string) {
	if !r.enabled || r.dispatches == nil {
		return
	}
	r.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
		r.serviceNameAttr,
		r.serviceVersionAttr,
	))
}

// recordDeprecatedUse counts a request that negotiated a deprecated version.
func (r *Recorder) recordDeprecatedUse(ctx context.Context, v Version) {
	if !r.enabled || r.deprecatedUse == nil {
		return
	}
	r.deprecatedUse.Add(ctx, 1, metric.WithAttributes(
		attribute.String("version", v.String()),
		r.serviceNameAttr,
		r.serviceVersionAttr,
	))
}

// recordValidationDuration records how long a body validation took.
func (r *Recorder) recordValidationDuration(ctx context.Context, endpoint string, d time.Duration) {
	if !r.enabled || r.validationDuration == nil {
		return
	}
	r.validationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		r.serviceNameAttr,
		r.serviceVersionAttr,
	))
}

// Meter returns the recorder's meter for registering custom instruments
// next to the built-in ones.
func (r *Recorder) Meter() metric.Meter {
	return r.meter
}

// Handler returns the Prometheus metrics [http.Handler], for serving the
// scrape endpoint on an existing server instead of the auto-started one.
// It errors unless [PrometheusProvider] is active.
func (r *Recorder) Handler() (http.Handler, error) {
	if !r.enabled {
		return nil, errors.New("metrics not enabled")
	}
	if r.provider != PrometheusProvider || r.prometheusHandler == nil {
		return nil, fmt.Errorf("handler only available with Prometheus provider, current provider: %s", r.provider)
	}
	return r.prometheusHandler, nil
}

// Provider returns the active metrics provider.
func (r *Recorder) Provider() Provider {
	if !r.enabled {
		return ""
	}
	return r.provider
}

// ServerAddress returns the scrape server address, or empty when the
// server is disabled or another provider is active.
func (r *Recorder) ServerAddress() string {
	if !r.enabled || r.provider != PrometheusProvider || !r.autoStartServer {
		return ""
	}
	return r.metricsAddr
}

// Path returns the scrape endpoint path for [PrometheusProvider].
func (r *Recorder) Path() string {
	if !r.enabled || r.provider != PrometheusProvider {
		return ""
	}
	return r.metricsPath
}

// Start runs the scrape server when [PrometheusProvider] is active and
// the server was not disabled. Safe to call multiple times; only the
// first call acts.
func (r *Recorder) Start(ctx context.Context) error {
	if !r.enabled {
		return nil
	}
	if !r.isStarted.CompareAndSwap(false, true) {
		return nil
	}

	if r.autoStartServer && r.provider == PrometheusProvider {
		r.startMetricsServer()
	}

	return nil
}

// Shutdown stops the scrape server and flushes and shuts down the meter
// provider. Idempotent. User-supplied meter providers are left alone.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if !r.enabled {
		return nil
	}
	if !r.isShuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if err := r.stopMetricsServer(ctx); err != nil {
		errs = append(errs, err)
	}

	if r.customMeterProvider {
		r.emitDebug("Skipping shutdown of custom meter provider (managed by user)")
	} else if err := r.shutdownSDKMeterProvider(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func (r *Recorder) shutdownSDKMeterProvider(ctx context.Context) error {
	mp, ok := r.meterProvider.(*sdkmetric.MeterProvider)
	if !ok {
		return nil
	}

	if err := mp.ForceFlush(ctx); err != nil {
		r.emitWarning("metrics flush warning", "error", err)
	}

	if err := mp.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}
	return nil
}

// ForceFlush exports pending metric data immediately. Useful for
// push-based providers before a deployment or at checkpoints; a no-op
// for Prometheus, which is scraped on demand.
func (r *Recorder) ForceFlush(ctx context.Context) error {
	if !r.enabled || r.isShuttingDown.Load() {
		return nil
	}

	if mp, ok := r.meterProvider.(*sdkmetric.MeterProvider); ok {
		if err := mp.ForceFlush(ctx); err != nil {
			return fmt.Errorf("metrics force flush: %w", err)
		}
	}
	return nil
}

// IsEnabled reports whether the recorder records anything.
func (r *Recorder) IsEnabled() bool {
	return r.enabled
}

// ServiceName returns the configured service name.
func (r *Recorder) ServiceName() string {
	return r.serviceName
}

// ServiceVersion returns the configured service version.
func (r *Recorder) ServiceVersion() string {
	return r.serviceVersion
}

func (r *Recorder) emitError(msg string, args ...any) {
	if r.eventHandler != nil {
		r.eventHandler(Event{Type: EventError, Message: msg, Args: args})
	}
}

func (r *Recorder) emitWarning(msg string, args ...any) {
	if r.eventHandler != nil {
		r.eventHandler(Event{Type: EventWarning, Message: msg, Args: args})
	}
}

func (r *Recorder) emitInfo(msg string, args ...any) {
	if r.eventHandler != nil {
		r.eventHandler(Event{Type: EventInfo, Message: msg, Args: args})
	}
}

func (r *Recorder) emitDebug(msg string, args ...any) {
	if r.eventHandler != nil {
		r.eventHandler(Event{Type: EventDebug, Message: msg, Args: args})
	}
}
