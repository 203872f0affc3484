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
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RecorderOption defines functional options for [Recorder] configuration.
type RecorderOption func(*Recorder)

// ═══════════════════════════════════════════════════════════════════════════
// Providers
// ═══════════════════════════════════════════════════════════════════════════

// WithPrometheus configures the Prometheus provider with a listen address
// and scrape path. This is the recommended production setup.
//
// Example:
//
//	recorder := microversion.MustNewRecorder(
//	    microversion.WithPrometheus(":9090", "/metrics"),
//	    microversion.WithServiceName("compute-api"),
//	)
func WithPrometheus(addr, path string) RecorderOption {
	return func(r *Recorder) {
		r.provider = PrometheusProvider
		r.providerSetCount++
		if addr != "" && !strings.Contains(addr, ":") {
			addr = ":" + addr
		}
		r.metricsAddr = addr
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		r.metricsPath = path
	}
}

// WithOTLP configures the OTLP HTTP provider with a collector endpoint.
// An "http://" prefix selects an insecure connection.
//
// Example:
//
//	recorder := microversion.MustNewRecorder(
//	    microversion.WithOTLP("http://localhost:4318"),
//	)
func WithOTLP(endpoint string) RecorderOption {
	return func(r *Recorder) {
		r.provider = OTLPProvider
		r.providerSetCount++
		r.otlpEndpoint = endpoint
	}
}

// WithStdout configures the stdout provider for development and debugging.
//
// Example:
//
//	recorder := microversion.MustNewRecorder(
//	    microversion.WithStdout(),
//	    microversion.WithExportInterval(time.Second),
//	)
func WithStdout() RecorderOption {
	return func(r *Recorder) {
		r.provider = StdoutProvider
		r.providerSetCount++
	}
}

// WithMeterProvider supplies a custom OpenTelemetry [metric.MeterProvider].
// The recorder will not manage its lifecycle: Shutdown leaves it running.
// Provider options ([WithPrometheus], [WithOTLP], [WithStdout]) are ignored
// when a custom provider is set.
//
// Example:
//
//	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
//	recorder := microversion.MustNewRecorder(
//	    microversion.WithMeterProvider(mp),
//	)
//	defer mp.Shutdown(context.Background())
func WithMeterProvider(provider metric.MeterProvider) RecorderOption {
	return func(r *Recorder) {
		r.meterProvider = provider
		r.customMeterProvider = true
	}
}

// WithGlobalMeterProvider registers the meter provider as the global
// OpenTelemetry meter provider via otel.SetMeterProvider. By default the
// provider is not registered globally, so multiple recorders can coexist
// in the same process.
func WithGlobalMeterProvider() RecorderOption {
	return func(r *Recorder) {
		r.registerGlobal = true
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Identity and Export Behavior
// ═══════════════════════════════════════════════════════════════════════════

// WithServiceName sets the service name attached to every measurement.
func WithServiceName(name string) RecorderOption {
	return func(r *Recorder) {
		r.serviceName = name
	}
}

// WithServiceVersion sets the service version attached to every measurement.
func WithServiceVersion(version string) RecorderOption {
	return func(r *Recorder) {
		r.serviceVersion = version
	}
}

// WithExportInterval sets the export interval for OTLP and stdout providers.
func WithExportInterval(interval time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.exportInterval = interval
	}
}

// WithDurationBuckets sets custom histogram bucket boundaries, in seconds,
// for the validation duration metric. Defaults to [DefaultDurationBuckets].
func WithDurationBuckets(buckets ...float64) RecorderOption {
	return func(r *Recorder) {
		r.durationBuckets = buckets
	}
}

// WithServerDisabled disables the automatic scrape server for Prometheus.
// Use this to serve metrics from an existing server via [Recorder.Handler].
func WithServerDisabled() RecorderOption {
	return func(r *Recorder) {
		r.autoStartServer = false
	}
}

// WithStrictPort requires the scrape server to bind the exact configured
// port instead of probing for a free one. Startup fails if it is taken.
func WithStrictPort() RecorderOption {
	return func(r *Recorder) {
		r.strictPort = true
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Events
// ═══════════════════════════════════════════════════════════════════════════

// WithEventHandler sets a custom [EventHandler] for internal operational
// events, for integrating with alerting or non-slog logging systems.
//
// Example:
//
//	microversion.NewRecorder(microversion.WithEventHandler(func(e microversion.Event) {
//	    if e.Type == microversion.EventError {
//	        sentry.CaptureMessage(e.Message)
//	    }
//	}))
func WithEventHandler(handler EventHandler) RecorderOption {
	return func(r *Recorder) {
		r.eventHandler = handler
	}
}

// WithMetricsLogger routes internal operational events to the given logger
// through [DefaultEventHandler]. Convenience wrapper around
// [WithEventHandler].
func WithMetricsLogger(logger *slog.Logger) RecorderOption {
	return WithEventHandler(DefaultEventHandler(logger))
}
