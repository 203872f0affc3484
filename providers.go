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
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// meterName identifies this instrumentation library to OpenTelemetry.
const meterName = "rivaas.dev/microversion"

// initializeProvider sets up the meter provider and creates the metric
// instruments. Called once from NewRecorder.
func (r *Recorder) initializeProvider() error {
	if !r.enabled {
		return nil
	}

	if r.customMeterProvider {
		r.emitDebug("Using custom meter provider")
	} else {
		var err error
		switch r.provider {
		case PrometheusProvider:
			err = r.initPrometheusProvider()
		case OTLPProvider:
			err = r.initOTLPProvider()
		case StdoutProvider:
			err = r.initStdoutProvider()
		default:
			err = fmt.Errorf("unsupported metrics provider: %s", r.provider)
		}
		if err != nil {
			return err
		}
	}

	if r.registerGlobal {
		otel.SetMeterProvider(r.meterProvider)
		r.emitDebug("Registered as global meter provider")
	}

	r.meter = r.meterProvider.Meter(meterName)

	return r.initializeInstruments()
}

// initPrometheusProvider wires a dedicated registry so several recorders
// can coexist without duplicate-collector panics.
func (r *Recorder) initPrometheusProvider() error {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	r.prometheusRegistry = registry
	r.prometheusHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	r.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	return nil
}

func (r *Recorder) initOTLPProvider() error {
	endpoint := r.otlpEndpoint
	insecure := false

	if strings.HasPrefix(endpoint, "http://") {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		insecure = true
	} else if strings.HasPrefix(endpoint, "https://") {
		endpoint = strings.TrimPrefix(endpoint, "https://")
	}

	// The exporter wants host:port; any path belongs to the collector config.
	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(endpoint),
	}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(r.exportInterval))
	r.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return nil
}

func (r *Recorder) initStdoutProvider() error {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(r.exportInterval))
	r.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return nil
}

// startMetricsServer starts the Prometheus scrape server in a goroutine.
// Unless strict port mode is set, it probes up to 100 consecutive ports
// so parallel processes on one host do not collide.
func (r *Recorder) startMetricsServer() {
	r.serverMutex.Lock()
	defer r.serverMutex.Unlock()

	if r.metricsServer != nil {
		return
	}

	var listener net.Listener
	var err error
	if r.strictPort {
		listener, err = net.Listen("tcp", r.metricsAddr)
	} else {
		listener, err = r.findAvailablePort()
	}
	if err != nil {
		r.emitError("Failed to start metrics server", "addr", r.metricsAddr, "error", err)
		return
	}

	// Record the address actually bound; port probing may have moved it.
	r.metricsAddr = listener.Addr().String()

	mux := http.NewServeMux()
	mux.Handle(r.metricsPath, r.prometheusHandler)

	r.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	r.emitInfo("Metrics server started", "addr", r.metricsAddr, "path", r.metricsPath)

	go func() {
		if serveErr := r.metricsServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			r.emitError("Metrics server error", "error", serveErr)
		}
	}()
}

func (r *Recorder) stopMetricsServer(ctx context.Context) error {
	r.serverMutex.Lock()
	defer r.serverMutex.Unlock()

	if r.metricsServer == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	if err := r.metricsServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}

	r.metricsServer = nil
	r.emitInfo("Metrics server stopped")

	return nil
}

// findAvailablePort tries the configured port and then the next 99.
func (r *Recorder) findAvailablePort() (net.Listener, error) {
	host, portStr, err := net.SplitHostPort(r.metricsAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid metrics address %q: %w", r.metricsAddr, err)
	}

	basePort, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid metrics port %q: %w", portStr, err)
	}

	for i := range 100 {
		addr := net.JoinHostPort(host, strconv.Itoa(basePort+i))
		listener, listenErr := net.Listen("tcp", addr)
		if listenErr == nil {
			if i > 0 {
				r.emitWarning("Configured metrics port busy, using fallback", "configured", basePort, "actual", basePort+i)
			}
			return listener, nil
		}
	}

	return nil, fmt.Errorf("no available port in range %d-%d", basePort, basePort+99)
}
