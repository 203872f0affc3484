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

//go:build !integration

package microversion

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewRecorder(t *testing.T) {
	t.Parallel()

	t.Run("default configuration", func(t *testing.T) {
		t.Parallel()
		recorder, err := NewRecorder(WithServerDisabled())
		require.NoError(t, err)
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = recorder.Shutdown(ctx)
		})

		assert.True(t, recorder.IsEnabled())
		assert.Equal(t, PrometheusProvider, recorder.Provider())
		assert.Equal(t, "/metrics", recorder.Path())
		assert.Equal(t, "microversion-service", recorder.ServiceName())
		assert.Equal(t, "1.0.0", recorder.ServiceVersion())
	})

	t.Run("conflicting provider options", func(t *testing.T) {
		t.Parallel()
		_, err := NewRecorder(WithStdout(), WithOTLP("http://localhost:4318"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "conflicting provider options")
	})

	t.Run("nil custom meter provider", func(t *testing.T) {
		t.Parallel()
		_, err := NewRecorder(WithMeterProvider(nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "custom meter provider cannot be nil")
	})

	t.Run("empty service name", func(t *testing.T) {
		t.Parallel()
		_, err := NewRecorder(WithStdout(), WithServiceName(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "service name cannot be empty")
	})

	t.Run("empty service version", func(t *testing.T) {
		t.Parallel()
		_, err := NewRecorder(WithStdout(), WithServiceVersion(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "service version cannot be empty")
	})
}

func TestMustNewRecorderPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		MustNewRecorder(WithStdout(), WithServiceName(""))
	})
}

func TestRecorderAccessors(t *testing.T) {
	t.Parallel()

	t.Run("handler requires the prometheus provider", func(t *testing.T) {
		t.Parallel()
		recorder := TestingRecorder(t, "accessor-test")

		handler, err := recorder.Handler()
		require.Error(t, err)
		assert.Nil(t, handler)
		assert.Contains(t, err.Error(), "only available with Prometheus provider")
		assert.Contains(t, err.Error(), "stdout")
	})

	t.Run("stdout provider has no scrape surface", func(t *testing.T) {
		t.Parallel()
		recorder := TestingRecorder(t, "accessor-test")

		assert.Equal(t, StdoutProvider, recorder.Provider())
		assert.Empty(t, recorder.ServerAddress())
		assert.Empty(t, recorder.Path())
	})

	t.Run("prometheus with disabled server still hands out the handler", func(t *testing.T) {
		t.Parallel()
		recorder, err := NewRecorder(
			WithPrometheus(":9090", "/metrics"),
			WithServerDisabled(),
			WithServiceName("accessor-test"),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = recorder.Shutdown(ctx)
		})

		handler, err := recorder.Handler()
		require.NoError(t, err)
		assert.NotNil(t, handler)
		assert.Empty(t, recorder.ServerAddress(), "disabled server advertises no address")
	})
}

func TestRecorderEndToEnd(t *testing.T) {
	t.Parallel()

	recorder, err := NewRecorder(
		WithPrometheus(":9090", "/metrics"),
		WithServerDisabled(),
		WithServiceName("compute-test"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = recorder.Shutdown(ctx)
	})

	type createRequest struct {
		Name string `json:"name" validate:"required"`
	}

	e := MustNew(testHistory(t),
		WithRecorder(recorder),
		WithDeprecation(Until(V(2, 1))),
	)
	require.NoError(t, e.Register("servers.list", All(), noopHandler()))
	require.NoError(t, e.Register("servers.create", All(), noopHandler()))
	require.NoError(t, e.BindSchema("servers.create", All(), MustStruct(createRequest{})))
	require.NoError(t, e.Freeze())

	list := e.Negotiate(e.Dispatch("servers.list"))
	serve(list, http.MethodGet, "/servers", "2.2")    // accepted, served
	serve(list, http.MethodGet, "/servers", "banana") // rejected, malformed
	serve(list, http.MethodGet, "/servers", "2.9")    // rejected, unsupported
	serve(list, http.MethodGet, "/servers", "2.1")    // deprecated use

	req := httptest.NewRequest(http.MethodPost, "/servers", strings.NewReader(`{"name":"web-1"}`))
	req.Header.Set(DefaultVersionHeader, "2.2")
	e.Negotiate(e.Dispatch("servers.create")).ServeHTTP(httptest.NewRecorder(), req)

	serve(e.Negotiate(e.Dispatch("ghost")), http.MethodGet, "/ghost", "2.2") // not available

	scrape, err := recorder.Handler()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	scrape.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "microversion_negotiations_total")
	assert.Contains(t, body, "microversion_dispatch_total")
	assert.Contains(t, body, "microversion_deprecated_use_total")
	assert.Contains(t, body, "microversion_validation_duration_seconds")

	assert.Contains(t, body, `outcome="accepted"`)
	assert.Contains(t, body, `outcome="rejected_malformed"`)
	assert.Contains(t, body, `outcome="rejected_unsupported"`)
	assert.Contains(t, body, `outcome="served"`)
	assert.Contains(t, body, `outcome="not_available"`)
	assert.Contains(t, body, `service_name="compute-test"`)
}

func TestRecorderCustomMeterProvider(t *testing.T) {
	t.Parallel()

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
	require.NoError(t, err)
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)

	recorder, err := NewRecorder(
		WithMeterProvider(provider),
		WithServiceName("custom-test"),
	)
	require.NoError(t, err)

	assert.True(t, recorder.customMeterProvider)
	assert.Nil(t, recorder.prometheusHandler, "built-in providers stay uninitialized")
	assert.Nil(t, recorder.metricsServer)

	e := MustNew(testHistory(t), WithRecorder(recorder))
	require.NoError(t, e.Register("ep", All(), noopHandler()))
	rec := serve(e.Negotiate(e.Dispatch("ep")), http.MethodGet, "/ep", "2.2")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Shutdown leaves the user-supplied provider running.
	require.NoError(t, recorder.Shutdown(context.Background()))
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestRecorderShutdownIdempotent(t *testing.T) {
	t.Parallel()

	recorder, err := NewRecorder(WithStdout(), WithServiceName("shutdown-test"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, recorder.Shutdown(ctx))
	require.NoError(t, recorder.Shutdown(ctx), "second shutdown is a no-op")
	require.NoError(t, recorder.ForceFlush(ctx), "flush after shutdown is a no-op")
}

func TestDefaultEventHandler(t *testing.T) {
	t.Parallel()

	t.Run("nil logger discards events", func(t *testing.T) {
		t.Parallel()
		handler := DefaultEventHandler(nil)
		require.NotNil(t, handler)
		assert.NotPanics(t, func() {
			handler(Event{Type: EventError, Message: "dropped"})
		})
	})

	t.Run("routes events to matching log levels", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		handler := DefaultEventHandler(logger)

		handler(Event{Type: EventError, Message: "export failed"})
		handler(Event{Type: EventWarning, Message: "port fallback", Args: []any{"port", 9091}})
		handler(Event{Type: EventInfo, Message: "server started"})
		handler(Event{Type: EventDebug, Message: "provider selected"})

		out := buf.String()
		assert.Contains(t, out, "level=ERROR")
		assert.Contains(t, out, "export failed")
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, "port=9091")
		assert.Contains(t, out, "level=INFO")
		assert.Contains(t, out, "level=DEBUG")
	})
}

func TestRecorderEmitsConfigWarnings(t *testing.T) {
	t.Parallel()

	t.Run("missing otlp endpoint", func(t *testing.T) {
		t.Parallel()
		var events []Event
		recorder, err := NewRecorder(
			WithOTLP(""),
			WithServiceName("warning-test"),
			WithEventHandler(func(e Event) { events = append(events, e) }),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			// The collector is not running; the final flush may fail.
			_ = recorder.Shutdown(ctx)
		})

		var found bool
		for _, e := range events {
			if e.Type == EventWarning && strings.Contains(e.Message, "OTLP endpoint not specified") {
				found = true
			}
		}
		assert.True(t, found, "expected a default-endpoint warning, got %v", events)
	})

	t.Run("very low export interval", func(t *testing.T) {
		t.Parallel()
		var events []Event
		recorder := TestingRecorder(t, "warning-test",
			WithExportInterval(100*time.Millisecond),
			WithEventHandler(func(e Event) { events = append(events, e) }),
		)
		require.NotNil(t, recorder)

		var found bool
		for _, e := range events {
			if e.Type == EventWarning && strings.Contains(e.Message, "Export interval is very low") {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestTestingHelpers(t *testing.T) {
	t.Parallel()

	t.Run("testing recorder defaults", func(t *testing.T) {
		t.Parallel()
		recorder := TestingRecorder(t, "helper-test")

		assert.True(t, recorder.IsEnabled())
		assert.Equal(t, StdoutProvider, recorder.Provider())
		assert.Equal(t, "helper-test", recorder.ServiceName())
	})

	t.Run("testing history", func(t *testing.T) {
		t.Parallel()
		h := TestingHistory(t, "2.1", "2.5", "3.0")

		assert.Equal(t, V(2, 1), h.Min())
		assert.Equal(t, V(3, 0), h.Max())
		desc, ok := h.Describe(V(2, 5))
		assert.True(t, ok)
		assert.NotEmpty(t, desc)
	})
}
