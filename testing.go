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
	"testing"
	"time"
)

// ErrServerNotReady is returned when the metrics server fails to start within the timeout.
var ErrServerNotReady = errors.New("metrics server not ready")

// TestingRecorder creates a test [Recorder] with sensible defaults for unit
// tests: [StdoutProvider] with the scrape server disabled to avoid port
// conflicts. Shutdown is registered with t.Cleanup.
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel()
//	    recorder := microversion.TestingRecorder(t, "test-service")
//	    // Use recorder...
//	}
func TestingRecorder(t testing.TB, serviceName string, opts ...RecorderOption) *Recorder {
	t.Helper()

	defaultOpts := []RecorderOption{
		WithServiceName(serviceName),
		WithStdout(),
		WithServerDisabled(),
	}

	// Test-specific options override the defaults.
	allOpts := append(defaultOpts, opts...)

	recorder, err := NewRecorder(allOpts...)
	if err != nil {
		t.Fatalf("TestingRecorder: failed to create recorder: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Shutdown(ctx); err != nil {
			t.Logf("TestingRecorder: shutdown warning: %v", err)
		}
	})

	return recorder
}

// TestingRecorderWithPrometheus creates a test [Recorder] with
// [PrometheusProvider] on a dynamically chosen port. Shutdown is
// registered with t.Cleanup.
func TestingRecorderWithPrometheus(t testing.TB, serviceName string, opts ...RecorderOption) *Recorder {
	t.Helper()

	port := findAvailableTestPort(t)

	defaultOpts := []RecorderOption{
		WithServiceName(serviceName),
		WithPrometheus(fmt.Sprintf(":%d", port), "/metrics"),
	}

	allOpts := append(defaultOpts, opts...)

	recorder, err := NewRecorder(allOpts...)
	if err != nil {
		t.Fatalf("TestingRecorderWithPrometheus: failed to create recorder: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Shutdown(ctx); err != nil {
			t.Logf("TestingRecorderWithPrometheus: shutdown warning: %v", err)
		}
	})

	return recorder
}

// TestingHistory builds a [History] from version strings, generating
// placeholder descriptions. Fails the test on malformed or out-of-order
// versions.
//
// Example:
//
//	history := microversion.TestingHistory(t, "2.1", "2.2", "2.3")
func TestingHistory(t testing.TB, versions ...string) *History {
	t.Helper()

	if len(versions) == 0 {
		t.Fatal("TestingHistory: at least one version is required")
	}

	h := &History{}
	for _, s := range versions {
		v, err := Parse(s)
		if err != nil {
			t.Fatalf("TestingHistory: bad version %q: %v", s, err)
		}
		if err := h.Add(v, fmt.Sprintf("test milestone %s", s)); err != nil {
			t.Fatalf("TestingHistory: add %q: %v", s, err)
		}
	}
	return h
}

// WaitForMetricsServer waits for the metrics server to accept connections.
func WaitForMetricsServer(t testing.TB, address string, timeout time.Duration) error {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", address, 100*time.Millisecond)
		if err == nil {
			conn.Close() //nolint:errcheck // Best-effort close, error not critical for test helper
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("%w after %v", ErrServerNotReady, timeout)
}

// findAvailableTestPort finds an available TCP port for testing.
func findAvailableTestPort(t testing.TB) int {
	t.Helper()

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("findAvailableTestPort: failed to find available port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close() //nolint:errcheck // Best-effort close, error not critical for port discovery
	return port
}
