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
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Option configures the engine.
type Option func(*Engine) error

// ═══════════════════════════════════════════════════════════════════════════════
// Negotiation Options
// ═══════════════════════════════════════════════════════════════════════════════

// WithDefaultVersion sets the version assigned to requests that send no
// header. Without it, header-less requests get the history minimum: the
// oldest behavior is the only safe guess for a client that predates
// versioning. The default must fall inside the supported window.
//
// Example:
//
//	microversion.WithDefaultVersion(microversion.V(2, 1))
func WithDefaultVersion(v Version) Option {
	return func(e *Engine) error {
		if v.IsZero() {
			return fmt.Errorf("%w: default version", ErrMalformedVersion)
		}
		e.defaultVersion = v
		return nil
	}
}

// WithHeader overrides the negotiation header name.
//
// Example:
//
//	microversion.WithHeader("X-Compute-API-Version")
func WithHeader(name string) Option {
	return func(e *Engine) error {
		if name == "" {
			return ErrEmptyHeaderName
		}
		e.header = name
		return nil
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// Response Behavior Options
// ═══════════════════════════════════════════════════════════════════════════════

// WithoutResponseHeaders stops the engine from echoing the negotiated
// version and adding Vary to responses. Caches between the server and its
// clients lose version awareness; leave the headers on unless something
// downstream cannot tolerate them.
func WithoutResponseHeaders() Option {
	return func(e *Engine) error {
		e.sendHeaders = false
		return nil
	}
}

// WithNotFoundHandler replaces the handler that renders not-found
// responses. The same handler answers unknown paths and endpoints missing
// at the negotiated version, which is what keeps the two cases
// indistinguishable; mount it as the router's fallback too.
func WithNotFoundHandler(h http.Handler) Option {
	return func(e *Engine) error {
		if h == nil {
			return fmt.Errorf("%w: not-found handler", ErrNilHandler)
		}
		e.notFound = h
		return nil
	}
}

// WithErrorFormatter replaces the default RFC 9457 error rendering.
//
// Example:
//
//	microversion.WithErrorFormatter(&microversion.ProblemFormatter{
//	    BaseURL: "https://api.example.com/problems",
//	})
func WithErrorFormatter(f Formatter) Option {
	return func(e *Engine) error {
		if f == nil {
			return ErrNilFormatter
		}
		e.formatter = f
		return nil
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// Lifecycle Options
// ═══════════════════════════════════════════════════════════════════════════════

// WithDeprecation marks a version range as deprecated. Requests that
// negotiate into the range receive Deprecation, Sunset and Link headers
// describing the migration path. Deprecated ranges must not overlap.
//
// Example:
//
//	microversion.WithDeprecation(microversion.Until(microversion.V(2, 3)),
//	    microversion.DeprecatedSince(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
//	    microversion.Sunset(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
//	    microversion.MigrationDocs("https://docs.example.com/migrate-2.4"),
//	    microversion.SuccessorVersion(microversion.V(2, 4)),
//	)
func WithDeprecation(r Range, opts ...LifecycleOption) Option {
	return func(e *Engine) error {
		if err := r.validate(); err != nil {
			return fmt.Errorf("deprecation range: %w", err)
		}
		for _, existing := range e.lifecycles {
			if existing.Range.Intersects(r) {
				return fmt.Errorf("%w: deprecation %s intersects %s",
					ErrOverlappingRange, r, existing.Range)
			}
		}

		lc := &LifecycleConfig{Range: r}
		for _, opt := range opts {
			opt(lc)
		}
		e.lifecycles = append(e.lifecycles, lc)
		return nil
	}
}

// WithWarning299 adds an RFC 7234 Warning: 299 header to responses for
// deprecated versions, spelling out the sunset date and successor.
func WithWarning299() Option {
	return func(e *Engine) error {
		e.sendWarning299 = true
		return nil
	}
}

// WithSunsetEnforcement makes requests for versions past their sunset
// date receive 410 Gone instead of being served.
func WithSunsetEnforcement() Option {
	return func(e *Engine) error {
		e.enforceSunset = true
		return nil
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// Observability Options
// ═══════════════════════════════════════════════════════════════════════════════

// ObserverOption configures the negotiation observer.
type ObserverOption func(*Observer)

// WithObserver installs callbacks for negotiation and dispatch events.
//
// Example:
//
//	microversion.WithObserver(
//	    microversion.OnNegotiated(func(rv microversion.RequestVersion) {
//	        usage.Record(rv.Version)
//	    }),
//	    microversion.OnNotAvailable(func(endpoint string, v microversion.Version) {
//	        logger.Info("version probe", "endpoint", endpoint, "version", v.String())
//	    }),
//	)
func WithObserver(opts ...ObserverOption) Option {
	return func(e *Engine) error {
		obs := &Observer{}
		for _, opt := range opts {
			opt(obs)
		}
		e.observer = obs
		return nil
	}
}

// OnNegotiated sets the callback for successful negotiation.
func OnNegotiated(fn func(rv RequestVersion)) ObserverOption {
	return func(o *Observer) {
		o.OnNegotiated = fn
	}
}

// OnRejected sets the callback for rejected version headers.
func OnRejected(fn func(raw string, err error)) ObserverOption {
	return func(o *Observer) {
		o.OnRejected = fn
	}
}

// OnNotAvailable sets the callback for dispatches that found no variant.
func OnNotAvailable(fn func(endpoint string, v Version)) ObserverOption {
	return func(o *Observer) {
		o.OnNotAvailable = fn
	}
}

// OnSchemaGap sets the callback for runtime schema coverage gaps.
func OnSchemaGap(fn func(endpoint string, v Version)) ObserverOption {
	return func(o *Observer) {
		o.OnSchemaGap = fn
	}
}

// OnDeprecatedUse sets the callback for requests using deprecated versions.
func OnDeprecatedUse(fn func(v Version, path string)) ObserverOption {
	return func(o *Observer) {
		o.OnDeprecatedUse = fn
	}
}

// WithLogger attaches a structured logger. The engine logs negotiation at
// debug level and rejections, unavailable variants and schema gaps at
// warn or error. Without a logger the engine is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			return ErrNilLogger
		}
		e.logger = logger
		return nil
	}
}

// WithRecorder attaches a metrics [Recorder]. Negotiation outcomes,
// dispatch outcomes, deprecated-version use and validation latency are
// recorded per request.
//
// Example:
//
//	recorder, err := microversion.NewRecorder(microversion.WithPrometheus(":9090", "/metrics"))
//	engine, err := microversion.New(history, microversion.WithRecorder(recorder))
func WithRecorder(rec *Recorder) Option {
	return func(e *Engine) error {
		if rec == nil {
			return ErrNilRecorder
		}
		e.recorder = rec
		return nil
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// Testing Options
// ═══════════════════════════════════════════════════════════════════════════════

// WithClock sets a custom clock for deprecation and sunset decisions.
//
// Example:
//
//	microversion.WithClock(func() time.Time {
//	    return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
//	})
func WithClock(nowFn func() time.Time) Option {
	return func(e *Engine) error {
		e.clock = nowFn
		return nil
	}
}
