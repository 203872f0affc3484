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
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Negotiate returns middleware that resolves every request to a concrete
// version before any handler runs.
//
// An absent header gets the default version. The keyword "latest"
// (case-insensitive) resolves to the history maximum and is pinned there
// for the rest of the request. Anything else must parse and fall inside
// the supported window: a malformed value is answered with 400, an
// unsupported one with 406 naming the window.
//
// Accepted requests carry the negotiated [RequestVersion] in their
// context and, unless [WithoutResponseHeaders] is set, echo the resolved
// version in the response along with a Vary entry for the header.
//
// Mount the whole versioned surface behind it, the not-found fallback
// included:
//
//	mux.Handle("/", engine.NotFound())
//	srv := &http.Server{Handler: engine.Negotiate(mux)}
func (e *Engine) Negotiate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rv, err := e.negotiate(r)
		if err != nil {
			e.reject(w, r, rv.Raw, err)
			return
		}

		e.notifyNegotiated(rv)
		if e.recorder != nil {
			e.recorder.recordNegotiation(r.Context(), rv)
		}
		if e.logger != nil {
			e.logger.Debug("version negotiated",
				"version", rv.Version.String(),
				"source", string(rv.Source),
				"path", r.URL.Path)
		}
		if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
			span.SetAttributes(
				attribute.String("api.version", rv.Version.String()),
				attribute.String("api.version.source", string(rv.Source)),
			)
		}

		if e.sendHeaders {
			w.Header().Set(e.header, rv.Version.String())
			w.Header().Add("Vary", e.header)
		}

		if e.applyLifecycle(w, r, rv) {
			writeError(w, r, e.formatter, &sunsetError{version: rv.Version})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithRequestVersion(r.Context(), rv)))
	})
}

// negotiate resolves the version for one request without touching the
// response. The returned RequestVersion carries the raw header text even
// on failure, for observers and logs.
func (e *Engine) negotiate(r *http.Request) (RequestVersion, error) {
	raw := r.Header.Get(e.header)

	if raw == "" {
		return RequestVersion{Version: e.DefaultVersion(), Source: SourceDefault}, nil
	}
	if strings.EqualFold(raw, "latest") {
		return RequestVersion{
			Raw:      raw,
			Version:  e.history.Latest(),
			IsLatest: true,
			Source:   SourceLatest,
		}, nil
	}

	v, err := Parse(raw)
	if err != nil {
		return RequestVersion{Raw: raw}, err
	}
	if err := e.history.Validate(v); err != nil {
		return RequestVersion{Raw: raw}, err
	}

	return RequestVersion{Raw: raw, Version: v, Source: SourceHeader}, nil
}

// reject answers a request whose version header failed negotiation.
func (e *Engine) reject(w http.ResponseWriter, r *http.Request, raw string, err error) {
	e.notifyRejected(raw, err)
	if e.recorder != nil {
		e.recorder.recordRejection(r.Context(), err)
	}
	if e.logger != nil {
		e.logger.Warn("version rejected",
			"raw", raw,
			"error", err.Error(),
			"path", r.URL.Path)
	}

	// The outcome depends on the version header even when rejected.
	if e.sendHeaders {
		w.Header().Add("Vary", e.header)
	}

	writeError(w, r, e.formatter, err)
}

// Dispatch returns the handler for one endpoint. At request time it picks
// the variant covering the negotiated version, runs the schema binding
// for that version over the request body, and forwards to the variant.
//
// A version no variant covers is answered by the engine's [Engine.NotFound]
// handler: the response is byte-for-byte what an unknown path produces,
// so clients cannot distinguish "never existed" from "not at this
// version". Observers, logs and metrics see the difference.
//
// Dispatch normally runs behind [Engine.Negotiate] and reads its result
// from the request context. Standalone it negotiates by itself, so a
// bare handler in a test behaves exactly like the mounted one.
func (e *Engine) Dispatch(endpoint string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rv, ok := FromRequest(r)
		if !ok {
			var err error
			rv, err = e.negotiate(r)
			if err != nil {
				e.reject(w, r, rv.Raw, err)
				return
			}
			r = r.WithContext(WithRequestVersion(r.Context(), rv))
		}

		h, err := e.Resolve(endpoint, rv.Version)
		if err != nil {
			e.notifyNotAvailable(endpoint, rv.Version)
			if e.recorder != nil {
				e.recorder.recordDispatch(r.Context(), endpoint, outcomeNotAvailable)
			}
			if e.logger != nil {
				e.logger.Warn("endpoint not available at negotiated version",
					"endpoint", endpoint,
					"version", rv.Version.String())
			}
			e.notFound.ServeHTTP(w, r)
			return
		}

		if err := e.validateBody(r, endpoint, rv); err != nil {
			var gap *SchemaGapError
			if errors.As(err, &gap) {
				e.notifySchemaGap(endpoint, rv.Version)
				if e.recorder != nil {
					e.recorder.recordDispatch(r.Context(), endpoint, outcomeSchemaGap)
				}
				if e.logger != nil {
					e.logger.Error("schema coverage gap hit at request time",
						"endpoint", endpoint,
						"version", rv.Version.String())
				}
			} else if e.recorder != nil {
				e.recorder.recordDispatch(r.Context(), endpoint, outcomeInvalidBody)
			}
			writeError(w, r, e.formatter, err)
			return
		}

		if e.recorder != nil {
			e.recorder.recordDispatch(r.Context(), endpoint, outcomeServed)
		}
		h.ServeHTTP(w, r)
	})
}

// validateBody runs the schema binding for the negotiated version, if the
// endpoint has one. The body is restored afterwards so the handler reads
// it as if untouched.
func (e *Engine) validateBody(r *http.Request, endpoint string, rv RequestVersion) error {
	val, err := e.ResolveSchema(endpoint, rv.Version)
	if err != nil {
		return err
	}
	if val == nil {
		return nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return &BodyValidationError{Endpoint: endpoint, Fields: []FieldError{{
			Code:    "read_error",
			Message: "failed to read request body",
		}}}
	}
	r.Body.Close() //nolint:errcheck // Fully consumed; a close failure changes nothing
	r.Body = io.NopCloser(bytes.NewReader(body))

	start := time.Now()
	verr := val.Validate(r.Context(), body)
	if e.recorder != nil {
		e.recorder.recordValidationDuration(r.Context(), endpoint, time.Since(start))
	}

	if verr != nil {
		var bve *BodyValidationError
		if errors.As(verr, &bve) && bve.Endpoint == "" {
			bve.Endpoint = endpoint
		}
		return verr
	}
	return nil
}
