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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultVersionHeader is the request and response header used for
// negotiation unless [WithHeader] overrides it. The name follows the
// OpenStack compute convention that established the microversion contract.
const DefaultVersionHeader = "X-OpenStack-Nova-API-Version"

// Engine negotiates API versions and dispatches requests to the handler
// variant registered for the negotiated version.
//
// Build it in three phases. First construct it around a [History]; then
// register handler variants and schema bindings; finally call
// [Engine.Freeze], which cross-checks the tables and seals them. After
// Freeze the engine is immutable and safe for concurrent use.
//
//	engine, err := microversion.New(history)
//	if err != nil { ... }
//	if err := engine.Register("servers.create", microversion.From(microversion.V(2, 1)), createV21); err != nil { ... }
//	if err := engine.Freeze(); err != nil { ... }
//
//	mux.Handle("POST /servers", engine.Dispatch("servers.create"))
//	srv := &http.Server{Handler: engine.Negotiate(mux)}
type Engine struct {
	history  *History
	variants *rangeTable[http.Handler]
	schemas  *rangeTable[Validator]

	header         string
	defaultVersion Version
	sendHeaders    bool
	sendWarning299 bool
	enforceSunset  bool

	lifecycles []*LifecycleConfig
	observer   *Observer
	recorder   *Recorder
	logger     *slog.Logger
	formatter  Formatter
	notFound   http.Handler
	clock      func() time.Time

	frozen bool
}

// New creates an engine for the given version history.
//
// Example:
//
//	engine, err := microversion.New(history,
//	    microversion.WithDefaultVersion(microversion.V(2, 1)),
//	    microversion.WithLogger(slog.Default()),
//	)
func New(history *History, opts ...Option) (*Engine, error) {
	if history == nil {
		return nil, ErrNilHistory
	}

	e := &Engine{
		history:     history,
		variants:    newRangeTable[http.Handler](),
		schemas:     newRangeTable[Validator](),
		header:      DefaultVersionHeader,
		sendHeaders: true,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if !e.defaultVersion.IsZero() {
		if err := history.Validate(e.defaultVersion); err != nil {
			return nil, fmt.Errorf("default version: %w", err)
		}
	}

	if e.formatter == nil {
		e.formatter = NewProblemFormatter()
	}
	if e.notFound == nil {
		e.notFound = notFoundHandler(e.formatter)
	}

	return e, nil
}

// MustNew is like [New] but panics on error. Use it when the engine is
// wired from constants and a failure is a programming error.
func MustNew(history *History, opts ...Option) *Engine {
	e, err := New(history, opts...)
	if err != nil {
		panic(fmt.Sprintf("microversion: MustNew: %v", err))
	}
	return e
}

// Register adds a handler variant for an endpoint over a version range.
// Ranges for the same endpoint must not intersect; a violation is
// reported here, at startup, never at request time. Either bound of r may
// be null to leave that side open.
//
// Registering a range that ends below the history's minimum version is an
// error: the history only grows upward, so no request could ever reach
// the variant.
func (e *Engine) Register(endpoint string, r Range, h http.Handler) error {
	if e.frozen {
		return fmt.Errorf("%w: cannot register %q", ErrFrozen, endpoint)
	}
	if endpoint == "" {
		return ErrEmptyEndpoint
	}
	if h == nil {
		return fmt.Errorf("%w: endpoint %q", ErrNilHandler, endpoint)
	}
	if err := r.validate(); err != nil {
		return fmt.Errorf("endpoint %q: %w", endpoint, err)
	}
	if !r.Max.IsZero() && r.Max.LessThan(e.history.Min()) {
		return fmt.Errorf("%w: endpoint %q: %s ends below minimum %s",
			ErrUnreachableRange, endpoint, r, e.history.Min())
	}

	return e.variants.insert(endpoint, r, h)
}

// HandleFunc is [Engine.Register] for plain handler functions.
func (e *Engine) HandleFunc(endpoint string, r Range, h http.HandlerFunc) error {
	if h == nil {
		return fmt.Errorf("%w: endpoint %q", ErrNilHandler, endpoint)
	}
	return e.Register(endpoint, r, h)
}

// BindSchema attaches a request-body validator to an endpoint over a
// version range. Like handler variants, binding ranges for the same
// endpoint must not intersect.
//
// An endpoint with no bindings skips body validation entirely. An
// endpoint with at least one binding must be covered across every version
// its handlers serve; [Engine.Freeze] proves that from the ranges.
func (e *Engine) BindSchema(endpoint string, r Range, v Validator) error {
	if e.frozen {
		return fmt.Errorf("%w: cannot bind schema for %q", ErrFrozen, endpoint)
	}
	if endpoint == "" {
		return ErrEmptyEndpoint
	}
	if v == nil {
		return fmt.Errorf("%w: endpoint %q", ErrNilValidator, endpoint)
	}
	if err := r.validate(); err != nil {
		return fmt.Errorf("endpoint %q: %w", endpoint, err)
	}

	return e.schemas.insert(endpoint, r, v)
}

// Freeze cross-checks the registration tables and seals the engine.
// It is the configuration gate: a schema bound to an unknown endpoint or
// a version window a handler serves without schema coverage fails here,
// before the server takes traffic. All failures are reported together.
//
// Freeze is idempotent; after the first success further registrations are
// rejected with [ErrFrozen].
func (e *Engine) Freeze() error {
	if e.frozen {
		return nil
	}

	var errs []error
	for _, endpoint := range e.schemas.endpoints() {
		variantRanges := e.variants.ranges(endpoint)
		if len(variantRanges) == 0 {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDanglingSchema, endpoint))
			continue
		}

		bindings := e.schemas.ranges(endpoint)
		for _, vr := range variantRanges {
			// Versions below the history floor are unreachable forever, so
			// coverage starts there. Open-ended handler ranges must be met
			// by open-ended bindings: the history grows.
			want, ok := vr.intersect(From(e.history.Min()))
			if !ok {
				continue
			}
			if gap, found := uncovered(want, bindings); found {
				errs = append(errs, &SchemaGapError{Endpoint: endpoint, Missing: gap})
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	e.frozen = true
	return nil
}

// Resolve returns the handler variant serving v on the endpoint. When no
// variant covers v it returns a [*EndpointNotAvailableError]; an endpoint
// that was never registered reports the same error, deliberately.
func (e *Engine) Resolve(endpoint string, v Version) (http.Handler, error) {
	if h, ok := e.variants.lookup(endpoint, v); ok {
		return h, nil
	}
	return nil, &EndpointNotAvailableError{Endpoint: endpoint, Version: v}
}

// ResolveSchema returns the validator bound to the endpoint for v.
// Endpoints with no bindings return (nil, nil): body validation is
// opt-in per endpoint. A version between bindings on a bound endpoint
// returns a [*SchemaGapError]; [Engine.Freeze] makes that unreachable
// unless the engine was never frozen.
func (e *Engine) ResolveSchema(endpoint string, v Version) (Validator, error) {
	if !e.schemas.has(endpoint) {
		return nil, nil
	}
	if val, ok := e.schemas.lookup(endpoint, v); ok {
		return val, nil
	}
	return nil, &SchemaGapError{Endpoint: endpoint, Version: v}
}

// Endpoints returns every endpoint with registered variants, sorted.
func (e *Engine) Endpoints() []string {
	return e.variants.endpoints()
}

// Variants returns the version ranges registered for an endpoint in
// ascending order.
func (e *Engine) Variants(endpoint string) []Range {
	return e.variants.ranges(endpoint)
}

// SchemaRanges returns the schema binding ranges for an endpoint in
// ascending order.
func (e *Engine) SchemaRanges(endpoint string) []Range {
	return e.schemas.ranges(endpoint)
}

// History returns the version history the engine negotiates against.
func (e *Engine) History() *History {
	return e.history
}

// Header returns the negotiation header name.
func (e *Engine) Header() string {
	return e.header
}

// DefaultVersion returns the version assigned to requests that send no
// header: the configured default, or the history minimum. Defaulting to
// the minimum keeps header-less clients on the oldest stable behavior.
func (e *Engine) DefaultVersion() Version {
	if !e.defaultVersion.IsZero() {
		return e.defaultVersion
	}
	return e.history.Min()
}

// NotFound returns the handler that renders not-found responses. Mount it
// as the router's fallback so an endpoint missing at the negotiated
// version and a path that never existed produce identical responses.
func (e *Engine) NotFound() http.Handler {
	return e.notFound
}

// Frozen reports whether [Engine.Freeze] has sealed the tables.
func (e *Engine) Frozen() bool {
	return e.frozen
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

func (e *Engine) notifyNegotiated(rv RequestVersion) {
	if e.observer != nil && e.observer.OnNegotiated != nil {
		e.observer.OnNegotiated(rv)
	}
}

func (e *Engine) notifyRejected(raw string, err error) {
	if e.observer != nil && e.observer.OnRejected != nil {
		e.observer.OnRejected(raw, err)
	}
}

func (e *Engine) notifyNotAvailable(endpoint string, v Version) {
	if e.observer != nil && e.observer.OnNotAvailable != nil {
		e.observer.OnNotAvailable(endpoint, v)
	}
}

func (e *Engine) notifySchemaGap(endpoint string, v Version) {
	if e.observer != nil && e.observer.OnSchemaGap != nil {
		e.observer.OnSchemaGap(endpoint, v)
	}
}

func (e *Engine) notifyDeprecatedUse(v Version, path string) {
	if e.observer != nil && e.observer.OnDeprecatedUse != nil {
		e.observer.OnDeprecatedUse(v, path)
	}
}
