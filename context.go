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
	"net/http"
)

// Source names where a negotiated version came from.
type Source string

const (
	// SourceHeader means the client pinned an explicit version.
	SourceHeader Source = "header"

	// SourceLatest means the client sent the "latest" keyword.
	SourceLatest Source = "latest"

	// SourceDefault means the client sent no version header.
	SourceDefault Source = "default"
)

// RequestVersion is the outcome of negotiating one request. It is pinned
// at negotiation time: a request that asked for "latest" keeps the
// version it resolved to even if the history gains a newer one while the
// request is in flight.
type RequestVersion struct {
	// Raw is the header text exactly as received, empty when the header
	// was absent.
	Raw string

	// Version is the concrete version every dispatch and feature gate
	// for this request uses.
	Version Version

	// IsLatest records that the client asked for "latest" rather than
	// pinning a number.
	IsLatest bool

	// Source names how the version was chosen.
	Source Source
}

type requestVersionKey struct{}

// WithRequestVersion returns a context carrying the negotiated version.
// [Engine.Negotiate] calls this for every accepted request; tests can use
// it to exercise handlers without the middleware.
func WithRequestVersion(ctx context.Context, rv RequestVersion) context.Context {
	return context.WithValue(ctx, requestVersionKey{}, rv)
}

// FromContext returns the negotiated version stored in ctx, if any.
func FromContext(ctx context.Context) (RequestVersion, bool) {
	rv, ok := ctx.Value(requestVersionKey{}).(RequestVersion)
	return rv, ok
}

// FromRequest returns the negotiated version for an HTTP request, if the
// negotiation middleware ran.
func FromRequest(r *http.Request) (RequestVersion, bool) {
	return FromContext(r.Context())
}

// MustFromRequest is like [FromRequest] but panics when no negotiation
// result is present. Use it in handlers that are only ever mounted behind
// [Engine.Negotiate]:
//
//	rv := microversion.MustFromRequest(r)
//	if rv.Version.AtLeast(microversion.V(2, 3)) { ... }
func MustFromRequest(r *http.Request) RequestVersion {
	rv, ok := FromRequest(r)
	if !ok {
		panic("microversion: no negotiated version in request context; is Engine.Negotiate mounted?")
	}
	return rv
}
