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

// Observer holds callbacks for negotiation and dispatch events.
// All callbacks are optional. They run inline on the request path, so
// they must be fast and must not block; hand anything expensive to a
// channel or a metrics recorder.
//
// Configure it with [WithObserver]:
//
//	engine, err := microversion.New(history,
//	    microversion.WithObserver(
//	        microversion.OnRejected(func(raw string, err error) {
//	            logger.Warn("version rejected", "raw", raw, "error", err)
//	        }),
//	    ),
//	)
type Observer struct {
	// OnNegotiated is called after a request resolves to a concrete
	// version.
	OnNegotiated func(rv RequestVersion)

	// OnRejected is called when a version header is turned away, whether
	// malformed or outside the supported window.
	OnRejected func(raw string, err error)

	// OnNotAvailable is called when dispatch finds no handler variant for
	// the negotiated version. The client sees a plain not-found; this
	// callback is where the real reason is visible.
	OnNotAvailable func(endpoint string, v Version)

	// OnSchemaGap is called when dispatch reaches a version no schema
	// binding covers on an endpoint that has bindings.
	OnSchemaGap func(endpoint string, v Version)

	// OnDeprecatedUse is called when a request negotiates a version
	// inside a deprecated range.
	OnDeprecatedUse func(v Version, path string)
}
