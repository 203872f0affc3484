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

// Package microversion implements header-driven API microversioning in the
// OpenStack Nova style: one monotonically growing version history per API,
// a single version header negotiated per request, and per-endpoint handler
// variants selected by version range.
//
// # Basic Usage
//
// Declare the version history, register endpoint variants, and mount the
// negotiation middleware in front of dispatchers:
//
//	history := microversion.MustNewHistory(
//	    microversion.Milestone{Version: microversion.V(2, 1), Description: "Initial version"},
//	    microversion.Milestone{Version: microversion.V(2, 53), Description: "Service UUIDs"},
//	)
//
//	engine := microversion.MustNew(history)
//	engine.HandleFunc("GET /servers", microversion.Until(microversion.V(2, 52)), listServersLegacy)
//	engine.HandleFunc("GET /servers", microversion.From(microversion.V(2, 53)), listServers)
//
//	mux := http.NewServeMux()
//	mux.Handle("GET /servers", engine.Dispatch("GET /servers"))
//	http.ListenAndServe(":8080", engine.Negotiate(mux))
//
// # Version Negotiation
//
// Each request carries at most one version, read from the negotiation
// header (X-OpenStack-Nova-API-Version by default):
//
//   - Absent header: the engine's default version applies (the history
//     minimum unless [WithDefaultVersion] says otherwise).
//   - "latest": resolves to the newest version in the history, pinned for
//     the rest of the request.
//   - "M.m": served if it falls inside the supported window, rejected with
//     406 and the supported bounds if not.
//   - Anything else: rejected with 400.
//
// The negotiated version travels in the request context; handlers read it
// with [FromRequest] and branch on [Version.AtLeast]:
//
//	func listServers(w http.ResponseWriter, r *http.Request) {
//	    rv, _ := microversion.FromRequest(r)
//	    if rv.Version.AtLeast(microversion.V(2, 67)) {
//	        // include newer fields
//	    }
//	}
//
// # Endpoint Variants
//
// An endpoint may register any number of handler variants, each bound to a
// version range. Ranges must not overlap; gaps are legal and mean the
// endpoint does not exist at those versions. A request for a version no
// variant covers is answered with the same 404 as an unknown path, so
// probing clients cannot map which endpoints exist at which versions.
//
// # Request Body Validation
//
// Validators bind to version ranges per endpoint, independently of handler
// ranges. [Engine.Freeze] verifies at startup that every version a handler
// serves has exactly one validator, catching coverage gaps before traffic
// does:
//
//	engine.BindSchema("POST /servers", microversion.Until(microversion.V(2, 52)),
//	    microversion.MustJSONSchema("create-server", legacySchema))
//	engine.BindSchema("POST /servers", microversion.From(microversion.V(2, 53)),
//	    microversion.MustStruct(CreateServerRequest{}))
//	if err := engine.Freeze(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Version Lifecycle
//
// Deprecation windows announce themselves through response headers
// (Deprecation, Sunset, Link, and optionally Warning 299); sunset
// enforcement answers 410 Gone once the date passes:
//
//	engine := microversion.MustNew(history,
//	    microversion.WithDeprecation(microversion.Until(microversion.V(2, 10)),
//	        microversion.Sunset(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)),
//	        microversion.MigrationDocs("https://docs.example.com/migrate"),
//	    ),
//	    microversion.WithSunsetEnforcement(),
//	)
//
// # Observability
//
// Negotiations, rejections, dispatch outcomes, and deprecated-version use
// are observable three ways: structured logs via [WithLogger], callback
// hooks via [WithObserver], and OpenTelemetry metrics via [WithRecorder]
// with Prometheus, OTLP, or stdout export.
package microversion
