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
	"net/http"
	"strings"
)

// Sentinel errors for configuration and negotiation failures.
// Match them with [errors.Is]; the typed errors below carry the context.
var (
	// ErrMalformedVersion indicates a version string that does not use the
	// <major>.<minor> wire form.
	ErrMalformedVersion = errors.New("malformed version")

	// ErrVersionNotSupported indicates a well-formed version outside the
	// supported history window.
	ErrVersionNotSupported = errors.New("version not supported")

	// ErrEndpointNotAvailable indicates an endpoint with no variant
	// covering the negotiated version.
	ErrEndpointNotAvailable = errors.New("endpoint not available at this version")

	// ErrBodyValidation indicates a request body rejected by the schema
	// bound to the negotiated version.
	ErrBodyValidation = errors.New("request body validation failed")

	// ErrOverlappingRange indicates two registrations for the same
	// endpoint whose version ranges intersect.
	ErrOverlappingRange = errors.New("overlapping version range")

	// ErrInvertedRange indicates a range whose max precedes its min.
	ErrInvertedRange = errors.New("inverted version range")

	// ErrUnreachableRange indicates a registration entirely below the
	// history's minimum version, which no request can ever reach.
	ErrUnreachableRange = errors.New("version range below supported window")

	// ErrSchemaGap indicates an endpoint with schema bindings that do not
	// cover every version one of its handlers serves.
	ErrSchemaGap = errors.New("schema coverage gap")

	// ErrFrozen indicates a registration attempted after [Engine.Freeze].
	ErrFrozen = errors.New("engine is frozen")

	// ErrEmptyHistory indicates a history built with no milestones.
	ErrEmptyHistory = errors.New("history requires at least one milestone")

	// ErrMilestoneOrder indicates a milestone that does not extend the
	// history upward.
	ErrMilestoneOrder = errors.New("milestone out of order")

	// ErrMilestoneDescription indicates a milestone missing its change
	// description.
	ErrMilestoneDescription = errors.New("milestone description required")

	// ErrChangelogFormat indicates a changelog file whose format cannot
	// be detected from its extension.
	ErrChangelogFormat = errors.New("unsupported changelog format")

	// ErrDanglingSchema indicates schema bindings on an endpoint that has
	// no handler variants, which is almost always a misspelled endpoint.
	ErrDanglingSchema = errors.New("schema bound to endpoint with no variants")
)

// Option and registration argument errors.
var (
	// ErrNilHistory indicates an engine built without a version history.
	ErrNilHistory = errors.New("history is required")

	// ErrEmptyEndpoint indicates a registration with an empty endpoint name.
	ErrEmptyEndpoint = errors.New("endpoint name cannot be empty")

	// ErrNilHandler indicates a registration with a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilValidator indicates a schema binding with a nil validator.
	ErrNilValidator = errors.New("validator cannot be nil")

	// ErrEmptyHeaderName indicates WithHeader called with an empty name.
	ErrEmptyHeaderName = errors.New("header name cannot be empty")

	// ErrNilFormatter indicates WithErrorFormatter called with nil.
	ErrNilFormatter = errors.New("formatter cannot be nil")

	// ErrNilLogger indicates WithLogger called with nil.
	ErrNilLogger = errors.New("logger cannot be nil")

	// ErrNilRecorder indicates WithRecorder called with nil.
	ErrNilRecorder = errors.New("recorder cannot be nil")
)

// MalformedVersionError reports a version string that failed to parse.
// Negotiation answers it with 400 Bad Request.
type MalformedVersionError struct {
	// Value is the raw header text as received.
	Value string
}

// Error implements the error interface.
func (e *MalformedVersionError) Error() string {
	return fmt.Sprintf("malformed version %q: want <major>.<minor>, such as \"2.1\"", e.Value)
}

// Unwrap matches [ErrMalformedVersion].
func (e *MalformedVersionError) Unwrap() error { return ErrMalformedVersion }

// HTTPStatus returns 400.
func (e *MalformedVersionError) HTTPStatus() int { return http.StatusBadRequest }

// Code returns the stable machine-readable code for this error.
func (e *MalformedVersionError) Code() string { return "malformed_version" }

// Details returns structured context for error responses.
func (e *MalformedVersionError) Details() any {
	return map[string]string{"value": e.Value}
}

// UnsupportedVersionError reports a well-formed version outside the
// supported window. Negotiation answers it with 406 Not Acceptable and
// names the window so clients can re-pin.
type UnsupportedVersionError struct {
	Requested Version
	Min       Version
	Max       Version
}

// Error implements the error interface.
func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("version %s is not supported: the supported window is %s through %s",
		e.Requested, e.Min, e.Max)
}

// Unwrap matches [ErrVersionNotSupported].
func (e *UnsupportedVersionError) Unwrap() error { return ErrVersionNotSupported }

// HTTPStatus returns 406.
func (e *UnsupportedVersionError) HTTPStatus() int { return http.StatusNotAcceptable }

// Code returns the stable machine-readable code for this error.
func (e *UnsupportedVersionError) Code() string { return "version_not_supported" }

// Details returns structured context for error responses.
func (e *UnsupportedVersionError) Details() any {
	return map[string]string{
		"requested":   e.Requested.String(),
		"min_version": e.Min.String(),
		"max_version": e.Max.String(),
	}
}

// EndpointNotAvailableError reports an endpoint that exists but has no
// variant covering the negotiated version.
//
// This error never reaches a response body. [Engine.Dispatch] answers it
// with the shared not-found handler, byte-for-byte the same response an
// unknown path gets, so probing cannot reveal that the endpoint exists at
// other versions. The descriptive message here is for logs and observers
// only.
type EndpointNotAvailableError struct {
	Endpoint string
	Version  Version
}

// Error implements the error interface.
func (e *EndpointNotAvailableError) Error() string {
	return fmt.Sprintf("endpoint %q has no variant at version %s", e.Endpoint, e.Version)
}

// Unwrap matches [ErrEndpointNotAvailable].
func (e *EndpointNotAvailableError) Unwrap() error { return ErrEndpointNotAvailable }

// HTTPStatus returns 404.
func (e *EndpointNotAvailableError) HTTPStatus() int { return http.StatusNotFound }

// Code returns the code shared with every other not-found response.
func (e *EndpointNotAvailableError) Code() string { return "not_found" }

// SchemaGapError reports a version reachable by a handler variant but not
// covered by any schema binding on the same endpoint.
//
// [Engine.Freeze] reports gaps it can prove from the ranges alone, with
// Missing set to the uncovered window. If a gap is only hit at runtime it
// surfaces as a 500, because it is a configuration defect rather than a
// client mistake.
type SchemaGapError struct {
	Endpoint string
	Version  Version
	Missing  Range
}

// Error implements the error interface.
func (e *SchemaGapError) Error() string {
	if !e.Version.IsZero() {
		return fmt.Sprintf("endpoint %q: no schema bound for version %s", e.Endpoint, e.Version)
	}
	return fmt.Sprintf("endpoint %q: schema bindings leave %s uncovered", e.Endpoint, e.Missing)
}

// Unwrap matches [ErrSchemaGap].
func (e *SchemaGapError) Unwrap() error { return ErrSchemaGap }

// HTTPStatus returns 500.
func (e *SchemaGapError) HTTPStatus() int { return http.StatusInternalServerError }

// Code returns the stable machine-readable code for this error.
func (e *SchemaGapError) Code() string { return "schema_gap" }

// FieldError describes a single request-body violation.
type FieldError struct {
	// Path locates the offending value, such as "dummy.val".
	Path string `json:"path"`

	// Code is a stable identifier for the violation kind, such as
	// "required" or "maximum".
	Code string `json:"code"`

	// Message is the human-readable explanation.
	Message string `json:"message"`
}

// BodyValidationError reports a request body rejected by the schema bound
// to the negotiated version. Dispatch answers it with 400 Bad Request.
type BodyValidationError struct {
	Endpoint string
	Fields   []FieldError
}

// Error implements the error interface.
func (e *BodyValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("endpoint %q: request body validation failed", e.Endpoint)
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Path != "" {
			msgs = append(msgs, f.Path+": "+f.Message)
		} else {
			msgs = append(msgs, f.Message)
		}
	}
	return fmt.Sprintf("endpoint %q: request body validation failed: %s",
		e.Endpoint, strings.Join(msgs, "; "))
}

// Unwrap matches [ErrBodyValidation].
func (e *BodyValidationError) Unwrap() error { return ErrBodyValidation }

// HTTPStatus returns 400.
func (e *BodyValidationError) HTTPStatus() int { return http.StatusBadRequest }

// Code returns the stable machine-readable code for this error.
func (e *BodyValidationError) Code() string { return "invalid_request_body" }

// Details returns the per-field violations for error responses.
func (e *BodyValidationError) Details() any { return e.Fields }
