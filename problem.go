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
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorType lets an error declare its HTTP status code.
type ErrorType interface {
	HTTPStatus() int
}

// ErrorCode lets an error declare a stable machine-readable code.
type ErrorCode interface {
	Code() string
}

// ErrorDetails lets an error expose structured context for responses.
type ErrorDetails interface {
	Details() any
}

// Response is a formatted error ready to write.
type Response struct {
	Status      int
	ContentType string
	Body        any
}

// Formatter converts negotiation and dispatch errors into HTTP responses.
// The default is [NewProblemFormatter]; replace it with
// [WithErrorFormatter] to match an existing error surface.
type Formatter interface {
	Format(req *http.Request, err error) Response
}

// ProblemFormatter renders errors as RFC 9457 Problem Details with
// Content-Type "application/problem+json".
//
// Output is deterministic: two identical errors for the same path produce
// identical bytes. That is load-bearing for the not-found response, which
// must not differ between a path that never existed and an endpoint the
// negotiated version cannot see.
type ProblemFormatter struct {
	// BaseURL is prepended to error codes to form problem type URIs,
	// such as "https://api.example.com/problems" + "/version_not_supported".
	// Empty leaves the bare code as the type.
	BaseURL string
}

// NewProblemFormatter creates the default [Formatter] with no base URL.
func NewProblemFormatter() *ProblemFormatter {
	return &ProblemFormatter{}
}

// ProblemDetail is an RFC 9457 problem detail document. Extensions are
// marshaled inline with the standard fields.
type ProblemDetail struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"-"`
}

// MarshalJSON merges extensions into the main object, protecting the
// reserved RFC 9457 field names.
func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	for k, v := range p.Extensions {
		if k != "type" && k != "title" && k != "status" && k != "detail" && k != "instance" {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// Format converts an error into an RFC 9457 problem response. Status
// comes from [ErrorType] (500 otherwise), the problem type from
// [ErrorCode], and structured context from [ErrorDetails].
func (f *ProblemFormatter) Format(req *http.Request, err error) Response {
	status := http.StatusInternalServerError
	var typed ErrorType
	if errors.As(err, &typed) {
		status = typed.HTTPStatus()
	}

	p := ProblemDetail{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   err.Error(),
		Instance: req.URL.Path,
	}

	var coded ErrorCode
	if errors.As(err, &coded) {
		code := coded.Code()
		p.Extensions = map[string]any{"code": code}
		if f.BaseURL != "" {
			p.Type = f.BaseURL + "/" + code
		} else {
			p.Type = code
		}
	}

	var detailed ErrorDetails
	if errors.As(err, &detailed) {
		if p.Extensions == nil {
			p.Extensions = make(map[string]any)
		}
		p.Extensions["errors"] = detailed.Details()
	}

	return Response{
		Status:      status,
		ContentType: "application/problem+json; charset=utf-8",
		Body:        p,
	}
}

// notFoundError is the error every not-found response renders from,
// whatever the real reason. Its message names nothing the client could
// use to tell the reasons apart.
type notFoundError struct{}

func (notFoundError) Error() string   { return "resource not found" }
func (notFoundError) HTTPStatus() int { return http.StatusNotFound }
func (notFoundError) Code() string    { return "not_found" }

// notFoundHandler builds the shared not-found handler from a formatter.
func notFoundHandler(f Formatter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, f, notFoundError{})
	})
}

// writeError formats err and writes it. Map keys marshal in sorted order,
// so equal errors yield equal bytes.
func writeError(w http.ResponseWriter, r *http.Request, f Formatter, err error) {
	resp := f.Format(r, err)
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	if resp.Body != nil {
		_ = json.NewEncoder(w).Encode(resp.Body) //nolint:errcheck // Headers already sent; nothing useful to do
	}
}
