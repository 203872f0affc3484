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
	"net/http"
	"strings"
	"time"
)

// LifecycleConfig describes the deprecation state of a version range.
// Attach one with [WithDeprecation].
type LifecycleConfig struct {
	// Range is the window of deprecated versions.
	Range Range

	// DeprecatedSince is when the deprecation was announced.
	DeprecatedSince time.Time

	// SunsetDate is when the range stops being served. Before the date it
	// is advertised in a Sunset header; after it, requests receive
	// 410 Gone if [WithSunsetEnforcement] is on.
	SunsetDate time.Time

	// MigrationURL points clients at migration documentation via Link
	// headers with rel=deprecation and rel=sunset.
	MigrationURL string

	// Successor is the version clients should pin instead.
	Successor Version
}

// LifecycleOption configures one deprecated range inside [WithDeprecation].
type LifecycleOption func(*LifecycleConfig)

// DeprecatedSince records when the deprecation was announced.
//
// Example:
//
//	microversion.WithDeprecation(microversion.Until(microversion.V(2, 3)),
//	    microversion.DeprecatedSince(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
//	)
func DeprecatedSince(date time.Time) LifecycleOption {
	return func(lc *LifecycleConfig) {
		lc.DeprecatedSince = date
	}
}

// Sunset sets when the deprecated range will be removed. After this date,
// requests receive 410 Gone if [WithSunsetEnforcement] is enabled.
func Sunset(date time.Time) LifecycleOption {
	return func(lc *LifecycleConfig) {
		lc.SunsetDate = date
	}
}

// MigrationDocs sets the URL for migration documentation, included in
// Link headers with rel=deprecation and rel=sunset.
func MigrationDocs(url string) LifecycleOption {
	return func(lc *LifecycleConfig) {
		lc.MigrationURL = url
	}
}

// SuccessorVersion names the version clients should migrate to. It is
// informational and appears in the Warning header text.
func SuccessorVersion(v Version) LifecycleOption {
	return func(lc *LifecycleConfig) {
		lc.Successor = v
	}
}

// sunsetError is what a request to a sunset-enforced version renders.
type sunsetError struct {
	version Version
}

func (e *sunsetError) Error() string {
	return fmt.Sprintf("version %s is past its sunset date and is no longer served", e.version)
}

func (e *sunsetError) HTTPStatus() int { return http.StatusGone }
func (e *sunsetError) Code() string    { return "version_sunset" }

// lifecycleFor returns the lifecycle covering v, if any.
func (e *Engine) lifecycleFor(v Version) *LifecycleConfig {
	for _, lc := range e.lifecycles {
		if lc.Range.Contains(v) {
			return lc
		}
	}
	return nil
}

// applyLifecycle sets deprecation headers for the negotiated version and
// reports whether the version is past an enforced sunset, in which case
// the caller answers 410 Gone instead of dispatching.
func (e *Engine) applyLifecycle(w http.ResponseWriter, r *http.Request, rv RequestVersion) bool {
	lc := e.lifecycleFor(rv.Version)
	if lc == nil {
		return false
	}

	now := e.now()

	if e.enforceSunset && !lc.SunsetDate.IsZero() && now.After(lc.SunsetDate) {
		w.Header().Set("Sunset", lc.SunsetDate.UTC().Format(http.TimeFormat))
		if lc.MigrationURL != "" {
			w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"sunset\"", lc.MigrationURL))
		}
		return true
	}

	w.Header().Set("Deprecation", "true")
	if !lc.SunsetDate.IsZero() {
		w.Header().Set("Sunset", lc.SunsetDate.UTC().Format(http.TimeFormat))
	}

	if lc.MigrationURL != "" {
		links := []string{
			fmt.Sprintf("<%s>; rel=\"deprecation\"", lc.MigrationURL),
		}
		if !lc.SunsetDate.IsZero() {
			links = append(links, fmt.Sprintf("<%s>; rel=\"sunset\"", lc.MigrationURL))
		}
		w.Header().Set("Link", strings.Join(links, ", "))
	}

	if e.sendWarning299 {
		msg := fmt.Sprintf("299 - \"Version %s is deprecated", rv.Version)
		if !lc.SunsetDate.IsZero() {
			msg += " and will be removed on " + lc.SunsetDate.Format(time.RFC3339)
		}
		if !lc.Successor.IsZero() {
			msg += ". Please migrate to version " + lc.Successor.String()
		}
		msg += ".\""
		w.Header().Set("Warning", msg)
	}

	e.notifyDeprecatedUse(rv.Version, r.URL.Path)
	if e.recorder != nil {
		e.recorder.recordDeprecatedUse(r.Context(), rv.Version)
	}

	return false
}
