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
	"maps"
	"slices"
)

// entry pairs a version range with the value registered for it.
type entry[T any] struct {
	rng   Range
	value T
}

// rangeTable maps endpoint names to range-keyed entries. Ranges for the
// same endpoint must never intersect, so a lookup matches at most one
// entry and dispatch is unambiguous by construction rather than by
// registration order.
//
// Handler variants and schema bindings are two instances of the same
// structure. Inserts happen during startup; lookups are read-only and
// safe for concurrent use once the engine is frozen.
type rangeTable[T any] struct {
	entries map[string][]entry[T]
}

func newRangeTable[T any]() *rangeTable[T] {
	return &rangeTable[T]{entries: make(map[string][]entry[T])}
}

// insert adds an entry for the endpoint, rejecting any range that
// intersects an existing one. Entries stay sorted by range start; an open
// lower bound sorts first.
func (t *rangeTable[T]) insert(endpoint string, r Range, v T) error {
	for _, e := range t.entries[endpoint] {
		if e.rng.Intersects(r) {
			return fmt.Errorf("%w: endpoint %q: %s intersects existing %s",
				ErrOverlappingRange, endpoint, r, e.rng)
		}
	}

	es := append(t.entries[endpoint], entry[T]{rng: r, value: v})
	slices.SortFunc(es, func(a, b entry[T]) int { return a.rng.Min.Compare(b.rng.Min) })
	t.entries[endpoint] = es
	return nil
}

// has reports whether the endpoint has any entries.
func (t *rangeTable[T]) has(endpoint string) bool {
	return len(t.entries[endpoint]) > 0
}

// lookup returns the value whose range contains v, if any.
func (t *rangeTable[T]) lookup(endpoint string, v Version) (T, bool) {
	for _, e := range t.entries[endpoint] {
		if e.rng.Contains(v) {
			return e.value, true
		}
	}
	var zero T
	return zero, false
}

// ranges returns the registered ranges for an endpoint in ascending order.
func (t *rangeTable[T]) ranges(endpoint string) []Range {
	es := t.entries[endpoint]
	if len(es) == 0 {
		return nil
	}
	rs := make([]Range, len(es))
	for i, e := range es {
		rs[i] = e.rng
	}
	return rs
}

// endpoints returns every endpoint name in the table, sorted.
func (t *rangeTable[T]) endpoints() []string {
	return slices.Sorted(maps.Keys(t.entries))
}

// uncovered sweeps the union of got across want and returns the first
// uncovered sub-range, if any. want must have a concrete lower bound; got
// must be sorted by range start and mutually non-intersecting, which
// [rangeTable.insert] guarantees.
//
// A returned range with a null Max means the gap is open-ended (or spans
// past the next major version, which single ranges cannot express); its
// Min is always the first uncovered version.
func uncovered(want Range, got []Range) (Range, bool) {
	cursor := want.Min

	for _, g := range got {
		clip, ok := g.intersect(want)
		if !ok {
			continue
		}
		if cursor.LessThan(clip.Min) {
			return gapBetween(cursor, clip.Min), true
		}
		if clip.Max.IsZero() {
			return Range{}, false
		}
		cursor = clip.Max.next()
	}

	if want.Max.IsZero() {
		return From(cursor), true
	}
	if !want.Max.LessThan(cursor) {
		return Range{Min: cursor, Max: want.Max}, true
	}
	return Range{}, false
}

// gapBetween renders the hole from cursor up to (not including) nextMin.
// When the hole runs into the next major version its end has no single
// predecessor, so the range is left open-ended.
func gapBetween(cursor, nextMin Version) Range {
	if nextMin.Minor > 0 && nextMin.Major == cursor.Major {
		return Range{Min: cursor, Max: Version{Major: nextMin.Major, Minor: nextMin.Minor - 1}}
	}
	return From(cursor)
}
