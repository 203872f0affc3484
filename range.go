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
	"strings"
)

// Range is an inclusive window of versions. A null bound leaves that side
// open: a null Min accepts everything from the beginning of time, a null
// Max keeps accepting every future version.
//
// Construct ranges with [NewRange], [Exactly], [From], [Until] or [All]
// rather than struct literals; the constructors reject inverted bounds.
type Range struct {
	Min Version
	Max Version
}

// NewRange builds an inclusive range between min and max. Either bound
// may be the null version to leave that side open. It returns an error
// matching [ErrInvertedRange] when both bounds are set and max precedes min.
func NewRange(min, max Version) (Range, error) {
	r := Range{Min: min, Max: max}
	if err := r.validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Exactly returns the range containing only v.
func Exactly(v Version) Range {
	return Range{Min: v, Max: v}
}

// From returns the range starting at min with no upper bound.
// A handler registered with it keeps serving every future version.
func From(min Version) Range {
	return Range{Min: min}
}

// Until returns the range from the beginning of time through max.
func Until(max Version) Range {
	return Range{Max: max}
}

// All returns the range with both bounds open. It matches every version,
// including versions that enter the history later.
func All() Range {
	return Range{}
}

// validate rejects ranges whose bounds are both set and inverted.
func (r Range) validate() error {
	if !r.Min.IsZero() && !r.Max.IsZero() && r.Max.LessThan(r.Min) {
		return fmt.Errorf("%w: min %s exceeds max %s", ErrInvertedRange, r.Min, r.Max)
	}
	return nil
}

// Contains reports whether v falls inside the range. Null bounds match
// everything on their side.
func (r Range) Contains(v Version) bool {
	if !r.Min.IsZero() && v.LessThan(r.Min) {
		return false
	}
	if !r.Max.IsZero() && r.Max.LessThan(v) {
		return false
	}
	return true
}

// Intersects reports whether r and o share at least one version.
// Because bounds are inclusive, [2.1,2.3] and [2.3,2.5] intersect at 2.3.
func (r Range) Intersects(o Range) bool {
	if !r.Max.IsZero() && !o.Min.IsZero() && r.Max.LessThan(o.Min) {
		return false
	}
	if !o.Max.IsZero() && !r.Min.IsZero() && o.Max.LessThan(r.Min) {
		return false
	}
	return true
}

// intersect returns the overlap of r and o and whether one exists.
func (r Range) intersect(o Range) (Range, bool) {
	if !r.Intersects(o) {
		return Range{}, false
	}
	out := r
	if out.Min.IsZero() || (!o.Min.IsZero() && out.Min.LessThan(o.Min)) {
		out.Min = o.Min
	}
	if out.Max.IsZero() || (!o.Max.IsZero() && o.Max.LessThan(out.Max)) {
		out.Max = o.Max
	}
	return out, true
}

// String renders the range in interval notation. Open sides use a
// parenthesis with an empty bound: "[2.1,2.3]", "[2.4,)", "(,2.3]", "(,)".
func (r Range) String() string {
	var b strings.Builder
	if r.Min.IsZero() {
		b.WriteString("(,")
	} else {
		b.WriteString("[")
		b.WriteString(r.Min.String())
		b.WriteString(",")
	}
	if r.Max.IsZero() {
		b.WriteString(")")
	} else {
		b.WriteString(r.Max.String())
		b.WriteString("]")
	}
	return b.String()
}
