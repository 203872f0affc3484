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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProperty_CompareIsTotalOrder verifies the invariant that version
// comparison is a total order: antisymmetric, transitive, and consistent
// with the LessThan and AtLeast helpers. Negotiation leans on this order
// for every range check, so it is verified exhaustively over a grid.
func TestProperty_CompareIsTotalOrder(t *testing.T) {
	t.Parallel()

	var grid []Version
	for _, major := range []int{1, 2, 3} {
		for _, minor := range []int{0, 1, 2, 9, 10} {
			grid = append(grid, V(major, minor))
		}
	}

	for _, a := range grid {
		for _, b := range grid {
			// PROPERTY: antisymmetry.
			if a.Compare(b) != -b.Compare(a) {
				t.Errorf("Compare not antisymmetric for %s, %s", a, b)
			}

			// PROPERTY: equality agrees with component equality.
			if (a.Compare(b) == 0) != (a == b) {
				t.Errorf("Compare(%s, %s) == 0 disagrees with struct equality", a, b)
			}

			// PROPERTY: helpers agree with Compare.
			if a.LessThan(b) != (a.Compare(b) < 0) {
				t.Errorf("LessThan(%s, %s) disagrees with Compare", a, b)
			}
			if a.AtLeast(b) != (a.Compare(b) >= 0) {
				t.Errorf("AtLeast(%s, %s) disagrees with Compare", a, b)
			}

			// PROPERTY: transitivity.
			for _, c := range grid {
				if a.Compare(b) <= 0 && b.Compare(c) <= 0 && a.Compare(c) > 0 {
					t.Errorf("Compare not transitive for %s, %s, %s", a, b, c)
				}
			}
		}
	}
}

// TestProperty_IntersectsIsSymmetric verifies that range intersection is
// symmetric and agrees with an exhaustive witness search: two ranges
// intersect exactly when some version is contained in both.
func TestProperty_IntersectsIsSymmetric(t *testing.T) {
	t.Parallel()

	bounds := []Version{V(1, 0), V(2, 0), V(2, 1), V(2, 3), V(3, 0)}

	ranges := []Range{All()}
	for _, b := range bounds {
		ranges = append(ranges, From(b), Until(b))
	}
	for _, lo := range bounds {
		for _, hi := range bounds {
			if !hi.LessThan(lo) {
				ranges = append(ranges, Range{Min: lo, Max: hi})
			}
		}
	}

	// Every range above has its bounds on the grid, so any non-empty
	// intersection contains a grid version.
	containsWitness := func(a, b Range) bool {
		for _, v := range bounds {
			if a.Contains(v) && b.Contains(v) {
				return true
			}
		}
		return false
	}

	for _, a := range ranges {
		for _, b := range ranges {
			got := a.Intersects(b)

			// PROPERTY: symmetry.
			if got != b.Intersects(a) {
				t.Errorf("Intersects not symmetric for %s, %s", a, b)
			}

			// PROPERTY: agreement with the witness search.
			if want := containsWitness(a, b); got != want {
				t.Errorf("Intersects(%s, %s) = %v, witness search says %v", a, b, got, want)
			}
		}
	}
}

// TestProperty_UncoveredFindsFirstGap verifies the coverage sweep against
// every subset of a three-piece partition of the window: the sweep must
// report a gap exactly when some version is uncovered, the reported gap
// must start at the first uncovered version, and it must never overlap a
// covered range.
func TestProperty_UncoveredFindsFirstGap(t *testing.T) {
	t.Parallel()

	want := Range{Min: V(2, 1), Max: V(2, 5)}
	pieces := []Range{
		{Min: V(2, 1), Max: V(2, 1)},
		{Min: V(2, 2), Max: V(2, 3)},
		{Min: V(2, 4), Max: V(2, 5)},
	}
	grid := []Version{V(2, 1), V(2, 2), V(2, 3), V(2, 4), V(2, 5)}

	coveredBy := func(got []Range, v Version) bool {
		for _, g := range got {
			if g.Contains(v) {
				return true
			}
		}
		return false
	}

	for mask := range 1 << len(pieces) {
		var got []Range
		for i, p := range pieces {
			if mask&(1<<i) != 0 {
				got = append(got, p)
			}
		}

		var firstUncovered Version
		var expectGap bool
		for _, v := range grid {
			if !coveredBy(got, v) {
				firstUncovered = v
				expectGap = true
				break
			}
		}

		gap, found := uncovered(want, got)
		if found != expectGap {
			t.Errorf("mask %03b: uncovered reported %v, exhaustive scan says %v", mask, found, expectGap)
			continue
		}
		if !found {
			continue
		}

		// PROPERTY: the gap starts at the first uncovered version.
		if gap.Min != firstUncovered {
			t.Errorf("mask %03b: gap %s starts at %s, first uncovered version is %s",
				mask, gap, gap.Min, firstUncovered)
		}

		// PROPERTY: the gap never overlaps covered ground.
		for _, v := range grid {
			if gap.Contains(v) && coveredBy(got, v) {
				t.Errorf("mask %03b: gap %s contains covered version %s", mask, gap, v)
			}
		}
	}
}

// TestProperty_ResolveHonorsRegisteredRanges verifies that dispatch never
// crosses a variant boundary: for every version in the window, Resolve
// returns the handler whose range contains it, and fails exactly when no
// range does.
func TestProperty_ResolveHonorsRegisteredRanges(t *testing.T) {
	t.Parallel()

	h := MustNewHistory(
		Milestone{Version: V(2, 1), Description: "Initial version"},
		Milestone{Version: V(2, 2), Description: "Second"},
		Milestone{Version: V(2, 3), Description: "Third"},
		Milestone{Version: V(2, 4), Description: "Fourth"},
		Milestone{Version: V(2, 5), Description: "Fifth"},
	)
	e := MustNew(h)

	statusFor := map[string]int{"old": http.StatusOK, "new": http.StatusCreated}
	variants := map[string]Range{
		"old": {Min: V(2, 1), Max: V(2, 2)},
		"new": From(V(2, 4)),
	}
	for name, rng := range variants {
		status := statusFor[name]
		require.NoError(t, e.HandleFunc("servers.list", rng,
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) }))
	}

	for minor := 1; minor <= 5; minor++ {
		v := V(2, minor)

		var wantName string
		var wantServed bool
		for name, rng := range variants {
			if rng.Contains(v) {
				wantName, wantServed = name, true
			}
		}

		handler, err := e.Resolve("servers.list", v)
		if !wantServed {
			assert.Error(t, err, "version %s is outside every variant", v)
			continue
		}
		require.NoError(t, err, "version %s", v)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/servers", nil))
		assert.Equal(t, statusFor[wantName], rec.Code,
			"version %s must land on the %q variant", v, wantName)
	}
}
