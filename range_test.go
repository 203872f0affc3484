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

//go:build !integration

package microversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRange(t *testing.T) {
	t.Parallel()

	t.Run("closed range", func(t *testing.T) {
		t.Parallel()
		r, err := NewRange(V(2, 1), V(2, 3))
		require.NoError(t, err)
		assert.Equal(t, V(2, 1), r.Min)
		assert.Equal(t, V(2, 3), r.Max)
	})

	t.Run("single version range", func(t *testing.T) {
		t.Parallel()
		r, err := NewRange(V(2, 2), V(2, 2))
		require.NoError(t, err)
		assert.True(t, r.Contains(V(2, 2)))
	})

	t.Run("open bounds allowed", func(t *testing.T) {
		t.Parallel()
		_, err := NewRange(Version{}, V(2, 3))
		require.NoError(t, err)
		_, err = NewRange(V(2, 1), Version{})
		require.NoError(t, err)
		_, err = NewRange(Version{}, Version{})
		require.NoError(t, err)
	})

	t.Run("inverted bounds rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewRange(V(2, 3), V(2, 1))
		assert.ErrorIs(t, err, ErrInvertedRange)
	})
}

func TestRangeConstructors(t *testing.T) {
	t.Parallel()

	t.Run("exactly", func(t *testing.T) {
		t.Parallel()
		r := Exactly(V(2, 5))
		assert.True(t, r.Contains(V(2, 5)))
		assert.False(t, r.Contains(V(2, 4)))
		assert.False(t, r.Contains(V(2, 6)))
	})

	t.Run("from", func(t *testing.T) {
		t.Parallel()
		r := From(V(2, 4))
		assert.False(t, r.Contains(V(2, 3)))
		assert.True(t, r.Contains(V(2, 4)))
		assert.True(t, r.Contains(V(99, 0)))
	})

	t.Run("until", func(t *testing.T) {
		t.Parallel()
		r := Until(V(2, 3))
		assert.True(t, r.Contains(V(1, 0)))
		assert.True(t, r.Contains(V(2, 3)))
		assert.False(t, r.Contains(V(2, 4)))
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		r := All()
		assert.True(t, r.Contains(V(1, 0)))
		assert.True(t, r.Contains(V(999, 999)))
	})
}

func TestRangeContains(t *testing.T) {
	t.Parallel()

	r, err := NewRange(V(2, 1), V(2, 3))
	require.NoError(t, err)

	tests := []struct {
		v    Version
		want bool
	}{
		{V(2, 0), false},
		{V(2, 1), true}, // lower bound inclusive
		{V(2, 2), true},
		{V(2, 3), true}, // upper bound inclusive
		{V(2, 4), false},
		{V(1, 99), false},
		{V(3, 0), false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, r.Contains(tc.v), "contains %s", tc.v)
	}
}

func TestRangeIntersects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{
			name: "disjoint",
			a:    Range{Min: V(2, 1), Max: V(2, 3)},
			b:    Range{Min: V(2, 4), Max: V(2, 6)},
			want: false,
		},
		{
			name: "touching at inclusive bound",
			a:    Range{Min: V(2, 1), Max: V(2, 3)},
			b:    Range{Min: V(2, 3), Max: V(2, 5)},
			want: true,
		},
		{
			name: "nested",
			a:    Range{Min: V(2, 1), Max: V(2, 9)},
			b:    Range{Min: V(2, 3), Max: V(2, 5)},
			want: true,
		},
		{
			name: "open max reaches future range",
			a:    From(V(2, 4)),
			b:    Range{Min: V(3, 0), Max: V(3, 5)},
			want: true,
		},
		{
			name: "open min reaches past range",
			a:    Until(V(2, 3)),
			b:    Range{Min: V(1, 0), Max: V(1, 5)},
			want: true,
		},
		{
			name: "half-open ranges that miss",
			a:    From(V(2, 4)),
			b:    Until(V(2, 3)),
			want: false,
		},
		{
			name: "all intersects everything",
			a:    All(),
			b:    Range{Min: V(2, 1), Max: V(2, 1)},
			want: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.a.Intersects(tc.b))
			assert.Equal(t, tc.want, tc.b.Intersects(tc.a), "intersection must be symmetric")
		})
	}
}

func TestRangeIntersect(t *testing.T) {
	t.Parallel()

	t.Run("overlap is clipped to both bounds", func(t *testing.T) {
		t.Parallel()
		a := Range{Min: V(2, 1), Max: V(2, 5)}
		b := Range{Min: V(2, 3), Max: V(2, 9)}
		got, ok := a.intersect(b)
		require.True(t, ok)
		assert.Equal(t, Range{Min: V(2, 3), Max: V(2, 5)}, got)
	})

	t.Run("open bounds narrow to the concrete side", func(t *testing.T) {
		t.Parallel()
		got, ok := All().intersect(From(V(2, 4)))
		require.True(t, ok)
		assert.Equal(t, From(V(2, 4)), got)
	})

	t.Run("no overlap", func(t *testing.T) {
		t.Parallel()
		_, ok := Exactly(V(2, 1)).intersect(Exactly(V(2, 2)))
		assert.False(t, ok)
	})
}

func TestRangeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[2.1,2.3]", Range{Min: V(2, 1), Max: V(2, 3)}.String())
	assert.Equal(t, "[2.4,)", From(V(2, 4)).String())
	assert.Equal(t, "(,2.3]", Until(V(2, 3)).String())
	assert.Equal(t, "(,)", All().String())
}
