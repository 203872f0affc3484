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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("valid versions", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			in    string
			major int
			minor int
		}{
			{"2.1", 2, 1},
			{"2.0", 2, 0},
			{"1.0", 1, 0},
			{"2.10", 2, 10},
			{"10.37", 10, 37},
			{"999.999", 999, 999},
		}
		for _, tc := range tests {
			v, err := Parse(tc.in)
			require.NoError(t, err, "Parse(%q)", tc.in)
			assert.Equal(t, tc.major, v.Major, "Parse(%q) major", tc.in)
			assert.Equal(t, tc.minor, v.Minor, "Parse(%q) minor", tc.in)
		}
	})

	t.Run("malformed versions", func(t *testing.T) {
		t.Parallel()
		malformed := []string{
			"",
			"2",
			"2.",
			".1",
			"2.1.0",
			"v2.1",
			"02.1",
			"2.01",
			"0.1",
			"2.-1",
			"-2.1",
			"2 .1",
			"2. 1",
			" 2.1",
			"2.1 ",
			"latest",
			"two.one",
			"2,1",
		}
		for _, in := range malformed {
			_, err := Parse(in)
			require.Error(t, err, "Parse(%q)", in)
			assert.ErrorIs(t, err, ErrMalformedVersion, "Parse(%q)", in)

			var merr *MalformedVersionError
			require.ErrorAs(t, err, &merr, "Parse(%q)", in)
			assert.Equal(t, in, merr.Value)
		}
	})
}

func TestMustParse(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, V(2, 15), MustParse("2.15"))
	})

	t.Run("panics on malformed", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { MustParse("not-a-version") })
	})
}

func TestVersionCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"2.1", "2.1", 0},
		{"2.1", "2.2", -1},
		{"2.2", "2.1", 1},
		{"2.9", "2.10", -1}, // numeric, not lexicographic
		{"2.10", "2.9", 1},
		{"1.99", "2.0", -1},
		{"3.0", "2.99", 1},
	}
	for _, tc := range tests {
		a, b := MustParse(tc.a), MustParse(tc.b)
		assert.Equal(t, tc.want, a.Compare(b), "%s vs %s", tc.a, tc.b)
	}
}

func TestVersionOrderingHelpers(t *testing.T) {
	t.Parallel()

	t.Run("less than", func(t *testing.T) {
		t.Parallel()
		assert.True(t, V(2, 9).LessThan(V(2, 10)))
		assert.False(t, V(2, 10).LessThan(V(2, 9)))
		assert.False(t, V(2, 1).LessThan(V(2, 1)))
	})

	t.Run("at least", func(t *testing.T) {
		t.Parallel()
		assert.True(t, V(2, 3).AtLeast(V(2, 3)))
		assert.True(t, V(2, 4).AtLeast(V(2, 3)))
		assert.False(t, V(2, 2).AtLeast(V(2, 3)))
	})

	t.Run("null version sorts below everything", func(t *testing.T) {
		t.Parallel()
		assert.True(t, Version{}.LessThan(V(1, 0)))
	})
}

func TestVersionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2.15", V(2, 15).String())
	assert.Equal(t, "2.0", V(2, 0).String())
	assert.Equal(t, "", Version{}.String())
}

func TestVersionIsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, Version{}.IsZero())
	assert.False(t, V(2, 0).IsZero())
	assert.False(t, V(2, 1).IsZero())
}

func TestVersionNext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, V(2, 4), V(2, 3).next())
	assert.Equal(t, V(2, 1), V(2, 0).next())
}

func TestVersionTextMarshaling(t *testing.T) {
	t.Parallel()

	t.Run("marshal", func(t *testing.T) {
		t.Parallel()
		b, err := V(2, 15).MarshalText()
		require.NoError(t, err)
		assert.Equal(t, "2.15", string(b))
	})

	t.Run("unmarshal", func(t *testing.T) {
		t.Parallel()
		var v Version
		require.NoError(t, v.UnmarshalText([]byte("2.15")))
		assert.Equal(t, V(2, 15), v)
	})

	t.Run("unmarshal malformed", func(t *testing.T) {
		t.Parallel()
		var v Version
		err := v.UnmarshalText([]byte("nope"))
		assert.ErrorIs(t, err, ErrMalformedVersion)
	})

	t.Run("json round trip through struct", func(t *testing.T) {
		t.Parallel()
		type doc struct {
			V Version `json:"v"`
		}
		var d doc
		require.NoError(t, json.Unmarshal([]byte(`{"v":"2.53"}`), &d))
		assert.Equal(t, V(2, 53), d.V)

		out, err := json.Marshal(d)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":"2.53"}`, string(out))
	})
}
