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
	"cmp"
	"fmt"
	"regexp"
	"strconv"
)

// versionPattern matches the wire form of a version: "<major>.<minor>"
// where major is a positive integer and minor is a non-negative integer,
// neither with leading zeros. "2.1", "2.0" and "10.37" match; "v2.1",
// "2", "2.1.0", "02.1" and "2.01" do not.
var versionPattern = regexp.MustCompile(`^([1-9][0-9]*)\.(0|[1-9][0-9]*)$`)

// Version identifies a single API version as an ordered major.minor pair.
// Versions are compared numerically component-wise, so "2.10" is newer
// than "2.9".
//
// The zero value is the null version. It compares below every real
// version, renders as the empty string, and stands for an absent bound
// in a [Range].
type Version struct {
	Major int
	Minor int
}

// Parse converts wire text such as "2.15" into a [Version].
// It returns a [*MalformedVersionError] (matching [ErrMalformedVersion])
// when the text does not use the exact <major>.<minor> form.
func Parse(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, &MalformedVersionError{Value: s}
	}

	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, &MalformedVersionError{Value: s}
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, &MalformedVersionError{Value: s}
	}

	return Version{Major: major, Minor: minor}, nil
}

// MustParse is like [Parse] but panics on malformed input.
// Use it for version literals in configuration code:
//
//	base := microversion.MustParse("2.1")
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("microversion: MustParse(%q): %v", s, err))
	}
	return v
}

// V builds a Version from its components without going through the wire
// grammar. V(2, 15) is equivalent to MustParse("2.15").
func V(major, minor int) Version {
	return Version{Major: major, Minor: minor}
}

// IsZero reports whether v is the null version.
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

// String renders the wire form ("2.15"). The null version renders as "".
func (v Version) String() string {
	if v.IsZero() {
		return ""
	}
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// Compare orders two versions numerically by major, then minor.
// It returns -1 when v is older than o, 0 when equal, +1 when newer.
func (v Version) Compare(o Version) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}
	return cmp.Compare(v.Minor, o.Minor)
}

// LessThan reports whether v is strictly older than o.
func (v Version) LessThan(o Version) bool {
	return v.Compare(o) < 0
}

// AtLeast reports whether v is o or newer. Feature gates inside handlers
// read naturally with it:
//
//	if microversion.MustFromRequest(r).Version.AtLeast(microversion.V(2, 3)) { ... }
func (v Version) AtLeast(o Version) bool {
	return v.Compare(o) >= 0
}

// next returns the immediate successor of v in the version order.
// Versions are discrete within a major: nothing exists between 2.3 and 2.4.
func (v Version) next() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// MarshalText implements [encoding.TextMarshaler] using the wire form.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler], accepting the same
// grammar as [Parse]. It lets versions appear directly in YAML, TOML and
// JSON configuration documents.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
