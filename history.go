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
	"slices"
)

// Milestone records one entry in the version history: the version that
// introduced a change and a human-readable description of it.
type Milestone struct {
	Version     Version `json:"version" yaml:"version" toml:"version"`
	Description string  `json:"description" yaml:"description" toml:"description"`
}

// History is the ordered record of every version an API has ever shipped.
// It is append-only: versions are added in strictly increasing order and
// never removed, so the supported window only ever widens at the top.
//
// The first milestone fixes the minimum supported version, the last one
// the current maximum. Every version between the two bounds is supported,
// whether or not a milestone documents it: milestones record change
// points, not an allowlist.
//
// Append milestones during startup only. Concurrent use is safe once the
// history stops changing.
type History struct {
	milestones []Milestone
}

// NewHistory builds a history from milestones in ascending version order.
// At least one milestone is required.
func NewHistory(milestones ...Milestone) (*History, error) {
	if len(milestones) == 0 {
		return nil, ErrEmptyHistory
	}

	h := &History{milestones: make([]Milestone, 0, len(milestones))}
	for _, m := range milestones {
		if err := h.Add(m.Version, m.Description); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// MustNewHistory is like [NewHistory] but panics on error.
// Use it for histories declared as package variables:
//
//	var history = microversion.MustNewHistory(
//	    microversion.Milestone{Version: microversion.V(2, 1), Description: "Initial version"},
//	    microversion.Milestone{Version: microversion.V(2, 2), Description: "Adds (keypair) type parameter"},
//	)
func MustNewHistory(milestones ...Milestone) *History {
	h, err := NewHistory(milestones...)
	if err != nil {
		panic(fmt.Sprintf("microversion: MustNewHistory: %v", err))
	}
	return h
}

// Add appends a milestone. The version must be newer than the current
// maximum and the description must not be empty.
func (h *History) Add(v Version, description string) error {
	if v.IsZero() {
		return fmt.Errorf("%w: null version", ErrMilestoneOrder)
	}
	if len(h.milestones) > 0 && !h.Max().LessThan(v) {
		return fmt.Errorf("%w: %s does not exceed current maximum %s", ErrMilestoneOrder, v, h.Max())
	}
	if description == "" {
		return fmt.Errorf("%w: milestone %s", ErrMilestoneDescription, v)
	}

	h.milestones = append(h.milestones, Milestone{Version: v, Description: description})
	return nil
}

// Min returns the oldest supported version.
func (h *History) Min() Version {
	if len(h.milestones) == 0 {
		return Version{}
	}
	return h.milestones[0].Version
}

// Max returns the newest supported version.
func (h *History) Max() Version {
	if len(h.milestones) == 0 {
		return Version{}
	}
	return h.milestones[len(h.milestones)-1].Version
}

// Latest is an alias for [History.Max]; it is the version a client asking
// for "latest" resolves to.
func (h *History) Latest() Version {
	return h.Max()
}

// Window returns the full supported range, [Min, Max].
func (h *History) Window() Range {
	return Range{Min: h.Min(), Max: h.Max()}
}

// Validate checks that v falls inside the supported window. It returns a
// [*UnsupportedVersionError] (matching [ErrVersionNotSupported]) when it
// does not. Versions between milestones pass: support is a window, not a
// list.
func (h *History) Validate(v Version) error {
	if v.LessThan(h.Min()) || h.Max().LessThan(v) {
		return &UnsupportedVersionError{Requested: v, Min: h.Min(), Max: h.Max()}
	}
	return nil
}

// Describe returns the description recorded for v, if a milestone
// documents that exact version.
func (h *History) Describe(v Version) (string, bool) {
	for _, m := range h.milestones {
		if m.Version == v {
			return m.Description, true
		}
	}
	return "", false
}

// Milestones returns a copy of the recorded milestones in ascending order.
func (h *History) Milestones() []Milestone {
	return slices.Clone(h.milestones)
}

// Len returns the number of recorded milestones.
func (h *History) Len() int {
	return len(h.milestones)
}
