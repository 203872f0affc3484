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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// changelogDoc is the on-disk shape of a version changelog:
//
//	versions:
//	  - version: "2.1"
//	    description: "Initial version"
//	  - version: "2.2"
//	    description: "Adds (keypair) type parameter"
type changelogDoc struct {
	Versions []Milestone `json:"versions" yaml:"versions" toml:"versions"`
}

// changelogDecoders maps file extensions to decode functions for
// automatic format detection in [LoadChangelog].
var changelogDecoders = map[string]func([]byte, any) error{
	".yaml": yaml.Unmarshal,
	".yml":  yaml.Unmarshal,
	".json": json.Unmarshal,
	".toml": toml.Unmarshal,
}

// ParseChangelogYAML builds a [History] from a YAML changelog document.
// Milestones must appear in ascending version order, exactly as they
// shipped.
func ParseChangelogYAML(data []byte) (*History, error) {
	return parseChangelog(data, yaml.Unmarshal)
}

// ParseChangelogTOML builds a [History] from a TOML changelog document.
func ParseChangelogTOML(data []byte) (*History, error) {
	return parseChangelog(data, toml.Unmarshal)
}

// ParseChangelogJSON builds a [History] from a JSON changelog document.
func ParseChangelogJSON(data []byte) (*History, error) {
	return parseChangelog(data, json.Unmarshal)
}

// LoadChangelog reads a changelog file and builds a [History] from it,
// detecting the format from the file extension (.yaml, .yml, .json, .toml).
func LoadChangelog(path string) (*History, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := changelogDecoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: extension %q", ErrChangelogFormat, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading changelog: %w", err)
	}

	return parseChangelog(data, decode)
}

func parseChangelog(data []byte, decode func([]byte, any) error) (*History, error) {
	var doc changelogDoc
	if err := decode(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding changelog: %w", err)
	}

	h, err := NewHistory(doc.Versions...)
	if err != nil {
		return nil, fmt.Errorf("building history from changelog: %w", err)
	}
	return h, nil
}
