// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Manifest is the declarative capability scan of a program: the capabilities it declares, and the implications
// between capabilities (declaring a capability grants all the capabilities it implies).
type Manifest struct {
	// Declared lists the capabilities the program declares
	Declared []string `yaml:"declared"`

	// Implies maps a capability to the capabilities it grants, e.g. network.raw implies network.tcp
	Implies map[string][]string `yaml:"implies"`
}

// LoadManifest reads a manifest from a yaml file
func LoadManifest(filename string) (*Manifest, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read manifest file: %w", err)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("could not unmarshal manifest file: %w", err)
	}
	return m, nil
}

// Has returns true when the capability is declared, directly or through the implications of declared capabilities.
func (m *Manifest) Has(capability string) bool {
	if m == nil {
		return false
	}
	visited := map[string]bool{}
	queue := slices.Clone(m.Declared)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == capability {
			return true
		}
		if visited[c] {
			continue
		}
		visited[c] = true
		queue = append(queue, m.Implies[c]...)
	}
	return false
}

// Missing returns the capabilities in required that are not granted by the manifest, in order and without duplicates.
func (m *Manifest) Missing(required []string) []string {
	var missing []string
	for _, c := range required {
		if !m.Has(c) && !slices.Contains(missing, c) {
			missing = append(missing, c)
		}
	}
	return missing
}
