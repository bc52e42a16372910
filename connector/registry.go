// Copyright 2025 Poiesic Systems
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


package connector

import "fmt"

// Registry is a name-indexed directory of connector instances. It is
// assembled once at process start from static configuration and never
// mutated afterwards, so lookups need no locking.
type Registry struct {
	byName  map[string]Connector
	ordered []Connector
}

// NewRegistry builds a registry from the given connectors, preserving
// registration order. Duplicate or empty names are a configuration
// failure and are reported immediately.
func NewRegistry(connectors ...Connector) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]Connector, len(connectors)),
		ordered: make([]Connector, 0, len(connectors)),
	}

	for _, c := range connectors {
		name := c.Descriptor().Name
		if name == "" {
			return nil, fmt.Errorf("%w: connector with empty name", ErrInvalidConnector)
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		r.byName[name] = c
		r.ordered = append(r.ordered, c)
	}

	return r, nil
}

// Get resolves a connector by name. Unknown names return ErrNotFound,
// which callers report without aborting the process.
func (r *Registry) Get(name string) (Connector, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c, nil
}

// All returns every registered connector in registration order.
func (r *Registry) All() []Connector {
	out := make([]Connector, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the registered connector names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, c := range r.ordered {
		names[i] = c.Descriptor().Name
	}
	return names
}
