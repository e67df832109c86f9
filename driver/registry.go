// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package driver

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Registry maps format names to drivers.
//
// It is meant to be populated once at startup and then only read, but all
// methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
	order   []string
}

// NewRegistry returns a registry holding drivers in probe order.
// Duplicate names panic, as they indicate a wiring bug.
func NewRegistry(drivers ...Driver) *Registry {
	r := &Registry{drivers: make(map[string]Driver)}
	for _, d := range drivers {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds d. Names are case-insensitive.
func (r *Registry) Register(d Driver) error {
	key := strings.ToLower(d.Name())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.drivers[key]; exists {
		return fmt.Errorf("driver %q already registered", d.Name())
	}
	r.drivers[key] = d
	r.order = append(r.order, key)
	return nil
}

// Lookup returns the driver registered under name.
func (r *Registry) Lookup(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drivers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverUnavailable, name)
	}
	return d, nil
}

// Names returns registered driver names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, key := range r.order {
		names = append(names, r.drivers[key].Name())
	}
	return names
}

// ForPath picks the driver for an existing path: the first driver whose
// Identify accepts it, else the first driver claiming the file extension.
func (r *Registry) ForPath(path string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range r.order {
		if d := r.drivers[key]; d.Identify(path) {
			return d, nil
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		for _, key := range r.order {
			d := r.drivers[key]
			for _, e := range d.Extensions() {
				if strings.EqualFold(e, ext) {
					return d, nil
				}
			}
		}
	}

	return nil, fmt.Errorf("%w: no driver recognizes %q", ErrDriverUnavailable, path)
}

// Open opens path with whichever driver recognizes it.
func (r *Registry) Open(path string, access Access) (Dataset, error) {
	d, err := r.ForPath(path)
	if err != nil {
		return nil, err
	}
	return d.Open(path, access)
}
