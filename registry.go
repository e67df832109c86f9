// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"sync"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/ers"
	"github.com/scigolib/raster/internal/gtiff"
	"github.com/scigolib/raster/internal/h5"
	"github.com/scigolib/raster/internal/mem"
)

// Format names of the built-in drivers.
const (
	FormatGTiff = gtiff.Name
	FormatERS   = ers.Name
	FormatHDF5  = h5.Name
	FormatMEM   = mem.Name
)

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *driver.Registry

	// extraDrivers are appended to the default registry by build-tagged files.
	extraDrivers []func() driver.Driver
)

// DefaultRegistry returns the process-wide registry of built-in drivers.
// It is built once, on first use.
func DefaultRegistry() *driver.Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry returns a fresh registry with the built-in drivers, in probe
// order GTiff, ERS, HDF5, MEM. Each call gets its own in-memory store.
func NewRegistry() *driver.Registry {
	drivers := []driver.Driver{gtiff.New(), ers.New(), h5.New(), mem.New()}
	for _, extra := range extraDrivers {
		drivers = append(drivers, extra())
	}
	return driver.NewRegistry(drivers...)
}
