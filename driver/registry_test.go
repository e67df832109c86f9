// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package driver

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubDriver recognizes paths carrying its prefix.
type stubDriver struct {
	name   string
	ext    string
	prefix string
}

func (s stubDriver) Name() string         { return s.name }
func (s stubDriver) Extensions() []string { return []string{s.ext} }
func (s stubDriver) Identify(path string) bool {
	return s.prefix != "" && strings.HasPrefix(path, s.prefix)
}
func (s stubDriver) Open(string, Access) (Dataset, error) {
	return nil, errors.New("stub")
}
func (s stubDriver) Create(string, CreateOptions) (Dataset, error) {
	return nil, errors.New("stub")
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry(stubDriver{name: "GTiff", ext: ".tif"}, stubDriver{name: "ERS", ext: ".ers"})

	d, err := reg.Lookup("gtiff")
	require.NoError(t, err)
	require.Equal(t, "GTiff", d.Name())

	_, err = reg.Lookup("NetCDF")
	require.ErrorIs(t, err, ErrDriverUnavailable)

	require.Equal(t, []string{"GTiff", "ERS"}, reg.Names())
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry(stubDriver{name: "MEM"})
	require.Error(t, reg.Register(stubDriver{name: "mem"}))
	require.Panics(t, func() { NewRegistry(stubDriver{name: "A"}, stubDriver{name: "a"}) })
}

func TestRegistry_ForPath(t *testing.T) {
	reg := NewRegistry(
		stubDriver{name: "MEM", prefix: "/vsimem/"},
		stubDriver{name: "GTiff", ext: ".tif"},
		stubDriver{name: "ERS", ext: ".ers"},
	)

	d, err := reg.ForPath("/vsimem/a.tif")
	require.NoError(t, err)
	require.Equal(t, "MEM", d.Name(), "Identify wins over extension")

	d, err = reg.ForPath("/data/grid.ERS")
	require.NoError(t, err)
	require.Equal(t, "ERS", d.Name())

	_, err = reg.ForPath("/data/grid.nc")
	require.ErrorIs(t, err, ErrDriverUnavailable)

	_, err = reg.Open("/data/grid.nc", ReadOnly)
	require.ErrorIs(t, err, ErrDriverUnavailable)
}
