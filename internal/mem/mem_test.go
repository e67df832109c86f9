// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package mem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/drivertest"
)

func TestConformance(t *testing.T) {
	drv := New()
	drivertest.Run(t, drivertest.Suite{
		Driver: drv,
		Path: func(t *testing.T, name string) string {
			return "/vsimem/" + t.Name() + "/" + name
		},
		SampleTypes: []driver.SampleType{
			driver.Byte, driver.Int16, driver.UInt16, driver.Int32,
			driver.UInt32, driver.Float32, driver.Float64,
		},
	})
}

func TestIdentifyAndRemove(t *testing.T) {
	drv := New()
	require.False(t, drv.Identify("/vsimem/a"))

	ds, err := drv.Create("/vsimem/a", driver.CreateOptions{Width: 2, Height: 2, Bands: 1, SampleType: driver.Byte})
	require.NoError(t, err)
	require.True(t, drv.Identify("/vsimem/a"))

	drv.Remove("/vsimem/a")
	require.False(t, drv.Identify("/vsimem/a"))

	// The detached handle keeps working until closed.
	require.NoError(t, ds.WriteBand(1, 0, 0, driver.Filled(2, 2, 3)))
	require.NoError(t, ds.Close())

	_, err = drv.Open("/vsimem/a", driver.ReadOnly)
	require.ErrorIs(t, err, driver.ErrOpen)
}

func TestCreate_InvalidOptions(t *testing.T) {
	_, err := New().Create("/vsimem/bad", driver.CreateOptions{Width: 0, Height: 2, Bands: 1, SampleType: driver.Byte})
	require.ErrorIs(t, err, driver.ErrCreate)
	require.ErrorIs(t, err, driver.ErrOutOfRange)
}

func TestWrite_QuantizesToSampleType(t *testing.T) {
	drv := New()
	ds, err := drv.Create("/vsimem/q", driver.CreateOptions{Width: 3, Height: 1, Bands: 1, SampleType: driver.Byte})
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	buf, err := driver.NewBufferFrom(3, 1, []float64{-5, 41.7, 999})
	require.NoError(t, err)
	require.NoError(t, ds.WriteBand(1, 0, 0, buf))

	got, err := ds.ReadBand(1, 0, 0, 3, 1)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 42, 255}, got.Data)
}
