// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package testing

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/mem"
)

func TestFaultDriver_CountsHandles(t *testing.T) {
	d := NewFaultDriver(mem.New())
	require.Equal(t, "MEM", d.Name())

	ds, err := d.Create("/vsimem/a", driver.CreateOptions{Width: 2, Height: 2, Bands: 1, SampleType: driver.Byte})
	require.NoError(t, err)
	h, err := d.Open("/vsimem/a", driver.ReadOnly)
	require.NoError(t, err)
	require.Equal(t, 2, d.LiveHandles())

	require.NoError(t, ds.Close())
	require.ErrorIs(t, ds.Close(), driver.ErrNotOpen)
	require.Equal(t, 1, d.LiveHandles())

	require.NoError(t, h.Close())
	require.Equal(t, 0, d.LiveHandles())
	require.Equal(t, 2, d.OpenedHandles())
}

func TestFaultDriver_Injects(t *testing.T) {
	boom := errors.New("boom")
	d := NewFaultDriver(mem.New(),
		FailReads(func(w Window) error {
			if w.XOff == 1 {
				return boom
			}
			return nil
		}),
		FailWrites(func(w Window) error {
			if w.Band == 2 {
				return boom
			}
			return nil
		}),
	)

	ds, err := d.Create("/vsimem/b", driver.CreateOptions{Width: 2, Height: 2, Bands: 2, SampleType: driver.Byte})
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	require.NoError(t, ds.WriteBand(1, 0, 0, driver.Filled(2, 2, 1)))
	require.ErrorIs(t, ds.WriteBand(2, 0, 0, driver.Filled(2, 2, 1)), boom)

	_, err = ds.ReadBand(1, 0, 0, 1, 1)
	require.NoError(t, err)
	_, err = ds.ReadBand(1, 1, 0, 1, 1)
	require.ErrorIs(t, err, boom)
}

func TestFaultDriver_FailOpen(t *testing.T) {
	d := NewFaultDriver(mem.New(), FailOpen(driver.ErrOpen))
	_, err := d.Open("/vsimem/c", driver.ReadOnly)
	require.ErrorIs(t, err, driver.ErrOpen)
}

func TestMockReaderAt(t *testing.T) {
	r := NewMockReaderAt([]byte{1, 2, 3})

	buf := make([]byte, 2)
	n, err := r.ReadAt(buf, 1)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{2, 3}, buf)

	n, err = r.ReadAt(buf, 2)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, 1, n)
	_, err = r.ReadAt(buf, 5)
	require.ErrorIs(t, err, io.EOF)
	_, err = r.ReadAt(buf, -1)
	require.Error(t, err)
	require.Equal(t, 4, r.Reads())
}

func TestMockReaderAt_FailFrom(t *testing.T) {
	r := NewMockReaderAt(make([]byte, 16))
	r.FailFrom(8)

	buf := make([]byte, 4)
	_, err := r.ReadAt(buf, 0)
	require.NoError(t, err)
	_, err = r.ReadAt(buf, 6)
	require.ErrorIs(t, err, ErrInjected)

	r.FailFrom(-1)
	_, err = r.ReadAt(buf, 6)
	require.NoError(t, err)
}
