// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package drivertest holds the behavioural checks every driver.Driver
// implementation must pass.
package drivertest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/raster/driver"
)

// Suite configures Run for one driver.
type Suite struct {
	Driver driver.Driver
	// Path returns a fresh dataset path for name.
	Path func(t *testing.T, name string) string
	// SampleTypes lists the types the driver can create.
	SampleTypes []driver.SampleType
	// SkipProjection disables the projection persistence check for formats
	// that cannot store arbitrary WKT.
	SkipProjection bool
}

const (
	width  = 64
	height = 64
)

// Run executes the conformance checks as subtests.
func Run(t *testing.T, s Suite) {
	t.Run("FilledRoundTrip", func(t *testing.T) { testFilledRoundTrip(t, s) })
	t.Run("RowMajorRoundTrip", func(t *testing.T) { testRowMajorRoundTrip(t, s) })
	t.Run("Multiband", func(t *testing.T) { testMultiband(t, s) })
	t.Run("BlockWindows", func(t *testing.T) { testBlockWindows(t, s) })
	t.Run("RangeErrors", func(t *testing.T) { testRangeErrors(t, s) })
	t.Run("ClosedHandle", func(t *testing.T) { testClosedHandle(t, s) })
	t.Run("ReadOnlyHandle", func(t *testing.T) { testReadOnlyHandle(t, s) })
	t.Run("GeoMetadata", func(t *testing.T) { testGeoMetadata(t, s) })
	t.Run("OpenMissing", func(t *testing.T) { testOpenMissing(t, s) })
	t.Run("SampleTypes", func(t *testing.T) { testSampleTypes(t, s) })
	t.Run("ParallelHandles", func(t *testing.T) { testParallelHandles(t, s) })
}

func create(t *testing.T, s Suite, name string, bands int, typ driver.SampleType) (string, driver.Dataset) {
	t.Helper()
	path := s.Path(t, name)
	ds, err := s.Driver.Create(path, driver.CreateOptions{
		Width: width, Height: height, Bands: bands, SampleType: typ,
	})
	require.NoError(t, err)
	return path, ds
}

func reopen(t *testing.T, s Suite, path string, access driver.Access) driver.Dataset {
	t.Helper()
	ds, err := s.Driver.Open(path, access)
	require.NoError(t, err)
	return ds
}

func testFilledRoundTrip(t *testing.T, s Suite) {
	path, ds := create(t, s, "filled", 1, driver.Float32)
	require.NoError(t, ds.WriteBand(1, 0, 0, driver.Filled(width, height, 42)))
	require.NoError(t, ds.Flush())
	require.NoError(t, ds.Close())

	r := reopen(t, s, path, driver.ReadOnly)
	defer func() { _ = r.Close() }()

	md, err := r.Metadata()
	require.NoError(t, err)
	require.Equal(t, width, md.Width)
	require.Equal(t, height, md.Height)
	require.Equal(t, 1, md.Bands)
	require.Equal(t, driver.Float32, md.SampleType)
	require.Equal(t, s.Driver.Name(), md.Driver)

	got, err := r.ReadBand(1, 0, 0, width, height)
	require.NoError(t, err)
	require.Equal(t, width, got.XSize)
	require.Equal(t, height, got.YSize)
	require.True(t, got.EqualWithin(driver.Filled(width, height, 42), 1e-5))
}

func rowMajor() *driver.Buffer {
	b := driver.NewBuffer(width, height)
	for i := range b.Data {
		b.Data[i] = float64(i)
	}
	return b
}

func testRowMajorRoundTrip(t *testing.T, s Suite) {
	path, ds := create(t, s, "rowmajor", 1, driver.Float32)
	require.NoError(t, ds.Close())

	w := reopen(t, s, path, driver.Update)
	want := rowMajor()
	require.NoError(t, w.WriteBand(1, 0, 0, want))
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	r := reopen(t, s, path, driver.ReadOnly)
	defer func() { _ = r.Close() }()

	got, err := r.ReadBand(1, 0, 0, width, height)
	require.NoError(t, err)
	require.Equal(t, want.Data, got.Data)
}

func testMultiband(t *testing.T, s Suite) {
	path, ds := create(t, s, "multi", 3, driver.Float32)
	for b := 1; b <= 3; b++ {
		require.NoError(t, ds.WriteBand(b, 0, 0, driver.Filled(width, height, float64(b))))
	}
	require.NoError(t, ds.Close())

	r := reopen(t, s, path, driver.ReadOnly)
	defer func() { _ = r.Close() }()

	for b := 1; b <= 3; b++ {
		got, err := r.ReadBand(b, 0, 0, width, height)
		require.NoError(t, err)
		require.True(t, got.EqualWithin(driver.Filled(width, height, float64(b)), 1e-5), "band %d", b)
	}
}

func testBlockWindows(t *testing.T, s Suite) {
	path, ds := create(t, s, "blocks", 2, driver.Float64)

	// Tile band 2 with 24x24 blocks, clipped at the right and bottom edges.
	for y := 0; y < height; y += 24 {
		for x := 0; x < width; x += 24 {
			xs, ys := min(24, width-x), min(24, height-y)
			blk := driver.NewBuffer(xs, ys)
			for j := 0; j < ys; j++ {
				for i := 0; i < xs; i++ {
					blk.Set(i, j, float64((y+j)*1000+(x+i)))
				}
			}
			require.NoError(t, ds.WriteBand(2, x, y, blk))
		}
	}
	require.NoError(t, ds.Close())

	r := reopen(t, s, path, driver.ReadOnly)
	defer func() { _ = r.Close() }()

	got, err := r.ReadBand(2, 50, 10, 14, 7)
	require.NoError(t, err)
	for j := 0; j < 7; j++ {
		for i := 0; i < 14; i++ {
			require.Equal(t, float64((10+j)*1000+(50+i)), got.At(i, j))
		}
	}

	band1, err := r.ReadBand(1, 0, 0, width, height)
	require.NoError(t, err)
	require.True(t, band1.EqualWithin(driver.NewBuffer(width, height), 0), "untouched band stays zero")
}

func testRangeErrors(t *testing.T, s Suite) {
	_, ds := create(t, s, "range", 1, driver.Float32)
	defer func() { _ = ds.Close() }()

	_, err := ds.ReadBand(0, 0, 0, 1, 1)
	require.ErrorIs(t, err, driver.ErrOutOfRange)
	_, err = ds.ReadBand(2, 0, 0, 1, 1)
	require.ErrorIs(t, err, driver.ErrOutOfRange)
	_, err = ds.ReadBand(1, 60, 0, 5, 1)
	require.ErrorIs(t, err, driver.ErrOutOfRange)
	_, err = ds.ReadBand(1, 0, 60, 1, 5)
	require.ErrorIs(t, err, driver.ErrOutOfRange)

	err = ds.WriteBand(1, 60, 0, driver.NewBuffer(5, 1))
	require.ErrorIs(t, err, driver.ErrOutOfRange)

	bad := &driver.Buffer{XSize: 4, YSize: 4, Data: make([]float64, 15)}
	require.ErrorIs(t, ds.WriteBand(1, 0, 0, bad), driver.ErrShapeMismatch)
}

func testClosedHandle(t *testing.T, s Suite) {
	_, ds := create(t, s, "closed", 1, driver.Float32)
	require.NoError(t, ds.Close())

	_, err := ds.Metadata()
	require.ErrorIs(t, err, driver.ErrNotOpen)
	_, err = ds.ReadBand(1, 0, 0, 1, 1)
	require.ErrorIs(t, err, driver.ErrNotOpen)
	require.ErrorIs(t, ds.WriteBand(1, 0, 0, driver.NewBuffer(1, 1)), driver.ErrNotOpen)
	require.ErrorIs(t, ds.SetProjection(""), driver.ErrNotOpen)
	require.ErrorIs(t, ds.SetGeoTransform(driver.DefaultGeoTransform), driver.ErrNotOpen)
	require.ErrorIs(t, ds.Flush(), driver.ErrNotOpen)
	require.ErrorIs(t, ds.Close(), driver.ErrNotOpen)
}

func testReadOnlyHandle(t *testing.T, s Suite) {
	path, ds := create(t, s, "readonly", 1, driver.Float32)
	require.NoError(t, ds.Close())

	r := reopen(t, s, path, driver.ReadOnly)
	defer func() { _ = r.Close() }()

	require.ErrorIs(t, r.WriteBand(1, 0, 0, driver.NewBuffer(1, 1)), driver.ErrReadOnly)
	require.ErrorIs(t, r.SetGeoTransform(driver.DefaultGeoTransform), driver.ErrReadOnly)
}

func testGeoMetadata(t *testing.T, s Suite) {
	const wkt = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`
	gt := driver.GeoTransform{440720, 60, 0, 3751320, 0, -60}

	path, ds := create(t, s, "geo", 1, driver.Float32)
	require.NoError(t, ds.SetGeoTransform(gt))
	if !s.SkipProjection {
		require.NoError(t, ds.SetProjection(wkt))
	}
	require.NoError(t, ds.Close())

	r := reopen(t, s, path, driver.ReadOnly)
	defer func() { _ = r.Close() }()

	md, err := r.Metadata()
	require.NoError(t, err)
	require.Equal(t, gt, md.GeoTransform)
	if !s.SkipProjection {
		require.Equal(t, wkt, md.Projection)
	}
}

func testOpenMissing(t *testing.T, s Suite) {
	_, err := s.Driver.Open(s.Path(t, "missing"), driver.ReadOnly)
	require.ErrorIs(t, err, driver.ErrOpen)
}

func testSampleTypes(t *testing.T, s Suite) {
	values := []float64{0, 1, 7, 100, 255}
	for _, typ := range s.SampleTypes {
		t.Run(typ.String(), func(t *testing.T) {
			path := s.Path(t, "type_"+typ.String())
			ds, err := s.Driver.Create(path, driver.CreateOptions{
				Width: len(values), Height: 2, Bands: 1, SampleType: typ,
			})
			require.NoError(t, err)

			buf := driver.NewBuffer(len(values), 2)
			copy(buf.Row(0), values)
			copy(buf.Row(1), values)
			require.NoError(t, ds.WriteBand(1, 0, 0, buf))
			require.NoError(t, ds.Close())

			r := reopen(t, s, path, driver.ReadOnly)
			defer func() { _ = r.Close() }()

			md, err := r.Metadata()
			require.NoError(t, err)
			require.Equal(t, typ, md.SampleType)

			got, err := r.ReadBand(1, 0, 0, len(values), 2)
			require.NoError(t, err)
			require.Equal(t, buf.Data, got.Data)
		})
	}
}

func testParallelHandles(t *testing.T, s Suite) {
	path, ds := create(t, s, "parallel", 1, driver.Float32)
	require.NoError(t, ds.WriteBand(1, 0, 0, driver.Filled(width, height, 7)))
	require.NoError(t, ds.Close())

	const readers = 8
	var wg sync.WaitGroup
	errs := make([]error, readers)
	means := make([]float64, readers)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.Driver.Open(path, driver.ReadOnly)
			if err != nil {
				errs[i] = err
				return
			}
			defer func() { _ = h.Close() }()
			buf, err := h.ReadBand(1, 0, 0, width, height)
			if err != nil {
				errs[i] = err
				return
			}
			means[i] = buf.Mean()
		}(i)
	}
	wg.Wait()

	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		require.InDelta(t, 7.0, means[i], 1e-5)
	}
}
