// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package ers

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/drivertest"
)

func TestConformance(t *testing.T) {
	drivertest.Run(t, drivertest.Suite{
		Driver: New(),
		Path: func(t *testing.T, name string) string {
			return filepath.Join(t.TempDir(), name+Extension)
		},
		SampleTypes: []driver.SampleType{
			driver.Byte, driver.Int16, driver.UInt16, driver.Int32,
			driver.UInt32, driver.Float32, driver.Float64,
		},
	})
}

const sampleHeader = `DatasetHeader Begin
	Version		= "6.0"
	DataSetType	= ERStorage
	DataType	= Raster
	ByteOrder	= MSBFirst
	RasterInfo Begin
		CellType	= Signed16BitInteger
		NrOfLines	= 2
		NrOfCellsPerLine	= 3
		CellInfo Begin
			Xdimension	= 30
			Ydimension	= 30
		CellInfo End
		RegistrationCoord Begin
			Eastings	= 500000
			Northings	= 4200000
		RegistrationCoord End
		NrOfBands	= 2
	RasterInfo End
DatasetHeader End
`

func TestParseHeader(t *testing.T) {
	h, err := parseHeader(strings.NewReader(sampleHeader))
	require.NoError(t, err)

	assert.Equal(t, 3, h.Width)
	assert.Equal(t, 2, h.Height)
	assert.Equal(t, 2, h.Bands)
	assert.Equal(t, driver.Int16, h.SampleType)
	assert.Equal(t, binary.BigEndian, h.Order)
	assert.Equal(t, driver.GeoTransform{500000, 30, 0, 4200000, 0, -30}, h.Geo)
}

func TestParseHeader_Errors(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no root", "RasterInfo Begin\nRasterInfo End\n"},
		{"unterminated", "DatasetHeader Begin\n"},
		{"mismatched end", "DatasetHeader Begin\nRasterInfo End\n"},
		{"bad line", "DatasetHeader Begin\nnonsense\nDatasetHeader End\n"},
		{"missing cell type", strings.Replace(sampleHeader, "CellType", "Other", 1)},
		{"bad cell type", strings.Replace(sampleHeader, "Signed16BitInteger", "Complex", 1)},
		{"zero bands", strings.Replace(sampleHeader, "NrOfBands\t= 2", "NrOfBands\t= 0", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseHeader(strings.NewReader(tt.header))
			require.Error(t, err)
		})
	}
}

func TestHeaderWriteParse(t *testing.T) {
	in := &header{
		Width: 10, Height: 20, Bands: 4,
		SampleType: driver.UInt32,
		Order:      binary.BigEndian,
		DataFile:   "pixels.raw",
		Geo:        driver.GeoTransform{1.5, 0.25, 0, -7, 0, -0.25},
	}

	var sb strings.Builder
	require.NoError(t, in.write(&sb))

	out, err := parseHeader(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

// A big-endian file with an explicit DataFile, written by hand, must decode
// in band-interleaved-by-line order.
func TestOpen_BigEndianBIL(t *testing.T) {
	dir := t.TempDir()
	hdr := strings.Replace(sampleHeader, "\tByteOrder", "\tDataFile\t= \"pixels.raw\"\n\tByteOrder", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "be.ers"), []byte(hdr), 0o600))

	// line 0: band1 {1,2,3} band2 {-1,-2,-3}; line 1: band1 {4,5,6} band2 {-4,-5,-6}
	values := []int16{1, 2, 3, -1, -2, -3, 4, 5, 6, -4, -5, -6}
	raw := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(raw[2*i:], uint16(v))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pixels.raw"), raw, 0o600))

	d := New()
	require.True(t, d.Identify(filepath.Join(dir, "be.ers")))

	ds, err := d.Open(filepath.Join(dir, "be.ers"), driver.ReadOnly)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	b2, err := ds.ReadBand(2, 0, 0, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2, -3, -4, -5, -6}, b2.Data)

	b1, err := ds.ReadBand(1, 1, 1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, b1.Data)
}

func TestOpen_RejectsEscapingDataFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "hdr")
	require.NoError(t, os.Mkdir(dir, 0o700))
	outside := filepath.Join(root, "outside.raw")
	require.NoError(t, os.WriteFile(outside, make([]byte, 64), 0o600))

	for _, name := range []string{"../outside.raw", "sub/../../outside.raw", outside, ".."} {
		hdr := strings.Replace(sampleHeader, "\tByteOrder", "\tDataFile\t= \""+name+"\"\n\tByteOrder", 1)
		path := filepath.Join(dir, "evil.ers")
		require.NoError(t, os.WriteFile(path, []byte(hdr), 0o600))

		_, err := New().Open(path, driver.Update)
		require.ErrorIs(t, err, driver.ErrOpen, "DataFile %q", name)
		assert.ErrorContains(t, err, "escapes the header directory")
	}
}

func TestDataFileIn(t *testing.T) {
	got, err := dataFileIn("/data", "sub/pixels.raw")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "sub", "pixels.raw"), got)

	got, err = dataFileIn("/data", "sub/../pixels.raw")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "pixels.raw"), got)

	for _, name := range []string{"../x", "/etc/passwd", ".", "a/../../x"} {
		_, err := dataFileIn("/data", name)
		assert.Error(t, err, name)
	}
}

func TestOpen_TruncatedData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.ers")
	require.NoError(t, os.WriteFile(path, []byte(sampleHeader), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "short"), make([]byte, 5), 0o600))

	_, err := New().Open(path, driver.ReadOnly)
	require.ErrorIs(t, err, driver.ErrOpen)
}

func TestCreate_RequiresExtension(t *testing.T) {
	_, err := New().Create(filepath.Join(t.TempDir(), "x.tif"), driver.CreateOptions{
		Width: 1, Height: 1, Bands: 1, SampleType: driver.Byte,
	})
	require.ErrorIs(t, err, driver.ErrCreate)
}

func TestIdentify(t *testing.T) {
	dir := t.TempDir()
	notERS := filepath.Join(dir, "plain.ers")
	require.NoError(t, os.WriteFile(notERS, []byte("hello"), 0o600))

	d := New()
	assert.False(t, d.Identify(notERS))
	assert.False(t, d.Identify(filepath.Join(dir, "missing.ers")))
	assert.False(t, d.Identify(filepath.Join(dir, "plain.tif")))
}

func TestSetGeoTransform_RejectsRotation(t *testing.T) {
	ds, err := New().Create(filepath.Join(t.TempDir(), "rot.ers"), driver.CreateOptions{
		Width: 2, Height: 2, Bands: 1, SampleType: driver.Float32,
	})
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	err = ds.SetGeoTransform(driver.GeoTransform{0, 1, 0.5, 0, 0.5, -1})
	require.ErrorIs(t, err, driver.ErrOutOfRange)
}

func TestProjectionSidecarCleared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prj.ers")
	d := New()

	ds, err := d.Create(path, driver.CreateOptions{Width: 1, Height: 1, Bands: 1, SampleType: driver.Float32})
	require.NoError(t, err)
	require.NoError(t, ds.SetProjection("LOCAL_CS[\"x\"]"))
	require.NoError(t, ds.Close())
	require.FileExists(t, prjPathFor(path))

	ds, err = d.Open(path, driver.Update)
	require.NoError(t, err)
	require.NoError(t, ds.SetProjection(""))
	require.NoError(t, ds.Close())
	require.NoFileExists(t, prjPathFor(path))
}

func TestFloat32NaNSurvives(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nan.ers")
	d := New()
	ds, err := d.Create(path, driver.CreateOptions{Width: 2, Height: 1, Bands: 1, SampleType: driver.Float32})
	require.NoError(t, err)

	buf, err := driver.NewBufferFrom(2, 1, []float64{math.NaN(), 1})
	require.NoError(t, err)
	require.NoError(t, ds.WriteBand(1, 0, 0, buf))
	require.NoError(t, ds.Close())

	ds, err = d.Open(path, driver.ReadOnly)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	got, err := ds.ReadBand(1, 0, 0, 2, 1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.At(0, 0)))
	assert.Equal(t, 1.0, got.At(1, 0))
}
