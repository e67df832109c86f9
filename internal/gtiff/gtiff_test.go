// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package gtiff

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/drivertest"
	mocktesting "github.com/scigolib/raster/internal/testing"
)

func TestConformance(t *testing.T) {
	drivertest.Run(t, drivertest.Suite{
		Driver: New(),
		Path: func(t *testing.T, name string) string {
			return filepath.Join(t.TempDir(), name+".tif")
		},
		SampleTypes: []driver.SampleType{
			driver.Byte, driver.Int16, driver.UInt16, driver.Int32,
			driver.UInt32, driver.Float32, driver.Float64,
		},
	})
}

// tiffFile describes a hand-built test file.
type tiffFile struct {
	order    binary.ByteOrder
	planar   uint16
	width    uint32
	height   uint32
	bands    uint16
	bits     uint16
	format   uint16
	pixels   []byte
	ifdFirst bool
	extra    func(b *builder)
}

// writeTIFF lays out a single-strip (per plane) TIFF described by s.
func writeTIFF(t *testing.T, path string, s tiffFile) {
	t.Helper()

	var magic []byte
	if s.order == binary.BigEndian {
		magic = []byte("MM\x00*")
	} else {
		magic = []byte("II*\x00")
	}

	strips := 1
	if s.planar == planarSeparate {
		strips = int(s.bands)
	}
	stripLen := len(s.pixels) / strips

	build := func(dataStart uint32) *builder {
		b := &builder{order: s.order}
		b.longs(tagImageWidth, s.width)
		b.longs(tagImageLength, s.height)
		bits := make([]uint16, s.bands)
		formats := make([]uint16, s.bands)
		for i := range bits {
			bits[i], formats[i] = s.bits, s.format
		}
		b.shorts(tagBitsPerSample, bits...)
		b.shorts(tagSamplesPerPixel, s.bands)
		b.shorts(tagPlanarConfig, s.planar)
		b.shorts(tagSampleFormat, formats...)
		offsets := make([]uint32, strips)
		counts := make([]uint32, strips)
		for i := range offsets {
			offsets[i] = dataStart + uint32(i*stripLen)
			counts[i] = uint32(stripLen)
		}
		b.longs(tagStripOffsets, offsets...)
		b.longs(tagStripByteCounts, counts...)
		if s.extra != nil {
			s.extra(b)
		}
		return b
	}

	var file bytes.Buffer
	file.Write(magic)
	ptr := make([]byte, 4)

	if s.ifdFirst {
		// Encode once to learn the IFD size, then again at the final position.
		size := len(build(0).encode(headerSize))
		dataStart := uint32(headerSize + size + size%2)
		enc := build(dataStart).encode(headerSize)
		s.order.PutUint32(ptr, headerSize)
		file.Write(ptr)
		file.Write(enc)
		for file.Len() < int(dataStart) {
			file.WriteByte(0)
		}
		file.Write(s.pixels)
	} else {
		ifdAt := uint32(headerSize + len(s.pixels))
		ifdAt += ifdAt % 2
		s.order.PutUint32(ptr, ifdAt)
		file.Write(ptr)
		file.Write(s.pixels)
		for file.Len() < int(ifdAt) {
			file.WriteByte(0)
		}
		file.Write(build(headerSize).encode(ifdAt))
	}

	require.NoError(t, os.WriteFile(path, file.Bytes(), 0o600))
}

// chunkyInt16 returns a 3x2 two-band pixel-interleaved image where band 1
// holds i and band 2 holds -i for pixel index i.
func chunkyInt16(order binary.ByteOrder) []byte {
	out := make([]byte, 24)
	for i := 0; i < 6; i++ {
		order.PutUint16(out[4*i:], uint16(int16(i)))
		order.PutUint16(out[4*i+2:], uint16(int16(-i)))
	}
	return out
}

func TestOpen_BigEndianChunky(t *testing.T) {
	path := filepath.Join(t.TempDir(), "be.tif")
	writeTIFF(t, path, tiffFile{
		order: binary.BigEndian, planar: planarChunky,
		width: 3, height: 2, bands: 2, bits: 16, format: sampleFormatInt,
		pixels: chunkyInt16(binary.BigEndian),
	})

	d := New()
	require.True(t, d.Identify(path))

	ds, err := d.Open(path, driver.ReadOnly)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	md, err := ds.Metadata()
	require.NoError(t, err)
	assert.Equal(t, driver.Int16, md.SampleType)
	assert.Equal(t, 2, md.Bands)
	assert.Equal(t, driver.DefaultGeoTransform, md.GeoTransform)

	b2, err := ds.ReadBand(2, 0, 0, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1, -2, -3, -4, -5}, b2.Data)

	b1, err := ds.ReadBand(1, 1, 1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5}, b1.Data)
}

func TestWrite_ChunkyKeepsOtherBands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunky.tif")
	writeTIFF(t, path, tiffFile{
		order: binary.LittleEndian, planar: planarChunky,
		width: 3, height: 2, bands: 2, bits: 16, format: sampleFormatInt,
		pixels: chunkyInt16(binary.LittleEndian),
	})

	d := New()
	ds, err := d.Open(path, driver.Update)
	require.NoError(t, err)
	require.NoError(t, ds.WriteBand(1, 0, 1, driver.Filled(3, 1, 100)))
	require.NoError(t, ds.Close())

	ds, err = d.Open(path, driver.ReadOnly)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	b1, err := ds.ReadBand(1, 0, 0, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 100, 100, 100}, b1.Data)

	b2, err := ds.ReadBand(2, 0, 0, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1, -2, -3, -4, -5}, b2.Data)
}

// An IFD that precedes the pixel data cannot be rewritten in place; the
// new one is appended and the header repointed.
func TestFlush_AppendsIFDBeforeData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "front.tif")
	pixels := []byte{1, 2, 3, 4}
	writeTIFF(t, path, tiffFile{
		order: binary.LittleEndian, planar: planarChunky,
		width: 2, height: 2, bands: 1, bits: 8, format: sampleFormatUint,
		pixels: pixels, ifdFirst: true,
	})

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, uint32(headerSize), binary.LittleEndian.Uint32(before[4:]))

	d := New()
	ds, err := d.Open(path, driver.Update)
	require.NoError(t, err)
	gt := driver.GeoTransform{10, 2, 0, 20, 0, -2}
	require.NoError(t, ds.SetGeoTransform(gt))
	require.NoError(t, ds.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Greater(t, binary.LittleEndian.Uint32(after[4:]), uint32(len(before)-1))

	ds, err = d.Open(path, driver.ReadOnly)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	md, err := ds.Metadata()
	require.NoError(t, err)
	assert.Equal(t, gt, md.GeoTransform)

	got, err := ds.ReadBand(1, 0, 0, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, got.Data)
}

func TestGeoTransform_Rotated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rot.tif")
	d := New()
	ds, err := d.Create(path, driver.CreateOptions{Width: 4, Height: 4, Bands: 1, SampleType: driver.Byte})
	require.NoError(t, err)

	gt := driver.GeoTransform{100, 0.5, 0.25, 200, 0.125, -0.5}
	require.NoError(t, ds.SetGeoTransform(gt))
	require.NoError(t, ds.Close())

	ds, err = d.Open(path, driver.ReadOnly)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	md, err := ds.Metadata()
	require.NoError(t, err)
	assert.Equal(t, gt, md.GeoTransform)
}

// Rewriting georeferencing on a created file must not grow it.
func TestFlush_RewritesTailInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tail.tif")
	d := New()
	ds, err := d.Create(path, driver.CreateOptions{Width: 8, Height: 8, Bands: 1, SampleType: driver.Float32})
	require.NoError(t, err)
	require.NoError(t, ds.SetProjection(`LOCAL_CS["a very long name that makes the IFD larger"]`))
	require.NoError(t, ds.Flush())
	require.NoError(t, ds.SetProjection(`LOCAL_CS["b"]`))
	require.NoError(t, ds.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	ifdAt := binary.LittleEndian.Uint32(raw[4:])
	assert.Equal(t, uint32(headerSize+8*8*4), ifdAt)

	ds, err = d.Open(path, driver.ReadOnly)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()
	md, err := ds.Metadata()
	require.NoError(t, err)
	assert.Equal(t, `LOCAL_CS["b"]`, md.Projection)
}

func TestOpen_Rejects(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		file tiffFile
	}{
		{
			name: "compressed",
			file: tiffFile{
				order: binary.LittleEndian, planar: planarChunky,
				width: 2, height: 1, bands: 1, bits: 8, format: sampleFormatUint,
				pixels: []byte{1, 2},
				extra:  func(b *builder) { b.shorts(tagCompression, 5) },
			},
		},
		{
			name: "tiled",
			file: tiffFile{
				order: binary.LittleEndian, planar: planarChunky,
				width: 2, height: 1, bands: 1, bits: 8, format: sampleFormatUint,
				pixels: []byte{1, 2},
				extra:  func(b *builder) { b.longs(tagTileWidth, 16) },
			},
		},
		{
			name: "int8",
			file: tiffFile{
				order: binary.LittleEndian, planar: planarChunky,
				width: 2, height: 1, bands: 1, bits: 8, format: sampleFormatInt,
				pixels: []byte{1, 2},
			},
		},
		{
			name: "truncated strip",
			file: tiffFile{
				order: binary.LittleEndian, planar: planarChunky,
				width: 4, height: 4, bands: 1, bits: 32, format: sampleFormatFloat,
				pixels: []byte{1, 2}, ifdFirst: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".tif")
			writeTIFF(t, path, tt.file)
			_, err := New().Open(path, driver.ReadOnly)
			require.ErrorIs(t, err, driver.ErrOpen)
		})
	}
}

func TestOpen_BigTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.tif")
	require.NoError(t, os.WriteFile(path, []byte("II+\x00\x08\x00\x00\x00\x10\x00\x00\x00\x00\x00\x00\x00"), 0o600))

	_, err := New().Open(path, driver.ReadOnly)
	require.ErrorIs(t, err, driver.ErrOpen)
	require.ErrorIs(t, err, errBigTIFF)
}

func TestIdentify(t *testing.T) {
	dir := t.TempDir()
	notTIFF := filepath.Join(dir, "x.tif")
	require.NoError(t, os.WriteFile(notTIFF, []byte("GIF89a"), 0o600))

	d := New()
	assert.False(t, d.Identify(notTIFF))
	assert.False(t, d.Identify(filepath.Join(dir, "missing.tif")))
}

func TestCitation_Parse(t *testing.T) {
	b := &builder{order: binary.LittleEndian}
	putGeo(b, driver.DefaultGeoTransform, "PROJCS[x]")

	dir := &ifd{order: binary.LittleEndian, entries: make(map[uint16]*entry)}
	for i := range b.entries {
		e := b.entries[i]
		dir.entries[e.tag] = &e
	}
	assert.Equal(t, "PROJCS[x]", citation(dir))

	gt, wkt, err := readGeo(dir)
	require.NoError(t, err)
	assert.Equal(t, driver.DefaultGeoTransform, gt)
	assert.Equal(t, "PROJCS[x]", wkt)
}

func TestReadHeader(t *testing.T) {
	order, off, err := readHeader(mocktesting.NewMockReaderAt([]byte("MM\x00*\x00\x00\x00\x10")))
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, order)
	assert.Equal(t, uint32(16), off)

	_, _, err = readHeader(mocktesting.NewMockReaderAt([]byte("II*")))
	require.Error(t, err)

	_, _, err = readHeader(mocktesting.NewMockReaderAt([]byte("XX*\x00\x08\x00\x00\x00")))
	require.Error(t, err)

	_, _, err = readHeader(mocktesting.NewMockReaderAt([]byte("II\x2b\x00\x08\x00\x00\x00")))
	require.ErrorIs(t, err, errBigTIFF)
}

func TestReadIFD_BadOffsets(t *testing.T) {
	data := []byte("II*\x00\x08\x00\x00\x00\x00\x00")
	r := mocktesting.NewMockReaderAt(data)

	_, err := readIFD(r, binary.LittleEndian, 4, int64(len(data)))
	require.Error(t, err, "offset inside header")
	_, err = readIFD(r, binary.LittleEndian, 100, int64(len(data)))
	require.Error(t, err, "offset past EOF")
	_, err = readIFD(r, binary.LittleEndian, 8, int64(len(data)))
	require.Error(t, err, "zero entries")
}

func TestReadIFD_IOFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "io.tif")
	ds, err := New().Create(path, driver.CreateOptions{Width: 5, Height: 3, Bands: 1, SampleType: driver.UInt16})
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	r := mocktesting.NewMockReaderAt(data)

	order, off, err := readHeader(r)
	require.NoError(t, err)

	r.FailFrom(int64(off) + 4)
	_, err = readIFD(r, order, off, int64(len(data)))
	require.ErrorIs(t, err, mocktesting.ErrInjected)

	r.FailFrom(-1)
	dir, err := readIFD(r, order, off, int64(len(data)))
	require.NoError(t, err)
	width, err := dir.uint(tagImageWidth, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), width)
	assert.Greater(t, r.Reads(), 3)
}
