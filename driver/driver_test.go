// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package driver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleType_SizeAndName(t *testing.T) {
	tests := []struct {
		typ   SampleType
		size  int
		name  string
		float bool
	}{
		{Byte, 1, "Byte", false},
		{Int16, 2, "Int16", false},
		{UInt16, 2, "UInt16", false},
		{Int32, 4, "Int32", false},
		{UInt32, 4, "UInt32", false},
		{Float32, 4, "Float32", true},
		{Float64, 8, "Float64", true},
		{Unknown, 0, "Unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.typ.Size())
			assert.Equal(t, tt.name, tt.typ.String())
			assert.Equal(t, tt.float, tt.typ.IsFloat())
		})
	}
}

func TestParseSampleType(t *testing.T) {
	got, err := ParseSampleType("float32")
	require.NoError(t, err)
	require.Equal(t, Float32, got)

	_, err = ParseSampleType("Unknown")
	require.Error(t, err)

	_, err = ParseSampleType("complex64")
	require.Error(t, err)
}

func TestSampleType_Quantize(t *testing.T) {
	tests := []struct {
		name string
		typ  SampleType
		in   float64
		want float64
	}{
		{"byte rounds", Byte, 41.6, 42},
		{"byte saturates high", Byte, 300, 255},
		{"byte saturates low", Byte, -3, 0},
		{"int16 negative", Int16, -12.5, -13},
		{"uint16 high", UInt16, 70000, 65535},
		{"int32 exact", Int32, 4095, 4095},
		{"nan to zero", Int32, math.NaN(), 0},
		{"float64 identity", Float64, 0.1, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.Quantize(tt.in))
		})
	}

	assert.Equal(t, float64(float32(0.1)), Float32.Quantize(0.1))
}

func TestBuffer_ShapeValidation(t *testing.T) {
	_, err := NewBufferFrom(4, 3, make([]float64, 12))
	require.NoError(t, err)

	_, err = NewBufferFrom(4, 3, make([]float64, 11))
	require.ErrorIs(t, err, ErrShapeMismatch)
	require.ErrorIs(t, err, ErrOutOfRange)

	var nilBuf *Buffer
	require.ErrorIs(t, nilBuf.Validate(), ErrShapeMismatch)
	require.ErrorIs(t, NewBuffer(0, 3).Validate(), ErrShapeMismatch)
}

func TestBuffer_Accessors(t *testing.T) {
	b := NewBuffer(3, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			b.Set(x, y, float64(y*3+x))
		}
	}

	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, b.Data)
	assert.Equal(t, []float64{3, 4, 5}, b.Row(1))
	assert.Equal(t, 4.0, b.At(1, 1))
	assert.InDelta(t, 2.5, b.Mean(), 1e-12)

	c := b.Clone()
	c.Set(0, 0, 99)
	assert.Equal(t, 0.0, b.At(0, 0))
	assert.False(t, b.EqualWithin(c, 1e-9))
	assert.True(t, b.EqualWithin(b.Clone(), 0))

	f := Filled(2, 2, 7)
	assert.Equal(t, []float64{7, 7, 7, 7}, f.Data)
	assert.True(t, math.IsNaN((&Buffer{}).Mean()))
}

func TestGeoTransform(t *testing.T) {
	gt := GeoTransform{100, 2, 0, 50, 0, -2}
	x, y := gt.Apply(10, 5)
	assert.Equal(t, 120.0, x)
	assert.Equal(t, 40.0, y)
	assert.True(t, gt.IsNorthUp())
	assert.False(t, GeoTransform{0, 1, 0.5, 0, 0, -1}.IsNorthUp())
}

func TestCheckWindow(t *testing.T) {
	md := Metadata{Width: 64, Height: 32, Bands: 2}

	tests := []struct {
		name               string
		band, x, y, xs, ys int
		wantErr                bool
	}{
		{name: "full band", band: 1, xs: 64, ys: 32},
		{name: "last band interior", band: 2, x: 10, y: 10, xs: 5, ys: 5},
		{name: "band zero", band: 0, xs: 1, ys: 1, wantErr: true},
		{name: "band too high", band: 3, xs: 1, ys: 1, wantErr: true},
		{name: "exceeds width", band: 1, x: 60, xs: 5, ys: 1, wantErr: true},
		{name: "exceeds height", band: 1, y: 30, xs: 1, ys: 3, wantErr: true},
		{name: "negative offset", band: 1, x: -1, xs: 1, ys: 1, wantErr: true},
		{name: "zero size", band: 1, xs: 0, ys: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWindow(md, tt.band, tt.x, tt.y, tt.xs, tt.ys)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrOutOfRange)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCreateOptions_Validate(t *testing.T) {
	require.NoError(t, CreateOptions{Width: 1, Height: 1, Bands: 1, SampleType: Byte}.Validate())
	require.ErrorIs(t, CreateOptions{Width: 0, Height: 1, Bands: 1, SampleType: Byte}.Validate(), ErrOutOfRange)
	require.ErrorIs(t, CreateOptions{Width: 1, Height: 1, Bands: 0, SampleType: Byte}.Validate(), ErrOutOfRange)
	require.ErrorIs(t, CreateOptions{Width: 1, Height: 1, Bands: 1}.Validate(), ErrOutOfRange)
}
