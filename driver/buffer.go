// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package driver

import (
	"fmt"
	"math"
)

// Buffer is a row-major 2-D array of samples with shape (YSize, XSize).
// Samples are held as float64 regardless of the band's SampleType; drivers
// quantize on write.
type Buffer struct {
	XSize int
	YSize int
	Data  []float64
}

// NewBuffer allocates a zeroed buffer of the given shape.
func NewBuffer(xSize, ySize int) *Buffer {
	if xSize < 0 {
		xSize = 0
	}
	if ySize < 0 {
		ySize = 0
	}
	return &Buffer{
		XSize: xSize,
		YSize: ySize,
		Data:  make([]float64, xSize*ySize),
	}
}

// NewBufferFrom wraps data without copying. len(data) must equal xSize*ySize.
func NewBufferFrom(xSize, ySize int, data []float64) (*Buffer, error) {
	b := &Buffer{XSize: xSize, YSize: ySize, Data: data}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Filled allocates a buffer with every sample set to v.
func Filled(xSize, ySize int, v float64) *Buffer {
	b := NewBuffer(xSize, ySize)
	b.Fill(v)
	return b
}

// Validate checks that the shape is positive and agrees with len(Data).
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrShapeMismatch)
	}
	if b.XSize <= 0 || b.YSize <= 0 {
		return fmt.Errorf("%w: non-positive shape (%d, %d)", ErrShapeMismatch, b.YSize, b.XSize)
	}
	if len(b.Data) != b.XSize*b.YSize {
		return fmt.Errorf("%w: shape (%d, %d) needs %d samples, have %d",
			ErrShapeMismatch, b.YSize, b.XSize, b.XSize*b.YSize, len(b.Data))
	}
	return nil
}

// Len returns the number of samples.
func (b *Buffer) Len() int {
	return len(b.Data)
}

// At returns the sample at column x, row y.
func (b *Buffer) At(x, y int) float64 {
	return b.Data[y*b.XSize+x]
}

// Set stores v at column x, row y.
func (b *Buffer) Set(x, y int, v float64) {
	b.Data[y*b.XSize+x] = v
}

// Row returns row y as a slice aliasing the buffer.
func (b *Buffer) Row(y int) []float64 {
	return b.Data[y*b.XSize : (y+1)*b.XSize]
}

// Fill sets every sample to v.
func (b *Buffer) Fill(v float64) {
	for i := range b.Data {
		b.Data[i] = v
	}
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	data := make([]float64, len(b.Data))
	copy(data, b.Data)
	return &Buffer{XSize: b.XSize, YSize: b.YSize, Data: data}
}

// Mean returns the arithmetic mean of all samples, or NaN for an empty buffer.
func (b *Buffer) Mean() float64 {
	if len(b.Data) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range b.Data {
		sum += v
	}
	return sum / float64(len(b.Data))
}

// EqualWithin reports whether o has the same shape and every sample differs
// by at most tol.
func (b *Buffer) EqualWithin(o *Buffer, tol float64) bool {
	if o == nil || b.XSize != o.XSize || b.YSize != o.YSize || len(b.Data) != len(o.Data) {
		return false
	}
	for i, v := range b.Data {
		if math.Abs(v-o.Data[i]) > tol {
			return false
		}
	}
	return true
}
