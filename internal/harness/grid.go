// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package harness

import (
	"math"

	"github.com/scigolib/raster/driver"
)

// SyntheticGrid returns the size x size test surface sin(x/12)+cos(y/15),
// rounded to float32 so every Float32 driver stores it exactly.
func SyntheticGrid(size int) *driver.Buffer {
	b := driver.NewBuffer(size, size)
	for y := range size {
		row := b.Row(y)
		for x := range row {
			v := math.Sin(float64(x)/12) + math.Cos(float64(y)/15)
			row[x] = float64(float32(v))
		}
	}
	return b
}

// subBuffer copies a window of src.
func subBuffer(src *driver.Buffer, xOff, yOff, xSize, ySize int) *driver.Buffer {
	out := driver.NewBuffer(xSize, ySize)
	for y := range ySize {
		copy(out.Row(y), src.Row(yOff+y)[xOff:xOff+xSize])
	}
	return out
}
