// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import "fmt"

// Block is a rectangular pixel window. Blocks produced by a Partitioner
// tile the raster exactly; edge blocks are clipped to the raster bounds.
type Block struct {
	XOff  int
	YOff  int
	XSize int
	YSize int
}

// String formats the block as "(x,y)+WxH".
func (b Block) String() string {
	return fmt.Sprintf("(%d,%d)+%dx%d", b.XOff, b.YOff, b.XSize, b.YSize)
}

// Pixels returns XSize*YSize.
func (b Block) Pixels() int {
	return b.XSize * b.YSize
}

// Partitioner divides a width x height raster into blockSize squares.
//
// Blocks are numbered in row-major order: rows of blocks outer, columns
// inner. Edge blocks are clipped:
//
//	XSize = min(blockSize, width - XOff)
//	YSize = min(blockSize, height - YOff)
type Partitioner struct {
	width, height int
	blockSize     int
	cols, rows    int
}

// NewPartitioner validates the arguments, all of which must be positive.
func NewPartitioner(width, height, blockSize int) (*Partitioner, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: raster size %dx%d must be positive", ErrOutOfRange, width, height)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: block size %d must be positive", ErrOutOfRange, blockSize)
	}
	return &Partitioner{
		width:     width,
		height:    height,
		blockSize: blockSize,
		cols:      (width + blockSize - 1) / blockSize,
		rows:      (height + blockSize - 1) / blockSize,
	}, nil
}

// Grid returns the number of block columns and rows.
func (p *Partitioner) Grid() (cols, rows int) {
	return p.cols, p.rows
}

// Count returns the total number of blocks.
func (p *Partitioner) Count() int {
	return p.cols * p.rows
}

// Block returns block i in row-major order. It panics if i is out of range.
func (p *Partitioner) Block(i int) Block {
	if i < 0 || i >= p.Count() {
		panic(fmt.Sprintf("raster: block index %d out of range [0, %d)", i, p.Count()))
	}
	x := (i % p.cols) * p.blockSize
	y := (i / p.cols) * p.blockSize
	return Block{
		XOff:  x,
		YOff:  y,
		XSize: min(p.blockSize, p.width-x),
		YSize: min(p.blockSize, p.height-y),
	}
}

// Blocks returns every block in row-major order.
func (p *Partitioner) Blocks() []Block {
	out := make([]Block, p.Count())
	for i := range out {
		out[i] = p.Block(i)
	}
	return out
}

// SplitIntoBlocks returns the blocks tiling a width x height raster.
// Non-positive arguments fail with ErrOutOfRange.
func SplitIntoBlocks(width, height, blockSize int) ([]Block, error) {
	p, err := NewPartitioner(width, height, blockSize)
	if err != nil {
		return nil, err
	}
	return p.Blocks(), nil
}
