// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package utils provides byte-level helpers shared by the raster drivers.
package utils

import "sync"

// defaultRowCapacity fits one 512-sample Float64 row.
const defaultRowCapacity = 4096

var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 0, defaultRowCapacity)
		return &buf
	},
}

// GetBuffer returns a byte slice of length size from the pool.
// The contents are not zeroed.
func GetBuffer(size int) []byte {
	bp := bufferPool.Get().(*[]byte)
	if cap(*bp) < size {
		bufferPool.Put(bp)
		return make([]byte, size, size*2)
	}
	return (*bp)[:size]
}

// ReleaseBuffer returns a buffer obtained from GetBuffer to the pool.
// Oversized buffers are dropped so one huge row does not pin memory.
func ReleaseBuffer(buf []byte) {
	if cap(buf) > 64*defaultRowCapacity {
		return
	}
	buf = buf[:0]
	bufferPool.Put(&buf)
}
