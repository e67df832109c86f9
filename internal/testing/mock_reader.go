// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package testing provides fault-injection helpers for raster tests.
package testing

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrInjected is returned by a MockReaderAt read that touches its failure
// range.
var ErrInjected = errors.New("injected read failure")

// MockReaderAt is an io.ReaderAt over a byte slice that counts reads and
// can fail every read reaching past a chosen offset.
type MockReaderAt struct {
	data []byte

	mu       sync.Mutex
	reads    int
	failFrom int64
}

// NewMockReaderAt serves data. No reads fail until FailFrom is called.
func NewMockReaderAt(data []byte) *MockReaderAt {
	return &MockReaderAt{data: data, failFrom: -1}
}

// FailFrom makes every read that covers a byte at or after off return
// ErrInjected. A negative off disables the failure.
func (m *MockReaderAt) FailFrom(off int64) {
	m.mu.Lock()
	m.failFrom = off
	m.mu.Unlock()
}

// Reads returns the number of ReadAt calls so far.
func (m *MockReaderAt) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// ReadAt implements io.ReaderAt. Short reads return io.ErrUnexpectedEOF,
// reads starting at or past the end return io.EOF.
func (m *MockReaderAt) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	m.reads++
	failFrom := m.failFrom
	m.mu.Unlock()

	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if failFrom >= 0 && off+int64(len(p)) > failFrom {
		return 0, fmt.Errorf("%w at offset %d", ErrInjected, off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}

	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}
