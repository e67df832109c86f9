// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package rawfile wraps an *os.File with positional I/O and an explicit
// open/closed lifecycle for the file-backed raster drivers.
package rawfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/scigolib/raster/driver"
)

// File wraps an os.File for positional raster I/O.
// It provides:
// - ReadAt / WriteAt with short-transfer detection
// - Read-only enforcement
// - Flush control (fsync)
// - Closed-handle detection (driver.ErrNotOpen)
//
// Thread-safety: Not thread-safe. Caller must synchronize access.
type File struct {
	file     *os.File
	path     string
	readOnly bool
}

// Open opens an existing file. driver.ReadOnly maps to O_RDONLY,
// driver.Update to O_RDWR.
func Open(path string, access driver.Access) (*File, error) {
	flag := os.O_RDONLY
	if access == driver.Update {
		flag = os.O_RDWR
	}

	//nolint:gosec // G304: user-provided path is intentional for a raster library
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return &File{file: f, path: path, readOnly: access == driver.ReadOnly}, nil
}

// Create creates or truncates path and extends it to size bytes.
// The extension is sparse on filesystems that support it, so new rasters
// read back as zero.
func Create(path string, size int64) (*File, error) {
	//nolint:gosec // G304: user-provided path is intentional for a raster library
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if size > 0 {
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to size file to %d bytes: %w", size, err)
		}
	}

	return &File{file: f, path: path}, nil
}

// Path returns the path the file was opened with.
func (w *File) Path() string {
	return w.path
}

// ReadOnly reports whether the file rejects writes.
func (w *File) ReadOnly() bool {
	return w.readOnly
}

// ReadAt fills buf from offset. A short read is an error.
func (w *File) ReadAt(buf []byte, offset int64) (int, error) {
	if w.file == nil {
		return 0, driver.ErrNotOpen
	}

	n, err := w.file.ReadAt(buf, offset)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return n, fmt.Errorf("read at offset %d failed: %w", offset, err)
	}
	return n, nil
}

// WriteAt writes data at offset.
func (w *File) WriteAt(data []byte, offset int64) (int, error) {
	if w.file == nil {
		return 0, driver.ErrNotOpen
	}
	if w.readOnly {
		return 0, driver.ErrReadOnly
	}

	if len(data) == 0 {
		return 0, nil
	}

	n, err := w.file.WriteAt(data, offset)
	if err != nil {
		return n, fmt.Errorf("write at offset %d failed: %w", offset, err)
	}

	if n != len(data) {
		return n, fmt.Errorf("incomplete write at offset %d: wrote %d of %d bytes", offset, n, len(data))
	}

	return n, nil
}

// Truncate changes the file size.
func (w *File) Truncate(size int64) error {
	if w.file == nil {
		return driver.ErrNotOpen
	}
	if w.readOnly {
		return driver.ErrReadOnly
	}
	return w.file.Truncate(size)
}

// Size returns the current file size.
func (w *File) Size() (int64, error) {
	if w.file == nil {
		return 0, driver.ErrNotOpen
	}
	fi, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Flush commits written data to stable storage. A no-op for read-only files.
func (w *File) Flush() error {
	if w.file == nil {
		return driver.ErrNotOpen
	}
	if w.readOnly {
		return nil
	}
	return w.file.Sync()
}

// Close closes the underlying file.
// This does NOT automatically flush - call Flush() first if needed.
// Closing twice returns driver.ErrNotOpen.
func (w *File) Close() error {
	if w.file == nil {
		return driver.ErrNotOpen
	}

	err := w.file.Close()
	w.file = nil
	return err
}

// Closed reports whether Close has been called.
func (w *File) Closed() bool {
	return w.file == nil
}

var (
	_ io.ReaderAt = (*File)(nil)
	_ io.WriterAt = (*File)(nil)
)
