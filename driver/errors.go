// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package driver

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by drivers and the concurrency layer.
// Callers match them with errors.Is; every layer wraps rather than replaces.
var (
	// ErrDriverUnavailable means the requested format is not registered.
	ErrDriverUnavailable = errors.New("driver unavailable")

	// ErrOpen means a dataset could not be opened (missing, corrupt, locked).
	ErrOpen = errors.New("cannot open")

	// ErrCreate means a dataset could not be created.
	ErrCreate = errors.New("cannot create")

	// ErrNotReady means an operation ran before open/create.
	ErrNotReady = errors.New("dataset not ready")

	// ErrNotOpen means the handle was already closed.
	ErrNotOpen = errors.New("handle not open")

	// ErrClosed means the owning reader was closed.
	ErrClosed = errors.New("reader closed")

	// ErrOutOfRange means a band or window lies outside the dataset.
	ErrOutOfRange = errors.New("out of range")

	// ErrShapeMismatch means a buffer does not match its target region.
	ErrShapeMismatch = fmt.Errorf("%w: buffer shape mismatch", ErrOutOfRange)

	// ErrReadOnly means a mutation was attempted on a read-only handle.
	ErrReadOnly = errors.New("dataset opened read-only")
)
