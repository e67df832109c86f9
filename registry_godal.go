// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

//go:build godal

package raster

import (
	"github.com/airbusgeo/godal"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/gdal"
)

func init() {
	extraDrivers = append(extraDrivers,
		func() driver.Driver { return gdal.New(godal.GTiff, ".tif", ".tiff") },
		func() driver.Driver { return gdal.New("ERS", ".ers") },
	)
}
