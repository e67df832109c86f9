// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package driver

// GeoTransform is the affine pixel-to-world mapping in GDAL order:
//
//	Xgeo = gt[0] + px*gt[1] + py*gt[2]
//	Ygeo = gt[3] + px*gt[4] + py*gt[5]
//
// The core never interprets it; drivers only persist it.
type GeoTransform [6]float64

// DefaultGeoTransform maps pixel (0,0) to the origin with unit, north-up cells.
var DefaultGeoTransform = GeoTransform{0, 1, 0, 0, 0, -1}

// Apply maps pixel/line coordinates to georeferenced coordinates.
func (gt GeoTransform) Apply(px, py float64) (x, y float64) {
	return gt[0] + px*gt[1] + py*gt[2], gt[3] + px*gt[4] + py*gt[5]
}

// IsNorthUp reports whether the transform has no rotation terms.
func (gt GeoTransform) IsNorthUp() bool {
	return gt[2] == 0 && gt[4] == 0
}
