// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package gtiff

import (
	"fmt"
	"strings"

	"github.com/scigolib/raster/driver"
)

// GeoKey identifiers used by this driver.
const (
	keyRasterType = 1025
	keyCitation   = 1026

	rasterPixelIsArea = 1
)

// putGeo adds georeferencing tags to b. North-up transforms use the
// tiepoint/pixel-scale pair; anything rotated needs the full matrix.
// The WKT travels as the GTCitationGeoKey string.
func putGeo(b *builder, gt driver.GeoTransform, wkt string) {
	if gt.IsNorthUp() {
		b.doubles(tagModelPixelScale, gt[1], -gt[5], 0)
		b.doubles(tagModelTiepoint, 0, 0, 0, gt[0], gt[3], 0)
	} else {
		b.doubles(tagModelTransformation,
			gt[1], gt[2], 0, gt[0],
			gt[4], gt[5], 0, gt[3],
			0, 0, 0, 0,
			0, 0, 0, 1)
	}

	keys := [][4]uint16{{keyRasterType, 0, 1, rasterPixelIsArea}}
	if wkt != "" {
		keys = append(keys, [4]uint16{keyCitation, tagGeoASCIIParams, uint16(len(wkt) + 1), 0})
		b.ascii(tagGeoASCIIParams, wkt+"|")
	}

	dir := []uint16{1, 1, 0, uint16(len(keys))}
	for _, k := range keys {
		dir = append(dir, k[:]...)
	}
	b.shorts(tagGeoKeyDirectory, dir...)
}

// readGeo extracts the geotransform and WKT. Files without georeferencing
// yield driver.DefaultGeoTransform and an empty projection.
func readGeo(d *ifd) (driver.GeoTransform, string, error) {
	gt := driver.DefaultGeoTransform

	switch {
	case d.has(tagModelTransformation):
		m, err := d.doubles(tagModelTransformation)
		if err != nil {
			return gt, "", err
		}
		if len(m) < 16 {
			return gt, "", fmt.Errorf("ModelTransformation has %d values, want 16", len(m))
		}
		gt = driver.GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}

	case d.has(tagModelTiepoint) && d.has(tagModelPixelScale):
		tp, err := d.doubles(tagModelTiepoint)
		if err != nil {
			return gt, "", err
		}
		scale, err := d.doubles(tagModelPixelScale)
		if err != nil {
			return gt, "", err
		}
		if len(tp) < 6 || len(scale) < 2 {
			return gt, "", fmt.Errorf("short tiepoint (%d) or pixel scale (%d)", len(tp), len(scale))
		}
		gt = driver.GeoTransform{
			tp[3] - tp[0]*scale[0], scale[0], 0,
			tp[4] + tp[1]*scale[1], 0, -scale[1],
		}
	}

	return gt, citation(d), nil
}

func citation(d *ifd) string {
	if !d.has(tagGeoKeyDirectory) {
		return ""
	}
	dir, err := d.uints(tagGeoKeyDirectory)
	if err != nil || len(dir) < 4 {
		return ""
	}
	params, ok := d.ascii(tagGeoASCIIParams)
	if !ok {
		return ""
	}

	n := int(dir[3])
	for i := 0; i < n && 4+4*i+3 < len(dir); i++ {
		k := dir[4+4*i : 8+4*i]
		if k[0] != keyCitation || k[1] != tagGeoASCIIParams {
			continue
		}
		start, count := int(k[3]), int(k[2])
		if start+count > len(params) {
			return ""
		}
		return strings.TrimRight(params[start:start+count], "|\x00")
	}
	return ""
}
