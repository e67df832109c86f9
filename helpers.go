// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"fmt"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/utils"
)

// WGS84 is the WKT of EPSG:4326, the default projection of CreateRaster.
const WGS84 = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

// Formats maps each built-in format name to its file extension.
// In-memory datasets have none.
var Formats = map[string]string{
	FormatGTiff: ".tif",
	FormatERS:   ".ers",
	FormatHDF5:  ".h5",
	FormatMEM:   "",
}

// CreateRasterOptions describes a dataset for CreateRaster.
type CreateRasterOptions struct {
	Format     string
	Width      int
	Height     int
	Bands      int
	SampleType driver.SampleType
	// Fill is written to every sample of every band.
	Fill float64
	// Projection defaults to WGS84.
	Projection string
	// GeoTransform defaults to driver.DefaultGeoTransform.
	GeoTransform *driver.GeoTransform
}

// CreateRaster creates a dataset with every band set to params.Fill, then
// flushes and closes it. An existing dataset at path is replaced.
func CreateRaster(path string, params CreateRasterOptions, opts ...Option) (err error) {
	o := buildOptions("helpers", opts)

	d, err := o.registry.Lookup(params.Format)
	if err != nil {
		return utils.WrapError("create "+path, err)
	}

	if params.Bands == 0 {
		params.Bands = 1
	}
	if params.SampleType == driver.Unknown {
		params.SampleType = driver.Float32
	}
	if params.Projection == "" {
		params.Projection = WGS84
	}
	gt := driver.DefaultGeoTransform
	if params.GeoTransform != nil {
		gt = *params.GeoTransform
	}

	ds, err := d.Create(path, driver.CreateOptions{
		Width:      params.Width,
		Height:     params.Height,
		Bands:      params.Bands,
		SampleType: params.SampleType,
	})
	if err != nil {
		return utils.WrapError("create "+path, err)
	}
	defer func() {
		if cerr := ds.Close(); err == nil && cerr != nil {
			err = utils.WrapError("close "+path, cerr)
		}
	}()

	if err := ds.SetProjection(params.Projection); err != nil {
		return utils.WrapError("set projection of "+path, err)
	}
	if err := ds.SetGeoTransform(gt); err != nil {
		return utils.WrapError("set geotransform of "+path, err)
	}

	fill := driver.Filled(params.Width, params.Height, params.Fill)
	for band := 1; band <= params.Bands; band++ {
		if err := ds.WriteBand(band, 0, 0, fill); err != nil {
			return utils.WrapError(fmt.Sprintf("fill %s band %d", path, band), err)
		}
	}
	if err := ds.Flush(); err != nil {
		return utils.WrapError("flush "+path, err)
	}
	o.logger.WithField("path", path).WithField("driver", d.Name()).Debug("raster created")
	return nil
}

// ReadRaster reads a whole band of the dataset at path using a private
// handle. It is safe to call from any goroutine.
func ReadRaster(path string, band int, opts ...Option) (_ *driver.Buffer, err error) {
	o := buildOptions("helpers", opts)

	ds, err := o.registry.Open(path, driver.ReadOnly)
	if err != nil {
		return nil, utils.WrapError("open "+path, err)
	}
	defer func() {
		if cerr := ds.Close(); err == nil && cerr != nil {
			err = utils.WrapError("close "+path, cerr)
		}
	}()

	md, err := ds.Metadata()
	if err != nil {
		return nil, utils.WrapError("read metadata of "+path, err)
	}
	buf, err := ds.ReadBand(band, 0, 0, md.Width, md.Height)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("read %s band %d", path, band), err)
	}
	return buf, nil
}

// WriteRasterBand opens the dataset at path for update, overwrites a whole
// band with data, flushes and closes.
func WriteRasterBand(path string, band int, data *driver.Buffer, opts ...Option) (err error) {
	o := buildOptions("helpers", opts)

	ds, err := o.registry.Open(path, driver.Update)
	if err != nil {
		return utils.WrapError("open "+path, err)
	}
	defer func() {
		if cerr := ds.Close(); err == nil && cerr != nil {
			err = utils.WrapError("close "+path, cerr)
		}
	}()

	md, err := ds.Metadata()
	if err != nil {
		return utils.WrapError("read metadata of "+path, err)
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if data.XSize != md.Width || data.YSize != md.Height {
		return fmt.Errorf("%w: buffer shape (%d, %d), band shape (%d, %d)", ErrShapeMismatch,
			data.YSize, data.XSize, md.Height, md.Width)
	}
	if err := ds.WriteBand(band, 0, 0, data); err != nil {
		return utils.WrapError(fmt.Sprintf("write %s band %d", path, band), err)
	}
	if err := ds.Flush(); err != nil {
		return utils.WrapError("flush "+path, err)
	}
	return nil
}
