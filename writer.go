// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/metrics"
	"github.com/scigolib/raster/internal/utils"
)

// WriterConfig describes the dataset a Writer creates or updates.
type WriterConfig struct {
	Path   string
	Width  int
	Height int
	// Bands defaults to 1.
	Bands int
	// SampleType defaults to Float32.
	SampleType driver.SampleType
	// Driver is the registered format name. Empty means pick by path.
	Driver string
	// Projection is WKT; empty leaves the dataset's projection unset.
	Projection   string
	GeoTransform *driver.GeoTransform
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.Bands == 0 {
		c.Bands = 1
	}
	if c.SampleType == driver.Unknown {
		c.SampleType = driver.Float32
	}
	return c
}

// Writer serializes writes from many goroutines into one dataset.
// A single mutex covers Create, every write and its flush, and Close.
//
// Every WriteBlock flushes, so its cost follows the driver's Flush. HDF5
// datasets are rewritten whole on each flush, which makes block-wise
// writes O(raster) apiece there; prefer few large blocks or
// WriteFullBand for that format.
type Writer struct {
	cfg  WriterConfig
	opts options
	log  *logrus.Entry

	mu sync.Mutex
	ds driver.Dataset
}

// NewWriter returns a Writer for cfg. Nothing is touched until Create.
func NewWriter(cfg WriterConfig, opts ...Option) *Writer {
	o := buildOptions("writer", opts)
	cfg = cfg.withDefaults()
	return &Writer{
		cfg:  cfg,
		opts: o,
		log:  o.logger.WithField("path", cfg.Path),
	}
}

// Config returns the effective configuration.
func (w *Writer) Config() WriterConfig {
	return w.cfg
}

// Create opens the dataset for update if one exists at the path, otherwise
// creates it. An existing dataset must have the configured width, height
// and band count. Calling Create on an open Writer is a no-op.
func (w *Writer) Create() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ds != nil {
		return nil
	}

	start := time.Now()
	ds, err := w.create()
	if w.opts.metrics != nil {
		w.opts.metrics.Record(metrics.OpOpen, time.Since(start), err)
	}
	if err != nil {
		return utils.WrapError("create "+w.cfg.Path, err)
	}
	w.ds = ds
	return nil
}

func (w *Writer) create() (driver.Dataset, error) {
	d, err := w.resolveDriver()
	if err != nil {
		return nil, err
	}

	var ds driver.Dataset
	if d.Identify(w.cfg.Path) {
		ds, err = d.Open(w.cfg.Path, driver.Update)
		if err != nil {
			return nil, err
		}
		if err := w.checkShape(ds); err != nil {
			_ = ds.Close()
			return nil, err
		}
		w.log.WithField("driver", d.Name()).Debug("opened existing dataset for update")
	} else {
		ds, err = d.Create(w.cfg.Path, driver.CreateOptions{
			Width:      w.cfg.Width,
			Height:     w.cfg.Height,
			Bands:      w.cfg.Bands,
			SampleType: w.cfg.SampleType,
		})
		if err != nil {
			return nil, err
		}
		w.log.WithField("driver", d.Name()).Debug("created dataset")
	}

	if err := w.applyGeo(ds); err != nil {
		_ = ds.Close()
		return nil, err
	}
	return ds, nil
}

func (w *Writer) resolveDriver() (driver.Driver, error) {
	if w.cfg.Driver != "" {
		return w.opts.registry.Lookup(w.cfg.Driver)
	}
	return w.opts.registry.ForPath(w.cfg.Path)
}

func (w *Writer) checkShape(ds driver.Dataset) error {
	md, err := ds.Metadata()
	if err != nil {
		return err
	}
	if md.Width != w.cfg.Width || md.Height != w.cfg.Height || md.Bands != w.cfg.Bands {
		return fmt.Errorf("%w: existing dataset is %dx%dx%d, want %dx%dx%d", ErrShapeMismatch,
			md.Width, md.Height, md.Bands, w.cfg.Width, w.cfg.Height, w.cfg.Bands)
	}
	return nil
}

func (w *Writer) applyGeo(ds driver.Dataset) error {
	if w.cfg.Projection != "" {
		if err := ds.SetProjection(w.cfg.Projection); err != nil {
			return err
		}
	}
	if w.cfg.GeoTransform != nil {
		if err := ds.SetGeoTransform(*w.cfg.GeoTransform); err != nil {
			return err
		}
	}
	return nil
}

// WriteBlock writes data into a 1-indexed band at (xOff, yOff) and flushes.
// It fails with ErrNotReady before Create or after Close, and with
// ErrShapeMismatch or ErrOutOfRange when data does not fit.
func (w *Writer) WriteBlock(band, xOff, yOff int, data *driver.Buffer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ds == nil {
		return fmt.Errorf("%w: %s: dataset not created", ErrNotReady, w.cfg.Path)
	}
	if err := data.Validate(); err != nil {
		return err
	}

	start := time.Now()
	err := w.ds.WriteBand(band, xOff, yOff, data)
	if err == nil {
		err = w.ds.Flush()
	}
	if w.opts.metrics != nil {
		w.opts.metrics.Record(metrics.OpWrite, time.Since(start), err)
		if err == nil {
			w.opts.metrics.RecordSamples(data.Len())
		}
	}
	if err != nil {
		return utils.WrapError(fmt.Sprintf("write %s band %d at (%d,%d)", w.cfg.Path, band, xOff, yOff), err)
	}
	return nil
}

// WriteFullBand overwrites a whole band. data must be exactly Height rows
// of Width samples.
func (w *Writer) WriteFullBand(band int, data *driver.Buffer) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if data.XSize != w.cfg.Width || data.YSize != w.cfg.Height {
		return fmt.Errorf("%w: buffer shape (%d, %d), band shape (%d, %d)", ErrShapeMismatch,
			data.YSize, data.XSize, w.cfg.Height, w.cfg.Width)
	}
	return w.WriteBlock(band, 0, 0, data)
}

// Close flushes and releases the dataset. Close on a Writer that is not
// open is a no-op; a later Create reopens the dataset for update.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ds == nil {
		return nil
	}

	start := time.Now()
	ferr := w.ds.Flush()
	cerr := w.ds.Close()
	w.ds = nil
	err := ferr
	if err == nil {
		err = cerr
	}
	if w.opts.metrics != nil {
		w.opts.metrics.Record(metrics.OpClose, time.Since(start), err)
	}
	if err != nil {
		return utils.WrapError("close "+w.cfg.Path, err)
	}
	w.log.Debug("writer closed")
	return nil
}
