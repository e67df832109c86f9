// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"path/filepath"
	"testing"

	"github.com/scigolib/raster/driver"
)

// formatCase is one driver under test with a private registry.
type formatCase struct {
	format string
	reg    *driver.Registry
	path   func(name string) string
}

// formatCases returns a case per built-in driver. File drivers write into
// a fresh temporary directory.
func formatCases(t *testing.T) []formatCase {
	t.Helper()

	dir := t.TempDir()
	cases := make([]formatCase, 0, len(Formats))
	for _, format := range []string{FormatGTiff, FormatERS, FormatHDF5, FormatMEM} {
		ext := Formats[format]
		c := formatCase{format: format, reg: NewRegistry()}
		if format == FormatMEM {
			prefix := "/vsimem/" + t.Name() + "/"
			c.path = func(name string) string { return prefix + name }
		} else {
			prefix := filepath.Join(dir, format+"_")
			c.path = func(name string) string { return prefix + name + ext }
		}
		cases = append(cases, c)
	}
	return cases
}

func rowMajor(w, h int) *driver.Buffer {
	b := driver.NewBuffer(w, h)
	for i := range b.Data {
		b.Data[i] = float64(i)
	}
	return b
}
