// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package ers

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/scigolib/raster/driver"
)

// block is one "Name Begin ... Name End" section of an ERS header.
type block struct {
	name     string
	values   map[string]string
	children map[string]*block
}

func newBlock(name string) *block {
	return &block{
		name:     name,
		values:   make(map[string]string),
		children: make(map[string]*block),
	}
}

// lookup resolves a dotted path such as "RasterInfo.CellType".
func (b *block) lookup(path string) (string, bool) {
	parts := strings.Split(path, ".")
	cur := b
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur.children[strings.ToLower(p)]
		if !ok {
			return "", false
		}
		cur = next
	}
	v, ok := cur.values[strings.ToLower(parts[len(parts)-1])]
	return v, ok
}

// parseBlocks reads a header into a tree rooted at DatasetHeader.
func parseBlocks(r io.Reader) (*block, error) {
	root := newBlock("")
	stack := []*block{root}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		cur := stack[len(stack)-1]
		switch {
		case strings.HasSuffix(text, " Begin"):
			name := strings.TrimSpace(strings.TrimSuffix(text, " Begin"))
			child := newBlock(name)
			cur.children[strings.ToLower(name)] = child
			stack = append(stack, child)
		case strings.HasSuffix(text, " End"):
			name := strings.TrimSpace(strings.TrimSuffix(text, " End"))
			if len(stack) == 1 || !strings.EqualFold(cur.name, name) {
				return nil, fmt.Errorf("line %d: unexpected %q", line, text)
			}
			stack = stack[:len(stack)-1]
		default:
			key, value, ok := strings.Cut(text, "=")
			if !ok {
				return nil, fmt.Errorf("line %d: expected key = value, got %q", line, text)
			}
			cur.values[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"`)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("unterminated block %q", stack[len(stack)-1].name)
	}

	hdr, ok := root.children["datasetheader"]
	if !ok {
		return nil, fmt.Errorf("missing DatasetHeader block")
	}
	return hdr, nil
}

// cellTypes maps ERS CellType names to sample types.
var cellTypes = map[string]driver.SampleType{
	"Unsigned8BitInteger":  driver.Byte,
	"Signed16BitInteger":   driver.Int16,
	"Unsigned16BitInteger": driver.UInt16,
	"Signed32BitInteger":   driver.Int32,
	"Unsigned32BitInteger": driver.UInt32,
	"IEEE4ByteReal":        driver.Float32,
	"IEEE8ByteReal":        driver.Float64,
}

func cellTypeName(t driver.SampleType) (string, bool) {
	for name, st := range cellTypes {
		if st == t {
			return name, true
		}
	}
	return "", false
}

// header is the subset of an ERS header this driver reads and writes.
type header struct {
	Width      int
	Height     int
	Bands      int
	SampleType driver.SampleType
	Order      binary.ByteOrder
	// DataFile is the raw file name relative to the header, if given.
	DataFile string
	Geo      driver.GeoTransform
}

func parseHeader(r io.Reader) (*header, error) {
	root, err := parseBlocks(r)
	if err != nil {
		return nil, err
	}

	h := &header{Order: binary.LittleEndian, Geo: driver.DefaultGeoTransform}

	if v, ok := root.lookup("ByteOrder"); ok && strings.EqualFold(v, "MSBFirst") {
		h.Order = binary.BigEndian
	}
	if v, ok := root.lookup("DataFile"); ok {
		h.DataFile = v
	}

	cell, ok := root.lookup("RasterInfo.CellType")
	if !ok {
		return nil, fmt.Errorf("missing RasterInfo.CellType")
	}
	if h.SampleType, ok = cellTypes[cell]; !ok {
		return nil, fmt.Errorf("unsupported CellType %q", cell)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"RasterInfo.NrOfLines", &h.Height},
		{"RasterInfo.NrOfCellsPerLine", &h.Width},
		{"RasterInfo.NrOfBands", &h.Bands},
	}
	for _, f := range ints {
		v, ok := root.lookup(f.key)
		if !ok {
			return nil, fmt.Errorf("missing %s", f.key)
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid %s %q", f.key, v)
		}
		*f.dst = n
	}

	floats := []struct {
		key string
		dst *float64
		neg bool
	}{
		{"RasterInfo.CellInfo.Xdimension", &h.Geo[1], false},
		{"RasterInfo.CellInfo.Ydimension", &h.Geo[5], true},
		{"RasterInfo.RegistrationCoord.Eastings", &h.Geo[0], false},
		{"RasterInfo.RegistrationCoord.Northings", &h.Geo[3], false},
	}
	for _, f := range floats {
		v, ok := root.lookup(f.key)
		if !ok {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", f.key, v)
		}
		if f.neg {
			x = -x
		}
		*f.dst = x
	}

	return h, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// write serializes h in the layout ER Mapper itself produces.
func (h *header) write(w io.Writer) error {
	cell, ok := cellTypeName(h.SampleType)
	if !ok {
		return fmt.Errorf("sample type %v has no ERS cell type", h.SampleType)
	}
	order := "LSBFirst"
	if h.Order == binary.BigEndian {
		order = "MSBFirst"
	}

	var sb strings.Builder
	sb.WriteString("DatasetHeader Begin\n")
	sb.WriteString("\tVersion\t\t= \"6.0\"\n")
	if h.DataFile != "" {
		fmt.Fprintf(&sb, "\tDataFile\t= \"%s\"\n", h.DataFile)
	}
	sb.WriteString("\tDataSetType\t= ERStorage\n")
	sb.WriteString("\tDataType\t= Raster\n")
	fmt.Fprintf(&sb, "\tByteOrder\t= %s\n", order)
	sb.WriteString("\tCoordinateSpace Begin\n")
	sb.WriteString("\t\tDatum\t\t= \"RAW\"\n")
	sb.WriteString("\t\tProjection\t= \"RAW\"\n")
	sb.WriteString("\t\tCoordinateType\t= EN\n")
	sb.WriteString("\t\tRotation\t= 0:0:0.0\n")
	sb.WriteString("\tCoordinateSpace End\n")
	sb.WriteString("\tRasterInfo Begin\n")
	fmt.Fprintf(&sb, "\t\tCellType\t= %s\n", cell)
	fmt.Fprintf(&sb, "\t\tNrOfLines\t= %d\n", h.Height)
	fmt.Fprintf(&sb, "\t\tNrOfCellsPerLine\t= %d\n", h.Width)
	sb.WriteString("\t\tCellInfo Begin\n")
	fmt.Fprintf(&sb, "\t\t\tXdimension\t= %s\n", formatFloat(h.Geo[1]))
	fmt.Fprintf(&sb, "\t\t\tYdimension\t= %s\n", formatFloat(-h.Geo[5]))
	sb.WriteString("\t\tCellInfo End\n")
	sb.WriteString("\t\tRegistrationCoord Begin\n")
	fmt.Fprintf(&sb, "\t\t\tEastings\t= %s\n", formatFloat(h.Geo[0]))
	fmt.Fprintf(&sb, "\t\t\tNorthings\t= %s\n", formatFloat(h.Geo[3]))
	sb.WriteString("\t\tRegistrationCoord End\n")
	fmt.Fprintf(&sb, "\t\tNrOfBands\t= %d\n", h.Bands)
	sb.WriteString("\tRasterInfo End\n")
	sb.WriteString("DatasetHeader End\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
