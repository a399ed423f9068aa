// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tifftag is a minimal classic-TIFF (not BigTIFF) IFD reader: just
// enough to walk the page chain, read the handful of baseline tags the
// splitter variants need (dimensions, bit depth, strip layout), and decode
// uncompressed raster data into an imgcodec.Plane. No corpus dependency
// covers TIFF, let alone the scientific-imaging-specific tags
// (MicroManagerMetadata, IJMetadata) used by microscopy acquisition
// software, so this is hand-rolled against the TIFF 6.0 spec.
package tifftag

import (
	"encoding/binary"
	"fmt"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/pkg/imgcodec"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

// Baseline and vendor-specific tags this package understands.
const (
	TagImageWidth               = 256
	TagImageLength               = 257
	TagBitsPerSample             = 258
	TagCompression               = 259
	TagPhotometricInterpretation = 262
	TagImageDescription          = 270
	TagStripOffsets              = 273
	TagSamplesPerPixel           = 277
	TagRowsPerStrip              = 278
	TagStripByteCounts           = 279
	TagIJMetadataByteCounts      = 50838
	TagIJMetadata                = 50839
	TagMicroManagerMetadata      = 51123
)

var typeSize = map[uint16]int{1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 7: 1}

// Entry is one decoded IFD tag: its declared type/count plus the resolved
// raw bytes (inline or dereferenced through the value offset).
type Entry struct {
	Type  uint16
	Count uint32
	Raw   []byte
}

// ASCIIString trims the TIFF-mandated trailing NUL from an ASCII entry.
func (e Entry) ASCIIString() string {
	s := e.Raw
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s)
}

// Uint32Slice decodes a SHORT or LONG entry's values.
func (e Entry) Uint32Slice(order binary.ByteOrder) []uint32 {
	sz := typeSize[e.Type]
	if sz == 0 {
		sz = 1
	}
	out := make([]uint32, 0, int(e.Count))
	for i := 0; i < int(e.Count); i++ {
		off := i * sz
		if off+sz > len(e.Raw) {
			break
		}
		switch e.Type {
		case 3:
			out = append(out, uint32(order.Uint16(e.Raw[off:off+2])))
		case 4:
			out = append(out, order.Uint32(e.Raw[off:off+4]))
		default:
			out = append(out, uint32(e.Raw[off]))
		}
	}
	return out
}

// Uint32 returns the first decoded value, or 0 if the entry is empty.
func (e Entry) Uint32(order binary.ByteOrder) uint32 {
	v := e.Uint32Slice(order)
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

// Page is one IFD's tags, keyed by tag number.
type Page struct {
	Tags map[uint16]Entry
}

// Get looks up a tag, reporting whether it was present.
func (p Page) Get(tag uint16) (Entry, bool) {
	e, ok := p.Tags[tag]
	return e, ok
}

// File is a parsed classic TIFF: byte order plus every page in IFD-chain
// order.
type File struct {
	Order binary.ByteOrder
	Pages []Page
	data  []byte
}

// Parse walks the IFD chain of a classic (32-bit offset) TIFF held
// entirely in memory.
func Parse(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("tifftag: file too short")
	}

	var order binary.ByteOrder
	switch string(data[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("tifftag: not a TIFF file (bad byte-order mark)")
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("tifftag: not a classic TIFF (magic != 42)")
	}

	f := &File{Order: order, data: data}
	offset := order.Uint32(data[4:8])
	for offset != 0 {
		page, next, err := f.readIFD(offset)
		if err != nil {
			return nil, err
		}
		f.Pages = append(f.Pages, page)
		offset = next
	}
	if len(f.Pages) == 0 {
		return nil, fmt.Errorf("tifftag: no IFDs found")
	}
	return f, nil
}

func (f *File) readIFD(offset uint32) (Page, uint32, error) {
	data := f.data
	if int(offset)+2 > len(data) {
		return Page{}, 0, fmt.Errorf("tifftag: IFD offset %d out of range", offset)
	}
	n := int(f.Order.Uint16(data[offset : offset+2]))
	entriesStart := offset + 2
	page := Page{Tags: make(map[uint16]Entry, n)}

	for i := 0; i < n; i++ {
		entOff := int(entriesStart) + i*12
		if entOff+12 > len(data) {
			return Page{}, 0, fmt.Errorf("tifftag: truncated IFD entry")
		}
		tag := f.Order.Uint16(data[entOff : entOff+2])
		typ := f.Order.Uint16(data[entOff+2 : entOff+4])
		count := f.Order.Uint32(data[entOff+4 : entOff+8])
		valField := data[entOff+8 : entOff+12]

		sz := typeSize[typ]
		if sz == 0 {
			sz = 1
		}
		total := sz * int(count)

		var raw []byte
		if total <= 4 {
			raw = append([]byte(nil), valField[:total]...)
		} else {
			valOffset := f.Order.Uint32(valField)
			if int(valOffset)+total > len(data) || total < 0 {
				return Page{}, 0, fmt.Errorf("tifftag: tag %d value out of range", tag)
			}
			raw = append([]byte(nil), data[valOffset:int(valOffset)+total]...)
		}
		page.Tags[tag] = Entry{Type: typ, Count: count, Raw: raw}
	}

	nextOff := int(entriesStart) + n*12
	if nextOff+4 > len(data) {
		return page, 0, nil
	}
	next := f.Order.Uint32(data[nextOff : nextOff+4])
	return page, next, nil
}

// DecodePlane decodes page i's raster data into a Plane. Only
// Compression=1 (none) is supported, which covers the scientific
// acquisition software this splitter targets; compressed TIFFs fail with a
// plain error that callers wrap in their own error kind.
func (f *File) DecodePlane(i int) (*imgcodec.Plane, error) {
	if i < 0 || i >= len(f.Pages) {
		return nil, fmt.Errorf("tifftag: page %d out of range", i)
	}
	page := f.Pages[i]

	width, height, bits, samples, err := f.dimensions(page)
	if err != nil {
		return nil, err
	}

	if comp, ok := page.Get(TagCompression); ok && comp.Uint32(f.Order) != 1 {
		return nil, fmt.Errorf("tifftag: compressed TIFF (compression=%d) not supported", comp.Uint32(f.Order))
	}

	bitDepth, err := bitDepthOf(bits)
	if err != nil {
		return nil, err
	}

	offsets, ok := page.Get(TagStripOffsets)
	if !ok {
		return nil, fmt.Errorf("tifftag: missing StripOffsets")
	}
	counts, ok := page.Get(TagStripByteCounts)
	if !ok {
		return nil, fmt.Errorf("tifftag: missing StripByteCounts")
	}
	offs := offsets.Uint32Slice(f.Order)
	cnts := counts.Uint32Slice(f.Order)

	pix := make([]byte, 0, width*height*samples*(bits/8))
	for i := range offs {
		start, end := offs[i], offs[i]+cnts[i]
		if int(end) > len(f.data) {
			return nil, fmt.Errorf("tifftag: strip %d out of range", i)
		}
		pix = append(pix, f.data[start:end]...)
	}

	// Plane.Pix stores 16-bit samples big-endian regardless of source byte
	// order; TIFF strips are written in the file's own byte order.
	if bits == 16 && f.Order == binary.LittleEndian {
		for i := 0; i+1 < len(pix); i += 2 {
			pix[i], pix[i+1] = pix[i+1], pix[i]
		}
	}

	return &imgcodec.Plane{
		Width:    width,
		Height:   height,
		Colors:   samples,
		BitDepth: bitDepth,
		Pix:      pix,
	}, nil
}

func (f *File) dimensions(page Page) (width, height, bits, samples int, err error) {
	w, ok := page.Get(TagImageWidth)
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("tifftag: missing ImageWidth")
	}
	h, ok := page.Get(TagImageLength)
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("tifftag: missing ImageLength")
	}
	b, ok := page.Get(TagBitsPerSample)
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("tifftag: missing BitsPerSample")
	}

	samples = 1
	if s, ok := page.Get(TagSamplesPerPixel); ok {
		samples = int(s.Uint32(f.Order))
	}

	return int(w.Uint32(f.Order)), int(h.Uint32(f.Order)), int(b.Uint32(f.Order)), samples, nil
}

func bitDepthOf(bits int) (schema.BitDepth, error) {
	switch bits {
	case 8:
		return schema.BitDepthUint8, nil
	case 16:
		return schema.BitDepthUint16, nil
	default:
		return "", fmt.Errorf("%w: %d-bit TIFF samples", ingesterr.ErrUnsupportedBitDepth, bits)
	}
}

// ImageDescription returns tag 270 of page i, if present.
func (f *File) ImageDescription(i int) (string, bool) {
	if i < 0 || i >= len(f.Pages) {
		return "", false
	}
	e, ok := f.Pages[i].Get(TagImageDescription)
	if !ok {
		return "", false
	}
	return e.ASCIIString(), true
}
