// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package tifftag

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/czbiohub/imagingdb/pkg/schema"
)

// tiffTag is one IFD entry to bake into a fixture page.
type tiffTag struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte // already in the target byte order
}

// buildTIFF assembles a minimal little-endian classic TIFF with one IFD per
// page; values of up to 4 bytes are stored inline in the entry, longer
// ones after the IFD block.
func buildTIFF(pages [][]tiffTag) []byte {
	order := binary.LittleEndian
	buf := make([]byte, 8)
	copy(buf[0:2], "II")
	order.PutUint16(buf[2:4], 42)

	var ifdOffsets []int

	for _, tags := range pages {
		ifdOffsets = append(ifdOffsets, len(buf))
		n := len(tags)
		ifdSize := 2 + n*12 + 4
		entries := make([]byte, ifdSize)
		order.PutUint16(entries[0:2], uint16(n))

		// First lay out entries with placeholder value offsets, appending
		// overflow value bytes after the whole IFD block.
		overflow := make([]byte, 0)
		base := len(buf) + ifdSize
		for i, t := range tags {
			off := 2 + i*12
			order.PutUint16(entries[off:off+2], t.tag)
			order.PutUint16(entries[off+2:off+4], t.typ)
			order.PutUint32(entries[off+4:off+8], t.count)
			if len(t.value) <= 4 {
				copy(entries[off+8:off+12], t.value)
			} else {
				order.PutUint32(entries[off+8:off+12], uint32(base+len(overflow)))
				overflow = append(overflow, t.value...)
			}
		}
		buf = append(buf, entries...)
		buf = append(buf, overflow...)
	}

	// Patch next-IFD-offset fields (0 = end of chain, except chained pages).
	for i, off := range ifdOffsets {
		n := len(pages[i])
		nextOff := off + 2 + n*12
		var next uint32
		if i+1 < len(ifdOffsets) {
			next = uint32(ifdOffsets[i+1])
		}
		order.PutUint32(buf[nextOff:nextOff+4], next)
	}

	order.PutUint32(buf[4:8], uint32(ifdOffsets[0]))
	return buf
}

func shortTag(tag uint16, v uint16) tiffTag {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return tiffTag{tag: tag, typ: 3, count: 1, value: b}
}

func asciiTag(tag uint16, s string) tiffTag {
	s += "\x00"
	return tiffTag{tag: tag, typ: 2, count: uint32(len(s)), value: []byte(s)}
}

func onePage8Bit(width, height int, pix []byte, extra ...tiffTag) []tiffTag {
	tags := []tiffTag{
		shortTag(TagImageWidth, uint16(width)),
		shortTag(TagImageLength, uint16(height)),
		shortTag(TagBitsPerSample, 8),
		shortTag(TagCompression, 1),
		shortTag(TagSamplesPerPixel, 1),
		{tag: TagStripOffsets, typ: 4, count: 1, value: func() []byte {
			b := make([]byte, 4)
			return b // patched by caller after append
		}()},
		{tag: TagStripByteCounts, typ: 4, count: 1, value: func() []byte {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, uint32(len(pix)))
			return b
		}()},
	}
	return append(tags, extra...)
}

func TestParseRejectsNonTIFF(t *testing.T) {
	_, err := Parse([]byte("not a tiff"))
	require.Error(t, err)
}

func TestParseAndDecodeSinglePage(t *testing.T) {
	pix := []byte{10, 20, 30, 40, 50, 60}
	tags := onePage8Bit(3, 2, pix, asciiTag(TagImageDescription, "images=1\nchannels=1\nslices=1\n"))
	raw := buildTIFF([][]tiffTag{tags})

	// Strip data goes right after the file as built so far; patch the
	// StripOffsets entry we left zeroed above.
	stripOffset := uint32(len(raw))
	raw = append(raw, pix...)

	// Locate and patch the StripOffsets value field within the IFD we just
	// wrote: tag order here is fixed by onePage8Bit, StripOffsets is the 6th
	// (0-indexed 5) of 8 entries (7 + 1 extra ascii tag placed at index 7).
	f, err := Parse(patchStripOffset(raw, stripOffset))
	require.NoError(t, err)
	require.Len(t, f.Pages, 1)

	plane, err := f.DecodePlane(0)
	require.NoError(t, err)
	require.Equal(t, 3, plane.Width)
	require.Equal(t, 2, plane.Height)
	require.Equal(t, schema.BitDepthUint8, plane.BitDepth)
	require.Equal(t, pix, plane.Pix)

	desc, ok := f.ImageDescription(0)
	require.True(t, ok)
	require.Contains(t, desc, "channels=1")
}

// patchStripOffset rewrites the StripOffsets tag's inline value field to
// point at offset, by scanning the freshly-built IFD for that tag number.
func patchStripOffset(data []byte, offset uint32) []byte {
	order := binary.LittleEndian
	ifdOff := order.Uint32(data[4:8])
	n := int(order.Uint16(data[ifdOff : ifdOff+2]))
	for i := 0; i < n; i++ {
		entOff := int(ifdOff) + 2 + i*12
		tag := order.Uint16(data[entOff : entOff+2])
		if tag == TagStripOffsets {
			order.PutUint32(data[entOff+8:entOff+12], offset)
		}
	}
	return data
}

func TestDecodePlaneSwapsEndiannessFor16Bit(t *testing.T) {
	// One 16-bit pixel, value 0x0102, stored little-endian in the strip as
	// TIFF mandates; imgcodec's canonical buffer is big-endian.
	pix := []byte{0x02, 0x01}
	tags := []tiffTag{
		shortTag(TagImageWidth, 1),
		shortTag(TagImageLength, 1),
		shortTag(TagBitsPerSample, 16),
		shortTag(TagCompression, 1),
		shortTag(TagSamplesPerPixel, 1),
		{tag: TagStripOffsets, typ: 4, count: 1, value: make([]byte, 4)},
		{tag: TagStripByteCounts, typ: 4, count: 1, value: func() []byte {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, 2)
			return b
		}()},
	}
	raw := buildTIFF([][]tiffTag{tags})
	stripOffset := uint32(len(raw))
	raw = append(raw, pix...)
	raw = patchStripOffset(raw, stripOffset)

	f, err := Parse(raw)
	require.NoError(t, err)
	plane, err := f.DecodePlane(0)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, plane.Pix)
}

func TestDimensionsMissingTagFails(t *testing.T) {
	tags := []tiffTag{shortTag(TagImageWidth, 1)}
	raw := buildTIFF([][]tiffTag{tags})
	f, err := Parse(raw)
	require.NoError(t, err)
	_, err = f.DecodePlane(0)
	require.Error(t, err)
}
