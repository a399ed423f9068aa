// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package splitter

import "encoding/binary"

// tiffTag and buildTIFF construct minimal little-endian classic TIFF fixtures
// for exercising the splitter variants without a real acquisition file.
type tiffTag struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
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

// onePageGray8 returns the baseline tag set for a single-plane 8-bit
// grayscale page, with a zeroed StripOffsets placeholder the caller patches
// once the pixel bytes are appended.
func onePageGray8(width, height int, pixLen int, extra ...tiffTag) []tiffTag {
	tags := []tiffTag{
		shortTag(TagImageWidth, uint16(width)),
		shortTag(TagImageLength, uint16(height)),
		shortTag(TagBitsPerSample, 8),
		shortTag(TagCompression, 1),
		shortTag(TagSamplesPerPixel, 1),
		{tag: TagStripOffsets, typ: 4, count: 1, value: make([]byte, 4)},
		{tag: TagStripByteCounts, typ: 4, count: 1, value: func() []byte {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, uint32(pixLen))
			return b
		}()},
	}
	return append(tags, extra...)
}

// buildTIFF assembles a chain of IFDs, one per element of pages, with no
// pixel data; patchStripOffsets must then be called with each page's pixel
// bytes to append them and fill in each StripOffsets tag.
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

		base := len(buf) + ifdSize
		var overflow []byte
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

// patchStripOffsets appends each page's pixel bytes in turn and rewrites
// that page's StripOffsets inline value to point at them.
func patchStripOffsets(raw []byte, pixPerPage [][]byte) []byte {
	order := binary.LittleEndian
	offset := order.Uint32(raw[4:8])
	var ifdOffsets []int
	for offset != 0 {
		ifdOffsets = append(ifdOffsets, int(offset))
		n := int(order.Uint16(raw[offset : offset+2]))
		nextOff := int(offset) + 2 + n*12
		offset = order.Uint32(raw[nextOff : nextOff+4])
	}

	for pageIdx, ifdOff := range ifdOffsets {
		n := int(order.Uint16(raw[ifdOff : ifdOff+2]))
		stripOffset := uint32(len(raw))
		raw = append(raw, pixPerPage[pageIdx]...)
		for i := 0; i < n; i++ {
			entOff := ifdOff + 2 + i*12
			if order.Uint16(raw[entOff:entOff+2]) == TagStripOffsets {
				order.PutUint32(raw[entOff+8:entOff+12], stripOffset)
			}
		}
	}
	return raw
}
