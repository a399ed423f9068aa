// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package imgcodec implements the pure byte<->plane primitives the rest of
// the pipeline treats as a black box: encoding a plane to its on-disk
// object-store representation, decoding it back, and hashing its canonical
// bytes. None of the corpus's dependencies cover 2-D image codecs, so this
// package is built directly on the standard library's image/png.
package imgcodec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/czbiohub/imagingdb/pkg/schema"
)

// Format is the on-disk encoding of a plane. Only PNG is supported, per
// invariant 6 on the Frames.file_name extension.
type Format string

const PNG Format = "png"

// Plane is a decoded 2-D image at native bit depth. Pix holds the canonical
// raw pixel buffer in row-major order: Colors interleaved samples per pixel,
// 1 byte per sample for uint8 and 2 big-endian bytes per sample for uint16 —
// no stride padding, no alpha channel. SHA256 is always computed over this
// buffer, never over the encoded bytes, so re-encoding never changes the hash.
type Plane struct {
	Width    int
	Height   int
	Colors   int
	BitDepth schema.BitDepth
	Pix      []byte
}

func bytesPerSample(bd schema.BitDepth) (int, error) {
	switch bd {
	case schema.BitDepthUint8:
		return 1, nil
	case schema.BitDepthUint16:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedBitDepth, bd)
	}
}

// Encode renders a Plane to its object-store bytes in the given format.
func Encode(p *Plane, format Format) ([]byte, error) {
	if format != PNG {
		return nil, fmt.Errorf("imgcodec: unsupported format %q", format)
	}

	img, err := toImage(p)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imgcodec: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses PNG bytes back into a Plane, preserving bit depth and color
// count. Decoding is strictly the inverse of Encode: Decode(Encode(p)) always
// yields a Plane with an identical Pix buffer.
func Decode(data []byte) (*Plane, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imgcodec: decode: %w", err)
	}
	return fromImage(img)
}

func toImage(p *Plane) (image.Image, error) {
	bps, err := bytesPerSample(p.BitDepth)
	if err != nil {
		return nil, err
	}

	rect := image.Rect(0, 0, p.Width, p.Height)

	switch {
	case p.Colors == 1 && bps == 1:
		return &image.Gray{Pix: p.Pix, Stride: p.Width, Rect: rect}, nil
	case p.Colors == 1 && bps == 2:
		return &image.Gray16{Pix: p.Pix, Stride: p.Width * 2, Rect: rect}, nil
	case p.Colors == 3 && bps == 1:
		img := image.NewNRGBA(rect)
		for i, px := 0, 0; px < p.Width*p.Height; px, i = px+1, i+3 {
			img.Pix[px*4+0] = p.Pix[i+0]
			img.Pix[px*4+1] = p.Pix[i+1]
			img.Pix[px*4+2] = p.Pix[i+2]
			img.Pix[px*4+3] = 0xff
		}
		return img, nil
	case p.Colors == 3 && bps == 2:
		img := image.NewRGBA64(rect)
		for i, px := 0, 0; px < p.Width*p.Height; px, i = px+1, i+6 {
			copy(img.Pix[px*8+0:px*8+2], p.Pix[i+0:i+2])
			copy(img.Pix[px*8+2:px*8+4], p.Pix[i+2:i+4])
			copy(img.Pix[px*8+4:px*8+6], p.Pix[i+4:i+6])
			img.Pix[px*8+6] = 0xff
			img.Pix[px*8+7] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("imgcodec: unsupported colors=%d bit depth=%s", p.Colors, p.BitDepth)
	}
}

func fromImage(img image.Image) (*Plane, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch v := img.(type) {
	case *image.Gray:
		return &Plane{Width: w, Height: h, Colors: 1, BitDepth: schema.BitDepthUint8, Pix: append([]byte(nil), v.Pix...)}, nil
	case *image.Gray16:
		return &Plane{Width: w, Height: h, Colors: 1, BitDepth: schema.BitDepthUint16, Pix: append([]byte(nil), v.Pix...)}, nil
	case *image.NRGBA:
		pix := make([]byte, 0, w*h*3)
		for px := 0; px < w*h; px++ {
			pix = append(pix, v.Pix[px*4+0], v.Pix[px*4+1], v.Pix[px*4+2])
		}
		return &Plane{Width: w, Height: h, Colors: 3, BitDepth: schema.BitDepthUint8, Pix: pix}, nil
	case *image.RGBA:
		// png's decoder returns *image.RGBA (not *image.NRGBA) for a fully
		// opaque color-type-2 (truecolor, no alpha) image, which is what
		// Encode always produces for an 8-bit 3-channel plane since it sets
		// alpha to 0xff everywhere. RGBA's channels are already
		// alpha-premultiplied, but with alpha==0xff that is a no-op, so the
		// stored samples equal the original ones and can be read directly.
		pix := make([]byte, 0, w*h*3)
		for px := 0; px < w*h; px++ {
			pix = append(pix, v.Pix[px*4+0], v.Pix[px*4+1], v.Pix[px*4+2])
		}
		return &Plane{Width: w, Height: h, Colors: 3, BitDepth: schema.BitDepthUint8, Pix: pix}, nil
	case *image.RGBA64:
		pix := make([]byte, 0, w*h*6)
		for px := 0; px < w*h; px++ {
			pix = append(pix, v.Pix[px*8+0:px*8+2]...)
			pix = append(pix, v.Pix[px*8+2:px*8+4]...)
			pix = append(pix, v.Pix[px*8+4:px*8+6]...)
		}
		return &Plane{Width: w, Height: h, Colors: 3, BitDepth: schema.BitDepthUint16, Pix: pix}, nil
	default:
		return nil, fmt.Errorf("imgcodec: unexpected decoded image type %T", img)
	}
}
