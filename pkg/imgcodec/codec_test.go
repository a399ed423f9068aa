// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package imgcodec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/czbiohub/imagingdb/pkg/schema"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		colors int
		depth  schema.BitDepth
		pix    []byte
	}{
		{"gray8", 1, schema.BitDepthUint8, []byte{0, 1, 2, 3}},
		{"gray16", 1, schema.BitDepthUint16, []byte{0, 0, 0, 1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0, 7}},
		{"rgb8", 3, schema.BitDepthUint8, []byte{
			10, 20, 30, 40, 50, 60,
			70, 80, 90, 100, 110, 120,
		}},
		{"rgb16", 3, schema.BitDepthUint16, []byte{
			0, 10, 0, 20, 0, 30, 0, 40, 0, 50, 0, 60,
			0, 70, 0, 80, 0, 90, 0, 100, 0, 110, 0, 120,
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			plane := &Plane{Width: 2, Height: 2, Colors: c.colors, BitDepth: c.depth, Pix: c.pix}

			encoded, err := Encode(plane, PNG)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)

			require.Equal(t, plane.Width, decoded.Width)
			require.Equal(t, plane.Height, decoded.Height)
			require.Equal(t, plane.Colors, decoded.Colors)
			require.Equal(t, plane.BitDepth, decoded.BitDepth)
			require.Equal(t, plane.Pix, decoded.Pix)
			require.Equal(t, SHA256Plane(plane), SHA256Plane(decoded))
		})
	}
}

func TestEncodeRejectsUnsupportedFormat(t *testing.T) {
	_, err := Encode(&Plane{Width: 1, Height: 1, Colors: 1, BitDepth: schema.BitDepthUint8, Pix: []byte{0}}, Format("jpeg"))
	require.Error(t, err)
}

func TestEncodeRejectsUnsupportedBitDepth(t *testing.T) {
	_, err := Encode(&Plane{Width: 1, Height: 1, Colors: 1, BitDepth: schema.BitDepth("uint32"), Pix: []byte{0, 0, 0, 0}}, PNG)
	require.ErrorIs(t, err, ErrUnsupportedBitDepth)
}

func TestSHA256PlaneHashesPixNotEncodedBytes(t *testing.T) {
	plane := &Plane{Width: 1, Height: 1, Colors: 1, BitDepth: schema.BitDepthUint8, Pix: []byte{42}}
	want := SHA256([]byte{42})
	require.Equal(t, want, SHA256Plane(plane))
}
