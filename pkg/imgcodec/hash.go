// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package imgcodec

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrUnsupportedBitDepth = errors.New("imgcodec: unsupported bit depth")

// SHA256 hashes raw bytes and returns the lowercase hex digest.
func SHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SHA256Plane hashes a plane's canonical pixel buffer, not its encoded form.
func SHA256Plane(p *Plane) string {
	return SHA256(p.Pix)
}
