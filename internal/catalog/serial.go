// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"fmt"
	"regexp"
	"time"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
)

var serialRE = regexp.MustCompile(`^([A-Z0-9]{2,4})-(\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2})-(\d{4})$`)

// Serial is a parsed dataset identifier, <PREFIX>-YYYY-MM-DD-HH-MM-SS-<NNNN>.
type Serial struct {
	Prefix   string
	DateTime time.Time
	Seq      string
}

// ParseSerial enforces the dataset-identifier syntax. Its timestamp is
// authoritative over any timestamp embedded in source files.
func ParseSerial(serial string) (Serial, error) {
	m := serialRE.FindStringSubmatch(serial)
	if m == nil {
		return Serial{}, fmt.Errorf("%w: %q does not match <PREFIX>-YYYY-MM-DD-HH-MM-SS-<NNNN>", ingesterr.ErrInvalidID, serial)
	}

	dt, err := time.Parse("2006-01-02-15-04-05", m[2])
	if err != nil {
		return Serial{}, fmt.Errorf("%w: %q has an unparseable timestamp: %v", ingesterr.ErrInvalidID, serial, err)
	}

	return Serial{Prefix: m[1], DateTime: dt.UTC(), Seq: m[3]}, nil
}
