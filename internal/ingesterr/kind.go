// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ingesterr names the error kinds a batch row or retrieval request
// can fail with. Callers compare with errors.Is; the coordinator and planner
// wrap these with row-specific context via fmt.Errorf's %w verb.
package ingesterr

import "errors"

var (
	ErrInvalidID             = errors.New("invalid-id")
	ErrDuplicateID            = errors.New("duplicate-id")
	ErrStorageExists          = errors.New("storage-exists")
	ErrParse                  = errors.New("parse-error")
	ErrUnsupportedBitDepth    = errors.New("unsupported-bit-depth")
	ErrTransientIO            = errors.New("transient-io")
	ErrSchemaViolation        = errors.New("schema-violation")
	ErrDatasetNotFound        = errors.New("dataset-not-found")
	ErrChannelNameNotNumeric  = errors.New("channel-name-not-numeric")
	ErrDestinationExists      = errors.New("destination-exists")
	ErrNothingToDo            = errors.New("nothing-to-do")
	ErrInconsistentCatalog    = errors.New("inconsistent-catalog")
)
