// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// IngestConfig is the per-batch ingestion config document (§6).
type IngestConfig struct {
	UploadType     string `json:"upload_type"`
	FramesFormat   string `json:"frames_format,omitempty"`
	Storage        string `json:"storage,omitempty"`
	StorageAccess  string `json:"storage_access"`
	Microscope     string `json:"microscope,omitempty"`
	FilenameParser string `json:"filename_parser,omitempty"`
	SchemaFilename string `json:"schema_filename,omitempty"`
}

// Validate enforces the required-key rules of §6 that a JSON schema alone
// cannot express (conditional requiredness on upload_type).
func (c IngestConfig) Validate() error {
	switch c.UploadType {
	case "frames":
		if c.FramesFormat == "" {
			return fmt.Errorf("config: frames_format is required when upload_type=frames")
		}
		switch c.FramesFormat {
		case "ome_tiff", "tif_folder", "tif_id", "lif":
		default:
			return fmt.Errorf("config: unknown frames_format %q", c.FramesFormat)
		}
	case "file":
	default:
		return fmt.Errorf("config: upload_type must be \"frames\" or \"file\", got %q", c.UploadType)
	}

	switch c.Storage {
	case "", "s3", "local":
	default:
		return fmt.Errorf("config: unknown storage %q", c.Storage)
	}
	return nil
}

// StorageKind defaults to "s3" per §6 when unset.
func (c IngestConfig) StorageKind() string {
	if c.Storage == "" {
		return "s3"
	}
	return c.Storage
}

// LoadIngestConfig reads and strictly decodes an ingestion config file.
func LoadIngestConfig(path string) (IngestConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return IngestConfig{}, fmt.Errorf("config: read ingest config %s: %w", path, err)
	}

	var c IngestConfig
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return IngestConfig{}, fmt.Errorf("config: decode ingest config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return IngestConfig{}, err
	}
	return c, nil
}

// BatchRow is one row of the ingestion batch descriptor CSV (§6).
type BatchRow struct {
	DatasetID        string
	FileName         string
	Description      string
	ParentDatasetID  string
	Positions        string // raw cell: JSON list, the literal "all", or empty
	SchemaFilename   string
}
