// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package splitter normalizes heterogeneous source formats (ome-tiff,
// tiff-folder, embedded-description tiff, vendor containers) into a
// uniform plane stream: every variant uploads encoded planes to a storage
// backend and returns the same FramesGlobal/Frames shape, differing only
// in how each parses its source metadata.
package splitter

import (
	"context"
	"fmt"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/internal/storage"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

// Options configures a splitter instance for one dataset.
type Options struct {
	Overwrite      bool
	Positions      []int  // nil = all positions from the source
	SchemaFilename string // JSON schema each ome_tiff page's metadata must satisfy (else ErrSchemaViolation); keys are not filtered; "" = no validation
	FilenameParser string // tif_folder only
	Pool           *storage.Pool
}

// Source identifies where a splitter reads from and writes to.
type Source struct {
	Backend    storage.Backend
	StorageDir string // e.g. raw_frames/<serial>
	Path       string // source file (ome-tiff, embedded tiff, vendor container) or directory (tif_folder)
}

// Result is the pair of in-memory products every splitter variant emits:
// the FramesGlobal aggregate and the per-plane Frames rows, each row's
// Metadata field carrying the variable per-plane metadata (frames_json).
type Result struct {
	Global schema.FramesGlobal
	Rows   []schema.Frames
}

// Splitter is the capability set every format variant implements (§4.5).
// Construction is expected to call AssertUnique on the backend unless
// Options.Overwrite is set; GetFramesAndMetadata both uploads the encoded
// planes and returns the catalog-ready rows.
type Splitter interface {
	GetFramesAndMetadata(ctx context.Context) (Result, error)
}

func imageName(c, z, t, p int) string {
	return fmt.Sprintf("im_c%03d_z%03d_t%03d_p%03d.png", c, z, t, p)
}

// uniqueCounts returns the number of distinct values seen in each
// dimension, used to derive nbr_channels/slices/timepoints/positions.
func uniqueCounts(rows []schema.Frames) (channels, slices, timepoints, positions int) {
	c := map[int]bool{}
	z := map[int]bool{}
	t := map[int]bool{}
	p := map[int]bool{}
	for _, r := range rows {
		c[r.ChannelIdx] = true
		z[r.SliceIdx] = true
		t[r.TimeIdx] = true
		p[r.PosIdx] = true
	}
	return len(c), len(z), len(t), len(p)
}

// setGlobalMeta computes nbr_slices/channels/timepoints/positions from the
// plane rows and assembles the rest of the FramesGlobal aggregate, then
// validates it (§4.5 step 3).
func setGlobalMeta(storageDir string, width, height, colors int, bitDepth schema.BitDepth, rows []schema.Frames) (schema.FramesGlobal, error) {
	channels, slices, timepoints, positions := uniqueCounts(rows)
	g := schema.FramesGlobal{
		StorageDir:    storageDir,
		NbrFrames:     len(rows),
		ImWidth:       width,
		ImHeight:      height,
		ImColors:      colors,
		BitDepth:      string(bitDepth),
		NbrSlices:     slices,
		NbrChannels:   channels,
		NbrTimepoints: timepoints,
		NbrPositions:  positions,
	}
	if err := validateGlobalMeta(g); err != nil {
		return schema.FramesGlobal{}, err
	}
	return g, nil
}

// validateGlobalMeta fails if any of the ten required FramesGlobal fields
// is missing, mirroring the source's validate_global_meta.
func validateGlobalMeta(g schema.FramesGlobal) error {
	if g.StorageDir == "" {
		return fmt.Errorf("%w: missing storage_dir", ingesterr.ErrSchemaViolation)
	}
	if g.BitDepth == "" {
		return fmt.Errorf("%w: missing bit_depth", ingesterr.ErrSchemaViolation)
	}
	if g.NbrFrames <= 0 {
		return fmt.Errorf("%w: nbr_frames must be > 0", ingesterr.ErrSchemaViolation)
	}
	if g.ImWidth <= 0 || g.ImHeight <= 0 {
		return fmt.Errorf("%w: im_width/im_height must be > 0", ingesterr.ErrSchemaViolation)
	}
	if g.ImColors != 1 && g.ImColors != 3 {
		return fmt.Errorf("%w: im_colors must be 1 or 3, got %d", ingesterr.ErrSchemaViolation, g.ImColors)
	}
	if g.NbrSlices <= 0 || g.NbrChannels <= 0 || g.NbrTimepoints <= 0 || g.NbrPositions <= 0 {
		return fmt.Errorf("%w: nbr_slices/channels/timepoints/positions must all be > 0", ingesterr.ErrSchemaViolation)
	}
	return nil
}
