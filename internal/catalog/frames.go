// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

const framesGlobalCacheTTL = 5 * time.Minute

func framesGlobalCacheKey(serial string) string { return "frames_global:" + serial }

// InsertFramesParams bundles everything insert_frames needs: the DataSet
// row (frames=true), the FramesGlobal aggregate, and every Frames row
// derived from the splitter's plane-metadata table.
type InsertFramesParams struct {
	Dataset   NewDatasetParams
	Global    schema.FramesGlobal
	Rows      []schema.Frames
	Overwrite bool
}

// InsertFrames inserts the DataSet, FramesGlobal, and every Frames row
// inside s's transaction, honoring invariants 3.3(2,3,4,5). The DataSet row
// is always inserted: if its serial already exists the insert fails, unless
// Overwrite is set, in which case the existing tree is deleted first. Planes must
// already be durable in storage before this is called; see the ingestion
// coordinator's upload-then-catalog ordering.
func (s *Session) InsertFrames(p InsertFramesParams) error {
	if err := validateFramesGlobal(p.Global, p.Rows); err != nil {
		return err
	}

	if p.Overwrite {
		if err := s.deleteDatasetTree(p.Dataset.Serial); err != nil {
			return err
		}
	}

	p.Dataset.Frames = true
	datasetID, err := s.insertDataset(p.Dataset)
	if err != nil {
		return err
	}

	globalMeta, err := marshalMeta(p.Global.GlobalMetadata)
	if err != nil {
		return fmt.Errorf("catalog: marshal global metadata: %w", err)
	}

	res, err := s.tx.Exec(
		`INSERT INTO frames_global (dataset_id, storage_dir, nbr_frames, im_width, im_height, im_colors, bit_depth, nbr_slices, nbr_channels, nbr_timepoints, nbr_positions, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		datasetID, p.Global.StorageDir, p.Global.NbrFrames, p.Global.ImWidth, p.Global.ImHeight, p.Global.ImColors,
		p.Global.BitDepth, p.Global.NbrSlices, p.Global.NbrChannels, p.Global.NbrTimepoints, p.Global.NbrPositions, globalMeta,
	)
	if err != nil {
		return fmt.Errorf("catalog: insert frames_global: %w", err)
	}
	framesGlobalID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("catalog: insert frames_global: %w", err)
	}

	for _, row := range p.Rows {
		meta, err := marshalMeta(row.Metadata)
		if err != nil {
			return fmt.Errorf("catalog: marshal frame metadata: %w", err)
		}
		if _, err := s.tx.Exec(
			`INSERT INTO frames (frames_global_id, channel_idx, slice_idx, time_idx, pos_idx, channel_name, file_name, sha256, metadata_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			framesGlobalID, row.ChannelIdx, row.SliceIdx, row.TimeIdx, row.PosIdx, row.ChannelName, row.FileName, row.SHA256, meta,
		); err != nil {
			return fmt.Errorf("catalog: insert frames row (c=%d,z=%d,t=%d,p=%d): %w", row.ChannelIdx, row.SliceIdx, row.TimeIdx, row.PosIdx, err)
		}
	}

	if s.cache != nil {
		s.cache.Del(framesGlobalCacheKey(p.Dataset.Serial))
	}
	return nil
}

// validateFramesGlobal enforces invariants 3.3(3,4,5) before any row is
// written, so a violation never reaches a half-committed transaction.
func validateFramesGlobal(g schema.FramesGlobal, rows []schema.Frames) error {
	if g.NbrFrames != len(rows) {
		return fmt.Errorf("%w: nbr_frames=%d but %d plane rows", ingesterr.ErrInconsistentCatalog, g.NbrFrames, len(rows))
	}

	seen := make(map[schema.PlaneKey]bool, len(rows))
	for _, r := range rows {
		if r.ChannelIdx < 0 || r.ChannelIdx >= g.NbrChannels {
			return fmt.Errorf("%w: channel_idx %d out of [0,%d)", ingesterr.ErrInconsistentCatalog, r.ChannelIdx, g.NbrChannels)
		}
		if r.SliceIdx < 0 || r.SliceIdx >= g.NbrSlices {
			return fmt.Errorf("%w: slice_idx %d out of [0,%d)", ingesterr.ErrInconsistentCatalog, r.SliceIdx, g.NbrSlices)
		}
		if r.TimeIdx < 0 || r.TimeIdx >= g.NbrTimepoints {
			return fmt.Errorf("%w: time_idx %d out of [0,%d)", ingesterr.ErrInconsistentCatalog, r.TimeIdx, g.NbrTimepoints)
		}
		if r.PosIdx < 0 || r.PosIdx >= g.NbrPositions {
			return fmt.Errorf("%w: pos_idx %d out of [0,%d)", ingesterr.ErrInconsistentCatalog, r.PosIdx, g.NbrPositions)
		}

		key := schema.PlaneKey{ChannelIdx: r.ChannelIdx, SliceIdx: r.SliceIdx, TimeIdx: r.TimeIdx, PosIdx: r.PosIdx}
		if seen[key] {
			return fmt.Errorf("%w: duplicate plane key (c=%d,z=%d,t=%d,p=%d)", ingesterr.ErrInconsistentCatalog, r.ChannelIdx, r.SliceIdx, r.TimeIdx, r.PosIdx)
		}
		seen[key] = true
	}
	return nil
}

func marshalMeta(raw json.RawMessage) (sql.NullString, error) {
	if len(raw) == 0 {
		return sql.NullString{}, nil
	}
	if !json.Valid(raw) {
		return sql.NullString{}, fmt.Errorf("invalid JSON metadata")
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

// GetFramesGlobal loads the FramesGlobal aggregate row for serial,
// consulting the session's decoded-row cache first.
func (s *Session) GetFramesGlobal(serial string) (schema.FramesGlobal, error) {
	if s.cache != nil {
		if cached := s.cache.Get(framesGlobalCacheKey(serial), nil); cached != nil {
			return cached.(schema.FramesGlobal), nil
		}
	}

	var g schema.FramesGlobal
	var meta sql.NullString
	row := s.tx.QueryRowx(
		`SELECT fg.id, fg.dataset_id, fg.storage_dir, fg.nbr_frames, fg.im_width, fg.im_height, fg.im_colors,
		        fg.bit_depth, fg.nbr_slices, fg.nbr_channels, fg.nbr_timepoints, fg.nbr_positions, fg.metadata_json
		 FROM frames_global fg JOIN dataset d ON d.id = fg.dataset_id
		 WHERE d.dataset_serial = ?`, serial)
	if err := row.Scan(&g.ID, &g.DataSetID, &g.StorageDir, &g.NbrFrames, &g.ImWidth, &g.ImHeight, &g.ImColors,
		&g.BitDepth, &g.NbrSlices, &g.NbrChannels, &g.NbrTimepoints, &g.NbrPositions, &meta); err != nil {
		if err == sql.ErrNoRows {
			return schema.FramesGlobal{}, fmt.Errorf("%w: %q", ingesterr.ErrDatasetNotFound, serial)
		}
		return schema.FramesGlobal{}, fmt.Errorf("catalog: get frames_global: %w", err)
	}
	if meta.Valid {
		g.GlobalMetadata = json.RawMessage(meta.String)
	}

	if s.cache != nil {
		s.cache.Put(framesGlobalCacheKey(serial), g, 1+len(g.GlobalMetadata), framesGlobalCacheTTL)
	}
	return g, nil
}
