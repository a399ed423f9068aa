// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

// Filters narrows a GetFrames query along the four plane dimensions. A nil
// slice means "all values" for that dimension; the retrieval planner has
// already resolved any channel-name strings to channel_idx before this
// point (see internal/retrieve).
type Filters struct {
	Positions []int
	Times     []int
	Channels  []int
	Slices    []int
}

func (s *Session) placeholderFormat() sq.PlaceholderFormat {
	if s.driver == "postgres" {
		return sq.Dollar
	}
	return sq.Question
}

// GetFrames resolves serial to its FramesGlobal, then returns every Frames
// row matching filters (all provided dimensions ANDed).
func (s *Session) GetFrames(serial string, f Filters) ([]schema.Frames, error) {
	var framesGlobalID int64
	err := s.tx.Get(&framesGlobalID,
		`SELECT fg.id FROM frames_global fg JOIN dataset d ON d.id = fg.dataset_id WHERE d.dataset_serial = ?`, serial)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ingesterr.ErrDatasetNotFound, serial)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve frames_global for %q: %w", serial, err)
	}

	qb := sq.Select("id", "frames_global_id", "channel_idx", "slice_idx", "time_idx", "pos_idx",
		"channel_name", "file_name", "sha256", "metadata_json").
		From("frames").
		Where(sq.Eq{"frames_global_id": framesGlobalID}).
		OrderBy("channel_idx", "slice_idx", "time_idx", "pos_idx").
		PlaceholderFormat(s.placeholderFormat())

	if len(f.Channels) > 0 {
		qb = qb.Where(sq.Eq{"channel_idx": f.Channels})
	}
	if len(f.Slices) > 0 {
		qb = qb.Where(sq.Eq{"slice_idx": f.Slices})
	}
	if len(f.Times) > 0 {
		qb = qb.Where(sq.Eq{"time_idx": f.Times})
	}
	if len(f.Positions) > 0 {
		qb = qb.Where(sq.Eq{"pos_idx": f.Positions})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("catalog: build frames query: %w", err)
	}

	rows, err := s.tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query frames: %w", err)
	}
	defer rows.Close()

	var out []schema.Frames
	for rows.Next() {
		var r schema.Frames
		var meta sql.NullString
		if err := rows.Scan(&r.ID, &r.FramesGlobalID, &r.ChannelIdx, &r.SliceIdx, &r.TimeIdx, &r.PosIdx,
			&r.ChannelName, &r.FileName, &r.SHA256, &meta); err != nil {
			return nil, fmt.Errorf("catalog: scan frames row: %w", err)
		}
		if meta.Valid {
			r.Metadata = json.RawMessage(meta.String)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate frames rows: %w", err)
	}
	return out, nil
}
