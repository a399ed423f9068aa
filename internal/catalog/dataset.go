// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

const datasetCacheTTL = 5 * time.Minute

func datasetCacheKey(serial string) string { return "dataset:" + serial }

// AssertUniqueID fails with ErrDuplicateID if a DataSet with this serial
// already exists. Callers run this inside the same session that later
// inserts the row, so the check and the insert observe one transaction.
func (s *Session) AssertUniqueID(serial string) error {
	var n int
	if err := s.tx.Get(&n, `SELECT COUNT(*) FROM dataset WHERE dataset_serial = ?`, serial); err != nil {
		return fmt.Errorf("catalog: assert unique id: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %q", ingesterr.ErrDuplicateID, serial)
	}
	return nil
}

// GetDataset loads the DataSet row for serial, consulting the session's
// decoded-row cache first.
func (s *Session) GetDataset(serial string) (schema.DataSet, error) {
	if s.cache != nil {
		if cached := s.cache.Get(datasetCacheKey(serial), nil); cached != nil {
			return cached.(schema.DataSet), nil
		}
	}

	var d schema.DataSet
	err := s.tx.Get(&d, `SELECT id, dataset_serial, date_time, microscope, description, frames, parent_id FROM dataset WHERE dataset_serial = ?`, serial)
	if err == sql.ErrNoRows {
		return schema.DataSet{}, fmt.Errorf("%w: %q", ingesterr.ErrDatasetNotFound, serial)
	}
	if err != nil {
		return schema.DataSet{}, fmt.Errorf("catalog: get dataset: %w", err)
	}

	if s.cache != nil {
		s.cache.Put(datasetCacheKey(serial), d, 1, datasetCacheTTL)
	}
	return d, nil
}

// NewDatasetParams is the caller-supplied subset of DataSet fields the
// ingestion coordinator knows before any catalog row exists.
type NewDatasetParams struct {
	Serial            string
	DateTime          string
	Microscope        string
	Description       string
	Frames            bool
	ParentSerial      string // optional; resolved to parent_id if non-empty
}

// insertDataset inserts the DataSet row (resolving ParentSerial to a
// parent_id if given) and returns its surrogate id. It does not check
// uniqueness; callers that need overwrite=false semantics call
// AssertUniqueID first.
func (s *Session) insertDataset(p NewDatasetParams) (int64, error) {
	var parentID sql.NullInt64
	if p.ParentSerial != "" {
		var id int64
		err := s.tx.Get(&id, `SELECT id FROM dataset WHERE dataset_serial = ?`, p.ParentSerial)
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("%w: parent dataset %q", ingesterr.ErrDatasetNotFound, p.ParentSerial)
		}
		if err != nil {
			return 0, fmt.Errorf("catalog: resolve parent dataset: %w", err)
		}
		parentID = sql.NullInt64{Int64: id, Valid: true}
	}

	res, err := s.tx.Exec(
		`INSERT INTO dataset (dataset_serial, date_time, microscope, description, frames, parent_id) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Serial, p.DateTime, p.Microscope, p.Description, p.Frames, parentID,
	)
	if err != nil {
		return 0, fmt.Errorf("catalog: insert dataset: %w", err)
	}
	if s.cache != nil {
		s.cache.Del(datasetCacheKey(p.Serial))
	}
	return res.LastInsertId()
}

// deleteDatasetTree removes a previously-inserted DataSet and every row
// that hangs off it (FramesGlobal/Frames or FileGlobal). Used to reclaim a
// half-written dataset before an overwrite=true re-insert.
func (s *Session) deleteDatasetTree(serial string) error {
	var id int64
	err := s.tx.Get(&id, `SELECT id FROM dataset WHERE dataset_serial = ?`, serial)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("catalog: locate dataset for overwrite: %w", err)
	}

	var fgID sql.NullInt64
	if err := s.tx.Get(&fgID, `SELECT id FROM frames_global WHERE dataset_id = ?`, id); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("catalog: locate frames_global for overwrite: %w", err)
	}
	if fgID.Valid {
		if _, err := s.tx.Exec(`DELETE FROM frames WHERE frames_global_id = ?`, fgID.Int64); err != nil {
			return fmt.Errorf("catalog: delete frames for overwrite: %w", err)
		}
		if _, err := s.tx.Exec(`DELETE FROM frames_global WHERE id = ?`, fgID.Int64); err != nil {
			return fmt.Errorf("catalog: delete frames_global for overwrite: %w", err)
		}
	}
	if _, err := s.tx.Exec(`DELETE FROM file_global WHERE dataset_id = ?`, id); err != nil {
		return fmt.Errorf("catalog: delete file_global for overwrite: %w", err)
	}
	if _, err := s.tx.Exec(`DELETE FROM dataset WHERE id = ?`, id); err != nil {
		return fmt.Errorf("catalog: delete dataset for overwrite: %w", err)
	}
	if s.cache != nil {
		s.cache.Del(datasetCacheKey(serial))
		s.cache.Del(framesGlobalCacheKey(serial))
	}
	return nil
}
