// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

// InsertFileParams bundles the DataSet (frames=false) and its FileGlobal row.
type InsertFileParams struct {
	Dataset   NewDatasetParams
	File      schema.FileGlobal
	Overwrite bool
}

// InsertFile inserts DataSet and FileGlobal inside s's transaction. The
// source file must already be durable in storage before this is called.
func (s *Session) InsertFile(p InsertFileParams) error {
	if p.Overwrite {
		if err := s.deleteDatasetTree(p.Dataset.Serial); err != nil {
			return err
		}
	}

	p.Dataset.Frames = false
	datasetID, err := s.insertDataset(p.Dataset)
	if err != nil {
		return err
	}

	meta, err := marshalMetaString(p.File.MetadataJSON)
	if err != nil {
		return fmt.Errorf("catalog: marshal file metadata: %w", err)
	}

	if _, err := s.tx.Exec(
		`INSERT INTO file_global (dataset_id, storage_dir, file_name, sha256, metadata_json) VALUES (?, ?, ?, ?, ?)`,
		datasetID, p.File.StorageDir, p.File.FileName, p.File.SHA256, meta,
	); err != nil {
		return fmt.Errorf("catalog: insert file_global: %w", err)
	}
	return nil
}

func marshalMetaString(s string) (sql.NullString, error) {
	if s == "" {
		return sql.NullString{}, nil
	}
	if !json.Valid([]byte(s)) {
		return sql.NullString{}, fmt.Errorf("invalid JSON metadata")
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// GetFileGlobal loads the FileGlobal row for serial.
func (s *Session) GetFileGlobal(serial string) (schema.FileGlobal, error) {
	var f schema.FileGlobal
	row := s.tx.QueryRowx(
		`SELECT fg.id, fg.dataset_id, fg.storage_dir, fg.file_name, fg.sha256, fg.metadata_json
		 FROM file_global fg JOIN dataset d ON d.id = fg.dataset_id
		 WHERE d.dataset_serial = ?`, serial)
	var meta sql.NullString
	if err := row.Scan(&f.ID, &f.DataSetID, &f.StorageDir, &f.FileName, &f.SHA256, &meta); err != nil {
		if err == sql.ErrNoRows {
			return schema.FileGlobal{}, fmt.Errorf("%w: %q", ingesterr.ErrDatasetNotFound, serial)
		}
		return schema.FileGlobal{}, fmt.Errorf("catalog: get file_global: %w", err)
	}
	if meta.Valid {
		f.MetadataJSON = meta.String
	}
	return f, nil
}
