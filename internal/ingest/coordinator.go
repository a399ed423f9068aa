// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/czbiohub/imagingdb/internal/catalog"
	"github.com/czbiohub/imagingdb/internal/config"
	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/internal/splitter"
	"github.com/czbiohub/imagingdb/internal/storage"
	"github.com/czbiohub/imagingdb/pkg/log"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

// Coordinator drives each batch row through the linear ingestion control
// flow of §2: validate id → open source → split + hash → upload planes →
// insert catalog rows, all observed in order and never parallelized across
// datasets (the catalog assertions must be observed in order, and splitters
// hold significant memory).
type Coordinator struct {
	Catalog   *catalog.Catalog
	Backend   storage.Backend
	Pool      *storage.Pool
	Config    config.IngestConfig
	Overwrite bool

	// VendorAdapter, if set, is used to construct lif splitters. Left nil
	// unless the caller has a concrete vendor-container reader to offer;
	// lif rows fail with a clear error otherwise (see DESIGN.md).
	VendorAdapter splitter.VendorAdapter
}

// Result is one row's terminal state: Cataloged (Err == nil) or
// Failed<reason> (Err naming the ingesterr kind).
type Result struct {
	DatasetID string
	Err       error
}

// IngestBatch drives every row through IngestRow in order, collecting one
// Result per row. A failing row does not stop the batch; it is recorded and
// the coordinator proceeds to the next row (§4.7/§7 recovery policy).
func (c *Coordinator) IngestBatch(ctx context.Context, rows []config.BatchRow) []Result {
	out := make([]Result, 0, len(rows))
	for _, row := range rows {
		err := c.IngestRow(ctx, row)
		if err != nil {
			log.ForDataset(row.DatasetID).Errorf("ingest failed: %v", err)
		}
		out = append(out, Result{DatasetID: row.DatasetID, Err: err})
	}
	return out
}

// IngestRow drives one row through Pending → Validating → Uploading →
// Cataloged, or fails with a typed ingesterr kind at whichever step first
// rejects it.
func (c *Coordinator) IngestRow(ctx context.Context, row config.BatchRow) error {
	serial, err := catalog.ParseSerial(row.DatasetID)
	if err != nil {
		return err
	}

	if !c.Overwrite {
		if err := c.Catalog.WithSession(func(s *catalog.Session) error {
			return s.AssertUniqueID(row.DatasetID)
		}); err != nil {
			return err
		}
	}

	dataset := catalog.NewDatasetParams{
		Serial:       row.DatasetID,
		DateTime:     serial.DateTime.Format(time.RFC3339),
		Microscope:   c.Config.Microscope,
		Description:  row.Description,
		ParentSerial: row.ParentDatasetID,
	}

	switch c.Config.UploadType {
	case "frames":
		return c.ingestFrames(ctx, row, dataset)
	case "file":
		return c.ingestFile(ctx, row, dataset)
	default:
		return fmt.Errorf("%w: unknown upload_type %q", ingesterr.ErrParse, c.Config.UploadType)
	}
}

func (c *Coordinator) ingestFrames(ctx context.Context, row config.BatchRow, dataset catalog.NewDatasetParams) error {
	positions, err := ParsePositions(row.Positions)
	if err != nil {
		return err
	}

	schemaFilename := row.SchemaFilename
	if schemaFilename == "" {
		schemaFilename = c.Config.SchemaFilename
	}

	src := splitter.Source{
		Backend:    c.Backend,
		StorageDir: "raw_frames/" + row.DatasetID,
		Path:       row.FileName,
	}
	opts := splitter.Options{
		Overwrite:      c.Overwrite,
		Positions:      positions,
		SchemaFilename: schemaFilename,
		FilenameParser: c.Config.FilenameParser,
		Pool:           c.Pool,
	}

	sp, err := splitter.New(ctx, c.Config.FramesFormat, src, opts, c.VendorAdapter)
	if err != nil {
		return err
	}

	result, err := sp.GetFramesAndMetadata(ctx)
	if err != nil {
		return err
	}

	return c.Catalog.WithSession(func(s *catalog.Session) error {
		return s.InsertFrames(catalog.InsertFramesParams{
			Dataset:   dataset,
			Global:    result.Global,
			Rows:      result.Rows,
			Overwrite: c.Overwrite,
		})
	})
}

func (c *Coordinator) ingestFile(ctx context.Context, row config.BatchRow, dataset catalog.NewDatasetParams) error {
	info, err := os.Stat(row.FileName)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: source file %s: %v", ingesterr.ErrTransientIO, row.FileName, err)
	}

	sha, err := sha256File(row.FileName)
	if err != nil {
		return err
	}

	storageDir := "raw_files/" + row.DatasetID
	fileName := filepath.Base(row.FileName)

	if !c.Overwrite {
		if err := c.Backend.AssertUnique(ctx, storageDir); err != nil {
			return err
		}
	}

	if err := c.Pool.PutFiles(ctx, c.Backend, []storage.Item{
		{Dir: storageDir, Name: fileName, LocalPath: row.FileName},
	}); err != nil {
		return err
	}

	return c.Catalog.WithSession(func(s *catalog.Session) error {
		return s.InsertFile(catalog.InsertFileParams{
			Dataset: dataset,
			File: schema.FileGlobal{
				StorageDir: storageDir,
				FileName:   fileName,
				SHA256:     sha,
			},
			Overwrite: c.Overwrite,
		})
	})
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ingesterr.ErrTransientIO, path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: hash %s: %v", ingesterr.ErrTransientIO, path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
