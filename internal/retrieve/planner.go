// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package retrieve resolves a dataset serial and a set of plane-dimension
// filters to a minimal plane set, then downloads it: resolve catalog row →
// filter planes → download → emit sidecar metadata.
package retrieve

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/czbiohub/imagingdb/internal/catalog"
	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/internal/storage"
	"github.com/czbiohub/imagingdb/pkg/imgcodec"
	"github.com/czbiohub/imagingdb/pkg/log"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

// Options is one retrieval request: a dataset serial, a destination root,
// the download/metadata toggles, and the four raw filter cells (each a
// scalar, a JSON list, the literal "all", or empty for "all").
type Options struct {
	Serial   string
	Dest     string
	Download bool
	Metadata bool

	Positions string
	Times     string
	Channels  string
	Slices    string
}

// Planner drives one retrieval request against a catalog and storage
// backend.
type Planner struct {
	Catalog *catalog.Catalog
	Backend storage.Backend
	Pool    *storage.Pool
}

// Execute resolves serial to its catalog row(s), filters and downloads
// planes (or the single file), and writes the sidecar metadata, all under
// a freshly created <dest>/<serial> directory.
func (p *Planner) Execute(ctx context.Context, opts Options) error {
	if !opts.Download && !opts.Metadata {
		return fmt.Errorf("%w: download=false and metadata=false leave nothing to do", ingesterr.ErrNothingToDo)
	}

	destDir := filepath.Join(opts.Dest, opts.Serial)
	if _, err := os.Stat(destDir); err == nil {
		return fmt.Errorf("%w: %s", ingesterr.ErrDestinationExists, destDir)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%w: stat %s: %v", ingesterr.ErrTransientIO, destDir, err)
	}

	var dataset schema.DataSet
	if err := p.Catalog.WithSession(func(s *catalog.Session) error {
		var err error
		dataset, err = s.GetDataset(opts.Serial)
		return err
	}); err != nil {
		return err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ingesterr.ErrTransientIO, destDir, err)
	}

	if !dataset.Frames {
		return p.executeFile(ctx, opts, destDir)
	}
	return p.executeFrames(ctx, opts, destDir)
}

func (p *Planner) executeFile(ctx context.Context, opts Options, destDir string) error {
	var file schema.FileGlobal
	if err := p.Catalog.WithSession(func(s *catalog.Session) error {
		var err error
		file, err = s.GetFileGlobal(opts.Serial)
		return err
	}); err != nil {
		return err
	}

	if opts.Metadata {
		if err := writeJSON(filepath.Join(destDir, "global_metadata.json"), file); err != nil {
			return err
		}
	}

	if !opts.Download {
		return nil
	}

	localPath := filepath.Join(destDir, file.FileName)
	if err := p.Pool.DownloadFiles(ctx, p.Backend, []storage.Item{
		{Dir: file.StorageDir, Name: file.FileName, LocalPath: localPath},
	}); err != nil {
		return err
	}

	sha, err := sha256File(localPath)
	if err != nil {
		return err
	}
	if sha != file.SHA256 {
		return fmt.Errorf("%w: downloaded %s has sha256 %s, catalog records %s", ingesterr.ErrInconsistentCatalog, localPath, sha, file.SHA256)
	}
	return nil
}

func (p *Planner) executeFrames(ctx context.Context, opts Options, destDir string) error {
	positions, err := parseIntFilter(opts.Positions)
	if err != nil {
		return err
	}
	times, err := parseIntFilter(opts.Times)
	if err != nil {
		return err
	}
	slices, err := parseIntFilter(opts.Slices)
	if err != nil {
		return err
	}
	channels, err := parseChannelFilter(p.Catalog, opts.Serial, opts.Channels)
	if err != nil {
		return err
	}

	var global schema.FramesGlobal
	var rows []schema.Frames
	if err := p.Catalog.WithSession(func(s *catalog.Session) error {
		var err error
		global, err = s.GetFramesGlobal(opts.Serial)
		if err != nil {
			return err
		}
		rows, err = s.GetFrames(opts.Serial, catalog.Filters{
			Positions: positions,
			Times:     times,
			Channels:  channels,
			Slices:    slices,
		})
		return err
	}); err != nil {
		return err
	}

	if opts.Metadata {
		if err := writeJSON(filepath.Join(destDir, "global_metadata.json"), global); err != nil {
			return err
		}
		if err := writeFramesMetaCSV(filepath.Join(destDir, "frames_meta.csv"), rows); err != nil {
			return err
		}
	}

	if !opts.Download {
		return nil
	}
	return p.downloadPlanes(ctx, global, rows, destDir)
}

func (p *Planner) downloadPlanes(ctx context.Context, global schema.FramesGlobal, rows []schema.Frames, destDir string) error {
	items := make([]storage.Item, len(rows))
	for i, r := range rows {
		items[i] = storage.Item{Dir: global.StorageDir, Name: r.FileName}
	}

	results, err := p.Pool.DownloadPlanes(ctx, p.Backend, items)
	if err != nil {
		return err
	}

	for i, res := range results {
		row := rows[i]
		plane, err := imgcodec.Decode(res.Data)
		if err != nil {
			return fmt.Errorf("%w: decode downloaded plane %s: %v", ingesterr.ErrParse, row.FileName, err)
		}
		if got := imgcodec.SHA256Plane(plane); got != row.SHA256 {
			return fmt.Errorf("%w: plane %s has sha256 %s, catalog records %s", ingesterr.ErrInconsistentCatalog, row.FileName, got, row.SHA256)
		}

		if err := os.WriteFile(filepath.Join(destDir, row.FileName), res.Data, 0o644); err != nil {
			return fmt.Errorf("%w: write %s: %v", ingesterr.ErrTransientIO, row.FileName, err)
		}
	}

	log.ForDataset(filepath.Base(destDir)).Infof("downloaded %d plane(s) to %s", len(rows), destDir)
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("retrieve: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ingesterr.ErrTransientIO, path, err)
	}
	return nil
}

func writeFramesMetaCSV(path string, rows []schema.Frames) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ingesterr.ErrTransientIO, path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"channel_idx", "slice_idx", "time_idx", "pos_idx", "channel_name", "file_name", "sha256"}); err != nil {
		return fmt.Errorf("%w: write %s header: %v", ingesterr.ErrTransientIO, path, err)
	}
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.ChannelIdx), strconv.Itoa(r.SliceIdx), strconv.Itoa(r.TimeIdx), strconv.Itoa(r.PosIdx),
			r.ChannelName, r.FileName, r.SHA256,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("%w: write %s row: %v", ingesterr.ErrTransientIO, path, err)
		}
	}
	return w.Error()
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
