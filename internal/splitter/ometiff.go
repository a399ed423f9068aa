// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package splitter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/internal/splitter/tifftag"
	"github.com/czbiohub/imagingdb/internal/storage"
	"github.com/czbiohub/imagingdb/pkg/imgcodec"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

// OmeTiffSplitter reads the single multi-page container at src.Path, whose
// pages may belong to any number of positions; each page carries a
// MicroManagerMetadata tag (JSON) with the plane's dimension indices.
// opts.Positions, if set, restricts ingestion to those PositionIndex values.
// It does not read one file per position from a directory, and it does not
// decode IJMetadata.InitialPositionList, so positions are never matched by
// label.
type OmeTiffSplitter struct {
	src  Source
	opts Options
}

// micromanagerMeta is the subset of MicroManagerMetadata this splitter reads.
type micromanagerMeta struct {
	ChannelIndex  int    `json:"ChannelIndex"`
	Slice         int    `json:"Slice"`
	FrameIndex    int    `json:"FrameIndex"`
	Channel       string `json:"Channel"`
	PositionIndex int    `json:"PositionIndex"`
}

// NewOmeTiff constructs an ome-tiff splitter, asserting storage uniqueness
// unless opts.Overwrite.
func NewOmeTiff(ctx context.Context, src Source, opts Options) (*OmeTiffSplitter, error) {
	if !opts.Overwrite {
		if err := src.Backend.AssertUnique(ctx, src.StorageDir); err != nil {
			return nil, err
		}
	}
	return &OmeTiffSplitter{src: src, opts: opts}, nil
}

func (s *OmeTiffSplitter) GetFramesAndMetadata(ctx context.Context) (Result, error) {
	raw, err := os.ReadFile(s.src.Path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s: %v", ingesterr.ErrTransientIO, s.src.Path, err)
	}

	f, err := tifftag.Parse(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ingesterr.ErrParse, err)
	}

	wanted := map[int]bool{}
	for _, p := range s.opts.Positions {
		wanted[p] = true
	}

	var rows []schema.Frames
	var items []storage.Item
	var bitDepth schema.BitDepth
	var width, height, colors int

	for i, page := range f.Pages {
		entry, ok := page.Get(tifftag.TagMicroManagerMetadata)
		if !ok {
			return Result{}, fmt.Errorf("%w: page %d has no MicroManagerMetadata tag", ingesterr.ErrParse, i)
		}

		metaJSON := []byte(entry.ASCIIString())
		var mm micromanagerMeta
		if err := json.Unmarshal(metaJSON, &mm); err != nil {
			return Result{}, fmt.Errorf("%w: page %d MicroManagerMetadata: %v", ingesterr.ErrParse, i, err)
		}

		if len(wanted) > 0 && !wanted[mm.PositionIndex] {
			continue
		}

		if s.opts.SchemaFilename != "" {
			if err := schema.ValidateRawAgainstFile(s.opts.SchemaFilename, metaJSON); err != nil {
				return Result{}, fmt.Errorf("%w: page %d: %v", ingesterr.ErrSchemaViolation, i, err)
			}
		}

		plane, err := f.DecodePlane(i)
		if err != nil {
			return Result{}, fmt.Errorf("%w: page %d: %v", ingesterr.ErrParse, i, err)
		}
		if bitDepth == "" {
			bitDepth, width, height, colors = plane.BitDepth, plane.Width, plane.Height, plane.Colors
		}

		channelName := mm.Channel
		if channelName == "" {
			channelName = fmt.Sprintf("%d", mm.ChannelIndex)
		}

		name := imageName(mm.ChannelIndex, mm.Slice, mm.FrameIndex, mm.PositionIndex)
		enc, err := imgcodec.Encode(plane, imgcodec.PNG)
		if err != nil {
			return Result{}, err
		}
		sha := imgcodec.SHA256Plane(plane)

		rows = append(rows, schema.Frames{
			ChannelIdx:  mm.ChannelIndex,
			SliceIdx:    mm.Slice,
			TimeIdx:     mm.FrameIndex,
			PosIdx:      mm.PositionIndex,
			ChannelName: channelName,
			FileName:    name,
			SHA256:      sha,
			Metadata:    metaJSON,
		})
		items = append(items, storage.Item{Dir: s.src.StorageDir, Name: name, Data: enc})
	}

	if len(rows) == 0 {
		return Result{}, fmt.Errorf("%w: no pages matched the requested positions", ingesterr.ErrParse)
	}

	if err := s.opts.Pool.UploadPlanes(ctx, s.src.Backend, items); err != nil {
		return Result{}, err
	}

	global, err := setGlobalMeta(s.src.StorageDir, width, height, colors, bitDepth, rows)
	if err != nil {
		return Result{}, err
	}
	return Result{Global: global, Rows: rows}, nil
}
