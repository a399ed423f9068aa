// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package splitter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/internal/storage"
	"github.com/czbiohub/imagingdb/pkg/imgcodec"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

// VendorAdapter presents a proprietary container (e.g. Leica .lif) as an
// indexed series of planes. No pure-Go .lif reader exists in the corpus or
// the wider ecosystem with a stable API, so this is an adapter interface a
// caller plugs a concrete reader into; LifSplitter drives it generically.
type VendorAdapter interface {
	// NumPlanes reports how many planes the container holds.
	NumPlanes() (int, error)
	// PlaneAt decodes plane i and reports its dimension indices.
	PlaneAt(i int) (*imgcodec.Plane, PlaneIndices, error)
	// Fields best-effort enumerates whatever variable metadata the
	// container exposes for plane i.
	Fields(i int) (map[string]interface{}, error)
}

// PlaneIndices is the (channel, slice, time, position) tuple a vendor
// adapter reports for one plane.
type PlaneIndices struct {
	ChannelIdx  int
	ChannelName string
	SliceIdx    int
	TimeIdx     int
	PosIdx      int
}

// LifSplitter drives a VendorAdapter the same way the other variants drive
// a file or directory: decode, hash, encode, upload, assemble rows.
type LifSplitter struct {
	src     Source
	opts    Options
	adapter VendorAdapter
}

// NewLif constructs a vendor-container splitter around adapter, asserting
// storage uniqueness unless opts.Overwrite.
func NewLif(ctx context.Context, src Source, opts Options, adapter VendorAdapter) (*LifSplitter, error) {
	if adapter == nil {
		return nil, fmt.Errorf("splitter: lif requires a VendorAdapter")
	}
	if !opts.Overwrite {
		if err := src.Backend.AssertUnique(ctx, src.StorageDir); err != nil {
			return nil, err
		}
	}
	return &LifSplitter{src: src, opts: opts, adapter: adapter}, nil
}

func (s *LifSplitter) GetFramesAndMetadata(ctx context.Context) (Result, error) {
	n, err := s.adapter.NumPlanes()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ingesterr.ErrParse, err)
	}

	var rows []schema.Frames
	var items []storage.Item
	var bitDepth schema.BitDepth
	var width, height, colors int

	for i := 0; i < n; i++ {
		plane, idx, err := s.adapter.PlaneAt(i)
		if err != nil {
			return Result{}, fmt.Errorf("%w: plane %d: %v", ingesterr.ErrParse, i, err)
		}
		if bitDepth == "" {
			bitDepth, width, height, colors = plane.BitDepth, plane.Width, plane.Height, plane.Colors
		}

		var meta []byte
		if fields, err := s.adapter.Fields(i); err == nil && len(fields) > 0 {
			meta, _ = marshalFields(fields)
		}

		channelName := idx.ChannelName
		if channelName == "" {
			channelName = fmt.Sprintf("%d", idx.ChannelIdx)
		}

		name := imageName(idx.ChannelIdx, idx.SliceIdx, idx.TimeIdx, idx.PosIdx)
		enc, err := imgcodec.Encode(plane, imgcodec.PNG)
		if err != nil {
			return Result{}, err
		}
		sha := imgcodec.SHA256Plane(plane)

		rows = append(rows, schema.Frames{
			ChannelIdx:  idx.ChannelIdx,
			SliceIdx:    idx.SliceIdx,
			TimeIdx:     idx.TimeIdx,
			PosIdx:      idx.PosIdx,
			ChannelName: channelName,
			FileName:    name,
			SHA256:      sha,
			Metadata:    meta,
		})
		items = append(items, storage.Item{Dir: s.src.StorageDir, Name: name, Data: enc})
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

func marshalFields(fields map[string]interface{}) ([]byte, error) {
	return json.Marshal(fields)
}
