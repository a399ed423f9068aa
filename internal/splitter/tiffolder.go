// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package splitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/internal/splitter/filenameparsers"
	"github.com/czbiohub/imagingdb/internal/splitter/tifftag"
	"github.com/czbiohub/imagingdb/internal/storage"
	"github.com/czbiohub/imagingdb/pkg/imgcodec"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

// TifFolderSplitter reads a directory of per-plane TIFFs whose names are
// parsed by a named filenameparsers.Parser, with an optional sidecar
// metadata.txt supplying global fields when present.
type TifFolderSplitter struct {
	src    Source
	opts   Options
	parser filenameparsers.Parser
}

// NewTifFolder constructs a tif_folder splitter, asserting storage
// uniqueness unless opts.Overwrite.
func NewTifFolder(ctx context.Context, src Source, opts Options) (*TifFolderSplitter, error) {
	if !opts.Overwrite {
		if err := src.Backend.AssertUnique(ctx, src.StorageDir); err != nil {
			return nil, err
		}
	}
	parser, err := filenameparsers.Lookup(opts.FilenameParser)
	if err != nil {
		return nil, err
	}
	return &TifFolderSplitter{src: src, opts: opts, parser: parser}, nil
}

// sidecarMeta is the optional metadata.txt global-field override.
type sidecarMeta struct {
	Width, Height, BitDepth int
	PixelType               string
}

func (s *TifFolderSplitter) GetFramesAndMetadata(ctx context.Context) (Result, error) {
	entries, err := os.ReadDir(s.src.Path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s: %v", ingesterr.ErrTransientIO, s.src.Path, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".tif" || ext == ".tiff" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return Result{}, fmt.Errorf("%w: no tiff files found in %s", ingesterr.ErrParse, s.src.Path)
	}

	type parsed struct {
		name string
		p    filenameparsers.Parsed
	}
	var acc filenameparsers.Accumulator
	var all []parsed
	for _, name := range names {
		p, err := s.parser(name)
		if err != nil {
			return Result{}, err
		}
		acc = acc.Add(p.ChannelName)
		all = append(all, parsed{name: name, p: p})
	}
	channelIdx := acc.ChannelIndex()

	sidecar, hasSidecar := readSidecar(filepath.Join(s.src.Path, "metadata.txt"))

	var rows []schema.Frames
	var items []storage.Item
	var bitDepth schema.BitDepth
	var width, height, colors int

	for _, e := range all {
		raw, err := os.ReadFile(filepath.Join(s.src.Path, e.name))
		if err != nil {
			return Result{}, fmt.Errorf("%w: read %s: %v", ingesterr.ErrTransientIO, e.name, err)
		}
		f, err := tifftag.Parse(raw)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %s: %v", ingesterr.ErrParse, e.name, err)
		}
		plane, err := f.DecodePlane(0)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %s: %v", ingesterr.ErrParse, e.name, err)
		}
		if bitDepth == "" {
			bitDepth, width, height, colors = plane.BitDepth, plane.Width, plane.Height, plane.Colors
			if hasSidecar {
				width, height = sidecar.Width, sidecar.Height
			}
		}

		c := channelIdx[e.p.ChannelName]
		name := imageName(c, e.p.SliceIdx, e.p.TimeIdx, e.p.PosIdx)
		enc, err := imgcodec.Encode(plane, imgcodec.PNG)
		if err != nil {
			return Result{}, err
		}
		sha := imgcodec.SHA256Plane(plane)

		rows = append(rows, schema.Frames{
			ChannelIdx:  c,
			SliceIdx:    e.p.SliceIdx,
			TimeIdx:     e.p.TimeIdx,
			PosIdx:      e.p.PosIdx,
			ChannelName: e.p.ChannelName,
			FileName:    name,
			SHA256:      sha,
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

// readSidecar parses the optional "Width: N" / "Height: N" / "BitDepth: N"
// / "PixelType: ..." key: value lines of metadata.txt.
func readSidecar(path string) (sidecarMeta, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sidecarMeta{}, false
	}

	var m sidecarMeta
	for _, line := range strings.Split(string(raw), "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		switch strings.ToLower(k) {
		case "width":
			m.Width, _ = strconv.Atoi(v)
		case "height":
			m.Height, _ = strconv.Atoi(v)
		case "bitdepth":
			m.BitDepth, _ = strconv.Atoi(v)
		case "pixeltype":
			m.PixelType = v
		}
	}
	return m, true
}
