// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package splitter

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/internal/splitter/tifftag"
	"github.com/czbiohub/imagingdb/internal/storage"
	"github.com/czbiohub/imagingdb/pkg/imgcodec"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

// TifIDSplitter reads a single multi-page TIFF whose first page carries an
// ImageJ-style key=value ImageDescription (images/channels/slices). Page
// order is slice-fastest, then channel, then time; positions are always 1.
type TifIDSplitter struct {
	src  Source
	opts Options
}

// NewTifID constructs a tif_id splitter, asserting storage uniqueness
// unless opts.Overwrite.
func NewTifID(ctx context.Context, src Source, opts Options) (*TifIDSplitter, error) {
	if !opts.Overwrite {
		if err := src.Backend.AssertUnique(ctx, src.StorageDir); err != nil {
			return nil, err
		}
	}
	return &TifIDSplitter{src: src, opts: opts}, nil
}

func (s *TifIDSplitter) GetFramesAndMetadata(ctx context.Context) (Result, error) {
	raw, err := os.ReadFile(s.src.Path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s: %v", ingesterr.ErrTransientIO, s.src.Path, err)
	}

	f, err := tifftag.Parse(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ingesterr.ErrParse, err)
	}

	desc, ok := f.ImageDescription(0)
	if !ok {
		return Result{}, fmt.Errorf("%w: first page has no ImageDescription", ingesterr.ErrParse)
	}
	props := parseImageJDescription(desc)

	images, err := intProp(props, "images")
	if err != nil {
		return Result{}, err
	}
	channels, err := intProp(props, "channels")
	if err != nil {
		return Result{}, err
	}
	slices, err := intProp(props, "slices")
	if err != nil {
		return Result{}, err
	}
	if channels <= 0 || slices <= 0 || images%(channels*slices) != 0 {
		return Result{}, fmt.Errorf("%w: images=%d not divisible by channels*slices=%d", ingesterr.ErrParse, images, channels*slices)
	}
	timepoints := images / (channels * slices)

	if len(f.Pages) < images {
		return Result{}, fmt.Errorf("%w: description declares %d images but file has %d pages", ingesterr.ErrParse, images, len(f.Pages))
	}

	var rows []schema.Frames
	var items []storage.Item
	var bitDepth schema.BitDepth
	var width, height, colors int

	for t := 0; t < timepoints; t++ {
		for c := 0; c < channels; c++ {
			for z := 0; z < slices; z++ {
				pageIdx := t*channels*slices + c*slices + z
				plane, err := f.DecodePlane(pageIdx)
				if err != nil {
					return Result{}, fmt.Errorf("%w: page %d: %v", ingesterr.ErrParse, pageIdx, err)
				}
				if bitDepth == "" {
					bitDepth, width, height, colors = plane.BitDepth, plane.Width, plane.Height, plane.Colors
				}

				name := imageName(c, z, t, 0)
				enc, err := imgcodec.Encode(plane, imgcodec.PNG)
				if err != nil {
					return Result{}, err
				}
				sha := imgcodec.SHA256Plane(plane)

				rows = append(rows, schema.Frames{
					ChannelIdx:  c,
					SliceIdx:    z,
					TimeIdx:     t,
					PosIdx:      0,
					ChannelName: strconv.Itoa(c),
					FileName:    name,
					SHA256:      sha,
				})
				items = append(items, storage.Item{Dir: s.src.StorageDir, Name: name, Data: enc})
			}
		}
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

// parseImageJDescription parses the ImageJ "key=value\n..." ImageDescription
// blob into a flat map; unrecognized keys are kept but ignored by callers.
func parseImageJDescription(desc string) map[string]string {
	props := map[string]string{}
	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return props
}

func intProp(props map[string]string, key string) (int, error) {
	v, ok := props[key]
	if !ok {
		return 0, fmt.Errorf("%w: ImageDescription missing %q", ingesterr.ErrParse, key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: ImageDescription %q=%q is not numeric", ingesterr.ErrParse, key, v)
	}
	return n, nil
}
