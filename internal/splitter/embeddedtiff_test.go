// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package splitter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/czbiohub/imagingdb/internal/storage"
)

// buildTifID assembles a 6-page embedded-description TIFF matching the
// scenario of channels=2, slices=3, images=6, each page a distinct 2x2
// 8-bit plane so the decoded pixel identifies its page.
func buildTifID(t *testing.T) string {
	t.Helper()
	const n = 6
	pages := make([][]tiffTag, n)
	pix := make([][]byte, n)
	for i := 0; i < n; i++ {
		pix[i] = []byte{byte(i), byte(i), byte(i), byte(i)}
		extra := []tiffTag{}
		if i == 0 {
			extra = append(extra, asciiTag(TagImageDescription, "images=6\nchannels=2\nslices=3\n"))
		}
		pages[i] = onePageGray8(2, 2, len(pix[i]), extra...)
	}

	raw := buildTIFF(pages)
	raw = patchStripOffsets(raw, pix)

	path := filepath.Join(t.TempDir(), "stack.tif")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestTifIDSplitterPageOrder(t *testing.T) {
	path := buildTifID(t)
	dir := t.TempDir()
	backend, err := storage.NewFsBackend(dir)
	require.NoError(t, err)

	ctx := context.Background()
	src := Source{Backend: backend, StorageDir: "raw_frames/X", Path: path}
	opts := Options{Pool: storage.NewPool(2)}

	sp, err := NewTifID(ctx, src, opts)
	require.NoError(t, err)

	result, err := sp.GetFramesAndMetadata(ctx)
	require.NoError(t, err)

	require.Len(t, result.Rows, 6)
	require.Equal(t, 2, result.Global.NbrChannels)
	require.Equal(t, 3, result.Global.NbrSlices)
	require.Equal(t, 1, result.Global.NbrTimepoints)
	require.Equal(t, 1, result.Global.NbrPositions)
	require.Equal(t, 2, result.Global.ImWidth)
	require.Equal(t, 2, result.Global.ImHeight)

	// Page order is slice-fastest, then channel, then time: page index =
	// t*channels*slices + c*slices + z. Page 0 is (c=0,z=0,t=0); page 3 is
	// (c=1,z=0,t=0).
	byPage := map[int][4]int{}
	for _, r := range result.Rows {
		pageIdx := r.TimeIdx*2*3 + r.ChannelIdx*3 + r.SliceIdx
		byPage[pageIdx] = [4]int{r.ChannelIdx, r.SliceIdx, r.TimeIdx, r.PosIdx}
	}
	require.Equal(t, [4]int{0, 0, 0, 0}, byPage[0])
	require.Equal(t, [4]int{1, 0, 0, 0}, byPage[3])

	for _, name := range []string{"im_c000_z000_t000_p000.png", "im_c001_z000_t000_p000.png"} {
		_, err := os.Stat(filepath.Join(dir, "raw_frames/X", name))
		require.NoError(t, err)
	}
}

func TestTifIDSplitterRejectsMismatchedCounts(t *testing.T) {
	pages := [][]tiffTag{
		onePageGray8(2, 2, 4, asciiTag(TagImageDescription, "images=6\nchannels=2\nslices=4\n")),
	}
	raw := buildTIFF(pages)
	raw = patchStripOffsets(raw, [][]byte{{1, 2, 3, 4}})

	path := filepath.Join(t.TempDir(), "bad.tif")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	backend, err := storage.NewFsBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	sp, err := NewTifID(ctx, Source{Backend: backend, StorageDir: "d", Path: path}, Options{Pool: storage.NewPool(1)})
	require.NoError(t, err)

	_, err = sp.GetFramesAndMetadata(ctx)
	require.Error(t, err)
}
