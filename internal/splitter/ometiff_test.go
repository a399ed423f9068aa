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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/czbiohub/imagingdb/internal/storage"
)

func buildOmeTiff(t *testing.T, positionIdx []int) string {
	t.Helper()
	pages := make([][]tiffTag, len(positionIdx))
	pix := make([][]byte, len(positionIdx))
	for i, pos := range positionIdx {
		pix[i] = []byte{byte(i)}
		mm := fmt.Sprintf(`{"ChannelIndex":0,"Slice":0,"FrameIndex":0,"Channel":"DAPI","PositionIndex":%d}`, pos)
		pages[i] = onePageGray8(1, 1, len(pix[i]), asciiTag(TagMicroManagerMetadata, mm))
	}
	raw := buildTIFF(pages)
	raw = patchStripOffsets(raw, pix)
	path := filepath.Join(t.TempDir(), "ome.tif")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestOmeTiffSplitterFiltersByPosition(t *testing.T) {
	path := buildOmeTiff(t, []int{0, 1, 2})
	backend, err := storage.NewFsBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	sp, err := NewOmeTiff(ctx, Source{Backend: backend, StorageDir: "raw_frames/Z", Path: path}, Options{
		Positions: []int{1},
		Pool:      storage.NewPool(2),
	})
	require.NoError(t, err)

	result, err := sp.GetFramesAndMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, 1, result.Rows[0].PosIdx)
	require.Equal(t, "DAPI", result.Rows[0].ChannelName)
}

func TestOmeTiffSplitterNoMatchingPositionsFails(t *testing.T) {
	path := buildOmeTiff(t, []int{0, 1})
	backend, err := storage.NewFsBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	sp, err := NewOmeTiff(ctx, Source{Backend: backend, StorageDir: "raw_frames/Z2", Path: path}, Options{
		Positions: []int{5},
		Pool:      storage.NewPool(1),
	})
	require.NoError(t, err)

	_, err = sp.GetFramesAndMetadata(ctx)
	require.Error(t, err)
}
