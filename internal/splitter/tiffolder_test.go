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

func writeSinglePageTiff(t *testing.T, path string, pix []byte) {
	t.Helper()
	pages := [][]tiffTag{onePageGray8(2, 1, len(pix))}
	raw := buildTIFF(pages)
	raw = patchStripOffsets(raw, [][]byte{pix})
	require.NoError(t, os.WriteFile(path, raw, 0o644))
}

// TestTifFolderSplitterAlphabeticalChannels exercises scenario 2 of the
// testable-properties section: channels named {phase, brightfield, 666},
// assigned indices in alphabetical order.
func TestTifFolderSplitterAlphabeticalChannels(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"img_phase_t000_p050_z000.tif",
		"img_brightfield_t000_p050_z000.tif",
		"img_666_t000_p050_z001.tif",
	}
	for i, name := range names {
		writeSinglePageTiff(t, filepath.Join(dir, name), []byte{byte(i), byte(i)})
	}

	backend, err := storage.NewFsBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	src := Source{Backend: backend, StorageDir: "raw_frames/Y", Path: dir}
	opts := Options{FilenameParser: "parse_sms_name", Pool: storage.NewPool(2)}

	sp, err := NewTifFolder(ctx, src, opts)
	require.NoError(t, err)

	result, err := sp.GetFramesAndMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	require.Equal(t, 3, result.Global.NbrChannels)

	byName := map[string]int{}
	for _, r := range result.Rows {
		byName[r.ChannelName] = r.ChannelIdx
	}
	require.Equal(t, 0, byName["666"])
	require.Equal(t, 1, byName["brightfield"])
	require.Equal(t, 2, byName["phase"])

	for _, r := range result.Rows {
		require.Equal(t, 50, r.PosIdx)
		require.Equal(t, 0, r.TimeIdx)
	}
}

func TestTifFolderSplitterNoFilesFails(t *testing.T) {
	dir := t.TempDir()
	backend, err := storage.NewFsBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	sp, err := NewTifFolder(ctx, Source{Backend: backend, StorageDir: "d", Path: dir}, Options{FilenameParser: "parse_sms_name", Pool: storage.NewPool(1)})
	require.NoError(t, err)
	_, err = sp.GetFramesAndMetadata(ctx)
	require.Error(t, err)
}

func TestTifFolderSplitterUnknownParserFails(t *testing.T) {
	backend, err := storage.NewFsBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	_, err = NewTifFolder(ctx, Source{Backend: backend, StorageDir: "d", Path: t.TempDir()}, Options{FilenameParser: "nope", Pool: storage.NewPool(1)})
	require.Error(t, err)
}
