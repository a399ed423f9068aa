// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/pkg/schema"
)

func sampleFramesGlobal(storageDir string) schema.FramesGlobal {
	return schema.FramesGlobal{
		StorageDir:    storageDir,
		NbrFrames:     4,
		ImWidth:       15,
		ImHeight:      10,
		ImColors:      1,
		BitDepth:      "uint16",
		NbrSlices:     2,
		NbrChannels:   2,
		NbrTimepoints: 1,
		NbrPositions:  1,
	}
}

func sampleFramesRows() []schema.Frames {
	var rows []schema.Frames
	for c := 0; c < 2; c++ {
		for z := 0; z < 2; z++ {
			rows = append(rows, schema.Frames{
				ChannelIdx:  c,
				SliceIdx:    z,
				TimeIdx:     0,
				PosIdx:      0,
				ChannelName: "ch",
				FileName:    "im_c000_z000_t000_p000.png",
				SHA256:      "deadbeef",
			})
		}
	}
	return rows
}

func TestInsertAndGetFrames(t *testing.T) {
	c := setup(t)
	serial := "ISP-2021-03-15-14-30-00-0001"

	err := c.WithSession(func(s *Session) error {
		return s.InsertFrames(InsertFramesParams{
			Dataset: NewDatasetParams{Serial: serial, DateTime: "2021-03-15-14-30-00"},
			Global:  sampleFramesGlobal("raw_frames/" + serial),
			Rows:    sampleFramesRows(),
		})
	})
	require.NoError(t, err)

	t.Run("get frames_global", func(t *testing.T) {
		err := c.WithSession(func(s *Session) error {
			g, err := s.GetFramesGlobal(serial)
			require.NoError(t, err)
			assert.Equal(t, 4, g.NbrFrames)
			assert.Equal(t, 2, g.NbrChannels)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("get all frames", func(t *testing.T) {
		err := c.WithSession(func(s *Session) error {
			rows, err := s.GetFrames(serial, Filters{})
			require.NoError(t, err)
			assert.Len(t, rows, 4)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("filter by channel", func(t *testing.T) {
		err := c.WithSession(func(s *Session) error {
			rows, err := s.GetFrames(serial, Filters{Channels: []int{1}})
			require.NoError(t, err)
			require.Len(t, rows, 2)
			for _, r := range rows {
				assert.Equal(t, 1, r.ChannelIdx)
			}
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("filter by unknown dataset", func(t *testing.T) {
		err := c.WithSession(func(s *Session) error {
			_, err := s.GetFrames("NOPE-2021-03-15-14-30-00-0001", Filters{})
			return err
		})
		assert.ErrorIs(t, err, ingesterr.ErrDatasetNotFound)
	})
}

func TestInsertFramesRejectsCountMismatch(t *testing.T) {
	c := setup(t)

	global := sampleFramesGlobal("raw_frames/x")
	global.NbrFrames = 99

	err := c.WithSession(func(s *Session) error {
		return s.InsertFrames(InsertFramesParams{
			Dataset: NewDatasetParams{Serial: "ISP-2021-03-15-14-30-00-0001", DateTime: "2021-03-15-14-30-00"},
			Global:  global,
			Rows:    sampleFramesRows(),
		})
	})
	assert.ErrorIs(t, err, ingesterr.ErrInconsistentCatalog)
}

func TestInsertFramesRejectsOutOfRangeIndex(t *testing.T) {
	c := setup(t)

	global := sampleFramesGlobal("raw_frames/x")
	global.NbrFrames = 1
	rows := []schema.Frames{{ChannelIdx: 5, SliceIdx: 0, TimeIdx: 0, PosIdx: 0, ChannelName: "ch", FileName: "f.png", SHA256: "x"}}

	err := c.WithSession(func(s *Session) error {
		return s.InsertFrames(InsertFramesParams{
			Dataset: NewDatasetParams{Serial: "ISP-2021-03-15-14-30-00-0002", DateTime: "2021-03-15-14-30-00"},
			Global:  global,
			Rows:    rows,
		})
	})
	assert.ErrorIs(t, err, ingesterr.ErrInconsistentCatalog)
}

func TestInsertFramesOverwrite(t *testing.T) {
	c := setup(t)
	serial := "ISP-2021-03-15-14-30-00-0001"

	insert := func() error {
		return c.WithSession(func(s *Session) error {
			return s.InsertFrames(InsertFramesParams{
				Dataset:   NewDatasetParams{Serial: serial, DateTime: "2021-03-15-14-30-00"},
				Global:    sampleFramesGlobal("raw_frames/" + serial),
				Rows:      sampleFramesRows(),
				Overwrite: true,
			})
		})
	}

	require.NoError(t, insert())
	require.NoError(t, insert())

	err := c.WithSession(func(s *Session) error {
		var n int
		if err := s.tx.Get(&n, `SELECT COUNT(*) FROM dataset WHERE dataset_serial = ?`, serial); err != nil {
			return err
		}
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}
