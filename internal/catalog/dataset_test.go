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
)

func TestAssertUniqueIDAndGetDataset(t *testing.T) {
	c := setup(t)

	serial := "ISP-2021-03-15-14-30-00-0001"

	t.Run("unique before insert", func(t *testing.T) {
		err := c.WithSession(func(s *Session) error {
			return s.AssertUniqueID(serial)
		})
		require.NoError(t, err)
	})

	t.Run("insert then conflict", func(t *testing.T) {
		err := c.WithSession(func(s *Session) error {
			_, err := s.insertDataset(NewDatasetParams{
				Serial:     serial,
				DateTime:   "2021-03-15-14-30-00",
				Microscope: "scope-1",
				Frames:     false,
			})
			return err
		})
		require.NoError(t, err)

		err = c.WithSession(func(s *Session) error {
			return s.AssertUniqueID(serial)
		})
		assert.ErrorIs(t, err, ingesterr.ErrDuplicateID)
	})

	t.Run("get dataset round-trips fields", func(t *testing.T) {
		var got = struct {
			Microscope string
		}{}
		err := c.WithSession(func(s *Session) error {
			d, err := s.GetDataset(serial)
			if err != nil {
				return err
			}
			got.Microscope = d.Microscope
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "scope-1", got.Microscope)
	})

	t.Run("not found", func(t *testing.T) {
		err := c.WithSession(func(s *Session) error {
			_, err := s.GetDataset("NOPE-2021-03-15-14-30-00-0001")
			return err
		})
		assert.ErrorIs(t, err, ingesterr.ErrDatasetNotFound)
	})
}

func TestInsertDatasetWithParent(t *testing.T) {
	c := setup(t)

	parent := "ISP-2021-03-15-14-30-00-0001"
	child := "ISP-2021-03-16-09-00-00-0002"

	err := c.WithSession(func(s *Session) error {
		if _, err := s.insertDataset(NewDatasetParams{Serial: parent, DateTime: "2021-03-15-14-30-00"}); err != nil {
			return err
		}
		_, err := s.insertDataset(NewDatasetParams{Serial: child, DateTime: "2021-03-16-09-00-00", ParentSerial: parent})
		return err
	})
	require.NoError(t, err)

	err = c.WithSession(func(s *Session) error {
		d, err := s.GetDataset(child)
		require.NoError(t, err)
		require.NotNil(t, d.ParentID)
		return nil
	})
	require.NoError(t, err)
}

func TestInsertDatasetUnknownParent(t *testing.T) {
	c := setup(t)

	err := c.WithSession(func(s *Session) error {
		_, err := s.insertDataset(NewDatasetParams{
			Serial:       "ISP-2021-03-15-14-30-00-0001",
			DateTime:     "2021-03-15-14-30-00",
			ParentSerial: "GHOST-2021-01-01-00-00-00-0000",
		})
		return err
	})
	assert.ErrorIs(t, err, ingesterr.ErrDatasetNotFound)
}
