// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
)

func TestParseSerial(t *testing.T) {
	t.Run("valid serial", func(t *testing.T) {
		s, err := ParseSerial("ISP-2021-03-15-14-30-00-0001")
		require.NoError(t, err)
		assert.Equal(t, "ISP", s.Prefix)
		assert.Equal(t, "0001", s.Seq)
		assert.Equal(t, time.Date(2021, 3, 15, 14, 30, 0, 0, time.UTC), s.DateTime)
	})

	t.Run("two letter prefix", func(t *testing.T) {
		_, err := ParseSerial("AB-2021-03-15-14-30-00-0001")
		require.NoError(t, err)
	})

	t.Run("four character alnum prefix", func(t *testing.T) {
		_, err := ParseSerial("A1B2-2021-03-15-14-30-00-0001")
		require.NoError(t, err)
	})

	for _, bad := range []string{
		"",
		"ISP-2021-03-15-14-30-00-1",
		"ISP_2021-03-15-14-30-00-0001",
		"isp-2021-03-15-14-30-00-0001",
		"TOOLONG-2021-03-15-14-30-00-0001",
		"ISP-2021-13-15-14-30-00-0001",
	} {
		t.Run(bad, func(t *testing.T) {
			_, err := ParseSerial(bad)
			assert.ErrorIs(t, err, ingesterr.ErrInvalidID)
		})
	}
}
