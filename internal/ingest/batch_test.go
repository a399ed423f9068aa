// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.csv")
	csv := "dataset_id,file_name,description,parent_dataset_id,positions,schema_filename\n" +
		"AB-2026-01-02-03-04-05-0001,/data/a.tif,first run,,all,\n" +
		"AB-2026-01-02-03-04-05-0002,/data/b,second run,AB-2026-01-02-03-04-05-0001,\"[0,1]\",/schemas/s.json\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	rows, err := LoadBatch(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "AB-2026-01-02-03-04-05-0001", rows[0].DatasetID)
	require.Equal(t, "/data/a.tif", rows[0].FileName)
	require.Equal(t, "first run", rows[0].Description)
	require.Equal(t, "", rows[0].ParentDatasetID)
	require.Equal(t, "all", rows[0].Positions)

	require.Equal(t, "AB-2026-01-02-03-04-05-0001", rows[1].ParentDatasetID)
	require.Equal(t, "[0,1]", rows[1].Positions)
	require.Equal(t, "/schemas/s.json", rows[1].SchemaFilename)
}

func TestLoadBatchMissingRequiredColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.csv")
	require.NoError(t, os.WriteFile(path, []byte("file_name\n/data/a.tif\n"), 0o644))

	_, err := LoadBatch(path)
	require.Error(t, err)
}

func TestParsePositions(t *testing.T) {
	cases := []struct {
		name    string
		cell    string
		want    []int
		wantErr bool
	}{
		{"empty means all", "", nil, false},
		{"literal all", "all", nil, false},
		{"list", "[0,1,2]", []int{0, 1, 2}, false},
		{"single int", "5", []int{5}, false},
		{"garbage", "not-a-list", nil, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParsePositions(c.cell)
			if c.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}
