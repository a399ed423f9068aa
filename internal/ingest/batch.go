// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ingest drives a batch descriptor of rows through the
// splitter/storage/catalog pipeline: validate, split-and-upload, insert.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/czbiohub/imagingdb/internal/config"
	"github.com/czbiohub/imagingdb/internal/ingesterr"
)

// LoadBatch reads the ingestion batch descriptor CSV (§6): one header row
// naming a subset of {dataset_id, file_name, description, parent_dataset_id,
// positions, schema_filename}, followed by one data row per dataset.
func LoadBatch(path string) ([]config.BatchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open batch file %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: read batch header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["dataset_id"]; !ok {
		return nil, fmt.Errorf("ingest: batch file missing required column dataset_id")
	}
	if _, ok := col["file_name"]; !ok {
		return nil, fmt.Errorf("ingest: batch file missing required column file_name")
	}

	get := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var rows []config.BatchRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read batch row: %w", err)
		}
		rows = append(rows, config.BatchRow{
			DatasetID:       get(record, "dataset_id"),
			FileName:        get(record, "file_name"),
			Description:     get(record, "description"),
			ParentDatasetID: get(record, "parent_dataset_id"),
			Positions:       get(record, "positions"),
			SchemaFilename:  get(record, "schema_filename"),
		})
	}
	return rows, nil
}

// ParsePositions interprets a batch row's positions cell: empty means "all"
// (nil), the literal "all" also means "all", and anything else must be a
// JSON list of integers or a bare integer (returned as a one-element list).
func ParsePositions(cell string) ([]int, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "all") {
		return nil, nil
	}
	if strings.HasPrefix(cell, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(cell), &ints); err != nil {
			return nil, fmt.Errorf("%w: positions %q is not a JSON list of integers: %v", ingesterr.ErrParse, cell, err)
		}
		return ints, nil
	}

	n, err := strconv.Atoi(cell)
	if err != nil {
		return nil, fmt.Errorf("%w: positions %q is neither \"all\" nor a JSON list nor an integer", ingesterr.ErrParse, cell)
	}
	return []int{n}, nil
}
