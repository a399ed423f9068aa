// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package retrieve

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/czbiohub/imagingdb/internal/catalog"
	"github.com/czbiohub/imagingdb/internal/ingesterr"
)

// parseIntFilter parses one filter cell into an int slice: empty or the
// literal "all" means every value (nil), a JSON list ("[0,1,2]") means
// those values, and a bare integer ("5") means that one value.
func parseIntFilter(cell string) ([]int, error) {
	if cell == "" || cell == "all" {
		return nil, nil
	}
	if cell[0] == '[' {
		var ints []int
		if err := json.Unmarshal([]byte(cell), &ints); err != nil {
			return nil, fmt.Errorf("%w: %q is not a JSON integer list: %v", ingesterr.ErrParse, cell, err)
		}
		return ints, nil
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an integer or integer list", ingesterr.ErrParse, cell)
	}
	return []int{n}, nil
}

// parseChannelFilter resolves a channels filter cell to channel indices.
// The cell may be a JSON integer list, a JSON string list of channel
// names, a bare integer, or a bare channel name. Names are resolved
// against the dataset's actual channel_idx/channel_name rows; a name that
// does not match any row fails with ErrChannelNameNotNumeric, since the
// catalog's only stable channel identity is the numeric index.
func parseChannelFilter(cat *catalog.Catalog, serial, cell string) ([]int, error) {
	if cell == "" || cell == "all" {
		return nil, nil
	}

	if cell[0] == '[' {
		var ints []int
		if err := json.Unmarshal([]byte(cell), &ints); err == nil {
			return ints, nil
		}
		var names []string
		if err := json.Unmarshal([]byte(cell), &names); err != nil {
			return nil, fmt.Errorf("%w: %q is not a JSON integer or string list", ingesterr.ErrParse, cell)
		}
		return resolveChannelNames(cat, serial, names)
	}

	if n, err := strconv.Atoi(cell); err == nil {
		return []int{n}, nil
	}
	return resolveChannelNames(cat, serial, []string{cell})
}

// resolveChannelNames maps channel names to channel_idx via the dataset's
// own rows, since channel_name is informational metadata and channel_idx
// is the only value the catalog indexes on.
func resolveChannelNames(cat *catalog.Catalog, serial string, names []string) ([]int, error) {
	byName := map[string]int{}
	err := cat.WithSession(func(s *catalog.Session) error {
		rows, err := s.GetFrames(serial, catalog.Filters{})
		if err != nil {
			return err
		}
		for _, f := range rows {
			byName[f.ChannelName] = f.ChannelIdx
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]int, 0, len(names))
	for _, name := range names {
		idx, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: channel %q does not match any channel_name in dataset %q", ingesterr.ErrChannelNameNotNumeric, name, serial)
		}
		out = append(out, idx)
	}
	return out, nil
}
