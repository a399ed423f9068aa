// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package filenameparsers extracts (channel_name, slice_idx, time_idx,
// pos_idx) from the conventional source filenames the tiff-folder splitter
// encounters. Each parser is a pure function over one filename alone; it
// neither takes nor returns an Accumulator. The caller carries the
// Accumulator across the whole dataset and adds each parsed channel name.
package filenameparsers

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
)

// Parsed holds the indices and channel name extracted from one filename.
// It carries no channel index: callers resolve one from Accumulator only after
// every filename in the dataset has been parsed, so that channel indices are
// assigned in stable alphabetical order regardless of file iteration order.
type Parsed struct {
	ChannelName string
	SliceIdx    int
	TimeIdx     int
	PosIdx      int
}

// Accumulator is the list of distinct channel names observed so far, in
// first-seen order. The coordinator/splitter owns one per dataset.
type Accumulator []string

// Add appends name if it is not already present and returns the updated
// accumulator.
func (a Accumulator) Add(name string) Accumulator {
	for _, n := range a {
		if n == name {
			return a
		}
	}
	return append(a, name)
}

// ChannelIndex builds a name->channel_idx map by sorting the accumulator
// alphabetically. This must only be called once the accumulator has seen
// every filename in the dataset.
func (a Accumulator) ChannelIndex() map[string]int {
	sorted := append(Accumulator(nil), a...)
	sort.Strings(sorted)
	idx := make(map[string]int, len(sorted))
	for i, name := range sorted {
		idx[name] = i
	}
	return idx
}

// Parser is a named filename parser from the C4 registry.
type Parser func(filename string) (Parsed, error)

var registry = map[string]Parser{
	"parse_sms_name":      ParseSMSName,
	"parse_idx_from_name": ParseIdxFromName,
}

// Lookup resolves a parser by its config-file name.
func Lookup(name string) (Parser, error) {
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown filename_parser %q", ingesterr.ErrParse, name)
	}
	return p, nil
}

var smsNameRE = regexp.MustCompile(`img_(.+)_t(\d+)_p(\d+)_z(\d+)\.tif$`)

// ParseSMSName parses "img_<channel>_t<TTT>_p<PPP>_z<ZZZ>.tif". The channel
// token may itself contain underscores.
func ParseSMSName(filename string) (Parsed, error) {
	m := smsNameRE.FindStringSubmatch(filename)
	if m == nil {
		return Parsed{}, fmt.Errorf("%w: filename %q does not match img_<channel>_t<T>_p<P>_z<Z>.tif", ingesterr.ErrParse, filename)
	}

	t, err := strconv.Atoi(m[2])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: non-numeric time index in %q", ingesterr.ErrParse, filename)
	}
	p, err := strconv.Atoi(m[3])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: non-numeric position index in %q", ingesterr.ErrParse, filename)
	}
	z, err := strconv.Atoi(m[4])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: non-numeric slice index in %q", ingesterr.ErrParse, filename)
	}

	return Parsed{ChannelName: m[1], SliceIdx: z, TimeIdx: t, PosIdx: p}, nil
}

var idxNameRE = regexp.MustCompile(`im_c(\d+)_z(\d+)_t(\d+)_p(\d+)\.\w+$`)

// ParseIdxFromName parses "im_c<CCC>_z<ZZZ>_t<TTT>_p<PPP>.<ext>". The
// channel name is the decimal CCC token itself, unmodified.
func ParseIdxFromName(filename string) (Parsed, error) {
	m := idxNameRE.FindStringSubmatch(filename)
	if m == nil {
		return Parsed{}, fmt.Errorf("%w: filename %q does not match im_c<C>_z<Z>_t<T>_p<P>.<ext>", ingesterr.ErrParse, filename)
	}

	z, err := strconv.Atoi(m[2])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: non-numeric slice index in %q", ingesterr.ErrParse, filename)
	}
	t, err := strconv.Atoi(m[3])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: non-numeric time index in %q", ingesterr.ErrParse, filename)
	}
	p, err := strconv.Atoi(m[4])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: non-numeric position index in %q", ingesterr.ErrParse, filename)
	}

	return Parsed{ChannelName: m[1], SliceIdx: z, TimeIdx: t, PosIdx: p}, nil
}
