// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import "encoding/json"

// BitDepth is the element type of a decoded plane. Only 8- and 16-bit
// unsigned integers are supported; anything else is unsupported-bit-depth.
type BitDepth string

const (
	BitDepthUint8  BitDepth = "uint8"
	BitDepthUint16 BitDepth = "uint16"
)

// DataSet is the surrogate-keyed root row for one acquisition. It is created
// exactly once, inside the transaction that also writes its FramesGlobal/Frames
// or FileGlobal rows.
type DataSet struct {
	ID            int64   `db:"id" json:"id"`
	DatasetSerial string  `db:"dataset_serial" json:"dataset_serial"`
	DateTime      string  `db:"date_time" json:"date_time"`
	Microscope    string  `db:"microscope" json:"microscope"`
	Description   string  `db:"description" json:"description"`
	Frames        bool    `db:"frames" json:"frames"`
	ParentID      *int64  `db:"parent_id" json:"parent_id,omitempty"`
}

// FramesGlobal is the one-to-one aggregate row for a frames=true DataSet.
type FramesGlobal struct {
	ID             int64  `db:"id" json:"-"`
	DataSetID      int64  `db:"dataset_id" json:"-"`
	StorageDir     string `db:"storage_dir" json:"storage_dir"`
	NbrFrames      int    `db:"nbr_frames" json:"nbr_frames"`
	ImWidth        int    `db:"im_width" json:"im_width"`
	ImHeight       int    `db:"im_height" json:"im_height"`
	ImColors       int    `db:"im_colors" json:"im_colors"`
	BitDepth       string `db:"bit_depth" json:"bit_depth"`
	NbrSlices      int    `db:"nbr_slices" json:"nbr_slices"`
	NbrChannels    int    `db:"nbr_channels" json:"nbr_channels"`
	NbrTimepoints  int    `db:"nbr_timepoints" json:"nbr_timepoints"`
	NbrPositions   int    `db:"nbr_positions" json:"nbr_positions"`
	MetadataJSON   string `db:"metadata_json" json:"-"`

	GlobalMetadata json.RawMessage `db:"-" json:"global_metadata,omitempty"`
}

// Frames is one plane row, many-to-one with a FramesGlobal.
type Frames struct {
	ID             int64  `db:"id" json:"-"`
	FramesGlobalID int64  `db:"frames_global_id" json:"-"`
	ChannelIdx     int    `db:"channel_idx" json:"channel_idx"`
	SliceIdx       int    `db:"slice_idx" json:"slice_idx"`
	TimeIdx        int    `db:"time_idx" json:"time_idx"`
	PosIdx         int    `db:"pos_idx" json:"pos_idx"`
	ChannelName    string `db:"channel_name" json:"channel_name"`
	FileName       string `db:"file_name" json:"file_name"`
	SHA256         string `db:"sha256" json:"sha256"`
	MetadataJSON   string `db:"metadata_json" json:"-"`

	Metadata json.RawMessage `db:"-" json:"metadata,omitempty"`
}

// FileGlobal is the one-to-one aggregate row for a frames=false DataSet.
type FileGlobal struct {
	ID           int64  `db:"id" json:"-"`
	DataSetID    int64  `db:"dataset_id" json:"-"`
	StorageDir   string `db:"storage_dir" json:"storage_dir"`
	FileName     string `db:"file_name" json:"file_name"`
	SHA256       string `db:"sha256" json:"sha256"`
	MetadataJSON string `db:"metadata_json" json:"-"`
}

// PlaneKey identifies a single plane within a FramesGlobal by its four
// dimension indices. Association with metadata is always by this tuple,
// never by upload-completion order.
type PlaneKey struct {
	ChannelIdx int
	SliceIdx   int
	TimeIdx    int
	PosIdx     int
}
