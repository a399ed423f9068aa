// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package storage is the uniform put/get/list abstraction over an
// object-store or a mounted-filesystem target, with worker-pool parallel
// transfer. Backends never interpret the bytes they move: encoding/decoding
// is entirely the caller's (splitter/retrieve planner) concern.
package storage

import "context"

// Backend is the capability set every storage variant implements.
type Backend interface {
	// AssertUnique fails if dir already holds any object/file.
	AssertUnique(ctx context.Context, dir string) error

	// PutPlane writes encoded plane bytes at dir/name.
	PutPlane(ctx context.Context, dir, name string, data []byte) error

	// PutFile uploads the local file at localPath to dir/name without
	// decoding its contents.
	PutFile(ctx context.Context, dir, name, localPath string) error

	// GetPlane reads back the encoded bytes at dir/name.
	GetPlane(ctx context.Context, dir, name string) ([]byte, error)

	// GetFile downloads dir/name to localPath.
	GetFile(ctx context.Context, dir, name, localPath string) error

	// ListPrefix lists the object/file names found under dir.
	ListPrefix(ctx context.Context, dir string) ([]string, error)
}

// Item is one work unit for a parallel upload or download.
type Item struct {
	Dir       string
	Name      string
	Data      []byte // set for uploads
	LocalPath string // set for downloads, or for file puts
}

// Result pairs a work item with its outcome.
type Result struct {
	Item Item
	Data []byte // populated for downloads
	Err  error
}
