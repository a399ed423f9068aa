// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
	"github.com/czbiohub/imagingdb/pkg/log"
)

// FsBackend is the mounted-filesystem storage variant: dir is a path
// relative to root.
type FsBackend struct {
	root string
}

// NewFsBackend returns a backend rooted at root, creating it if absent.
func NewFsBackend(root string) (*FsBackend, error) {
	if err := os.MkdirAll(root, 0o777); err != nil {
		return nil, fmt.Errorf("fsbackend: create root: %w", err)
	}
	return &FsBackend{root: root}, nil
}

func (b *FsBackend) abs(dir, name string) string {
	return filepath.Join(b.root, dir, name)
}

func (b *FsBackend) AssertUnique(ctx context.Context, dir string) error {
	full := filepath.Join(b.root, dir)
	entries, err := os.ReadDir(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: fsbackend: stat %s: %v", ingesterr.ErrTransientIO, full, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s is not empty", ingesterr.ErrStorageExists, dir)
	}
	return nil
}

func (b *FsBackend) PutPlane(ctx context.Context, dir, name string, data []byte) error {
	full := b.abs(dir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
		return fmt.Errorf("%w: fsbackend: mkdir: %v", ingesterr.ErrTransientIO, err)
	}
	if err := os.WriteFile(full, data, 0o666); err != nil {
		return fmt.Errorf("%w: fsbackend: write %s: %v", ingesterr.ErrTransientIO, full, err)
	}
	return nil
}

func (b *FsBackend) PutFile(ctx context.Context, dir, name, localPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("fsbackend: open source %s: %w", localPath, err)
	}
	defer src.Close()

	full := b.abs(dir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
		return fmt.Errorf("%w: fsbackend: mkdir: %v", ingesterr.ErrTransientIO, err)
	}

	dst, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("%w: fsbackend: create %s: %v", ingesterr.ErrTransientIO, full, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: fsbackend: copy into %s: %v", ingesterr.ErrTransientIO, full, err)
	}
	return nil
}

func (b *FsBackend) GetPlane(ctx context.Context, dir, name string) ([]byte, error) {
	data, err := os.ReadFile(b.abs(dir, name))
	if err != nil {
		log.Errorf("fsbackend: GetPlane(%s/%s): %v", dir, name, err)
		return nil, fmt.Errorf("%w: fsbackend: read %s/%s: %v", ingesterr.ErrTransientIO, dir, name, err)
	}
	return data, nil
}

func (b *FsBackend) GetFile(ctx context.Context, dir, name, localPath string) error {
	data, err := os.ReadFile(b.abs(dir, name))
	if err != nil {
		return fmt.Errorf("%w: fsbackend: read %s/%s: %v", ingesterr.ErrTransientIO, dir, name, err)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o777); err != nil {
		return fmt.Errorf("fsbackend: mkdir dest: %w", err)
	}
	if err := os.WriteFile(localPath, data, 0o666); err != nil {
		return fmt.Errorf("fsbackend: write dest %s: %w", localPath, err)
	}
	return nil
}

func (b *FsBackend) ListPrefix(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(b.root, dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fsbackend: readdir %s: %v", ingesterr.ErrTransientIO, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
