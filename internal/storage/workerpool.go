// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/czbiohub/imagingdb/pkg/log"
)

const (
	retryAttempts = 3
	retryBase     = 100 * time.Millisecond
	retryCap      = 2 * time.Second
	itemTimeout   = 60 * time.Second
)

// Pool runs a fixed number of workers consuming a channel of work items. The
// orchestrating goroutine blocks on the Upload/Download calls until every
// item completes (or the context is cancelled); it never proceeds to the
// catalog insert before that barrier is crossed. Back-pressure is bounded by
// the work channel's capacity, Workers*2.
type Pool struct {
	Workers int
}

// NewPool returns a pool sized to n, defaulting to the number of CPUs with a
// floor of 1 when n <= 0.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	return &Pool{Workers: n}
}

// UploadPlanes uploads one encoded plane per item, retrying each item
// independently. It returns the first error observed, but still waits for
// every in-flight item to finish.
func (p *Pool) UploadPlanes(ctx context.Context, backend Backend, items []Item) error {
	_, err := p.run(ctx, items, func(ctx context.Context, it Item) ([]byte, error) {
		return nil, backend.PutPlane(ctx, it.Dir, it.Name, it.Data)
	})
	return err
}

// DownloadPlanes downloads one plane per item, retrying each independently,
// and returns the bytes per completed item alongside the first error.
func (p *Pool) DownloadPlanes(ctx context.Context, backend Backend, items []Item) ([]Result, error) {
	return p.run(ctx, items, func(ctx context.Context, it Item) ([]byte, error) {
		return backend.GetPlane(ctx, it.Dir, it.Name)
	})
}

// DownloadFiles downloads one file per item to its LocalPath.
func (p *Pool) DownloadFiles(ctx context.Context, backend Backend, items []Item) error {
	_, err := p.run(ctx, items, func(ctx context.Context, it Item) ([]byte, error) {
		return nil, backend.GetFile(ctx, it.Dir, it.Name, it.LocalPath)
	})
	return err
}

// PutFiles uploads one already-on-disk file per item without decoding it.
func (p *Pool) PutFiles(ctx context.Context, backend Backend, items []Item) error {
	_, err := p.run(ctx, items, func(ctx context.Context, it Item) ([]byte, error) {
		return nil, backend.PutFile(ctx, it.Dir, it.Name, it.LocalPath)
	})
	return err
}

// run fans items out to p.Workers goroutines, retrying each item's call to
// fn with exponential backoff, and collects per-item results in the order of
// items (not completion order).
func (p *Pool) run(ctx context.Context, items []Item, fn func(context.Context, Item) ([]byte, error)) ([]Result, error) {
	results := make([]Result, len(items))
	type work struct {
		idx int
		it  Item
	}
	queue := make(chan work, p.Workers*2)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var first error

	for w := 0; w < p.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for x := range queue {
				itemCtx, cancel := context.WithTimeout(ctx, itemTimeout)
				data, err := retryDo(func() ([]byte, error) { return fn(itemCtx, x.it) })
				cancel()

				mu.Lock()
				results[x.idx] = Result{Item: x.it, Data: data, Err: err}
				if err != nil && first == nil {
					first = err
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(queue)
		for i, it := range items {
			select {
			case queue <- work{idx: i, it: it}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	if first == nil && ctx.Err() != nil {
		first = ctx.Err()
	}
	return results, first
}

// retryDo calls fn up to retryAttempts times with exponential backoff
// (base retryBase, capped at retryCap) between attempts.
func retryDo(fn func() ([]byte, error)) ([]byte, error) {
	backoff := retryBase
	var data []byte
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if data, err = fn(); err == nil {
			return data, nil
		}
		if attempt == retryAttempts-1 {
			break
		}
		log.Debugf("storage: transfer attempt %d failed, retrying in %s: %v", attempt+1, backoff, err)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > retryCap {
			backoff = retryCap
		}
	}
	return data, err
}
