// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"context"
	"time"

	"github.com/czbiohub/imagingdb/pkg/log"
)

type hookKey struct{}

// slowQueryThreshold is how long a single catalog query may take before
// its completion is logged at Warn instead of Debug. A batch ingestion or
// retrieval run issues many small queries; an unusually slow one is the
// one case worth surfacing without turning on full query logging.
const slowQueryThreshold = 250 * time.Millisecond

// Hooks implements sqlhooks.Hooks, logging every query issued against the
// catalog and flagging ones that run long.
type Hooks struct{}

// Before records the query's start time and logs it at debug level.
func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("catalog: query %s %q", query, args)
	return context.WithValue(ctx, hookKey{}, time.Now()), nil
}

// After logs the query's elapsed time, at Warn if it exceeded
// slowQueryThreshold and Debug otherwise.
func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	begin := ctx.Value(hookKey{}).(time.Time)
	elapsed := time.Since(begin)
	if elapsed > slowQueryThreshold {
		log.Warnf("catalog: slow query (%s): %s %q", elapsed, query, args)
	} else {
		log.Debugf("catalog: query took %s", elapsed)
	}
	return ctx, nil
}
