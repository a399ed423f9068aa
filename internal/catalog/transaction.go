// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/czbiohub/imagingdb/pkg/log"
	"github.com/czbiohub/imagingdb/pkg/lrucache"
)

// Session is a scoped transactional session: exactly one logical
// transaction, never shared across workers, with guaranteed commit on
// normal exit and rollback on any error path. Nested sessions are not
// supported.
type Session struct {
	tx     *sqlx.Tx
	driver string
	cache  *lrucache.Cache
}

// WithSession opens a Session, invokes fn, and commits if fn returns nil or
// rolls back otherwise. This is the only supported way to acquire a Session:
// it guarantees the commit-or-rollback discipline on every exit path,
// including a panic unwinding through fn.
func (c *Catalog) WithSession(fn func(*Session) error) (err error) {
	tx, err := c.DB.Beginx()
	if err != nil {
		return fmt.Errorf("catalog: begin transaction: %w", err)
	}

	s := &Session{tx: tx, driver: c.Driver, cache: c.cache}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Warnf("catalog: rollback after error failed: %v", rbErr)
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(s)
	return err
}
