// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package catalog wraps the relational metadata store: connection setup,
// schema migrations, the transactional session scope, the dataset-serial
// parser, and the insert/query operations over DataSet/FramesGlobal/
// Frames/FileGlobal.
package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/czbiohub/imagingdb/pkg/log"
	"github.com/czbiohub/imagingdb/pkg/lrucache"
)

// metaCacheBudget bounds the decoded-row cache; entries are sized by their
// JSON metadata length, so this is a metadata-byte budget, not a row count.
const metaCacheBudget = 16 << 20

// Catalog wraps one relational session. All insert/query operations in this
// package are methods on *Catalog.
type Catalog struct {
	DB     *sqlx.DB
	Driver string

	// cache holds decoded DataSet/FramesGlobal rows keyed by dataset
	// serial, avoiding a repeat query+JSON-decode when a retrieval run
	// looks up the same dataset more than once (e.g. GetDataset before
	// GetFramesGlobal). Frames rows are not cached: GetFrames always
	// queries the database.
	cache *lrucache.Cache
}

// Connect opens a connection for the given drivername ("sqlite3", "mysql"
// or "postgres") and dsn, matching the teacher's per-driver pooling policy.
func Connect(drivername, dsn string) (*Catalog, error) {
	switch drivername {
	case "sqlite3":
		return connectSqlite3(dsn)
	case "mysql":
		return connectMysql(dsn)
	case "postgres":
		return connectPostgres(dsn)
	default:
		return nil, fmt.Errorf("catalog: unsupported database driver %q", drivername)
	}
}

var registerSqlite3Hooks sync.Once

func connectSqlite3(dsn string) (*Catalog, error) {
	registerSqlite3Hooks.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))
	})

	db, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("catalog: open sqlite3: %w", err)
	}

	// sqlite does not multithread; one connection avoids lock contention.
	db.SetMaxOpenConns(1)
	return &Catalog{DB: db, Driver: "sqlite3", cache: lrucache.New(metaCacheBudget)}, nil
}

func connectMysql(dsn string) (*Catalog, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open("mysql", fmt.Sprintf("%s%smultiStatements=true", dsn, sep))
	if err != nil {
		return nil, fmt.Errorf("catalog: open mysql: %w", err)
	}

	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	return &Catalog{DB: db, Driver: "mysql", cache: lrucache.New(metaCacheBudget)}, nil
}

func connectPostgres(dsn string) (*Catalog, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open postgres: %w", err)
	}

	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	return &Catalog{DB: db, Driver: "postgres", cache: lrucache.New(metaCacheBudget)}, nil
}

func (c *Catalog) Close() error {
	log.Info("catalog: closing database connection")
	return c.DB.Close()
}
