// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/czbiohub/imagingdb/pkg/log"
)

const SchemaVersion uint = 1

//go:embed migrations/*
var migrationFiles embed.FS

func migrateInstance(drivername string, db *sql.DB) (*migrate.Migrate, error) {
	var (
		driver migrate.Driver
		err    error
	)

	switch drivername {
	case "sqlite3":
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case "mysql":
		driver, err = mysql.WithInstance(db, &mysql.Config{})
	case "postgres":
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return nil, fmt.Errorf("catalog: unsupported database driver %q", drivername)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: migration driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, "migrations/"+drivername)
	if err != nil {
		return nil, fmt.Errorf("catalog: migration source: %w", err)
	}

	return migrate.NewWithInstance("iofs", src, drivername, driver)
}

// CheckVersion warns (but does not fail) if the catalog's schema version
// does not match SchemaVersion; callers decide whether to proceed.
func (c *Catalog) CheckVersion() error {
	m, err := migrateInstance(c.Driver, c.DB.DB)
	if err != nil {
		return err
	}

	v, _, err := m.Version()
	if err != nil {
		if err == migrate.ErrNilVersion {
			log.Warn("catalog: database has no migration version; run --migrate-db")
			return nil
		}
		return fmt.Errorf("catalog: read migration version: %w", err)
	}

	if uint(v) != SchemaVersion {
		log.Warnf("catalog: database schema version %d, need %d; run --migrate-db", v, SchemaVersion)
	}
	return nil
}

// MigrateDB applies all pending migrations for drivername against dsn.
func MigrateDB(drivername, dsn string) error {
	var sourceURL string
	switch drivername {
	case "sqlite3":
		sourceURL = fmt.Sprintf("sqlite3://%s?_foreign_keys=on", dsn)
	case "mysql":
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		sourceURL = fmt.Sprintf("mysql://%s%smultiStatements=true", dsn, sep)
	case "postgres":
		sourceURL = dsn
		if !strings.HasPrefix(dsn, "postgres://") {
			sourceURL = fmt.Sprintf("postgres://%s", dsn)
		}
	default:
		return fmt.Errorf("catalog: unsupported database driver %q", drivername)
	}

	src, err := iofs.New(migrationFiles, "migrations/"+drivername)
	if err != nil {
		return fmt.Errorf("catalog: migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, sourceURL)
	if err != nil {
		return fmt.Errorf("catalog: migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("catalog: apply migrations: %w", err)
	}
	return nil
}
