// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command imgdb-upload drives a batch descriptor CSV through the ingestion
// coordinator: one dataset per row, uploaded to storage and cataloged.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/gops/agent"

	"github.com/czbiohub/imagingdb/internal/catalog"
	"github.com/czbiohub/imagingdb/internal/config"
	"github.com/czbiohub/imagingdb/internal/ingest"
	"github.com/czbiohub/imagingdb/internal/storage"
	"github.com/czbiohub/imagingdb/pkg/log"
)

func main() {
	var (
		flagCSV        string
		flagLogin      string
		flagConfig     string
		flagOverwrite  bool
		flagNbrWorkers int
		flagMigrateDB  bool
		flagGops       bool
		flagLogLevel   string
		flagLogDate    bool
	)

	flag.StringVar(&flagCSV, "csv", "", "Path to the batch descriptor `csv` (required)")
	flag.StringVar(&flagLogin, "login", "./login.json", "Path to the database credentials `json`")
	flag.StringVar(&flagConfig, "config", "./ingest.json", "Path to the ingestion config `json`")
	flag.BoolVar(&flagOverwrite, "overwrite", false, "Overwrite any dataset that already exists instead of failing")
	flag.IntVar(&flagNbrWorkers, "nbr-workers", 0, "Nbr of storage workers (defaults to NumCPU if <= 0)")
	flag.BoolVar(&flagMigrateDB, "migrate-db", false, "Run catalog schema migrations, then exit")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Sets the logging level: `[debug, info, warn, err, crit]`")
	flag.BoolVar(&flagLogDate, "logdate", true, "Add date and time to log messages (this is a one-shot batch job, not a supervised service)")
	flag.Parse()

	log.SetLogLevel(flagLogLevel)
	log.SetLogDateTime(flagLogDate)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	creds, err := config.LoadCredentials(flagLogin)
	if err != nil {
		log.Fatalf("%s", err.Error())
	}
	dsn, err := creds.DSN()
	if err != nil {
		log.Fatalf("%s", err.Error())
	}

	if flagMigrateDB {
		if err := catalog.MigrateDB(creds.Drivername, dsn); err != nil {
			log.Fatalf("migrate-db failed: %s", err.Error())
		}
		log.Info("imgdb-upload: migrate-db complete")
		return
	}

	if flagCSV == "" {
		log.Fatal("imgdb-upload: -csv is required")
	}
	if flagNbrWorkers < 0 {
		log.Fatalf("imgdb-upload: -nbr-workers must not be negative, got %d", flagNbrWorkers)
	}

	ingestConfig, err := config.LoadIngestConfig(flagConfig)
	if err != nil {
		log.Fatalf("%s", err.Error())
	}

	cat, err := catalog.Connect(creds.Drivername, dsn)
	if err != nil {
		log.Fatalf("%s", err.Error())
	}
	defer cat.Close()

	backend, err := newBackend(ingestConfig)
	if err != nil {
		log.Fatalf("%s", err.Error())
	}

	rows, err := ingest.LoadBatch(flagCSV)
	if err != nil {
		log.Fatalf("%s", err.Error())
	}

	coordinator := &ingest.Coordinator{
		Catalog:   cat,
		Backend:   backend,
		Pool:      storage.NewPool(flagNbrWorkers),
		Config:    ingestConfig,
		Overwrite: flagOverwrite,
	}

	results := coordinator.IngestBatch(context.Background(), rows)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "imgdb-upload: dataset %s failed: %s\n", r.DatasetID, r.Err.Error())
		}
	}
	log.Infof("imgdb-upload: %d/%d dataset(s) cataloged", len(results)-failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}

func newBackend(cfg config.IngestConfig) (storage.Backend, error) {
	switch cfg.StorageKind() {
	case "local":
		return storage.NewFsBackend(cfg.StorageAccess)
	case "s3":
		return storage.NewS3Backend(context.Background(), storage.S3BackendConfig{
			Bucket: cfg.StorageAccess,
		})
	default:
		return nil, fmt.Errorf("imgdb-upload: unknown storage kind %q", cfg.StorageKind())
	}
}
