// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command imgdb-download resolves one dataset serial to its planes (or
// file) and writes them, plus sidecar metadata, under a fresh destination
// directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/gops/agent"

	"github.com/czbiohub/imagingdb/internal/catalog"
	"github.com/czbiohub/imagingdb/internal/config"
	"github.com/czbiohub/imagingdb/internal/retrieve"
	"github.com/czbiohub/imagingdb/internal/storage"
	"github.com/czbiohub/imagingdb/pkg/log"
)

func main() {
	var (
		flagID         string
		flagDest       string
		flagLogin      string
		flagConfig     string
		flagMetadata   bool
		flagDownload   bool
		flagNbrWorkers int
		flagPositions  string
		flagTimes      string
		flagChannels   string
		flagSlices     string
		flagGops       bool
		flagLogLevel   string
		flagLogDate    bool
	)

	flag.StringVar(&flagID, "id", "", "Dataset `serial` to retrieve (required)")
	flag.StringVar(&flagDest, "dest", "", "Destination `directory` (required); <dest>/<id> must not yet exist")
	flag.StringVar(&flagLogin, "login", "./login.json", "Path to the database credentials `json`")
	flag.StringVar(&flagConfig, "config", "./ingest.json", "Path to the ingestion config `json` (used to locate storage)")
	flag.BoolVar(&flagMetadata, "metadata", true, "Write global_metadata.json (and frames_meta.csv for frame datasets)")
	flag.BoolVar(&flagDownload, "download", true, "Download planes or the file itself")
	flag.IntVar(&flagNbrWorkers, "nbr-workers", 0, "Nbr of storage workers (defaults to NumCPU if <= 0)")
	flag.StringVar(&flagPositions, "positions", "", "Position filter: empty/\"all\", a bare int, or a JSON int list")
	flag.StringVar(&flagTimes, "times", "", "Timepoint filter: empty/\"all\", a bare int, or a JSON int list")
	flag.StringVar(&flagChannels, "channels", "", "Channel filter: empty/\"all\", a bare int/name, or a JSON int/string list")
	flag.StringVar(&flagSlices, "slices", "", "Slice filter: empty/\"all\", a bare int, or a JSON int list")
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

	if flagID == "" {
		log.Fatal("imgdb-download: -id is required")
	}
	if flagDest == "" {
		log.Fatal("imgdb-download: -dest is required")
	}

	creds, err := config.LoadCredentials(flagLogin)
	if err != nil {
		log.Fatalf("%s", err.Error())
	}
	dsn, err := creds.DSN()
	if err != nil {
		log.Fatalf("%s", err.Error())
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

	planner := &retrieve.Planner{
		Catalog: cat,
		Backend: backend,
		Pool:    storage.NewPool(flagNbrWorkers),
	}

	err = planner.Execute(context.Background(), retrieve.Options{
		Serial:    flagID,
		Dest:      flagDest,
		Download:  flagDownload,
		Metadata:  flagMetadata,
		Positions: flagPositions,
		Times:     flagTimes,
		Channels:  flagChannels,
		Slices:    flagSlices,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "imgdb-download: %s\n", err.Error())
		os.Exit(1)
	}
	log.Infof("imgdb-download: dataset %s retrieved to %s", flagID, flagDest)
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
		return nil, fmt.Errorf("imgdb-download: unknown storage kind %q", cfg.StorageKind())
	}
}
