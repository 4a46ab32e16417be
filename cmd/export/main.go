// Command export snapshots stored collections to a timestamped artifact.
//
//	export [-collection system_users|feedbacks|audit_logs] [-format json|xlsx] [-s3]
//
// Without -collection every collection is exported.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/vserve-ph/arta-backend/internal/flagx"
	"github.com/vserve-ph/arta-backend/internal/logging"
	"github.com/vserve-ph/arta-backend/internal/server/config"
	"github.com/vserve-ph/arta-backend/internal/server/exporter"
	"github.com/vserve-ph/arta-backend/internal/server/storage"
)

func main() {

	var (
		collection = flag.String("collection", "", "single collection to export (default: all)")
		format     = flag.String("format", "json", "output format: json or xlsx")
		upload     = flag.Bool("s3", false, "upload the artifact to the configured bucket")
	)
	// Config flags are consumed by LoadConfig; parse only our own.
	flag.CommandLine.Parse(flagx.FilterArgs(os.Args[1:], []string{"-collection", "--collection", "-format", "--format", "-s3", "--s3"}))

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	manager, err := storage.NewManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer manager.Close()

	e := exporter.New(manager.Accounts(), manager.Feedback(), manager.AuditLog(), cfg, logger)

	collections := exporter.AllCollections
	if *collection != "" {
		collections = []string{*collection}
	}

	var path string
	switch *format {
	case "json":
		path, err = e.ExportJSON(ctx, collections)
	case "xlsx":
		path, err = e.ExportXLSX(ctx, collections)
	default:
		log.Fatalf("unknown format %q", *format)
	}
	if err != nil {
		log.Fatalf("export error: %v", err)
	}
	fmt.Println(path)

	if *upload {
		key, err := e.Upload(ctx, path)
		if err != nil {
			log.Fatalf("upload error: %v", err)
		}
		fmt.Printf("uploaded to s3://%s/%s\n", cfg.S3Bucket, key)
	}
}
