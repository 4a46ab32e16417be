// Command retention maintains audit-log expiry: it backfills the
// expires_at deadline on rows that predate the column and purges rows
// past their deadline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/vserve-ph/arta-backend/internal/flagx"
	"github.com/vserve-ph/arta-backend/internal/logging"
	"github.com/vserve-ph/arta-backend/internal/server/auditlog"
	"github.com/vserve-ph/arta-backend/internal/server/config"
	"github.com/vserve-ph/arta-backend/internal/server/storage"
)

func main() {

	var (
		backfillOnly = flag.Bool("backfill-only", false, "only backfill missing deadlines, skip the purge")
	)
	flag.CommandLine.Parse(flagx.FilterArgs(os.Args[1:], []string{"-backfill-only", "--backfill-only"}))

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	manager, err := storage.NewManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer manager.Close()

	retention := auditlog.NewRetention(manager.Conn(), time.Duration(cfg.AuditRetentionDays)*24*time.Hour, logger)

	updated, err := retention.Backfill(ctx)
	if err != nil {
		log.Fatalf("backfill error: %v", err)
	}
	fmt.Printf("backfilled %d rows\n", updated)

	if *backfillOnly {
		return
	}

	deleted, err := retention.Purge(ctx)
	if err != nil {
		log.Fatalf("purge error: %v", err)
	}
	fmt.Printf("purged %d expired rows\n", deleted)
}
