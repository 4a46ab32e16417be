// Package exporter produces point-in-time snapshots of the stored
// collections as JSON or XLSX artifacts, optionally uploaded to object
// storage.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vserve-ph/arta-backend/internal/logging"
	"github.com/vserve-ph/arta-backend/internal/server/accounts"
	"github.com/vserve-ph/arta-backend/internal/server/auditlog"
	"github.com/vserve-ph/arta-backend/internal/server/config"
	"github.com/vserve-ph/arta-backend/internal/server/feedback"
)

// Collection names accepted by Export.
const (
	CollectionUsers    = "system_users"
	CollectionFeedback = "feedbacks"
	CollectionAudit    = "audit_logs"
)

// AllCollections lists every exportable collection in output order.
var AllCollections = []string{CollectionUsers, CollectionFeedback, CollectionAudit}

// listCap bounds how many rows a single export pulls per collection.
const listCap = 10000

type Exporter struct {
	accounts accounts.Repository
	feedback feedback.Repository
	audit    auditlog.Repository
	cfg      *config.Config
	logger   logging.Logger
}

func New(accountsRepo accounts.Repository, feedbackRepo feedback.Repository, auditRepo auditlog.Repository, cfg *config.Config, logger logging.Logger) *Exporter {
	return &Exporter{
		accounts: accountsRepo,
		feedback: feedbackRepo,
		audit:    auditRepo,
		cfg:      cfg,
		logger:   logger,
	}
}

// snapshot holds one collection's rows in export form. User rows are
// sanitized views, never raw profiles.
type snapshot struct {
	users    []*accounts.View
	feedback []*feedback.Feedback
	audit    []*auditlog.Entry
}

func (e *Exporter) collect(ctx context.Context, collections []string) (*snapshot, error) {
	snap := &snapshot{}
	for _, name := range collections {
		switch name {
		case CollectionUsers:
			profiles, err := e.accounts.List(ctx)
			if err != nil {
				return nil, fmt.Errorf("listing %s: %w", name, err)
			}
			for _, p := range profiles {
				snap.users = append(snap.users, p.View())
			}
		case CollectionFeedback:
			items, err := e.feedback.ListRecent(ctx, listCap)
			if err != nil {
				return nil, fmt.Errorf("listing %s: %w", name, err)
			}
			snap.feedback = items
		case CollectionAudit:
			entries, err := e.audit.List(ctx, listCap)
			if err != nil {
				return nil, fmt.Errorf("listing %s: %w", name, err)
			}
			snap.audit = entries
		default:
			return nil, fmt.Errorf("unknown collection %q", name)
		}
	}
	return snap, nil
}

// ExportJSON writes the requested collections to one timestamped JSON file
// under the configured exports directory and returns its path.
func (e *Exporter) ExportJSON(ctx context.Context, collections []string) (string, error) {
	snap, err := e.collect(ctx, collections)
	if err != nil {
		return "", err
	}

	doc := map[string]any{
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"collections": map[string]any{},
	}
	cols := doc["collections"].(map[string]any)
	for _, name := range collections {
		switch name {
		case CollectionUsers:
			cols[name] = snap.users
		case CollectionFeedback:
			cols[name] = snap.feedback
		case CollectionAudit:
			cols[name] = auditRows(snap.audit)
		}
	}

	if err := os.MkdirAll(e.cfg.ExportsDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(e.cfg.ExportsDir, fmt.Sprintf("export_%s.json", timestamp()))

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	e.logger.Info(ctx, "export written", "path", path, "collections", len(collections))
	return path, nil
}

// auditRows flattens audit entries for JSON output; the struct itself has
// no JSON tags because it never crosses the HTTP boundary.
func auditRows(entries []*auditlog.Entry) []map[string]any {
	rows := make([]map[string]any, 0, len(entries))
	for _, en := range entries {
		rows = append(rows, map[string]any{
			"id":         en.ID,
			"email":      en.Email,
			"client_ip":  en.ClientIP,
			"user_agent": en.UserAgent,
			"success":    en.Success,
			"reason":     en.Reason,
			"created_at": en.CreatedAt,
			"expires_at": en.ExpiresAt,
		})
	}
	return rows
}

func timestamp() string {
	return time.Now().UTC().Format("20060102T150405Z")
}
