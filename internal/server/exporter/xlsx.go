package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ExportXLSX writes the requested collections to a timestamped workbook,
// one sheet per collection, and returns its path.
func (e *Exporter) ExportXLSX(ctx context.Context, collections []string) (string, error) {
	snap, err := e.collect(ctx, collections)
	if err != nil {
		return "", err
	}

	wb := excelize.NewFile()
	defer wb.Close()

	for i, name := range collections {
		if i == 0 {
			if err := wb.SetSheetName(wb.GetSheetName(0), name); err != nil {
				return "", err
			}
		} else if _, err := wb.NewSheet(name); err != nil {
			return "", err
		}

		var rows [][]any
		switch name {
		case CollectionUsers:
			rows = append(rows, []any{"ID", "Name", "Email", "Role", "Department", "Status", "Created At", "Last Login At"})
			for _, u := range snap.users {
				lastLogin := ""
				if u.LastLoginAt != nil {
					lastLogin = u.LastLoginAt.Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []any{u.ID, u.Name, u.Email, string(u.Role), u.Department, string(u.Status),
					u.CreatedAt.Format("2006-01-02 15:04:05"), lastLogin})
			}
		case CollectionFeedback:
			rows = append(rows, []any{"ID", "Created At", "Payload"})
			for _, f := range snap.feedback {
				payload, _ := json.Marshal(f.Payload)
				rows = append(rows, []any{f.ID, f.CreatedAt.Format("2006-01-02 15:04:05"), string(payload)})
			}
		case CollectionAudit:
			rows = append(rows, []any{"ID", "Email", "Client IP", "User Agent", "Success", "Reason", "Created At", "Expires At"})
			for _, en := range snap.audit {
				rows = append(rows, []any{en.ID, en.Email, en.ClientIP, en.UserAgent, en.Success, en.Reason,
					en.CreatedAt.Format("2006-01-02 15:04:05"), en.ExpiresAt.Format("2006-01-02 15:04:05")})
			}
		}

		for r, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return "", err
			}
			if err := wb.SetSheetRow(name, cell, &row); err != nil {
				return "", err
			}
		}
	}

	if err := os.MkdirAll(e.cfg.ExportsDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(e.cfg.ExportsDir, fmt.Sprintf("export_%s.xlsx", timestamp()))
	if err := wb.SaveAs(path); err != nil {
		return "", err
	}

	e.logger.Info(ctx, "export written", "path", path, "collections", len(collections))
	return path, nil
}
