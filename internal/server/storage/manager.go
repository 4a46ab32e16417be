// Package storage opens the database, applies migrations, and hands out
// repositories bound to the shared connection pool.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vserve-ph/arta-backend/internal/server/accounts"
	"github.com/vserve-ph/arta-backend/internal/server/auditlog"
	"github.com/vserve-ph/arta-backend/internal/server/feedback"
	"github.com/vserve-ph/arta-backend/internal/server/migrations"
)

type Manager struct {
	db       *sql.DB
	accounts accounts.Repository
	feedback feedback.Repository
	auditlog auditlog.Repository
}

// NewManager opens the pool for dsn and runs the embedded migrations.
func NewManager(ctx context.Context, dsn string) (*Manager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &Manager{
		db:       db,
		accounts: accounts.NewPostgresRepository(db),
		feedback: feedback.NewPostgresRepository(db),
		auditlog: auditlog.NewPostgresRepository(db),
	}

	if err := m.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return m, nil
}

func (m *Manager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, m.db, ".")
}

func (m *Manager) Conn() *sql.DB { return m.db }

func (m *Manager) Accounts() accounts.Repository { return m.accounts }

func (m *Manager) Feedback() feedback.Repository { return m.feedback }

func (m *Manager) AuditLog() auditlog.Repository { return m.auditlog }

func (m *Manager) Close() error { return m.db.Close() }
