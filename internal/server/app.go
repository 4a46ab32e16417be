// Package server initializes and runs the backend: it opens storage,
// wires the services together, and serves the HTTP API until a shutdown
// signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vserve-ph/arta-backend/internal/logging"
	"github.com/vserve-ph/arta-backend/internal/server/accounts"
	"github.com/vserve-ph/arta-backend/internal/server/auditlog"
	"github.com/vserve-ph/arta-backend/internal/server/config"
	"github.com/vserve-ph/arta-backend/internal/server/feedback"
	"github.com/vserve-ph/arta-backend/internal/server/httpapi"
	"github.com/vserve-ph/arta-backend/internal/server/identity"
	"github.com/vserve-ph/arta-backend/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config          *config.Config
	logger          logging.Logger
	storage         *storage.Manager
	accountsService *accounts.Service
	httpServer      *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	manager, err := storage.NewManager(context.Background(), cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	verifier := identity.NewFirebaseVerifier(cfg.IdentityEndpoint, cfg.IdentityAPIKey, cfg.IdentityTimeout, logger)

	accountsSvc := accounts.NewService(manager.Accounts(), verifier, []byte(cfg.SecretKey), cfg.SessionTokenValidityDuration, logger)
	feedbackSvc := feedback.NewService(manager.Feedback(), logger)
	recorder := auditlog.NewRecorder(manager.AuditLog(), time.Duration(cfg.AuditRetentionDays)*24*time.Hour, logger)

	api := httpapi.NewServer(accountsSvc, feedbackSvc, recorder, cfg, logger)

	return &App{
		config:          cfg,
		logger:          logger,
		storage:         manager,
		accountsService: accountsSvc,
		httpServer: &http.Server{
			Addr:    cfg.EndpointAddrHTTP,
			Handler: api.Router(),
		},
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until the context is cancelled or a signal arrives, then
// drains in-flight requests and detached writes before closing storage.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server error", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()

	app.logger.Info(ctx, "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}

	app.accountsService.Wait()

	if err := app.storage.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close error", "error", err)
	}
}
