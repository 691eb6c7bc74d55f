// Package app provides application-level wiring and dependency injection
// for the audit trail service.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"deskaudit/internal/api"
	"deskaudit/internal/config"
	"deskaudit/internal/db/repository"
	"deskaudit/internal/redact"
	auditsvc "deskaudit/internal/service/audit"
)

// Deps holds the external dependencies that main() must provide: database
// handles, config, and the process logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	AuditLogger *auditsvc.Logger
	Verifier    *auditsvc.Verifier
	DLQWorker   *auditsvc.DLQWorker
	Scheduler   *auditsvc.Scheduler
	Query       *auditsvc.QueryService
	Exporter    *auditsvc.Exporter
	Handler     *api.Handler
}

// New wires all repositories and services from the provided deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg

	// Repositories — the append path must run on the single-connection
	// write pool; read-only surfaces use the read pool.
	auditWriteRepo := repository.NewAuditLogRepo(deps.WriteDB)
	auditReadRepo := repository.NewAuditLogRepo(deps.ReadDB)
	dlqRepo := repository.NewDLQRepo(deps.WriteDB)
	verificationRepo := repository.NewVerificationRepo(deps.WriteDB)

	policy, err := redact.LoadPolicy(cfg.RedactionPolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load redaction policy: %w", err)
	}
	redactor := redact.NewEngineFromPolicy(policy)

	auditLogger := auditsvc.NewLogger(
		auditWriteRepo, dlqRepo, redactor, cfg.DefaultRedactionLevel,
		deps.Logger.With("component", "audit-logger"),
	)
	verifier := auditsvc.NewVerifier(
		auditReadRepo, verificationRepo, auditLogger, time.Hour,
		deps.Logger.With("component", "chain-verifier"),
	)
	dlqWorker := auditsvc.NewDLQWorker(
		dlqRepo, auditLogger,
		deps.Logger.With("component", "dlq-worker"),
	)
	scheduler := auditsvc.NewScheduler(
		verifier, dlqWorker, cfg.DLQMaxRetries,
		deps.Logger,
	)
	querySvc := auditsvc.NewQueryService(auditReadRepo, dlqRepo, verificationRepo)
	exporter := auditsvc.NewExporter(auditReadRepo, auditLogger)

	handler := api.NewHandler(
		querySvc, verifier, dlqWorker, exporter, cfg.DLQMaxRetries,
		deps.Logger.With("component", "api"),
	)

	return &App{
		AuditLogger: auditLogger,
		Verifier:    verifier,
		DLQWorker:   dlqWorker,
		Scheduler:   scheduler,
		Query:       querySvc,
		Exporter:    exporter,
		Handler:     handler,
	}, nil
}
