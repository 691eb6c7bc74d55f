package audit

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler owns the recurring audit jobs: hourly chain verification and
// DLQ retry on its own cadence. Each job is wrapped in SkipIfStillRunning
// so overlapping runs are dropped rather than stacked.
type Scheduler struct {
	cron       *cron.Cron
	verifier   *Verifier
	dlqWorker  *DLQWorker
	maxRetries int
	log        *slog.Logger
}

// NewScheduler creates the audit job scheduler. verifyCron and dlqCron are
// standard cron expressions.
func NewScheduler(verifier *Verifier, dlqWorker *DLQWorker, maxRetries int, log *slog.Logger) *Scheduler {
	cronLog := &cronSlogAdapter{log: log.With("component", "audit-scheduler")}
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		verifier:   verifier,
		dlqWorker:  dlqWorker,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(verifyCron, dlqCron string) error {
	if _, err := s.cron.AddFunc(verifyCron, func() {
		if err := s.verifier.RunScheduledVerification(context.Background()); err != nil {
			s.log.Warn("scheduled chain verification failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(dlqCron, func() {
		if _, err := s.dlqWorker.RetryDLQEvents(context.Background(), s.maxRetries); err != nil {
			s.log.Warn("scheduled DLQ retry failed", "error", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("audit scheduler started", "verify_cron", verifyCron, "dlq_cron", dlqCron)
	return nil
}

// Stop gracefully stops the cron loop.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("audit scheduler stopped")
}

// cronSlogAdapter bridges robfig/cron's logger interface to slog.
type cronSlogAdapter struct {
	log *slog.Logger
}

func (a *cronSlogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.log.Info(msg, keysAndValues...)
}

func (a *cronSlogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.log.Error(msg, append(keysAndValues, "error", err)...)
}
