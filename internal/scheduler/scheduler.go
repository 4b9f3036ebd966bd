package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/sumarokov-vp/estate-sync/config"
	"github.com/sumarokov-vp/estate-sync/internal/database"
	"github.com/sumarokov-vp/estate-sync/internal/syncer"
)

// Scheduler runs the background jobs on cron schedules: retrying failed
// pushes, the incremental pull sweep, reference-data sync and webhook
// ledger garbage collection.
type Scheduler struct {
	cfg    *config.Config
	db     *database.Database
	syncer *syncer.Service
	logger *logrus.Logger
	cron   *cron.Cron
}

func New(cfg *config.Config, db *database.Database, syncService *syncer.Service, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		db:     db,
		syncer: syncService,
		logger: logger,
		cron:   cron.New(),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"retry_pending", s.cfg.Sync.RetrySpec, func() {
			s.syncer.RetryPending(ctx)
		}},
		{"pull_sweep", s.cfg.Sync.PullSpec, func() {
			if err := s.syncer.Pull(ctx); err != nil {
				s.logger.WithError(err).Error("Pull sweep failed")
			}
		}},
		{"sync_references", s.cfg.Sync.ReferencesSpec, func() {
			if err := s.syncer.SyncReferences(ctx); err != nil {
				s.logger.WithError(err).Error("Reference sync failed")
			}
		}},
		{"webhook_ledger_gc", s.cfg.Sync.LedgerGCSpec, s.collectLedger},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return fmt.Errorf("invalid cron expression for %s: %w", job.name, err)
		}
		s.logger.WithFields(logrus.Fields{"job": job.name, "spec": job.spec}).Info("Scheduled job")
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// collectLedger drops webhook ledger rows past the retention window. Old
// event ids can no longer be redelivered, so keeping them only grows the
// table.
func (s *Scheduler) collectLedger() {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.Sync.LedgerRetentionDays)
	deleted, err := s.db.DeleteWebhookEventsBefore(cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Webhook ledger GC failed")
		return
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Webhook ledger GC completed")
	}
}
