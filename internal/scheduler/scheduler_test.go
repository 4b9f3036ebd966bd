package scheduler

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumarokov-vp/estate-sync/config"
	"github.com/sumarokov-vp/estate-sync/internal/database"
)

func newTestScheduler(t *testing.T) (*Scheduler, *database.Database) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Sync.LedgerRetentionDays = 30
	return New(cfg, db, nil, logger), db
}

func TestCollectLedgerDropsOldRows(t *testing.T) {
	scheduler, db := newTestScheduler(t)

	_, err := db.InsertWebhookEvent("evt-old", "property.approved")
	require.NoError(t, err)

	// Age the row past the retention window.
	aged := time.Now().UTC().AddDate(0, 0, -40)
	require.NoError(t, db.GetDB().Table("webhook_events").
		Where("event_id = ?", "evt-old").
		Update("processed_at", aged).Error)

	_, err = db.InsertWebhookEvent("evt-new", "property.approved")
	require.NoError(t, err)

	scheduler.collectLedger()

	oldExists, err := db.WebhookEventExists("evt-old")
	require.NoError(t, err)
	assert.False(t, oldExists)

	newExists, err := db.WebhookEventExists("evt-new")
	require.NoError(t, err)
	assert.True(t, newExists)
}

func TestStartRejectsInvalidCron(t *testing.T) {
	scheduler, _ := newTestScheduler(t)
	scheduler.cfg.Sync.RetrySpec = "not a cron spec"

	err := scheduler.Start(context.Background())
	assert.Error(t, err)
}

func TestStartWithEmptySpecsIsANoOp(t *testing.T) {
	scheduler, _ := newTestScheduler(t)

	require.NoError(t, scheduler.Start(context.Background()))
	scheduler.Stop()
}
