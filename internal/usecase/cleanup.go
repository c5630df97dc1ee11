package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/dailybackup/internal/domain"
	"github.com/semmidev/dailybackup/internal/infrastructure/logger"
	"github.com/semmidev/dailybackup/internal/retention"
)

// LocalSweep removes a target's expired archives from its backup directory.
type LocalSweep struct {
	store domain.LocalStore
	now   func() time.Time
}

func NewLocalSweep(store domain.LocalStore) *LocalSweep {
	return &LocalSweep{store: store, now: time.Now}
}

// Sweep returns the number of deleted files. A file that cannot be deleted
// is logged and skipped.
func (uc *LocalSweep) Sweep(ctx context.Context, rec *domain.Record) (int, error) {
	log := logger.FromContext(ctx)

	files, err := uc.store.List(rec.BackupDirectory)
	if err != nil {
		return 0, fmt.Errorf("list backup directory: %w", err)
	}

	now := uc.now()
	matcher := domain.NewMatcher(rec)
	deleted := 0
	for _, f := range files {
		if !matcher.Match(f.Name) {
			continue
		}
		if !retention.Expired(now, localEntry(f, rec.RetentionClock), rec.LocalRetentionDays) {
			continue
		}

		if err := uc.store.Delete(rec.BackupDirectory, f.Name); err != nil {
			log.Errorw("Failed to delete local archive", "file", f.Name, "error", err)
			continue
		}
		deleted++
		log.Infow("Deleted expired local archive", "file", f.Name)
	}

	return deleted, nil
}
