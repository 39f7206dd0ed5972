package postgres

import (
	"context"
	"log/slog"
	"time"
)

// CleanupService enforces retention on the audit trail.
type CleanupService struct {
	Pool          PgxPool
	RetentionDays int
}

// NewCleanupService creates a cleanup service with the configured retention.
func NewCleanupService(pool PgxPool, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupService{Pool: pool, RetentionDays: retentionDays}
}

// CleanupOldDecisions removes audit rows older than the retention period.
func (s *CleanupService) CleanupOldDecisions(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -s.RetentionDays)
	tag, err := s.Pool.Exec(ctx, `DELETE FROM qa_decisions WHERE created_at < $1`, cutoff)
	if err != nil {
		return err
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Info("audit retention cleanup", slog.Int64("deleted", n), slog.Time("cutoff", cutoff))
	}
	return nil
}

// RunPeriodic sweeps on the given interval until ctx is done.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.CleanupOldDecisions(ctx); err != nil {
				slog.Error("audit cleanup failed", slog.Any("error", err))
			}
		}
	}
}
