package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/aegis-admin/aegis/internal/jobs"
)

// TokenPurger drops expired password-reset tokens.
type TokenPurger interface {
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}

// PurgeResetTokensJob runs the nightly reset-token cleanup.
type PurgeResetTokensJob struct {
	purger  TokenPurger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewPurgeResetTokensJob constructs a PurgeResetTokensJob.
func NewPurgeResetTokensJob(purger TokenPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *PurgeResetTokensJob {
	return &PurgeResetTokensJob{purger: purger, logger: logger, metrics: metrics}
}

// Handle processes TaskTypePurgeResetTokens tasks.
func (j *PurgeResetTokensJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("purge_reset_tokens")
	purged, err := j.purger.PurgeExpiredResetTokens(ctx)
	if err != nil {
		j.logger.Error("purge reset tokens", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("reset tokens purged", slog.Int64("count", purged))
	return tracker.End(nil)
}
