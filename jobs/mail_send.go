package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/aegis-admin/aegis/internal/jobs"
)

// SendEmailJob delivers queued mail through the configured sender.
type SendEmailJob struct {
	sender  Sender
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSendEmailJob constructs a SendEmailJob.
func NewSendEmailJob(sender Sender, logger *slog.Logger, metrics *jobmetrics.Metrics) *SendEmailJob {
	return &SendEmailJob{sender: sender, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeSendEmail tasks.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("mail_send")
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	err := j.sender.Send(ctx, payload.To, payload.Subject, payload.Body)
	if err != nil {
		j.logger.Error("send mail", slog.String("to", payload.To), slog.Any("error", err))
	} else {
		j.logger.Info("mail delivered", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	}
	return tracker.End(err)
}
