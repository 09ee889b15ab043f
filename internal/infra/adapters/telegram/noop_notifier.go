package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"future-self-ai/internal/domain/ports/adapter"
)

var _ adapter.JobNotifier = (*NoopNotifier)(nil)

// NoopNotifier logs failures instead of sending them anywhere.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "NoopNotifier").Logger()
	return &NoopNotifier{log: &l}
}

func (n *NoopNotifier) NotifyFailure(ctx context.Context, jobID, reason string) error {
	n.log.Debug().Str("job_id", jobID).Str("reason", reason).Msg("job failure (not delivered)")
	return nil
}
