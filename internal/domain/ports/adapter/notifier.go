package adapter

import "context"

// JobNotifier tells operators about failed generations. Delivery is
// best-effort and never changes job state.
type JobNotifier interface {
	NotifyFailure(ctx context.Context, jobID, reason string) error
}
