package contracts

import "context"

// BackgroundWorker owns a loop that returns once ctx is cancelled. Pending
// work is flushed or dropped before Run returns.
type BackgroundWorker interface {
	Run(ctx context.Context)
}
