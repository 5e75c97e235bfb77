package jobs

import (
	"context"

	"github.com/dukerupert/tabletill/internal/service"
)

// Dispatcher hands committed orders to the background queue.
type Dispatcher struct {
	queue Enqueuer
}

var _ service.Committer = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher that enqueues on q.
func NewDispatcher(q Enqueuer) *Dispatcher {
	return &Dispatcher{queue: q}
}

// EnqueueCommit queues the order for persistence. Change records travel with
// the persist job and are published once the order is saved.
func (d *Dispatcher) EnqueueCommit(ctx context.Context, req *service.CommitRequest) error {
	return EnqueuePersistOrderPricing(ctx, d.queue, req)
}
