package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/ports"
)

// OrderDispatchJob runs the dispatch round for every pending order that
// holds no live offer. Runs every five seconds so expired offers are
// re-dispatched promptly without hammering the presence index.
type OrderDispatchJob struct {
	orders  ports.OrderRepository
	handler commands.DispatchOrderCommandHandler
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewOrderDispatchJob creates the dispatch job. The repository is used
// read-only to find work; each order is then dispatched in its own
// transaction by the handler.
func NewOrderDispatchJob(
	orders ports.OrderRepository,
	handler commands.DispatchOrderCommandHandler,
	logger *slog.Logger,
) *OrderDispatchJob {
	return &OrderDispatchJob{
		orders:  orders,
		handler: handler,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger.With("component", "order_dispatch_job"),
	}
}

// Start begins the dispatch job on a five second cadence.
func (j *OrderDispatchJob) Start() error {
	_, err := j.cron.AddFunc("*/5 * * * * *", j.runRound)
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Order dispatch job started (running every 5 seconds)")
	return nil
}

// Stop stops the dispatch job.
func (j *OrderDispatchJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "Order dispatch job stopped")
}

// runRound dispatches each candidate independently: one failing order
// must not starve the rest of the queue.
func (j *OrderDispatchJob) runRound() {
	ctx := context.Background()

	candidates, err := j.orders.GetAllDispatchable(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to load dispatchable orders", "error", err)
		return
	}

	for _, candidate := range candidates {
		cmd, err := commands.NewDispatchOrderCommand(candidate.ID())
		if err != nil {
			j.logger.ErrorContext(ctx, "Failed to build dispatch command",
				"order_id", candidate.ID().String(), "error", err)
			continue
		}

		if err = j.handler.Handle(ctx, cmd); err != nil {
			j.logger.ErrorContext(ctx, "Dispatch round failed",
				"order_id", candidate.ID().String(), "error", err)
		}
	}
}
