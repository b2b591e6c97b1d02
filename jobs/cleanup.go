package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fieldserve/fieldserve/internal/shared"
)

// DefaultKeyRetention is how long consumed idempotency keys are kept.
const DefaultKeyRetention = 24 * time.Hour

// Cleaner removes aged idempotency keys.
type Cleaner struct {
	store  *shared.IdempotencyStore
	logger *slog.Logger
}

// NewCleaner constructs the cleaner.
func NewCleaner(store *shared.IdempotencyStore, logger *slog.Logger) *Cleaner {
	return &Cleaner{store: store, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (c *Cleaner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	olderThan := payload.OlderThan
	if olderThan <= 0 {
		olderThan = DefaultKeyRetention
	}
	if err := c.store.Cleanup(ctx, olderThan); err != nil {
		return err
	}
	c.logger.Info("idempotency keys cleaned", slog.Duration("older_than", olderThan))
	return nil
}
