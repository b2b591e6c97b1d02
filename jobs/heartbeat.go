package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const heartbeatKey = "fieldserve:worker:heartbeat"

// Heartbeat publishes worker liveness to Redis so the HTTP server's health
// endpoint can report it. The key carries a TTL; a worker that stops
// beating disappears on its own.
type Heartbeat struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewHeartbeat constructs a Heartbeat. TTL must exceed the beat interval.
func NewHeartbeat(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Heartbeat {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Heartbeat{client: client, ttl: ttl, logger: logger}
}

// Run beats at a third of the TTL until the context ends.
func (h *Heartbeat) Run(ctx context.Context) error {
	interval := h.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	if err := h.client.Set(ctx, heartbeatKey, time.Now().UTC().Format(time.RFC3339), h.ttl).Err(); err != nil {
		h.logger.Warn("worker heartbeat", slog.Any("error", err))
	}
}

// Alive reports whether a worker has beaten within the TTL window.
func (h *Heartbeat) Alive(ctx context.Context) (bool, error) {
	err := h.client.Get(ctx, heartbeatKey).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
