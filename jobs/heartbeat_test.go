package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testHeartbeat(t *testing.T) (*Heartbeat, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHeartbeat(client, 90*time.Second, logger), mr
}

func TestHeartbeatAliveAfterBeat(t *testing.T) {
	hb, mr := testHeartbeat(t)
	ctx := context.Background()

	alive, err := hb.Alive(ctx)
	require.NoError(t, err)
	require.False(t, alive)

	hb.beat(ctx)

	alive, err = hb.Alive(ctx)
	require.NoError(t, err)
	require.True(t, alive)

	ttl := mr.TTL(heartbeatKey)
	require.Equal(t, 90*time.Second, ttl)
}

func TestHeartbeatExpires(t *testing.T) {
	hb, mr := testHeartbeat(t)
	ctx := context.Background()

	hb.beat(ctx)
	mr.FastForward(91 * time.Second)

	alive, err := hb.Alive(ctx)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestHeartbeatDefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hb := NewHeartbeat(client, 0, logger)
	require.Equal(t, 90*time.Second, hb.ttl)
}
