package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/advisor-booking-engine/internal/config"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	ctx := context.Background()
	rdb, err := Connect(ctx, config.Config{RedisAddr: mr.Addr(), RedisPassword: "secret"})
	require.NoError(t, err)
	defer rdb.Close()

	assert.NoError(t, rdb.Set(ctx, "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestConnectFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := Connect(ctx, config.Config{RedisAddr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestConnectWrongPassword(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	_, err := Connect(context.Background(), config.Config{RedisAddr: mr.Addr(), RedisPassword: "nope"})
	assert.Error(t, err)
}
