package cache

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ fiber.Storage = (*RedisStorage)(nil)

func setupTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	client, err := Connect(context.Background(), &config.Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)

	s := NewRedisStorage(client, "limiter:")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestSetAndGet(t *testing.T) {
	s, mr := setupTestStorage(t)

	require.NoError(t, s.Set("127.0.0.1", []byte("5"), time.Minute))

	got, err := s.Get("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []byte("5"), got)
	assert.True(t, mr.Exists("limiter:127.0.0.1"))
}

func TestGetMissing(t *testing.T) {
	s, _ := setupTestStorage(t)

	got, err := s.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpiration(t *testing.T) {
	s, mr := setupTestStorage(t)

	require.NoError(t, s.Set("k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteAndReset(t *testing.T) {
	s, mr := setupTestStorage(t)

	require.NoError(t, s.Set("a", []byte("1"), 0))
	require.NoError(t, s.Set("b", []byte("2"), 0))
	require.NoError(t, mr.Set("other:c", "3"))

	require.NoError(t, s.Delete("a"))
	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Reset())
	assert.False(t, mr.Exists("limiter:b"))
	assert.True(t, mr.Exists("other:c"))
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect(context.Background(), &config.Config{RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}
