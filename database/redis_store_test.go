package database_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/MouadFiali/gke-cloud-project/database"
)

var errDialRefused = errors.New("dial refused")

// newUnreachableRedis returns a client whose every connection attempt fails.
func newUnreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:       "redis.invalid:6379",
		MaxRetries: -1,
		Dialer: func(context.Context, string, string) (net.Conn, error) {
			return nil, errDialRefused
		},
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore_UnreachableIsNotNotFound(t *testing.T) {
	store := database.NewRedisStore(newUnreachableRedis(t), 0)
	ctx := context.Background()

	_, err := store.Get(ctx, "u1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, database.ErrNotFound)

	assert.Error(t, store.Set(ctx, "u1", []byte("cart")))
	assert.Error(t, store.Ping(ctx))
}

func TestRedisStore_UpdateSurfacesConnectionError(t *testing.T) {
	store := database.NewRedisStore(newUnreachableRedis(t), 0)

	called := false
	err := store.Update(context.Background(), "u1", func([]byte, bool) ([]byte, error) {
		called = true
		return nil, nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := database.NewRedisClient(context.Background(), "not-a-url://")
	assert.ErrorContains(t, err, "invalid Redis URL")
}
