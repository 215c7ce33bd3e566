package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *IdempotencyStore {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	nopLogger := zerolog.Nop()
	store, err := NewIdempotencyStore(context.Background(), url, &nopLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestIdempotencyStore_Claim(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "payment:" + uuid.NewString()
	t.Cleanup(func() { store.client.Del(context.Background(), keyPrefix+key) })

	first, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestIdempotencyStore_ClaimAfterExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "payment:" + uuid.NewString()

	ok, err := store.Claim(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		ok, err := store.Claim(ctx, key, time.Minute)
		return err == nil && ok
	}, 2*time.Second, 25*time.Millisecond)
	store.client.Del(ctx, keyPrefix+key)
}

func TestNewIdempotencyStore_BadURL(t *testing.T) {
	nopLogger := zerolog.Nop()
	_, err := NewIdempotencyStore(context.Background(), "not a url", &nopLogger)
	assert.Error(t, err)
}
