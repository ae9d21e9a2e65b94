package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sealdm/sealdm/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGetDel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, s.Del(ctx, "k"))

	_, err = s.Get(ctx, "k")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestMemoryStore_MissingKey(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	current = current.Add(30 * time.Second)
	_, err := s.Get(ctx, "k")
	require.NoError(t, err, "entry must survive before the TTL elapses")

	current = current.Add(31 * time.Second)
	_, err = s.Get(ctx, "k")
	assert.True(t, errors.Is(err, common.ErrorNotFound), "entry must expire after the TTL")
}

func TestMemoryStore_ZeroTTLNeverExpires(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	require.NoError(t, s.Set(ctx, "k", "v", 0))

	current = current.Add(24 * time.Hour)
	_, err := s.Get(ctx, "k")
	assert.NoError(t, err)
}
