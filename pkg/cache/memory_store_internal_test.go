package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreEntryExpiresAtDeadline(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return base }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))
	_, deadline, found := s.items.GetWithExpiration("k")
	require.True(t, found)

	s.now = func() time.Time { return deadline.Add(-time.Nanosecond) }
	has, err := s.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, has, "one tick before the deadline")

	s.now = func() time.Time { return deadline }
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "expired at the deadline itself")

	_, _, stillThere := s.items.GetWithExpiration("k")
	assert.False(t, stillThere, "evicted on read")
}
