package cache_test

import (
	"context"
	"testing"
	"time"

	"learnlink-be/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore(time.Minute)

	require.NoError(t, s.Set(ctx, "k", []byte("v1"), 0))
	got, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Set(ctx, "k", []byte("v2"), time.Minute))
	got, _, _ = s.Get(ctx, "k")
	assert.Equal(t, []byte("v2"), got, "set overwrites the prior entry")
}

func TestMemoryStoreExpiresLazily(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore(time.Minute)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	has, _ := s.Has(ctx, "k")
	assert.True(t, has)

	time.Sleep(60 * time.Millisecond)

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	has, _ = s.Has(ctx, "k")
	assert.False(t, has)
}

func TestMemoryStoreReadDoesNotExtendTTL(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore(time.Minute)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 50*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, found, _ := s.Get(ctx, "k")
	require.True(t, found)

	time.Sleep(40 * time.Millisecond)
	_, found, _ = s.Get(ctx, "k")
	assert.False(t, found, "a hit must not slide the expiry")
}

func TestMemoryStoreReturnsSnapshots(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore(time.Minute)

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'
	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStoreInvalidation(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore(time.Minute)

	for _, key := range []string{"user:u1:a", "user:u1:b", "user:u2:a"} {
		require.NoError(t, s.Set(ctx, key, []byte("v"), 0))
	}

	require.NoError(t, s.Delete(ctx, "user:u1:a"))
	has, _ := s.Has(ctx, "user:u1:a")
	assert.False(t, has)

	require.NoError(t, s.DeletePrefix(ctx, "user:u1:"))
	has, _ = s.Has(ctx, "user:u1:b")
	assert.False(t, has)
	has, _ = s.Has(ctx, "user:u2:a")
	assert.True(t, has, "other users keep their entries")

	require.NoError(t, s.Clear(ctx))
	has, _ = s.Has(ctx, "user:u2:a")
	assert.False(t, has)
}

func TestLoadSave(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore(time.Minute)

	type item struct {
		ID string `json:"id"`
	}

	key := cache.Key("course", "c1", "announcements")
	assert.Equal(t, "course:c1:announcements", key)

	require.NoError(t, cache.Save(ctx, s, key, []item{{ID: "a"}, {ID: "b"}}, 0))

	got, found, err := cache.Load[[]item](ctx, s, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []item{{ID: "a"}, {ID: "b"}}, got)

	got[0].ID = "mutated"
	again, _, _ := cache.Load[[]item](ctx, s, key)
	assert.Equal(t, "a", again[0].ID)

	require.NoError(t, s.Set(ctx, "broken", []byte("{"), 0))
	_, found, err = cache.Load[[]item](ctx, s, "broken")
	assert.False(t, found)
	assert.Error(t, err)

	_, found, err = cache.Load[[]item](ctx, s, "missing")
	assert.False(t, found)
	assert.NoError(t, err)
}
