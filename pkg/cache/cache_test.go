package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parsedStub struct {
	Kind  string   `json:"kind"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func TestMemoryCache_RoundTripsJSON(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "parsed:news:abc", parsedStub{Kind: "news", Count: 2, Tags: []string{"a"}}, time.Minute))

	var got parsedStub
	require.NoError(t, mc.Get(ctx, "parsed:news:abc", &got))
	assert.Equal(t, parsedStub{Kind: "news", Count: 2, Tags: []string{"a"}}, got)

	var raw string
	require.NoError(t, mc.Get(ctx, "parsed:news:abc", &raw))
	assert.JSONEq(t, `{"kind":"news","count":2,"tags":["a"]}`, raw)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var v string
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	time.Sleep(time.Millisecond)

	var v string
	require.NoError(t, mc.Get(ctx, "a", &v)) // a is now newer than b
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &v))
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	for _, k := range []string{"parsed:news:1", "parsed:news:2", "parsed:fed:1"} {
		require.NoError(t, mc.Set(ctx, k, "x", time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("parsed:news:")))

	assert.Equal(t, 1, mc.Len())
}

func TestMemoryCache_TryLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock:doc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "lock:doc", time.Minute)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock:doc"))
	ok, _ = mc.TryLock(ctx, "lock:doc", time.Minute)
	assert.True(t, ok)
}

func TestLayeredCache_FillsLocalFromRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote, WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	require.NoError(t, remote.Set(ctx, "k", parsedStub{Kind: "fed"}, time.Hour))

	var got parsedStub
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "fed", got.Kind)

	// Served from L1 after the remote copy is gone.
	require.NoError(t, remote.Delete(ctx, "k"))
	got = parsedStub{}
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "fed", got.Kind)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "parsed:news:1", GenerateKey("parsed", "news", 1))
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", HashKey("abc"))
}
