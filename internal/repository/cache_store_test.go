package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// AGGREGATE CACHE
// ============================================================================

func TestLocalAggregateCache_GetSetDeletePrefix(t *testing.T) {
	c := NewLocalAggregateCache(time.Minute, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "impact:v1:district:gulu:FY")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "impact:v1:district:gulu:FY", []byte(`{"a":1}`), time.Minute))
	require.NoError(t, c.Set(ctx, "impact:v1:district:gulu:TERM", []byte(`{"a":2}`), time.Minute))
	require.NoError(t, c.Set(ctx, "impact:v1:district:lira:FY", []byte(`{"a":3}`), time.Minute))

	data, ok, err := c.Get(ctx, "impact:v1:district:gulu:FY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(data))

	require.NoError(t, c.DeletePrefix(ctx, "impact:v1:district:gulu:"))
	_, ok, _ = c.Get(ctx, "impact:v1:district:gulu:TERM")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "impact:v1:district:lira:FY")
	assert.True(t, ok)
}

func TestLocalAggregateCache_Expires(t *testing.T) {
	c := NewLocalAggregateCache(time.Minute, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (failingCache) DeletePrefix(context.Context, string) error {
	return errors.New("connection refused")
}

func TestTieredAggregateCache(t *testing.T) {
	ctx := context.Background()
	local := NewLocalAggregateCache(time.Minute, time.Minute)
	remote := NewLocalAggregateCache(time.Hour, time.Minute)
	c := NewTieredAggregateCache(local, remote, time.Minute)

	t.Run("remote hit fills local tier", func(t *testing.T) {
		require.NoError(t, remote.Set(ctx, "k1", []byte("v1"), time.Hour))

		data, ok, err := c.Get(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v1", string(data))

		_, inLocal, _ := local.Get(ctx, "k1")
		assert.True(t, inLocal)
	})

	t.Run("set writes both tiers", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k2", []byte("v2"), time.Hour))
		_, inLocal, _ := local.Get(ctx, "k2")
		_, inRemote, _ := remote.Get(ctx, "k2")
		assert.True(t, inLocal)
		assert.True(t, inRemote)
	})

	t.Run("delete prefix clears both tiers", func(t *testing.T) {
		require.NoError(t, c.DeletePrefix(ctx, "k"))
		_, inLocal, _ := local.Get(ctx, "k2")
		_, inRemote, _ := remote.Get(ctx, "k1")
		assert.False(t, inLocal)
		assert.False(t, inRemote)
	})
}

func TestTieredAggregateCache_RemoteFailure(t *testing.T) {
	ctx := context.Background()
	local := NewLocalAggregateCache(time.Minute, time.Minute)
	c := NewTieredAggregateCache(local, failingCache{}, time.Minute)

	_, ok, err := c.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, ok)

	assert.Error(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	// the local tier still serves this instance
	data, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(data))
}

// ============================================================================
// FACT PACK STORE
// ============================================================================

type memObjectStorage struct {
	objects map[string][]byte
}

func (m *memObjectStorage) UploadBytes(_ context.Context, bucket, name string, data []byte, _ string) error {
	m.objects[bucket+"/"+name] = append([]byte(nil), data...)
	return nil
}

func (m *memObjectStorage) GetBytes(_ context.Context, bucket, name string) ([]byte, bool, error) {
	data, ok := m.objects[bucket+"/"+name]
	return data, ok, nil
}

func (m *memObjectStorage) ListObjectNames(_ context.Context, bucket, prefix string) ([]string, error) {
	var names []string
	for k := range m.objects {
		name, found := strings.CutPrefix(k, bucket+"/")
		if found && strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func TestFactPackStore(t *testing.T) {
	ctx := context.Background()
	store := NewFactPackStore(&memObjectStorage{objects: map[string][]byte{}})

	location, err := store.Put(ctx, "district/gulu/FY/2024-07-01_2025-06-30.json", []byte(`{"n":1}`))
	require.NoError(t, err)
	assert.Equal(t, "impact-fact-packs/district/gulu/FY/2024-07-01_2025-06-30.json", location)

	data, ok, err := store.Get(ctx, "district/gulu/FY/2024-07-01_2025-06-30.json")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"n":1}`, string(data))

	_, ok, err = store.Get(ctx, "district/lira/FY/x.json")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := store.List(ctx, "district/gulu/")
	require.NoError(t, err)
	assert.Equal(t, []string{"district/gulu/FY/2024-07-01_2025-06-30.json"}, keys)

	none, err := store.List(ctx, "region/")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
