package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poiatlas/pkg/db"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewSQLiteStore(d)
}

func TestSQLiteStore_Cache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := bytes.Repeat([]byte(`{"label":"Mosteiro dos Jerónimos"}`), 50)
	require.NoError(t, s.SetCache(ctx, "poi:42", payload, time.Hour))

	got, ok := s.GetCache(ctx, "poi:42")
	require.True(t, ok)
	assert.Equal(t, payload, got)

	has, err := s.HasCache(ctx, "poi:42")
	require.NoError(t, err)
	assert.True(t, has)

	// Stored compressed
	var raw []byte
	require.NoError(t, s.db.QueryRow("SELECT value FROM cache WHERE key = ?", "poi:42").Scan(&raw))
	assert.Less(t, len(raw), len(payload))

	_, ok = s.GetCache(ctx, "poi:missing")
	assert.False(t, ok)

	require.NoError(t, s.DeleteCache(ctx, "poi:42"))
	_, ok = s.GetCache(ctx, "poi:42")
	assert.False(t, ok)
	require.NoError(t, s.DeleteCache(ctx, "poi:42"))
}

func TestSQLiteStore_CacheExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetCache(ctx, "short", []byte("v"), time.Hour))
	require.NoError(t, s.SetCache(ctx, "forever", []byte("v"), 0))

	_, ok := s.GetCache(ctx, "short")
	assert.True(t, ok)

	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, ok = s.GetCache(ctx, "short")
	assert.False(t, ok, "expired entry must be a miss")
	_, ok = s.GetCache(ctx, "forever")
	assert.True(t, ok)

	keys, err := s.ListCacheKeys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"forever"}, keys)
}

func TestSQLiteStore_ListCacheKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"poi:2", "poi:1", "wikipedia:x"} {
		require.NoError(t, s.SetCache(ctx, k, []byte("v"), time.Hour))
	}
	keys, err := s.ListCacheKeys(ctx, "poi:")
	require.NoError(t, err)
	assert.Equal(t, []string{"poi:1", "poi:2"}, keys)
}

func TestSQLiteStore_State(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found := s.GetState(ctx, "k")
	assert.False(t, found)

	require.NoError(t, s.SetState(ctx, "k", "v"))
	val, found := s.GetState(ctx, "k")
	assert.True(t, found)
	assert.Equal(t, "v", val)

	require.NoError(t, s.DeleteState(ctx, "k"))
	_, found = s.GetState(ctx, "k")
	assert.False(t, found)
}
