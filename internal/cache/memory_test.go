package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, m.Len())
}

func TestMemorySetIfNewer(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.SetIfNewer(ctx, "b", 7, []byte("v7"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetIfNewer(ctx, "b", 6, []byte("v6"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := m.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("v7"), got)

	require.NoError(t, m.Delete(ctx, "b"))
	ok, err = m.SetIfNewer(ctx, "b", 6, []byte("v6"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryDeleteByPrefix(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, EntriesPrefix("u1")+"a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, EntriesPrefix("u1")+"b", []byte("2"), time.Minute))
	require.NoError(t, m.Set(ctx, EntriesPrefix("u10")+"a", []byte("3"), time.Minute))
	require.NoError(t, m.Set(ctx, BalanceKey("u1"), []byte("4"), time.Minute))

	require.NoError(t, m.DeleteByPrefix(ctx, EntriesPrefix("u1")))

	assert.Equal(t, 2, m.Len())
	_, err := m.Get(ctx, EntriesPrefix("u10")+"a")
	assert.NoError(t, err, "hash tag keeps u10 listings out of the u1 prefix")
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value, time.Minute))
	value[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'y'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}
