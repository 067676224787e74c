package quotestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"palantir/internal/cache"
	"palantir/internal/persistence/quotestore"
	"palantir/pkg/ingestion/coingecko"
)

func newStore(t *testing.T) *quotestore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quotes.db")
	store, err := quotestore.Open(context.Background(), path, nil, cache.TTLSet{})
	assert.NoError(t, err)
	return store
}

func TestInsertAndCount(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.Insert(ctx, "bitcoin", "usd", []coingecko.Sample{
		{Timestamp: 100, Price: 30000},
		{Timestamp: 200, Price: 30100},
	})
	assert.NoError(t, err)

	count, err := store.Count(ctx, "bitcoin", "usd")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInsert_DeduplicatesOnTimestamp(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	samples := []coingecko.Sample{{Timestamp: 100, Price: 30000}}
	assert.NoError(t, store.Insert(ctx, "bitcoin", "usd", samples))
	assert.NoError(t, store.Insert(ctx, "bitcoin", "usd", samples))

	count, err := store.Count(ctx, "bitcoin", "usd")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEnsureFilled(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	filled, err := store.EnsureFilled(ctx, "bitcoin", 3)
	assert.NoError(t, err)
	assert.False(t, filled)

	assert.NoError(t, store.Insert(ctx, "bitcoin", "usd", []coingecko.Sample{
		{Timestamp: 1, Price: 1},
		{Timestamp: 2, Price: 2},
		{Timestamp: 3, Price: 3},
	}))

	filled, err = store.EnsureFilled(ctx, "bitcoin", 3)
	assert.NoError(t, err)
	assert.True(t, filled)
}

func TestSeries_OrderedByTimestamp(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	assert.NoError(t, store.Insert(ctx, "bitcoin", "usd", []coingecko.Sample{
		{Timestamp: 300, Price: 3},
		{Timestamp: 100, Price: 1},
		{Timestamp: 200, Price: 2},
	}))

	series, err := store.Series(ctx, "bitcoin", "usd")
	assert.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, series)
}
