// Package quotestore persists crawled quote samples in a local
// single-file relational store and answers the engine's read-through
// "do we already have enough history" check.
package quotestore

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	cachekeys "palantir/internal/cache"
	"palantir/pkg/ingestion/coingecko"
)

const schema = `
CREATE TABLE IF NOT EXISTS quotes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    coin TEXT NOT NULL,
    vs_currency TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    price REAL NOT NULL,
    UNIQUE (coin, vs_currency, timestamp)
);`

// Store wraps a go-zero SqlConn over a pure-Go embedded SQLite database,
// matching the single table schema (id, coin, vs_currency, timestamp,
// price) the crawler prototype this system replaces used.
type Store struct {
	conn  sqlx.SqlConn
	cache gocache.Cache
	ttl   cachekeys.TTLSet
}

// Config enumerates Store's dependencies.
type Config struct {
	SQLConn sqlx.SqlConn
	Cache   gocache.Cache // optional; nil disables read-through caching
	TTL     cachekeys.TTLSet
}

// New wires a Store and ensures its schema exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.SQLConn == nil {
		return nil, fmt.Errorf("quotestore: SQLConn is required")
	}
	if _, err := cfg.SQLConn.ExecCtx(ctx, schema); err != nil {
		return nil, fmt.Errorf("quotestore: ensure schema: %w", err)
	}
	return &Store{conn: cfg.SQLConn, cache: cfg.Cache, ttl: cfg.TTL}, nil
}

// Open opens (creating if absent) a SQLite-backed Store at path via the
// pure-Go modernc.org/sqlite driver, registered under go-zero's "sqlite"
// driver name.
func Open(ctx context.Context, path string, cache gocache.Cache, ttl cachekeys.TTLSet) (*Store, error) {
	conn := sqlx.NewSqlConn("sqlite", path)
	return New(ctx, Config{SQLConn: conn, Cache: cache, TTL: ttl})
}

// EnsureFilled reports whether at least horizon samples already exist for
// coin against usd. When the cache holds a fresh "verified" marker for
// (coin, horizon) it trusts that without touching the database.
func (s *Store) EnsureFilled(ctx context.Context, coin string, horizon int) (bool, error) {
	key := cachekeys.QuoteFilledKey(coin, horizon)
	if filled, ok := s.cachedFilled(ctx, key); ok {
		return filled, nil
	}

	count, err := s.Count(ctx, coin, "usd")
	if err != nil {
		return false, err
	}
	filled := count >= horizon
	s.cacheFilled(ctx, key, filled)
	return filled, nil
}

// Count returns the number of stored samples for (coin, vsCurrency).
func (s *Store) Count(ctx context.Context, coin, vsCurrency string) (int, error) {
	var count int
	err := s.conn.QueryRowCtx(ctx, &count,
		`SELECT COUNT(*) FROM quotes WHERE coin = ? AND vs_currency = ?`, coin, vsCurrency)
	if err != nil {
		return 0, fmt.Errorf("quotestore: count %s/%s: %w", coin, vsCurrency, err)
	}
	return count, nil
}

// Insert upserts samples for (coin, vsCurrency), ignoring duplicates on
// the (coin, vs_currency, timestamp) unique constraint.
func (s *Store) Insert(ctx context.Context, coin, vsCurrency string, samples []coingecko.Sample) error {
	for _, sample := range samples {
		_, err := s.conn.ExecCtx(ctx,
			`INSERT OR IGNORE INTO quotes (coin, vs_currency, timestamp, price) VALUES (?, ?, ?, ?)`,
			coin, vsCurrency, sample.Timestamp, sample.Price)
		if err != nil {
			return fmt.Errorf("quotestore: insert %s/%s@%d: %w", coin, vsCurrency, sample.Timestamp, err)
		}
	}
	return nil
}

// Series returns the stored prices for (coin, vsCurrency) ordered by
// timestamp ascending, truncated or padded to exactly horizon entries by
// the caller's responsibility (Series itself returns whatever is stored).
func (s *Store) Series(ctx context.Context, coin, vsCurrency string) ([]float64, error) {
	var rows []struct {
		Price float64 `db:"price"`
	}
	err := s.conn.QueryRowsCtx(ctx, &rows,
		`SELECT price FROM quotes WHERE coin = ? AND vs_currency = ? ORDER BY timestamp ASC`,
		coin, vsCurrency)
	if err != nil {
		return nil, fmt.Errorf("quotestore: series %s/%s: %w", coin, vsCurrency, err)
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Price
	}
	return out, nil
}

func (s *Store) cachedFilled(ctx context.Context, key string) (bool, bool) {
	if s.cache == nil {
		return false, false
	}
	var filled bool
	err := s.cache.GetCtx(ctx, key, &filled)
	if err == nil {
		return filled, true
	}
	if !s.cache.IsNotFound(err) {
		logx.WithContext(ctx).Errorf("quotestore: read cache key=%s err=%v", key, err)
	}
	return false, false
}

func (s *Store) cacheFilled(ctx context.Context, key string, filled bool) {
	if s.cache == nil {
		return
	}
	ttl := s.ttl.Duration(cachekeys.TTLShort)
	if ttl <= 0 {
		return
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, filled, ttl); err != nil {
		logx.WithContext(ctx).Errorf("quotestore: write cache key=%s err=%v", key, err)
	}
}
