// Package cache gives table reads a short TTL so menu rendering does not
// hammer the spreadsheet API. Writes invalidate the written table.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledassalon/slotbot/internal/store"
)

// Backend stores raw table snapshots for a bounded lifetime.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory is the in-process backend.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expires: time.Now().Add(ttl)}
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Redis is the shared backend; a miss on any error keeps the store
// authoritative.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedis(addr string, logger *slog.Logger) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger,
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("redis get failed", "key", key, "err", err)
		}
		return nil, false
	}
	return raw, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Warn("redis set failed", "key", key, "err", err)
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Warn("redis del failed", "key", key, "err", err)
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Rows wraps a RowStore with per-table read caching.
type Rows struct {
	inner store.RowStore
	back  Backend
	ttls  map[string]time.Duration
}

// DefaultTTLs mirrors how volatile each table is: bookings and the queue
// go stale in seconds, the catalog and services can lag longer.
func DefaultTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		store.TableServices:    30 * time.Second,
		store.TableSlotCatalog: 20 * time.Second,
		store.TableBookings:    8 * time.Second,
		store.TableClients:     30 * time.Second,
	}
}

func NewRows(inner store.RowStore, back Backend, ttls map[string]time.Duration) *Rows {
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	return &Rows{inner: inner, back: back, ttls: ttls}
}

func (c *Rows) ReadAll(ctx context.Context, table string) ([][]string, error) {
	ttl, cacheable := c.ttls[table]
	if !cacheable {
		return c.inner.ReadAll(ctx, table)
	}
	key := "rows:" + table
	if raw, ok := c.back.Get(ctx, key); ok {
		var rows [][]string
		if err := json.Unmarshal(raw, &rows); err == nil {
			return rows, nil
		}
	}
	rows, err := c.inner.ReadAll(ctx, table)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(rows); err == nil {
		c.back.Set(ctx, key, raw, ttl)
	}
	return rows, nil
}

// Writes invalidate only after the inner write lands. Deleting first
// would let a concurrent reader re-fill the cache with the pre-write
// snapshot and serve it for a full TTL.
func (c *Rows) Append(ctx context.Context, table string, row []string) error {
	if err := c.inner.Append(ctx, table, row); err != nil {
		return err
	}
	c.back.Delete(ctx, "rows:"+table)
	return nil
}

func (c *Rows) UpdateCell(ctx context.Context, table string, row, col int, value string) error {
	if err := c.inner.UpdateCell(ctx, table, row, col, value); err != nil {
		return err
	}
	c.back.Delete(ctx, "rows:"+table)
	return nil
}

func (c *Rows) DeleteRow(ctx context.Context, table string, row int) error {
	if err := c.inner.DeleteRow(ctx, table, row); err != nil {
		return err
	}
	c.back.Delete(ctx, "rows:"+table)
	return nil
}
