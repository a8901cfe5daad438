package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledassalon/slotbot/internal/store"
)

type countingRows struct {
	reads     int
	rows      [][]string
	appendErr error
}

func (c *countingRows) ReadAll(context.Context, string) ([][]string, error) {
	c.reads++
	return c.rows, nil
}

func (c *countingRows) Append(_ context.Context, _ string, row []string) error {
	if c.appendErr != nil {
		return c.appendErr
	}
	c.rows = append(c.rows, row)
	return nil
}

func (c *countingRows) UpdateCell(_ context.Context, _ string, row, col int, value string) error {
	c.rows[row-1][col-1] = value
	return nil
}

func (c *countingRows) DeleteRow(_ context.Context, _ string, row int) error {
	c.rows = append(c.rows[:row-1], c.rows[row:]...)
	return nil
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok := m.Get(ctx, "missing"); ok {
		t.Fatalf("hit on an empty cache")
	}
	m.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := m.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected v, got %q ok=%v", got, ok)
	}
	m.Delete(ctx, "k")
	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatalf("hit after delete")
	}
}

func TestMemoryBackendExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Set(ctx, "k", []byte("v"), -time.Second)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatalf("expired entry served")
	}
}

func TestRowsReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingRows{rows: [][]string{{"id"}, {"1"}}}
	rows := NewRows(inner, NewMemory(), DefaultTTLs())

	for i := 0; i < 3; i++ {
		got, err := rows.ReadAll(ctx, store.TableBookings)
		if err != nil {
			t.Fatalf("read #%d: %v", i+1, err)
		}
		if len(got) != 2 {
			t.Fatalf("read #%d: expected 2 rows, got %d", i+1, len(got))
		}
	}
	if inner.reads != 1 {
		t.Fatalf("expected a single inner read, got %d", inner.reads)
	}
}

func TestRowsWriteInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := &countingRows{rows: [][]string{{"id"}}}
	rows := NewRows(inner, NewMemory(), DefaultTTLs())

	if _, err := rows.ReadAll(ctx, store.TableBookings); err != nil {
		t.Fatalf("warm read: %v", err)
	}
	if err := rows.Append(ctx, store.TableBookings, []string{"1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := rows.ReadAll(ctx, store.TableBookings)
	if err != nil {
		t.Fatalf("read after write: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("stale read after write: %d rows", len(got))
	}
	if inner.reads != 2 {
		t.Fatalf("expected the write to invalidate, inner reads = %d", inner.reads)
	}
}

// Invalidation happens only after the inner write lands; a failed write
// must leave the cached snapshot alone, and a delete-before-write would
// let a racing reader re-fill the cache with pre-write data.
func TestRowsFailedWriteKeepsCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingRows{rows: [][]string{{"id"}}}
	rows := NewRows(inner, NewMemory(), DefaultTTLs())

	if _, err := rows.ReadAll(ctx, store.TableBookings); err != nil {
		t.Fatalf("warm read: %v", err)
	}
	inner.appendErr = errors.New("write refused")
	if err := rows.Append(ctx, store.TableBookings, []string{"1"}); err == nil {
		t.Fatalf("expected the inner error to surface")
	}
	if _, err := rows.ReadAll(ctx, store.TableBookings); err != nil {
		t.Fatalf("read after failed write: %v", err)
	}
	if inner.reads != 1 {
		t.Fatalf("cache invalidated before the write landed, inner reads = %d", inner.reads)
	}
}

func TestRowsUncachedTablePassesThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingRows{rows: [][]string{{"key", "value"}}}
	rows := NewRows(inner, NewMemory(), DefaultTTLs())

	for i := 0; i < 2; i++ {
		if _, err := rows.ReadAll(ctx, store.TableSettings); err != nil {
			t.Fatalf("read #%d: %v", i+1, err)
		}
	}
	if inner.reads != 2 {
		t.Fatalf("settings reads should bypass the cache, inner reads = %d", inner.reads)
	}
}
