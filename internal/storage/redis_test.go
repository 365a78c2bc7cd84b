package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ath-watcher/internal/config"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	store := NewRedisStore(client, "test", "bitcoin", testLogger())
	t.Cleanup(store.Close)
	return store, mr
}

func TestRedisStoreLoadMissingIsZero(t *testing.T) {
	store, _ := newRedisStore(t)
	if store.Key() != "test:ath:bitcoin" {
		t.Fatalf("unexpected key %q", store.Key())
	}
	if got := store.Load(context.Background()); got != 0 {
		t.Fatalf("missing key should load as 0, got %d", got)
	}
}

func TestRedisStoreCorruptIsZero(t *testing.T) {
	store, mr := newRedisStore(t)
	if err := mr.Set(store.Key(), "not-a-number"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got := store.Load(context.Background()); got != 0 {
		t.Fatalf("corrupt value should load as 0, got %d", got)
	}

	if err := store.Save(context.Background(), 7); err != nil {
		t.Fatalf("corrupt record should be replaced: %v", err)
	}
	if got := store.Load(context.Background()); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestRedisStoreSaveIsConditional(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, 45000); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := mr.Get(store.Key())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "45000" {
		t.Fatalf("key should hold the decimal string, got %q", got)
	}

	for _, v := range []uint64{45000, 9999} {
		if err := store.Save(ctx, v); !errors.Is(err, ErrNotAdvanced) {
			t.Fatalf("save(%d) should be rejected with ErrNotAdvanced, got %v", v, err)
		}
	}
	if err := store.Save(ctx, 100000000); err != nil {
		t.Fatalf("higher value should advance: %v", err)
	}
	if got := store.Load(ctx); got != 100000000 {
		t.Fatalf("expected 100000000, got %d", got)
	}
}

func TestRedisStoreComparesBeyondFloatPrecision(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	const big = uint64(1<<63 + 1)
	if err := store.Save(ctx, big); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, big-1); !errors.Is(err, ErrNotAdvanced) {
		t.Fatalf("big-1 must not advance, got %v", err)
	}
	if err := store.Save(ctx, big+1); err != nil {
		t.Fatalf("big+1 should advance: %v", err)
	}
	if got := store.Load(ctx); got != big+1 {
		t.Fatalf("expected %d, got %d", big+1, got)
	}
}

func TestRedisStoreLeadingZerosCompareNumerically(t *testing.T) {
	store, mr := newRedisStore(t)
	if err := mr.Set(store.Key(), "0045000"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Save(context.Background(), 44000); !errors.Is(err, ErrNotAdvanced) {
		t.Fatalf("44000 must not beat 0045000, got %v", err)
	}
	if err := store.Save(context.Background(), 46000); err != nil {
		t.Fatalf("46000 should advance: %v", err)
	}
}

func TestRedisStoreUnconfigured(t *testing.T) {
	var store *RedisStore
	if got := store.Load(context.Background()); got != 0 {
		t.Fatalf("nil store should load 0, got %d", got)
	}
	if err := store.Save(context.Background(), 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	if _, err := NewRedisClient(context.Background(), config.RedisConfig{}); err == nil {
		t.Fatal("empty addr should fail")
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	store := NewRedisStore(client, "", "bitcoin", testLogger())
	defer store.Close()

	if store.Key() != "athwatcher:ath:bitcoin" {
		t.Fatalf("default prefix expected, got %q", store.Key())
	}
	if got := store.Load(context.Background()); got != 0 {
		t.Fatalf("unreachable redis should load 0, got %d", got)
	}
	err := store.Save(context.Background(), 1)
	if err == nil || errors.Is(err, ErrNotAdvanced) {
		t.Fatalf("unreachable redis should surface a transport error, got %v", err)
	}
}
