package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/p-n-ai/pai-quiz/internal/credits"
)

var _ credits.Locker = (*Locker)(nil)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"wrong-scheme", "http://localhost:6379", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, "redis://localhost:59999")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

func newRedis(t *testing.T) *Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := t.Context()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}

	url, err := container.PortEndpoint(ctx, "6379/tcp", "redis")
	if err != nil {
		t.Fatalf("PortEndpoint() error = %v", err)
	}
	c, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLocker_Redis(t *testing.T) {
	c := newRedis(t)

	t.Run("serializes one key", func(t *testing.T) {
		locker := c.Locker(time.Minute)
		var (
			active  atomic.Int32
			overlap atomic.Bool
			wg      sync.WaitGroup
		)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(t.Context(), "owner-1")
				if err != nil {
					t.Errorf("Lock() error = %v", err)
					return
				}
				if active.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(10 * time.Millisecond)
				active.Add(-1)
				unlock()
			}()
		}
		wg.Wait()
		if overlap.Load() {
			t.Error("two holders held the same key at once")
		}
	})

	t.Run("waiter gives up when ctx is done", func(t *testing.T) {
		locker := c.Locker(time.Minute)
		unlock, err := locker.Lock(t.Context(), "owner-2")
		if err != nil {
			t.Fatalf("Lock() error = %v", err)
		}
		defer unlock()

		ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
		defer cancel()
		if _, err := locker.Lock(ctx, "owner-2"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Lock() error = %v, want deadline exceeded", err)
		}
	})

	t.Run("expired lock is not released by its old holder", func(t *testing.T) {
		locker := c.Locker(100 * time.Millisecond)
		stale, err := locker.Lock(t.Context(), "owner-3")
		if err != nil {
			t.Fatalf("Lock() error = %v", err)
		}
		time.Sleep(200 * time.Millisecond)

		fresh, err := locker.Lock(t.Context(), "owner-3")
		if err != nil {
			t.Fatalf("Lock() after expiry error = %v", err)
		}
		stale()

		n, err := c.Client.Exists(t.Context(), lockPrefix+"owner-3").Result()
		if err != nil {
			t.Fatalf("Exists() error = %v", err)
		}
		if n != 1 {
			t.Error("stale unlock deleted the new holder's key")
		}
		fresh()
	})
}
