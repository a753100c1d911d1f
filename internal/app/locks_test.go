package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
)

func TestLockManagerBoundedWait(t *testing.T) {
	m := app.NewLockManager(30 * time.Millisecond)
	ctx := context.Background()

	unlock, err := m.Lock(ctx, "r1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := m.Lock(ctx, "r1"); !errors.Is(err, domain.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}

	// other rooms do not contend
	u2, err := m.Lock(ctx, "r2")
	if err != nil {
		t.Fatalf("lock r2: %v", err)
	}
	u2()

	unlock()
	u3, err := m.Lock(ctx, "r1", "r2")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	u3()
}

func TestLockManagerReleasesPartialAcquisition(t *testing.T) {
	m := app.NewLockManager(30 * time.Millisecond)
	ctx := context.Background()

	u2, _ := m.Lock(ctx, "r2")
	if _, err := m.Lock(ctx, "r2", "r1"); !errors.Is(err, domain.ErrLockTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	u2()
	// r1 was acquired first (sorted) and must have been released
	u1, err := m.Lock(ctx, "r1")
	if err != nil {
		t.Fatalf("r1 leaked: %v", err)
	}
	u1()
}

func TestLockManagerParentCancel(t *testing.T) {
	m := app.NewLockManager(time.Second)
	unlock, _ := m.Lock(context.Background(), "r1")
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Lock(ctx, "r1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
