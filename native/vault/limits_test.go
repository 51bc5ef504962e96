package vault

import (
	"errors"
	"testing"
	"time"
)

func TestLimitConsumeAndRemaining(t *testing.T) {
	store := newTestStore(t)
	lt := NewLimitTracker(store)
	now := time.Unix(1_700_000_000, 0)
	lt.SetClock(func() time.Time { return now })
	wallet := testAddr(1)
	limit := mustUsd(t, "500")

	remaining, err := lt.CheckAndConsume(wallet, mustUsd(t, "200"), limit)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if remaining.Cmp(mustUsd(t, "300")) != 0 {
		t.Fatalf("expected 300 remaining, got %s", remaining)
	}
	if _, err := lt.CheckAndConsume(wallet, mustUsd(t, "300"), limit); err != nil {
		t.Fatalf("consume to cap: %v", err)
	}
	if _, err := lt.CheckAndConsume(wallet, mustUsd(t, "0.01"), limit); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	lifetime, err := lt.Lifetime(wallet)
	if err != nil {
		t.Fatalf("lifetime: %v", err)
	}
	if lifetime.Cmp(mustUsd(t, "500")) != 0 {
		t.Fatalf("expected lifetime 500, got %s", lifetime)
	}
}

func TestLimitRejectionNoPartial(t *testing.T) {
	store := newTestStore(t)
	lt := NewLimitTracker(store)
	now := time.Unix(1_700_000_000, 0)
	lt.SetClock(func() time.Time { return now })
	wallet := testAddr(2)
	limit := mustUsd(t, "100")

	if _, err := lt.CheckAndConsume(wallet, mustUsd(t, "60"), limit); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := lt.CheckAndConsume(wallet, mustUsd(t, "50"), limit); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	remaining, err := lt.Remaining(wallet, limit)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining.Cmp(mustUsd(t, "40")) != 0 {
		t.Fatalf("rejection must not consume, expected 40 remaining, got %s", remaining)
	}
	lifetime, err := lt.Lifetime(wallet)
	if err != nil {
		t.Fatalf("lifetime: %v", err)
	}
	if lifetime.Cmp(mustUsd(t, "60")) != 0 {
		t.Fatalf("rejection must not count toward lifetime, got %s", lifetime)
	}
}

func TestLimitWindowRolls(t *testing.T) {
	store := newTestStore(t)
	lt := NewLimitTracker(store)
	now := time.Unix(1_700_000_000, 0)
	lt.SetClock(func() time.Time { return now })
	wallet := testAddr(3)
	limit := mustUsd(t, "500")

	if _, err := lt.CheckAndConsume(wallet, mustUsd(t, "500"), limit); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := lt.CheckAndConsume(wallet, mustUsd(t, "1"), limit); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	now = now.Add(24 * time.Hour)
	remaining, err := lt.Remaining(wallet, limit)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining.Cmp(limit) != 0 {
		t.Fatalf("window must reset after 24h, got %s remaining", remaining)
	}

	// The new window anchors to this first use, not the calendar day.
	if _, err := lt.CheckAndConsume(wallet, mustUsd(t, "100"), limit); err != nil {
		t.Fatalf("consume in new window: %v", err)
	}
	now = now.Add(23 * time.Hour)
	remaining, err = lt.Remaining(wallet, limit)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining.Cmp(mustUsd(t, "400")) != 0 {
		t.Fatalf("window still open, expected 400, got %s", remaining)
	}
	now = now.Add(time.Hour)
	remaining, err = lt.Remaining(wallet, limit)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining.Cmp(limit) != 0 {
		t.Fatalf("window must roll at the 24h mark, got %s", remaining)
	}

	lifetime, err := lt.Lifetime(wallet)
	if err != nil {
		t.Fatalf("lifetime: %v", err)
	}
	if lifetime.Cmp(mustUsd(t, "600")) != 0 {
		t.Fatalf("lifetime spans windows, expected 600, got %s", lifetime)
	}
}

func TestLimitWalletsIndependent(t *testing.T) {
	store := newTestStore(t)
	lt := NewLimitTracker(store)
	now := time.Unix(1_700_000_000, 0)
	lt.SetClock(func() time.Time { return now })
	limit := mustUsd(t, "100")

	if _, err := lt.CheckAndConsume(testAddr(4), mustUsd(t, "100"), limit); err != nil {
		t.Fatalf("consume: %v", err)
	}
	remaining, err := lt.Remaining(testAddr(5), limit)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining.Cmp(limit) != 0 {
		t.Fatalf("limits are per wallet, expected full limit, got %s", remaining)
	}
}
