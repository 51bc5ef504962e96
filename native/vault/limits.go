package vault

import (
	"fmt"
	"math/big"
	"time"
)

// dailyWindow is the rolling interval bounding one wallet's redeemable USD.
// The window anchors to the wallet's first usage after the prior window
// elapsed, not to a calendar boundary.
const dailyWindow = 24 * time.Hour

type storedUsage struct {
	WindowStart uint64
	UsedUsd     string
}

// LimitTracker maintains per-wallet daily windows and lifetime counters
// within storage.
type LimitTracker struct {
	store Storage
	clock func() time.Time
}

// NewLimitTracker constructs a tracker bound to the provided storage.
func NewLimitTracker(store Storage) *LimitTracker {
	return &LimitTracker{store: store, clock: time.Now}
}

// SetClock overrides the time source, enabling deterministic unit tests.
func (lt *LimitTracker) SetClock(clock func() time.Time) {
	if lt == nil || clock == nil {
		return
	}
	lt.clock = clock
}

func (lt *LimitTracker) load(addr [20]byte) (*DailyUsage, error) {
	var stored storedUsage
	ok, err := lt.store.KVGet(usageDailyKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &DailyUsage{UsedUsd: big.NewInt(0)}, nil
	}
	used, err := parseAmount(stored.UsedUsd)
	if err != nil {
		return nil, fmt.Errorf("vault: daily usage: %w", err)
	}
	return &DailyUsage{WindowStart: int64(stored.WindowStart), UsedUsd: used}, nil
}

// rolled applies the lazy window reset without persisting it. Callers that
// consume persist the rolled record; pure reads stay side-effect free.
func (lt *LimitTracker) rolled(addr [20]byte) (*DailyUsage, error) {
	usage, err := lt.load(addr)
	if err != nil {
		return nil, err
	}
	now := lt.clock().UTC().Unix()
	if usage.WindowStart == 0 || now-usage.WindowStart >= int64(dailyWindow/time.Second) {
		usage.WindowStart = now
		usage.UsedUsd = big.NewInt(0)
	}
	return usage, nil
}

// CheckAndConsume enforces the daily cap and records the consumption. It
// fails with ErrLimitExceeded without partial consumption and returns the
// USD remaining in the window after the deduction.
func (lt *LimitTracker) CheckAndConsume(addr [20]byte, amountUsd, limitUsd *big.Int) (*big.Int, error) {
	if lt == nil {
		return nil, fmt.Errorf("limit tracker not initialised")
	}
	if amountUsd == nil || amountUsd.Sign() <= 0 {
		return nil, ErrInvalidParameters
	}
	if limitUsd == nil || limitUsd.Sign() < 0 {
		return nil, ErrInvalidParameters
	}
	usage, err := lt.rolled(addr)
	if err != nil {
		return nil, err
	}
	projected := new(big.Int).Add(usage.UsedUsd, amountUsd)
	if projected.Cmp(limitUsd) > 0 {
		return nil, ErrLimitExceeded
	}
	stored := storedUsage{WindowStart: uint64(usage.WindowStart), UsedUsd: projected.String()}
	if err := lt.store.KVPut(usageDailyKey(addr), stored); err != nil {
		return nil, err
	}
	if err := lt.recordLifetime(addr, amountUsd); err != nil {
		return nil, err
	}
	return new(big.Int).Sub(limitUsd, projected), nil
}

// Remaining reports the USD still redeemable in the wallet's current window.
func (lt *LimitTracker) Remaining(addr [20]byte, limitUsd *big.Int) (*big.Int, error) {
	if lt == nil {
		return nil, fmt.Errorf("limit tracker not initialised")
	}
	if limitUsd == nil {
		return big.NewInt(0), nil
	}
	usage, err := lt.rolled(addr)
	if err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(limitUsd, usage.UsedUsd)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	return remaining, nil
}

// Lifetime returns the wallet's cumulative settled USD across all windows.
func (lt *LimitTracker) Lifetime(addr [20]byte) (*big.Int, error) {
	if lt == nil {
		return nil, fmt.Errorf("limit tracker not initialised")
	}
	var record amountRecord
	ok, err := lt.store.KVGet(usageLifetimeKey(addr), &record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseAmount(record.Amount)
}

func (lt *LimitTracker) recordLifetime(addr [20]byte, amountUsd *big.Int) error {
	current, err := lt.Lifetime(addr)
	if err != nil {
		return err
	}
	updated := new(big.Int).Add(current, amountUsd)
	return lt.store.KVPut(usageLifetimeKey(addr), amountRecord{Amount: updated.String()})
}
