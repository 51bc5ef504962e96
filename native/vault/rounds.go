package vault

import (
	"fmt"
	"math/big"
	"time"
)

type storedRound struct {
	ID           uint64
	FundedUsd    string
	RemainingUsd string
	StartTime    uint64
	DelaySeconds uint64
	Active       bool
}

func toStoredRound(r *Round) storedRound {
	stored := storedRound{
		ID:           r.ID,
		DelaySeconds: r.DelaySeconds,
		Active:       r.Active,
	}
	if r.FundedUsd != nil {
		stored.FundedUsd = r.FundedUsd.String()
	}
	if r.RemainingUsd != nil {
		stored.RemainingUsd = r.RemainingUsd.String()
	}
	if r.StartTime > 0 {
		stored.StartTime = uint64(r.StartTime)
	}
	return stored
}

func fromStoredRound(stored *storedRound) (*Round, error) {
	funded, err := parseAmount(stored.FundedUsd)
	if err != nil {
		return nil, fmt.Errorf("vault: round funded amount: %w", err)
	}
	remaining, err := parseAmount(stored.RemainingUsd)
	if err != nil {
		return nil, fmt.Errorf("vault: round remaining amount: %w", err)
	}
	return &Round{
		ID:           stored.ID,
		FundedUsd:    funded,
		RemainingUsd: remaining,
		StartTime:    int64(stored.StartTime),
		DelaySeconds: stored.DelaySeconds,
		Active:       stored.Active,
	}, nil
}

// RoundManager tracks the funding round lifecycle within storage. Lock state
// is never cached: every access recomputes it from the injected clock.
type RoundManager struct {
	store Storage
	clock func() time.Time
}

// NewRoundManager constructs a round manager bound to the provided storage.
func NewRoundManager(store Storage) *RoundManager {
	return &RoundManager{store: store, clock: time.Now}
}

// SetClock overrides the wall-clock, enabling deterministic tests.
func (rm *RoundManager) SetClock(clock func() time.Time) {
	if rm == nil || clock == nil {
		return
	}
	rm.clock = clock
}

// Current returns the stored round, active or not.
func (rm *RoundManager) Current() (*Round, bool, error) {
	if rm == nil {
		return nil, false, fmt.Errorf("round manager not initialised")
	}
	var stored storedRound
	ok, err := rm.store.KVGet(roundCurrentKey, &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	round, err := fromStoredRound(&stored)
	if err != nil {
		return nil, false, err
	}
	return round, true, nil
}

func (rm *RoundManager) put(round *Round) error {
	return rm.store.KVPut(roundCurrentKey, toStoredRound(round))
}

// Fund adds allocation to the active round, or opens a new locked round when
// none is active. The returned boolean reports whether a round was opened.
// Topping up an active round never resets its clock: an existing lock runs
// its full course and an open round stays open.
func (rm *RoundManager) Fund(amountUsd *big.Int, delaySeconds uint64) (*Round, bool, error) {
	if rm == nil {
		return nil, false, fmt.Errorf("round manager not initialised")
	}
	if amountUsd == nil || amountUsd.Sign() <= 0 {
		return nil, false, ErrInvalidParameters
	}
	current, ok, err := rm.Current()
	if err != nil {
		return nil, false, err
	}
	if ok && current.Active {
		current.FundedUsd = new(big.Int).Add(current.FundedUsd, amountUsd)
		current.RemainingUsd = new(big.Int).Add(current.RemainingUsd, amountUsd)
		if err := rm.put(current); err != nil {
			return nil, false, err
		}
		return current, false, nil
	}
	return rm.open(amountUsd, delaySeconds, current)
}

// StartNewRound supersedes any current round and opens a fresh locked one
// with the full delay re-imposed.
func (rm *RoundManager) StartNewRound(amountUsd *big.Int, delaySeconds uint64) (*Round, error) {
	if rm == nil {
		return nil, fmt.Errorf("round manager not initialised")
	}
	if amountUsd == nil || amountUsd.Sign() <= 0 {
		return nil, ErrInvalidParameters
	}
	current, _, err := rm.Current()
	if err != nil {
		return nil, err
	}
	round, _, err := rm.open(amountUsd, delaySeconds, current)
	return round, err
}

func (rm *RoundManager) open(amountUsd *big.Int, delaySeconds uint64, prev *Round) (*Round, bool, error) {
	var id uint64 = 1
	if prev != nil {
		id = prev.ID + 1
	}
	round := &Round{
		ID:           id,
		FundedUsd:    new(big.Int).Set(amountUsd),
		RemainingUsd: new(big.Int).Set(amountUsd),
		StartTime:    rm.clock().UTC().Unix(),
		DelaySeconds: delaySeconds,
		Active:       true,
	}
	if err := rm.put(round); err != nil {
		return nil, false, err
	}
	return round, true, nil
}

// IsLocked reports whether redemptions are gated right now. A vault with no
// active round reports locked.
func (rm *RoundManager) IsLocked() (bool, error) {
	if rm == nil {
		return true, fmt.Errorf("round manager not initialised")
	}
	round, ok, err := rm.Current()
	if err != nil {
		return true, err
	}
	if !ok || !round.Active {
		return true, nil
	}
	return rm.locked(round), nil
}

func (rm *RoundManager) locked(round *Round) bool {
	opensAt := round.StartTime + int64(round.DelaySeconds)
	return rm.clock().UTC().Unix() < opensAt
}

// RemainingAllocation returns the active round's redeemable USD, zero when no
// round is active.
func (rm *RoundManager) RemainingAllocation() (*big.Int, error) {
	if rm == nil {
		return nil, fmt.Errorf("round manager not initialised")
	}
	round, ok, err := rm.Current()
	if err != nil {
		return nil, err
	}
	if !ok || !round.Active {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(round.RemainingUsd), nil
}

// Gate validates that the round admits a redemption of the supplied amount
// right now, without consuming allocation.
func (rm *RoundManager) Gate(amountUsd *big.Int) (*Round, error) {
	if rm == nil {
		return nil, fmt.Errorf("round manager not initialised")
	}
	round, ok, err := rm.Current()
	if err != nil {
		return nil, err
	}
	if !ok || !round.Active || round.RemainingUsd.Sign() == 0 {
		return nil, ErrRoundExhausted
	}
	if rm.locked(round) {
		return nil, ErrRoundLocked
	}
	if amountUsd != nil && round.RemainingUsd.Cmp(amountUsd) < 0 {
		return nil, ErrRoundExhausted
	}
	return round, nil
}

// Consume deducts exactly the settled USD amount from the active round,
// deactivating it when the allocation reaches zero.
func (rm *RoundManager) Consume(amountUsd *big.Int) (*Round, error) {
	round, err := rm.Gate(amountUsd)
	if err != nil {
		return nil, err
	}
	round.RemainingUsd = new(big.Int).Sub(round.RemainingUsd, amountUsd)
	if round.RemainingUsd.Sign() == 0 {
		round.Active = false
	}
	if err := rm.put(round); err != nil {
		return nil, err
	}
	return round, nil
}
