package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrPaused indicates the vault is globally paused.
	ErrPaused = errors.New("vault: paused")
	// ErrTokenNotSupported indicates the redeemed token is unknown or disabled.
	ErrTokenNotSupported = errors.New("vault: token not supported")
	// ErrNotEligible indicates the wallet failed whitelist verification.
	ErrNotEligible = errors.New("vault: wallet not eligible")
	// ErrRoundLocked indicates the active round has not passed its opening delay.
	ErrRoundLocked = errors.New("vault: round locked")
	// ErrRoundExhausted indicates no active round holds redeemable allocation.
	ErrRoundExhausted = errors.New("vault: round exhausted")
	// ErrLimitExceeded indicates the wallet's daily window cannot absorb the amount.
	ErrLimitExceeded = errors.New("vault: daily limit exceeded")
	// ErrInsufficientLiquidity indicates no payout path can cover the amount.
	ErrInsufficientLiquidity = errors.New("vault: insufficient liquidity")
	// ErrInvalidOraclePrice indicates the oracle quote was stale or out of bounds.
	ErrInvalidOraclePrice = errors.New("vault: invalid oracle price")
	// ErrUnauthorized indicates the caller does not hold the governance authority.
	ErrUnauthorized = errors.New("vault: unauthorized")
	// ErrInvalidParameters indicates a malformed governance update or request.
	ErrInvalidParameters = errors.New("vault: invalid parameters")
	// ErrReentrancy indicates a nested call arrived while another was in flight.
	ErrReentrancy = errors.New("vault: call already in progress")
	// ErrPayoutFailed indicates the external payout rail rejected the transfer.
	ErrPayoutFailed = errors.New("vault: payout transfer failed")
)

// PayoutFailure carries the asset whose transfer failed alongside the rail
// error. It matches ErrPayoutFailed under errors.Is.
type PayoutFailure struct {
	Asset string
	Err   error
}

func (e *PayoutFailure) Error() string {
	return fmt.Sprintf("vault: payout transfer %s: %v", e.Asset, e.Err)
}

func (e *PayoutFailure) Unwrap() error { return e.Err }

func (e *PayoutFailure) Is(target error) bool { return target == ErrPayoutFailed }
