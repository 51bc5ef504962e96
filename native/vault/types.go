package vault

import "math/big"

// UsdDecimals is the fixed-point scale for all USD-denominated amounts. USD
// values travel as *big.Int scaled by 10^18, matching the payout assets' wei
// convention so conversions never cross representations.
const UsdDecimals = 18

// UsdScale returns a fresh 10^18 multiplier.
func UsdScale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(UsdDecimals), nil)
}

// Storage exposes the state access required by the vault engines.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// AssetConfig describes one payout asset held by the vault.
type AssetConfig struct {
	Symbol   string
	Decimals uint8
}

// TokenConfig describes a redeemable depegged token. UsdRate is the
// governance-fixed valuation in USD per whole token; Enabled gates new
// redemptions without touching settled ones; BurnOnRedeem destroys pulled
// tokens instead of retaining them in the vault.
type TokenConfig struct {
	Symbol       string
	Decimals     uint8
	UsdRate      *big.Rat
	Enabled      bool
	BurnOnRedeem bool
}

// Clone returns a deep copy of the token configuration.
func (c TokenConfig) Clone() TokenConfig {
	clone := c
	if c.UsdRate != nil {
		clone.UsdRate = new(big.Rat).Set(c.UsdRate)
	}
	return clone
}

// Round is a funded, time-gated allocation of redeemable USD value.
type Round struct {
	ID           uint64
	FundedUsd    *big.Int
	RemainingUsd *big.Int
	StartTime    int64
	DelaySeconds uint64
	Active       bool
}

// Copy returns a deep copy of the round for defensive use by callers.
func (r *Round) Copy() *Round {
	if r == nil {
		return nil
	}
	clone := *r
	if r.FundedUsd != nil {
		clone.FundedUsd = new(big.Int).Set(r.FundedUsd)
	}
	if r.RemainingUsd != nil {
		clone.RemainingUsd = new(big.Int).Set(r.RemainingUsd)
	}
	return &clone
}

// DailyUsage tracks a wallet's consumption inside its current 24h window.
type DailyUsage struct {
	WindowStart int64
	UsedUsd     *big.Int
}

// FeeTier binds a basis threshold to the fee charged once the basis meets or
// exceeds it. Thresholds are USD amounts at UsdDecimals scale.
type FeeTier struct {
	ThresholdUsd *big.Int
	FeeBps       uint64
}

// FeeBasis selects which signal drives tier selection.
type FeeBasis string

const (
	// FeeBasisRequest sizes the tier from the requested USD amount.
	FeeBasisRequest FeeBasis = "request"
	// FeeBasisLifetime sizes the tier from the wallet's cumulative settled USD.
	FeeBasisLifetime FeeBasis = "lifetime"
	// FeeBasisRemaining sizes the tier from the wallet's remaining daily room.
	FeeBasisRemaining FeeBasis = "remaining"
)

// RedemptionReceipt records one settled redemption. Receipts are the durable
// audit trail alongside emitted events.
type RedemptionReceipt struct {
	ReceiptID    string
	Wallet       [20]byte
	TokenIn      string
	TokenAmount  *big.Int
	AmountUsd    *big.Int
	FeeUsd       *big.Int
	PayoutAsset  string
	PayoutAmount *big.Int
	RoundID      uint64
	SettledAt    int64
	Burned       bool
}

// Copy returns a deep copy of the receipt.
func (r *RedemptionReceipt) Copy() *RedemptionReceipt {
	if r == nil {
		return nil
	}
	clone := *r
	if r.TokenAmount != nil {
		clone.TokenAmount = new(big.Int).Set(r.TokenAmount)
	}
	if r.AmountUsd != nil {
		clone.AmountUsd = new(big.Int).Set(r.AmountUsd)
	}
	if r.FeeUsd != nil {
		clone.FeeUsd = new(big.Int).Set(r.FeeUsd)
	}
	if r.PayoutAmount != nil {
		clone.PayoutAmount = new(big.Int).Set(r.PayoutAmount)
	}
	return &clone
}

// RedemptionQuote is the read-only projection of a redemption outcome.
type RedemptionQuote struct {
	TokenIn      string
	TokenAmount  *big.Int
	AmountUsd    *big.Int
	FeeUsd       *big.Int
	NetUsd       *big.Int
	PayoutAsset  string
	PayoutAmount *big.Int
}
