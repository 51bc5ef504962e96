package vault

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

// PriceQuote captures an exchange rate for an asset in USD along with the
// timestamp reported by the upstream oracle and the oracle identifier.
type PriceQuote struct {
	Rate      *big.Rat
	Timestamp time.Time
	Source    string
}

// Clone returns a deep copy of the quote to prevent accidental mutations.
func (q PriceQuote) Clone() PriceQuote {
	clone := PriceQuote{Timestamp: q.Timestamp, Source: q.Source}
	if q.Rate != nil {
		clone.Rate = new(big.Rat).Set(q.Rate)
	}
	return clone
}

// PriceOracle resolves a USD exchange rate for the provided asset symbol.
type PriceOracle interface {
	GetRate(base, quote string) (PriceQuote, error)
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// OracleGuardrails bounds acceptable quotes. A zero MaxAge disables the
// staleness check; nil bounds disable the band check.
type OracleGuardrails struct {
	MaxAge   time.Duration
	MinPrice *big.Rat
	MaxPrice *big.Rat
}

// OracleAdapter wraps an injected oracle with validity checks. Stale or
// out-of-bounds prices surface as ErrInvalidOraclePrice, never as a silent
// zero or default.
type OracleAdapter struct {
	oracle PriceOracle
	guards OracleGuardrails
	clock  func() time.Time
}

// NewOracleAdapter constructs an adapter over the provided oracle.
func NewOracleAdapter(oracle PriceOracle, guards OracleGuardrails) *OracleAdapter {
	return &OracleAdapter{oracle: oracle, guards: guards, clock: time.Now}
}

// SetClock overrides the staleness clock, primarily for deterministic tests.
func (a *OracleAdapter) SetClock(clock func() time.Time) {
	if a == nil || clock == nil {
		return
	}
	a.clock = clock
}

// PriceUsd returns the validated USD price of one whole unit of the asset.
func (a *OracleAdapter) PriceUsd(symbol string) (*big.Rat, error) {
	if a == nil || a.oracle == nil {
		return nil, fmt.Errorf("oracle adapter not configured")
	}
	base := normaliseSymbol(symbol)
	if base == "" {
		return nil, ErrInvalidOraclePrice
	}
	quote, err := a.oracle.GetRate(base, "USD")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOraclePrice, err)
	}
	if quote.Rate == nil || quote.Rate.Sign() <= 0 {
		return nil, ErrInvalidOraclePrice
	}
	if a.guards.MaxAge > 0 {
		if quote.Timestamp.IsZero() {
			return nil, ErrInvalidOraclePrice
		}
		if a.clock().Sub(quote.Timestamp) > a.guards.MaxAge {
			return nil, ErrInvalidOraclePrice
		}
	}
	if a.guards.MinPrice != nil && quote.Rate.Cmp(a.guards.MinPrice) < 0 {
		return nil, ErrInvalidOraclePrice
	}
	if a.guards.MaxPrice != nil && quote.Rate.Cmp(a.guards.MaxPrice) > 0 {
		return nil, ErrInvalidOraclePrice
	}
	return new(big.Rat).Set(quote.Rate), nil
}

// UsdToAsset converts a USD amount into base units of an oracle-priced asset,
// flooring toward the vault.
func UsdToAsset(amountUsd *big.Int, priceUsd *big.Rat, decimals uint8) (*big.Int, error) {
	if amountUsd == nil || amountUsd.Sign() < 0 {
		return nil, ErrInvalidParameters
	}
	if priceUsd == nil || priceUsd.Sign() <= 0 {
		return nil, ErrInvalidOraclePrice
	}
	usd := new(big.Rat).SetFrac(new(big.Int).Set(amountUsd), UsdScale())
	units := new(big.Rat).Quo(usd, priceUsd)
	units.Mul(units, new(big.Rat).SetInt(pow10(decimals)))
	return ratFloor(units), nil
}

// UsdToStable converts a USD amount into base units of the 1:1 pegged stable
// asset. The peg is a policy assumption, not a verified invariant.
func UsdToStable(amountUsd *big.Int, decimals uint8) (*big.Int, error) {
	if amountUsd == nil || amountUsd.Sign() < 0 {
		return nil, ErrInvalidParameters
	}
	usd := new(big.Rat).SetFrac(new(big.Int).Set(amountUsd), UsdScale())
	usd.Mul(usd, new(big.Rat).SetInt(pow10(decimals)))
	return ratFloor(usd), nil
}

// TokensForUsd derives how many base units of a redeemed token correspond to
// the USD amount under its fixed rate, rounding up so the pull never
// undervalues the credited USD.
func TokensForUsd(amountUsd *big.Int, rate *big.Rat, decimals uint8) (*big.Int, error) {
	if amountUsd == nil || amountUsd.Sign() <= 0 {
		return nil, ErrInvalidParameters
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, ErrInvalidParameters
	}
	usd := new(big.Rat).SetFrac(new(big.Int).Set(amountUsd), UsdScale())
	tokens := new(big.Rat).Quo(usd, rate)
	tokens.Mul(tokens, new(big.Rat).SetInt(pow10(decimals)))
	return ratCeil(tokens), nil
}

// ManualOracle is an in-memory oracle implementation used for tests and
// manual overrides during incident response.
type ManualOracle struct {
	mu     sync.RWMutex
	quotes map[string]PriceQuote
}

// NewManualOracle constructs an empty manual oracle instance.
func NewManualOracle() *ManualOracle {
	return &ManualOracle{quotes: make(map[string]PriceQuote)}
}

func manualKey(base, quote string) string {
	return normaliseSymbol(base) + "_" + normaliseSymbol(quote)
}

// SetDecimal records the supplied decimal rate for the pair at the provided
// timestamp.
func (m *ManualOracle) SetDecimal(base, quote, rate string, ts time.Time) error {
	if m == nil {
		return fmt.Errorf("manual oracle not configured")
	}
	trimmed := strings.TrimSpace(rate)
	if trimmed == "" {
		return fmt.Errorf("manual oracle: rate required")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return fmt.Errorf("manual oracle: invalid rate %q", rate)
	}
	if rat.Sign() <= 0 {
		return fmt.Errorf("manual oracle: rate must be positive")
	}
	m.mu.Lock()
	m.quotes[manualKey(base, quote)] = PriceQuote{Rate: rat, Timestamp: ts, Source: "manual"}
	m.mu.Unlock()
	return nil
}

// GetRate implements the PriceOracle interface.
func (m *ManualOracle) GetRate(base, quote string) (PriceQuote, error) {
	if m == nil {
		return PriceQuote{}, fmt.Errorf("manual oracle not configured")
	}
	m.mu.RLock()
	stored, ok := m.quotes[manualKey(base, quote)]
	m.mu.RUnlock()
	if !ok {
		return PriceQuote{}, fmt.Errorf("manual oracle: no rate for %s/%s", base, quote)
	}
	return stored.Clone(), nil
}
