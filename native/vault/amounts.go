package vault

import (
	"fmt"
	"math/big"
	"strings"
)

type amountRecord struct {
	Amount string
}

// parseAmount decodes a stored base-unit amount. Empty strings read as zero
// so lazily created records need no initialisation pass.
func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	if strings.HasPrefix(trimmed, "-") {
		return nil, fmt.Errorf("amount must not be negative")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

// ParseUsd converts a decimal USD string ("500", "0.25") into base units at
// UsdDecimals scale, flooring any precision beyond 18 decimals.
func ParseUsd(value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("invalid USD amount %q", value)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("USD amount must not be negative")
	}
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(UsdScale()))
	return ratFloor(scaled), nil
}

// FormatUsd renders a base-unit USD amount as a decimal string for events and
// API responses.
func FormatUsd(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	rat := new(big.Rat).SetFrac(new(big.Int).Set(amount), UsdScale())
	out := rat.FloatString(UsdDecimals)
	out = strings.TrimRight(out, "0")
	return strings.TrimSuffix(out, ".")
}

func ratFloor(r *big.Rat) *big.Int {
	out := new(big.Int).Quo(r.Num(), r.Denom())
	// big.Int Quo truncates toward zero; inputs here are never negative.
	return out
}

func ratCeil(r *big.Rat) *big.Int {
	quo, rem := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

func pow10(exp uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}
