package vault

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

type storedRoot struct {
	Root [32]byte
}

type pausedRecord struct {
	Paused bool
}

type storedFeeTier struct {
	ThresholdUsd string
	FeeBps       uint64
}

type storedFeeSchedule struct {
	Basis string
	Tiers []storedFeeTier
}

type storedTokenConfig struct {
	Symbol       string
	Decimals     uint8
	UsdRate      string
	Enabled      bool
	BurnOnRedeem bool
}

func loadWhitelistRoot(store Storage) ([32]byte, error) {
	var record storedRoot
	if _, err := store.KVGet(paramsRootKey, &record); err != nil {
		return [32]byte{}, err
	}
	return record.Root, nil
}

func putWhitelistRoot(store Storage, root [32]byte) error {
	return store.KVPut(paramsRootKey, storedRoot{Root: root})
}

func loadDailyLimit(store Storage) (*big.Int, error) {
	var record amountRecord
	ok, err := store.KVGet(paramsDailyLimitKey, &record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseAmount(record.Amount)
}

func putDailyLimit(store Storage, limit *big.Int) error {
	return store.KVPut(paramsDailyLimitKey, amountRecord{Amount: limit.String()})
}

func loadPaused(store Storage) (bool, error) {
	var record pausedRecord
	if _, err := store.KVGet(paramsPausedKey, &record); err != nil {
		return false, err
	}
	return record.Paused, nil
}

func putPaused(store Storage, paused bool) error {
	return store.KVPut(paramsPausedKey, pausedRecord{Paused: paused})
}

func loadFeeSchedule(store Storage) (FeeSchedule, bool, error) {
	var record storedFeeSchedule
	ok, err := store.KVGet(paramsFeeTiersKey, &record)
	if err != nil {
		return FeeSchedule{}, false, err
	}
	if !ok {
		return FeeSchedule{}, false, nil
	}
	schedule := FeeSchedule{Basis: FeeBasis(record.Basis), Tiers: make([]FeeTier, 0, len(record.Tiers))}
	for _, tier := range record.Tiers {
		threshold, err := parseAmount(tier.ThresholdUsd)
		if err != nil {
			return FeeSchedule{}, false, fmt.Errorf("vault: fee tier threshold: %w", err)
		}
		schedule.Tiers = append(schedule.Tiers, FeeTier{ThresholdUsd: threshold, FeeBps: tier.FeeBps})
	}
	return schedule, true, nil
}

func putFeeSchedule(store Storage, schedule FeeSchedule) error {
	record := storedFeeSchedule{Basis: string(schedule.Basis), Tiers: make([]storedFeeTier, 0, len(schedule.Tiers))}
	for _, tier := range schedule.Tiers {
		record.Tiers = append(record.Tiers, storedFeeTier{ThresholdUsd: tier.ThresholdUsd.String(), FeeBps: tier.FeeBps})
	}
	return store.KVPut(paramsFeeTiersKey, record)
}

func loadTokenConfig(store Storage, symbol string) (TokenConfig, bool, error) {
	var record storedTokenConfig
	ok, err := store.KVGet(tokenConfigKey(symbol), &record)
	if err != nil {
		return TokenConfig{}, false, err
	}
	if !ok {
		return TokenConfig{}, false, nil
	}
	rate := new(big.Rat)
	if _, parsed := rate.SetString(strings.TrimSpace(record.UsdRate)); !parsed || rate.Sign() <= 0 {
		return TokenConfig{}, false, fmt.Errorf("vault: token %s has invalid rate %q", symbol, record.UsdRate)
	}
	return TokenConfig{
		Symbol:       record.Symbol,
		Decimals:     record.Decimals,
		UsdRate:      rate,
		Enabled:      record.Enabled,
		BurnOnRedeem: record.BurnOnRedeem,
	}, true, nil
}

func putTokenConfig(store Storage, cfg TokenConfig) error {
	if strings.TrimSpace(cfg.Symbol) == "" {
		return ErrInvalidParameters
	}
	if cfg.UsdRate == nil || cfg.UsdRate.Sign() <= 0 {
		return ErrInvalidParameters
	}
	record := storedTokenConfig{
		Symbol:       normaliseSymbol(cfg.Symbol),
		Decimals:     cfg.Decimals,
		UsdRate:      cfg.UsdRate.RatString(),
		Enabled:      cfg.Enabled,
		BurnOnRedeem: cfg.BurnOnRedeem,
	}
	return store.KVPut(tokenConfigKey(cfg.Symbol), record)
}

// AssetConfigTOML models a payout asset parsed from configuration.
type AssetConfigTOML struct {
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

// FeeTierConfig models one fee tier parsed from configuration. Thresholds are
// decimal USD.
type FeeTierConfig struct {
	ThresholdUsd string `toml:"ThresholdUsd"`
	FeeBps       uint64 `toml:"FeeBps"`
}

// TokenConfigTOML models a supported redeemable token parsed from
// configuration.
type TokenConfigTOML struct {
	Symbol       string `toml:"Symbol"`
	Decimals     uint8  `toml:"Decimals"`
	UsdRate      string `toml:"UsdRate"`
	Enabled      bool   `toml:"Enabled"`
	BurnOnRedeem bool   `toml:"BurnOnRedeem"`
}

// OracleConfigTOML models oracle guardrails parsed from configuration.
type OracleConfigTOML struct {
	MaxQuoteAgeSeconds uint64 `toml:"MaxQuoteAgeSeconds"`
	MinPrice           string `toml:"MinPrice"`
	MaxPrice           string `toml:"MaxPrice"`
}

// Config captures operator-defined vault genesis settings parsed from
// configuration. Runtime governance updates supersede these in state.
type Config struct {
	Owner             string            `toml:"Owner"`
	Treasury          string            `toml:"Treasury"`
	WhitelistRoot     string            `toml:"WhitelistRoot"`
	DailyLimitUsd     string            `toml:"DailyLimitUsd"`
	RoundDelaySeconds uint64            `toml:"RoundDelaySeconds"`
	FeeBasis          string            `toml:"FeeBasis"`
	FeeTiers          []FeeTierConfig   `toml:"FeeTiers"`
	Tokens            []TokenConfigTOML `toml:"Tokens"`
	StableAsset       AssetConfigTOML   `toml:"StableAsset"`
	VolatileAsset     AssetConfigTOML   `toml:"VolatileAsset"`
	Oracle            OracleConfigTOML  `toml:"Oracle"`
}

// Params represents canonical, runtime-ready interpretations of the vault
// settings.
type Params struct {
	Owner             [20]byte
	Treasury          [20]byte
	WhitelistRoot     [32]byte
	DailyLimitUsd     *big.Int
	RoundDelaySeconds uint64
	Fees              FeeSchedule
	Tokens            []TokenConfig
	StableAsset       AssetConfig
	VolatileAsset     AssetConfig
	OracleGuards      OracleGuardrails
}

func parseAddress(value, field string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return out, fmt.Errorf("vault: invalid %s address %q", field, value)
	}
	copy(out[:], ethcommon.HexToAddress(trimmed).Bytes())
	return out, nil
}

// Parameters converts the textual configuration into runtime values and
// validates bounds.
func (c Config) Parameters() (Params, error) {
	params := Params{RoundDelaySeconds: c.RoundDelaySeconds}
	owner, err := parseAddress(c.Owner, "owner")
	if err != nil {
		return params, err
	}
	params.Owner = owner
	treasury, err := parseAddress(c.Treasury, "treasury")
	if err != nil {
		return params, err
	}
	params.Treasury = treasury
	if trimmed := strings.TrimPrefix(strings.TrimSpace(c.WhitelistRoot), "0x"); trimmed != "" {
		decoded, err := hex.DecodeString(trimmed)
		if err != nil || len(decoded) != 32 {
			return params, fmt.Errorf("vault: invalid whitelist root %q", c.WhitelistRoot)
		}
		copy(params.WhitelistRoot[:], decoded)
	}
	limit, err := ParseUsd(c.DailyLimitUsd)
	if err != nil {
		return params, fmt.Errorf("vault: invalid DailyLimitUsd: %w", err)
	}
	params.DailyLimitUsd = limit
	basis := FeeBasis(strings.ToLower(strings.TrimSpace(c.FeeBasis)))
	if basis == "" {
		basis = FeeBasisRequest
	}
	schedule := FeeSchedule{Basis: basis, Tiers: make([]FeeTier, 0, len(c.FeeTiers))}
	for _, tier := range c.FeeTiers {
		threshold, err := ParseUsd(tier.ThresholdUsd)
		if err != nil {
			return params, fmt.Errorf("vault: invalid fee tier threshold: %w", err)
		}
		schedule.Tiers = append(schedule.Tiers, FeeTier{ThresholdUsd: threshold, FeeBps: tier.FeeBps})
	}
	if err := schedule.Validate(); err != nil {
		return params, err
	}
	params.Fees = schedule
	for _, token := range c.Tokens {
		rate := new(big.Rat)
		rateText := strings.TrimSpace(token.UsdRate)
		if rateText == "" {
			rateText = "1"
		}
		if _, ok := rate.SetString(rateText); !ok || rate.Sign() <= 0 {
			return params, fmt.Errorf("vault: token %s has invalid UsdRate %q", token.Symbol, token.UsdRate)
		}
		params.Tokens = append(params.Tokens, TokenConfig{
			Symbol:       normaliseSymbol(token.Symbol),
			Decimals:     token.Decimals,
			UsdRate:      rate,
			Enabled:      token.Enabled,
			BurnOnRedeem: token.BurnOnRedeem,
		})
	}
	params.StableAsset = AssetConfig{Symbol: normaliseSymbol(c.StableAsset.Symbol), Decimals: c.StableAsset.Decimals}
	params.VolatileAsset = AssetConfig{Symbol: normaliseSymbol(c.VolatileAsset.Symbol), Decimals: c.VolatileAsset.Decimals}
	if params.StableAsset.Symbol == "" || params.VolatileAsset.Symbol == "" {
		return params, fmt.Errorf("vault: stable and volatile payout assets required")
	}
	guards := OracleGuardrails{MaxAge: time.Duration(c.Oracle.MaxQuoteAgeSeconds) * time.Second}
	if trimmed := strings.TrimSpace(c.Oracle.MinPrice); trimmed != "" {
		min, ok := new(big.Rat).SetString(trimmed)
		if !ok || min.Sign() <= 0 {
			return params, fmt.Errorf("vault: invalid oracle MinPrice %q", c.Oracle.MinPrice)
		}
		guards.MinPrice = min
	}
	if trimmed := strings.TrimSpace(c.Oracle.MaxPrice); trimmed != "" {
		max, ok := new(big.Rat).SetString(trimmed)
		if !ok || max.Sign() <= 0 {
			return params, fmt.Errorf("vault: invalid oracle MaxPrice %q", c.Oracle.MaxPrice)
		}
		guards.MaxPrice = max
	}
	if guards.MinPrice != nil && guards.MaxPrice != nil && guards.MinPrice.Cmp(guards.MaxPrice) > 0 {
		return params, fmt.Errorf("vault: oracle MinPrice exceeds MaxPrice")
	}
	params.OracleGuards = guards
	return params, nil
}
