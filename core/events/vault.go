package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
)

const (
	TypeRoundStarted       = "vault.round.started"
	TypeRoundFunded        = "vault.round.funded"
	TypeRedemptionSettled  = "vault.redemption.settled"
	TypeTokenBurned        = "vault.token.burned"
	TypePaused             = "vault.paused"
	TypeUnpaused           = "vault.unpaused"
	TypeParameterChanged   = "vault.parameter.changed"
	TypeEmergencyWithdrawn = "vault.emergency.withdrawn"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

type RoundStarted struct {
	ID           uint64
	FundedUsd    *big.Int
	StartTime    int64
	DelaySeconds uint64
}

func (RoundStarted) EventType() string { return TypeRoundStarted }

func (e RoundStarted) Record() *Record {
	return &Record{
		Type: TypeRoundStarted,
		Attributes: map[string]string{
			"id":           strconv.FormatUint(e.ID, 10),
			"fundedUsd":    formatAmount(e.FundedUsd),
			"startTime":    intToString(e.StartTime),
			"delaySeconds": strconv.FormatUint(e.DelaySeconds, 10),
		},
	}
}

type RoundFunded struct {
	ID        uint64
	AmountUsd *big.Int
	Remaining *big.Int
}

func (RoundFunded) EventType() string { return TypeRoundFunded }

func (e RoundFunded) Record() *Record {
	return &Record{
		Type: TypeRoundFunded,
		Attributes: map[string]string{
			"id":           strconv.FormatUint(e.ID, 10),
			"amountUsd":    formatAmount(e.AmountUsd),
			"remainingUsd": formatAmount(e.Remaining),
		},
	}
}

type RedemptionSettled struct {
	ReceiptID    string
	Wallet       [20]byte
	TokenIn      string
	AmountUsd    *big.Int
	FeeUsd       *big.Int
	PayoutAsset  string
	PayoutAmount *big.Int
	RoundID      uint64
	SettledAt    int64
}

func (RedemptionSettled) EventType() string { return TypeRedemptionSettled }

func (e RedemptionSettled) Record() *Record {
	return &Record{
		Type: TypeRedemptionSettled,
		Attributes: map[string]string{
			"receiptId":    e.ReceiptID,
			"wallet":       hex.EncodeToString(e.Wallet[:]),
			"tokenIn":      e.TokenIn,
			"amountUsd":    formatAmount(e.AmountUsd),
			"feeUsd":       formatAmount(e.FeeUsd),
			"payoutAsset":  e.PayoutAsset,
			"payoutAmount": formatAmount(e.PayoutAmount),
			"roundId":      strconv.FormatUint(e.RoundID, 10),
			"settledAt":    intToString(e.SettledAt),
		},
	}
}

type TokenBurned struct {
	Wallet [20]byte
	Token  string
	Amount *big.Int
}

func (TokenBurned) EventType() string { return TypeTokenBurned }

func (e TokenBurned) Record() *Record {
	return &Record{
		Type: TypeTokenBurned,
		Attributes: map[string]string{
			"wallet": hex.EncodeToString(e.Wallet[:]),
			"token":  e.Token,
			"amount": formatAmount(e.Amount),
		},
	}
}

type Paused struct {
	Authority [20]byte
	At        int64
}

func (Paused) EventType() string { return TypePaused }

func (e Paused) Record() *Record {
	return &Record{
		Type: TypePaused,
		Attributes: map[string]string{
			"authority": hex.EncodeToString(e.Authority[:]),
			"at":        intToString(e.At),
		},
	}
}

type Unpaused struct {
	Authority [20]byte
	At        int64
}

func (Unpaused) EventType() string { return TypeUnpaused }

func (e Unpaused) Record() *Record {
	return &Record{
		Type: TypeUnpaused,
		Attributes: map[string]string{
			"authority": hex.EncodeToString(e.Authority[:]),
			"at":        intToString(e.At),
		},
	}
}

// ParameterChanged covers every governance setter; Name identifies the knob
// and Value carries a printable rendering of the new setting.
type ParameterChanged struct {
	Authority [20]byte
	Name      string
	Value     string
}

func (ParameterChanged) EventType() string { return TypeParameterChanged }

func (e ParameterChanged) Record() *Record {
	return &Record{
		Type: TypeParameterChanged,
		Attributes: map[string]string{
			"authority": hex.EncodeToString(e.Authority[:]),
			"name":      e.Name,
			"value":     e.Value,
		},
	}
}

type EmergencyWithdrawn struct {
	Authority [20]byte
	Asset     string
	Amount    *big.Int
	Treasury  [20]byte
}

func (EmergencyWithdrawn) EventType() string { return TypeEmergencyWithdrawn }

func (e EmergencyWithdrawn) Record() *Record {
	return &Record{
		Type: TypeEmergencyWithdrawn,
		Attributes: map[string]string{
			"authority": hex.EncodeToString(e.Authority[:]),
			"asset":     e.Asset,
			"amount":    formatAmount(e.Amount),
			"treasury":  hex.EncodeToString(e.Treasury[:]),
		},
	}
}
