package vault

import (
	"fmt"
	"math/big"
)

const feeBpsDenominator = 10_000

// FeeSchedule maps a basis value to a fee tier. Tiers are kept sorted by
// ascending threshold; fees never increase as the threshold grows, rewarding
// steady or larger participation.
type FeeSchedule struct {
	Basis FeeBasis
	Tiers []FeeTier
}

// Validate enforces the structural rules of a schedule: a tier covering
// basis zero, strictly increasing thresholds, non-increasing bps, and bps
// within the denominator.
func (fs FeeSchedule) Validate() error {
	switch fs.Basis {
	case FeeBasisRequest, FeeBasisLifetime, FeeBasisRemaining:
	default:
		return fmt.Errorf("%w: unknown fee basis %q", ErrInvalidParameters, fs.Basis)
	}
	if len(fs.Tiers) == 0 {
		return fmt.Errorf("%w: fee schedule requires at least one tier", ErrInvalidParameters)
	}
	if fs.Tiers[0].ThresholdUsd == nil || fs.Tiers[0].ThresholdUsd.Sign() != 0 {
		return fmt.Errorf("%w: first fee tier must cover basis zero", ErrInvalidParameters)
	}
	for i, tier := range fs.Tiers {
		if tier.ThresholdUsd == nil {
			return fmt.Errorf("%w: fee tier threshold required", ErrInvalidParameters)
		}
		if tier.FeeBps > feeBpsDenominator {
			return fmt.Errorf("%w: fee bps out of range", ErrInvalidParameters)
		}
		if i == 0 {
			continue
		}
		if tier.ThresholdUsd.Cmp(fs.Tiers[i-1].ThresholdUsd) <= 0 {
			return fmt.Errorf("%w: fee tier thresholds must strictly increase", ErrInvalidParameters)
		}
		if tier.FeeBps > fs.Tiers[i-1].FeeBps {
			return fmt.Errorf("%w: fee bps must not increase with threshold", ErrInvalidParameters)
		}
	}
	return nil
}

// Clone returns a deep copy of the schedule.
func (fs FeeSchedule) Clone() FeeSchedule {
	clone := FeeSchedule{Basis: fs.Basis, Tiers: make([]FeeTier, 0, len(fs.Tiers))}
	for _, tier := range fs.Tiers {
		copied := FeeTier{FeeBps: tier.FeeBps}
		if tier.ThresholdUsd != nil {
			copied.ThresholdUsd = new(big.Int).Set(tier.ThresholdUsd)
		}
		clone.Tiers = append(clone.Tiers, copied)
	}
	return clone
}

// TierFor selects the applicable tier: the highest threshold the basis meets
// or exceeds. Exact threshold equality lands in the higher, cheaper tier.
func (fs FeeSchedule) TierFor(basis *big.Int) FeeTier {
	selected := fs.Tiers[0]
	if basis == nil {
		return selected
	}
	for _, tier := range fs.Tiers {
		if basis.Cmp(tier.ThresholdUsd) >= 0 {
			selected = tier
		}
	}
	return selected
}

// FeeFor computes the USD fee for the amount under the tier the basis
// selects. Division floors; the remainder stays with the vault.
func (fs FeeSchedule) FeeFor(basis, amountUsd *big.Int) (*big.Int, uint64) {
	tier := fs.TierFor(basis)
	if amountUsd == nil || amountUsd.Sign() <= 0 || tier.FeeBps == 0 {
		return big.NewInt(0), tier.FeeBps
	}
	fee := new(big.Int).Mul(amountUsd, new(big.Int).SetUint64(tier.FeeBps))
	fee.Quo(fee, big.NewInt(feeBpsDenominator))
	return fee, tier.FeeBps
}
