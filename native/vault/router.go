package vault

import (
	"fmt"
	"math/big"
)

// BalanceReader exposes the vault's payout-asset balances, the authoritative
// ceiling the router checks before committing to a payout path.
type BalanceReader interface {
	Balance(asset string) (*big.Int, error)
}

// PayoutDecision is the outcome of routing: which asset pays and how many
// base units leave the vault.
type PayoutDecision struct {
	Asset     string
	AmountOut *big.Int
}

// PayoutRouter chooses the payout asset for a redemption: the stable asset at
// its assumed 1:1 peg when preferred and liquid enough, otherwise the
// oracle-priced volatile asset.
type PayoutRouter struct {
	stable   AssetConfig
	volatile AssetConfig
	oracle   *OracleAdapter
}

// NewPayoutRouter constructs a router over the two payout assets.
func NewPayoutRouter(stable, volatile AssetConfig, oracle *OracleAdapter) *PayoutRouter {
	return &PayoutRouter{stable: stable, volatile: volatile, oracle: oracle}
}

// Route computes the payout for the USD amount. It reads balances and prices
// but never mutates state, so Quote is the same call.
func (pr *PayoutRouter) Route(amountUsd *big.Int, preferStable bool, balances BalanceReader) (*PayoutDecision, error) {
	if pr == nil {
		return nil, fmt.Errorf("payout router not configured")
	}
	if amountUsd == nil || amountUsd.Sign() <= 0 {
		return nil, ErrInvalidParameters
	}
	if balances == nil {
		return nil, fmt.Errorf("payout router: balance reader required")
	}
	if preferStable {
		stableOut, err := UsdToStable(amountUsd, pr.stable.Decimals)
		if err != nil {
			return nil, err
		}
		balance, err := balances.Balance(pr.stable.Symbol)
		if err != nil {
			return nil, err
		}
		if balance.Cmp(stableOut) >= 0 {
			return &PayoutDecision{Asset: pr.stable.Symbol, AmountOut: stableOut}, nil
		}
	}
	price, err := pr.oracle.PriceUsd(pr.volatile.Symbol)
	if err != nil {
		return nil, err
	}
	volatileOut, err := UsdToAsset(amountUsd, price, pr.volatile.Decimals)
	if err != nil {
		return nil, err
	}
	if volatileOut.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	balance, err := balances.Balance(pr.volatile.Symbol)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(volatileOut) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	return &PayoutDecision{Asset: pr.volatile.Symbol, AmountOut: volatileOut}, nil
}

// Quote performs the identical computation without mutating state, for
// read-only estimation.
func (pr *PayoutRouter) Quote(amountUsd *big.Int, preferStable bool, balances BalanceReader) (*PayoutDecision, error) {
	return pr.Route(amountUsd, preferStable, balances)
}
