package vault

import (
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"revault/core/events"
	"revault/storage"
)

// PayoutExecutor performs the external payout transfer once the redemption's
// internal accounting is finalised. Implementations talk to custody or chain
// rails; a nil executor leaves settlement to the vault's own ledger.
type PayoutExecutor interface {
	Transfer(asset string, to [20]byte, amount *big.Int) error
}

// TokenSource pulls the redeemed token from the caller. Refund returns a
// completed pull when settlement aborts afterwards, so a failed payout never
// strands the caller's tokens. A nil source skips both, which suits
// soft-inventory deployments where custody moves the tokens out of band.
type TokenSource interface {
	Pull(from [20]byte, token string, amount *big.Int) error
	Refund(to [20]byte, token string, amount *big.Int) error
}

// Engine orchestrates redemption authorization and accounting. Every call is
// atomic: effects are staged on a write overlay and only reach durable
// storage after external interactions succeed.
type Engine struct {
	store   Storage
	params  Params
	oracle  *OracleAdapter
	router  *PayoutRouter
	payout  PayoutExecutor
	tokens  TokenSource
	emitter events.Emitter
	clock   func() time.Time
	busy    atomic.Bool
}

// NewEngine constructs an engine over the provided storage and parameters.
// The oracle backs volatile-asset pricing and is substitutable in tests.
func NewEngine(store Storage, params Params, oracle PriceOracle) *Engine {
	adapter := NewOracleAdapter(oracle, params.OracleGuards)
	return &Engine{
		store:   store,
		params:  params,
		oracle:  adapter,
		router:  NewPayoutRouter(params.StableAsset, params.VolatileAsset, adapter),
		emitter: events.NoopEmitter{},
		clock:   time.Now,
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the engine clock, primarily for deterministic testing.
func (e *Engine) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.clock = clock
	e.oracle.SetClock(clock)
}

// SetPayoutExecutor wires the external transfer rail.
func (e *Engine) SetPayoutExecutor(payout PayoutExecutor) { e.payout = payout }

// SetTokenSource wires the inbound token pull.
func (e *Engine) SetTokenSource(tokens TokenSource) { e.tokens = tokens }

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	return e.clock().UTC().Unix()
}

// begin rejects any call arriving while another is in flight. The flag spans
// the external transfer, so a callback from the transfer rail cannot re-enter
// the engine.
func (e *Engine) begin() error {
	if e == nil {
		return fmt.Errorf("engine not initialised")
	}
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrancy
	}
	return nil
}

func (e *Engine) end() { e.busy.Store(false) }

// Bootstrap seeds governance parameters into state when absent. Restarts
// never clobber runtime governance updates.
func (e *Engine) Bootstrap() error {
	if e == nil || e.store == nil {
		return fmt.Errorf("engine not initialised")
	}
	if ok, err := e.store.KVGet(paramsRootKey, nil); err != nil {
		return err
	} else if !ok {
		if err := putWhitelistRoot(e.store, e.params.WhitelistRoot); err != nil {
			return err
		}
	}
	if ok, err := e.store.KVGet(paramsDailyLimitKey, nil); err != nil {
		return err
	} else if !ok {
		if err := putDailyLimit(e.store, e.params.DailyLimitUsd); err != nil {
			return err
		}
	}
	if _, ok, err := loadFeeSchedule(e.store); err != nil {
		return err
	} else if !ok {
		if err := putFeeSchedule(e.store, e.params.Fees); err != nil {
			return err
		}
	}
	for _, token := range e.params.Tokens {
		if ok, err := e.store.KVGet(tokenConfigKey(token.Symbol), nil); err != nil {
			return err
		} else if !ok {
			if err := putTokenConfig(e.store, token); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) rounds(store Storage) *RoundManager {
	rm := NewRoundManager(store)
	rm.SetClock(e.clock)
	return rm
}

func (e *Engine) limits(store Storage) *LimitTracker {
	lt := NewLimitTracker(store)
	lt.SetClock(e.clock)
	return lt
}

func (e *Engine) feeSchedule(store Storage) (FeeSchedule, error) {
	schedule, ok, err := loadFeeSchedule(store)
	if err != nil {
		return FeeSchedule{}, err
	}
	if !ok {
		return e.params.Fees, nil
	}
	return schedule, nil
}

func (e *Engine) feeBasis(schedule FeeSchedule, amountUsd, lifetime, remaining *big.Int) *big.Int {
	switch schedule.Basis {
	case FeeBasisLifetime:
		return lifetime
	case FeeBasisRemaining:
		return remaining
	default:
		return amountUsd
	}
}

// Redeem settles a redemption for the caller. Checks run cheapest-first and
// the first failure determines the reported error; a failed call leaves no
// durable state behind.
func (e *Engine) Redeem(caller [20]byte, tokenIn string, amountUsd *big.Int, preferStable bool, proof []ProofNode) (*RedemptionReceipt, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()
	if amountUsd == nil || amountUsd.Sign() <= 0 {
		return nil, ErrInvalidParameters
	}
	staged := storage.NewStaged(e.store)

	paused, err := loadPaused(staged)
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, ErrPaused
	}

	tokenCfg, ok, err := loadTokenConfig(staged, tokenIn)
	if err != nil {
		return nil, err
	}
	if !ok || !tokenCfg.Enabled {
		return nil, ErrTokenNotSupported
	}

	root, err := loadWhitelistRoot(staged)
	if err != nil {
		return nil, err
	}
	if !VerifyWhitelist(caller, proof, root) {
		return nil, ErrNotEligible
	}

	rounds := e.rounds(staged)
	if _, err := rounds.Gate(amountUsd); err != nil {
		return nil, err
	}

	limit, err := loadDailyLimit(staged)
	if err != nil {
		return nil, err
	}
	limits := e.limits(staged)
	remaining, err := limits.CheckAndConsume(caller, amountUsd, limit)
	if err != nil {
		return nil, err
	}

	schedule, err := e.feeSchedule(staged)
	if err != nil {
		return nil, err
	}
	lifetime, err := limits.Lifetime(caller)
	if err != nil {
		return nil, err
	}
	feeUsd, _ := schedule.FeeFor(e.feeBasis(schedule, amountUsd, lifetime, remaining), amountUsd)
	netUsd := new(big.Int).Sub(amountUsd, feeUsd)
	if netUsd.Sign() <= 0 {
		return nil, ErrInvalidParameters
	}

	ledger := NewLedger(staged)
	decision, err := e.router.Route(netUsd, preferStable, ledger)
	if err != nil {
		return nil, err
	}

	round, err := rounds.Consume(amountUsd)
	if err != nil {
		return nil, err
	}

	pullAmount, err := TokensForUsd(amountUsd, tokenCfg.UsdRate, tokenCfg.Decimals)
	if err != nil {
		return nil, err
	}
	pulled := false
	if e.tokens != nil {
		if err := e.tokens.Pull(caller, tokenCfg.Symbol, pullAmount); err != nil {
			return nil, fmt.Errorf("vault: token pull: %w", err)
		}
		pulled = true
	}
	if !tokenCfg.BurnOnRedeem {
		if err := ledger.Credit(tokenCfg.Symbol, pullAmount); err != nil {
			return nil, err
		}
	}

	if err := ledger.Debit(decision.Asset, decision.AmountOut); err != nil {
		return nil, err
	}

	receipt := &RedemptionReceipt{
		ReceiptID:    uuid.NewString(),
		Wallet:       caller,
		TokenIn:      tokenCfg.Symbol,
		TokenAmount:  pullAmount,
		AmountUsd:    new(big.Int).Set(amountUsd),
		FeeUsd:       feeUsd,
		PayoutAsset:  decision.Asset,
		PayoutAmount: decision.AmountOut,
		RoundID:      round.ID,
		SettledAt:    e.now(),
		Burned:       tokenCfg.BurnOnRedeem,
	}
	if err := ledger.PutReceipt(receipt); err != nil {
		return nil, err
	}

	// Counters are final in the overlay before the transfer starts; a failed
	// transfer discards the overlay and returns any pulled tokens so nothing
	// durable changes and no value strands outside the ledger.
	if e.payout != nil {
		if err := e.payout.Transfer(decision.Asset, caller, decision.AmountOut); err != nil {
			staged.Discard()
			failure := &PayoutFailure{Asset: decision.Asset, Err: err}
			if pulled {
				if refundErr := e.tokens.Refund(caller, tokenCfg.Symbol, pullAmount); refundErr != nil {
					return nil, fmt.Errorf("vault: refund after failed payout: %v: %w", refundErr, failure)
				}
			}
			return nil, failure
		}
	}
	if err := staged.Commit(); err != nil {
		return nil, fmt.Errorf("vault: commit: %w", err)
	}

	if receipt.Burned {
		e.emit(events.TokenBurned{Wallet: caller, Token: receipt.TokenIn, Amount: pullAmount})
	}
	e.emit(events.RedemptionSettled{
		ReceiptID:    receipt.ReceiptID,
		Wallet:       caller,
		TokenIn:      receipt.TokenIn,
		AmountUsd:    receipt.AmountUsd,
		FeeUsd:       receipt.FeeUsd,
		PayoutAsset:  receipt.PayoutAsset,
		PayoutAmount: receipt.PayoutAmount,
		RoundID:      receipt.RoundID,
		SettledAt:    receipt.SettledAt,
	})
	return receipt.Copy(), nil
}

// QuoteRedeem projects the outcome of a redemption without mutating state.
// The whitelist check is skipped since quoting needs no proof.
func (e *Engine) QuoteRedeem(caller [20]byte, tokenIn string, amountUsd *big.Int, preferStable bool) (*RedemptionQuote, error) {
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("engine not initialised")
	}
	if amountUsd == nil || amountUsd.Sign() <= 0 {
		return nil, ErrInvalidParameters
	}
	paused, err := loadPaused(e.store)
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, ErrPaused
	}
	tokenCfg, ok, err := loadTokenConfig(e.store, tokenIn)
	if err != nil {
		return nil, err
	}
	if !ok || !tokenCfg.Enabled {
		return nil, ErrTokenNotSupported
	}
	if _, err := e.rounds(e.store).Gate(amountUsd); err != nil {
		return nil, err
	}
	limit, err := loadDailyLimit(e.store)
	if err != nil {
		return nil, err
	}
	limits := e.limits(e.store)
	remaining, err := limits.Remaining(caller, limit)
	if err != nil {
		return nil, err
	}
	if remaining.Cmp(amountUsd) < 0 {
		return nil, ErrLimitExceeded
	}
	schedule, err := e.feeSchedule(e.store)
	if err != nil {
		return nil, err
	}
	lifetime, err := limits.Lifetime(caller)
	if err != nil {
		return nil, err
	}
	// Mirror the post-consumption basis a settlement would observe.
	projectedLifetime := new(big.Int).Add(lifetime, amountUsd)
	projectedRemaining := new(big.Int).Sub(remaining, amountUsd)
	feeUsd, _ := schedule.FeeFor(e.feeBasis(schedule, amountUsd, projectedLifetime, projectedRemaining), amountUsd)
	netUsd := new(big.Int).Sub(amountUsd, feeUsd)
	if netUsd.Sign() <= 0 {
		return nil, ErrInvalidParameters
	}
	decision, err := e.router.Quote(netUsd, preferStable, NewLedger(e.store))
	if err != nil {
		return nil, err
	}
	pullAmount, err := TokensForUsd(amountUsd, tokenCfg.UsdRate, tokenCfg.Decimals)
	if err != nil {
		return nil, err
	}
	return &RedemptionQuote{
		TokenIn:      tokenCfg.Symbol,
		TokenAmount:  pullAmount,
		AmountUsd:    new(big.Int).Set(amountUsd),
		FeeUsd:       feeUsd,
		NetUsd:       netUsd,
		PayoutAsset:  decision.Asset,
		PayoutAmount: decision.AmountOut,
	}, nil
}

// UserLimit returns the USD remaining in the wallet's current daily window.
func (e *Engine) UserLimit(addr [20]byte) (*big.Int, error) {
	limit, err := loadDailyLimit(e.store)
	if err != nil {
		return nil, err
	}
	return e.limits(e.store).Remaining(addr, limit)
}

// UserLifetime returns the wallet's cumulative settled USD.
func (e *Engine) UserLifetime(addr [20]byte) (*big.Int, error) {
	return e.limits(e.store).Lifetime(addr)
}

// IsLocked reports the round gating state.
func (e *Engine) IsLocked() (bool, error) {
	return e.rounds(e.store).IsLocked()
}

// RemainingAllocation returns the active round's redeemable USD.
func (e *Engine) RemainingAllocation() (*big.Int, error) {
	return e.rounds(e.store).RemainingAllocation()
}

// CurrentRound returns the stored round, active or not.
func (e *Engine) CurrentRound() (*Round, bool, error) {
	return e.rounds(e.store).Current()
}

// Paused reports the global pause flag.
func (e *Engine) Paused() (bool, error) {
	return loadPaused(e.store)
}

// Ledger exposes read access to balances and receipts over durable state.
func (e *Engine) Ledger() *Ledger {
	return NewLedger(e.store)
}

// --- governance ---

func (e *Engine) requireOwner(caller [20]byte) error {
	if caller != e.params.Owner {
		return ErrUnauthorized
	}
	return nil
}

// SetWhitelistRoot atomically replaces the membership commitment; proofs
// issued against the previous root stop verifying immediately.
func (e *Engine) SetWhitelistRoot(caller [20]byte, root [32]byte) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if root == ([32]byte{}) {
		return ErrInvalidParameters
	}
	if err := putWhitelistRoot(e.store, root); err != nil {
		return err
	}
	e.emit(events.ParameterChanged{Authority: caller, Name: "whitelistRoot", Value: fmt.Sprintf("%x", root)})
	return nil
}

// SetDailyLimit replaces the per-wallet daily USD cap.
func (e *Engine) SetDailyLimit(caller [20]byte, limitUsd *big.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if limitUsd == nil || limitUsd.Sign() < 0 {
		return ErrInvalidParameters
	}
	if err := putDailyLimit(e.store, limitUsd); err != nil {
		return err
	}
	e.emit(events.ParameterChanged{Authority: caller, Name: "dailyLimitUsd", Value: FormatUsd(limitUsd)})
	return nil
}

// SetFeeTiers replaces the fee schedule after validation.
func (e *Engine) SetFeeTiers(caller [20]byte, schedule FeeSchedule) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := schedule.Validate(); err != nil {
		return err
	}
	if err := putFeeSchedule(e.store, schedule); err != nil {
		return err
	}
	e.emit(events.ParameterChanged{Authority: caller, Name: "feeTiers", Value: fmt.Sprintf("%d tiers, basis %s", len(schedule.Tiers), schedule.Basis)})
	return nil
}

// SetSupportedToken registers or updates a redeemable token. Disabling a
// token blocks new redemptions without touching settled ones.
func (e *Engine) SetSupportedToken(caller [20]byte, cfg TokenConfig) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := putTokenConfig(e.store, cfg); err != nil {
		return err
	}
	e.emit(events.ParameterChanged{Authority: caller, Name: "token:" + normaliseSymbol(cfg.Symbol), Value: fmt.Sprintf("enabled=%t burn=%t", cfg.Enabled, cfg.BurnOnRedeem)})
	return nil
}

// Pause halts redemptions globally.
func (e *Engine) Pause(caller [20]byte) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := putPaused(e.store, true); err != nil {
		return err
	}
	e.emit(events.Paused{Authority: caller, At: e.now()})
	return nil
}

// Unpause resumes redemptions.
func (e *Engine) Unpause(caller [20]byte) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := putPaused(e.store, false); err != nil {
		return err
	}
	e.emit(events.Unpaused{Authority: caller, At: e.now()})
	return nil
}

// FundRound adds allocation to the active round, opening a fresh locked
// round when none is active. Top-ups never shorten an existing lock.
func (e *Engine) FundRound(caller [20]byte, amountUsd *big.Int) (*Round, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	round, opened, err := e.rounds(e.store).Fund(amountUsd, e.params.RoundDelaySeconds)
	if err != nil {
		return nil, err
	}
	if opened {
		e.emit(events.RoundStarted{ID: round.ID, FundedUsd: round.FundedUsd, StartTime: round.StartTime, DelaySeconds: round.DelaySeconds})
	} else {
		e.emit(events.RoundFunded{ID: round.ID, AmountUsd: amountUsd, Remaining: round.RemainingUsd})
	}
	return round.Copy(), nil
}

// StartNewRound supersedes the current round with a fresh locked one,
// re-imposing the full delay.
func (e *Engine) StartNewRound(caller [20]byte, amountUsd *big.Int) (*Round, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	round, err := e.rounds(e.store).StartNewRound(amountUsd, e.params.RoundDelaySeconds)
	if err != nil {
		return nil, err
	}
	e.emit(events.RoundStarted{ID: round.ID, FundedUsd: round.FundedUsd, StartTime: round.StartTime, DelaySeconds: round.DelaySeconds})
	return round.Copy(), nil
}

// Deposit credits payout-asset liquidity into the vault ledger. The matching
// asset transfer happens on the custody side.
func (e *Engine) Deposit(caller [20]byte, asset string, amount *big.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if strings.TrimSpace(asset) == "" || amount == nil || amount.Sign() <= 0 {
		return ErrInvalidParameters
	}
	return NewLedger(e.store).Credit(asset, amount)
}

// EmergencyWithdraw drains the vault's holding of the asset to the
// governance treasury. Funds can go nowhere else.
func (e *Engine) EmergencyWithdraw(caller [20]byte, asset string) (*big.Int, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	staged := storage.NewStaged(e.store)
	ledger := NewLedger(staged)
	balance, err := ledger.Balance(asset)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := ledger.Debit(asset, balance); err != nil {
		return nil, err
	}
	if e.payout != nil {
		if err := e.payout.Transfer(normaliseSymbol(asset), e.params.Treasury, balance); err != nil {
			staged.Discard()
			return nil, fmt.Errorf("vault: emergency transfer: %w", err)
		}
	}
	if err := staged.Commit(); err != nil {
		return nil, fmt.Errorf("vault: commit: %w", err)
	}
	e.emit(events.EmergencyWithdrawn{Authority: caller, Asset: normaliseSymbol(asset), Amount: balance, Treasury: e.params.Treasury})
	return balance, nil
}
