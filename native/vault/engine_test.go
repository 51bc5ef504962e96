package vault

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"revault/core/events"
	"revault/storage"
)

type recordingEmitter struct {
	emitted []events.Event
}

func (r *recordingEmitter) Emit(event events.Event) {
	r.emitted = append(r.emitted, event)
}

type transferCall struct {
	Asset  string
	To     [20]byte
	Amount *big.Int
}

type recordingExecutor struct {
	transfers []transferCall
	err       error
}

func (r *recordingExecutor) Transfer(asset string, to [20]byte, amount *big.Int) error {
	if r.err != nil {
		return r.err
	}
	r.transfers = append(r.transfers, transferCall{Asset: asset, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

type fixture struct {
	t       *testing.T
	engine  *Engine
	store   *storage.State
	oracle  *ManualOracle
	tree    *WhitelistTree
	emitted *recordingEmitter
	owner   [20]byte
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	wallets := [][20]byte{testAddr(1), testAddr(2), testAddr(3), testAddr(4)}
	tree, err := NewWhitelistTree(wallets)
	if err != nil {
		t.Fatalf("build whitelist: %v", err)
	}
	params := Params{
		Owner:             testAddr(0xAA),
		Treasury:          testAddr(0xBB),
		WhitelistRoot:     tree.Root(),
		DailyLimitUsd:     mustUsd(t, "2000"),
		RoundDelaySeconds: 60,
		Fees:              twoTierSchedule(t),
		Tokens: []TokenConfig{{
			Symbol:       "DTK",
			Decimals:     18,
			UsdRate:      big.NewRat(1, 1),
			Enabled:      true,
			BurnOnRedeem: true,
		}},
		StableAsset:   AssetConfig{Symbol: "USDC", Decimals: 6},
		VolatileAsset: AssetConfig{Symbol: "WETH", Decimals: 18},
		OracleGuards:  OracleGuardrails{MaxAge: 5 * time.Minute},
	}
	f := &fixture{
		t:       t,
		store:   storage.NewState(storage.NewMemDB()),
		oracle:  NewManualOracle(),
		tree:    tree,
		emitted: &recordingEmitter{},
		owner:   params.Owner,
		now:     time.Unix(1_700_000_000, 0),
	}
	f.engine = NewEngine(f.store, params, f.oracle)
	f.engine.SetClock(func() time.Time { return f.now })
	f.engine.SetEmitter(f.emitted)
	if err := f.engine.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	f.setPrice("20")
	if err := f.engine.Deposit(f.owner, "USDC", big.NewInt(5_000_000_000)); err != nil {
		t.Fatalf("deposit stable: %v", err)
	}
	weth := new(big.Int).Mul(big.NewInt(10), pow10(18))
	if err := f.engine.Deposit(f.owner, "WETH", weth); err != nil {
		t.Fatalf("deposit volatile: %v", err)
	}
	return f
}

func (f *fixture) setPrice(rate string) {
	f.t.Helper()
	if err := f.oracle.SetDecimal("WETH", "USD", rate, f.now); err != nil {
		f.t.Fatalf("set price: %v", err)
	}
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) openRound(amount string) {
	f.t.Helper()
	if _, err := f.engine.FundRound(f.owner, mustUsd(f.t, amount)); err != nil {
		f.t.Fatalf("fund round: %v", err)
	}
	f.advance(61 * time.Second)
	f.setPrice("20")
}

func (f *fixture) proof(wallet [20]byte) []ProofNode {
	proof, ok := f.tree.Proof(wallet)
	if !ok {
		return nil
	}
	return proof
}

func (f *fixture) redeem(wallet [20]byte, amount string, preferStable bool) (*RedemptionReceipt, error) {
	return f.engine.Redeem(wallet, "DTK", mustUsd(f.t, amount), preferStable, f.proof(wallet))
}

func (f *fixture) balance(asset string) *big.Int {
	f.t.Helper()
	balance, err := f.engine.Ledger().Balance(asset)
	if err != nil {
		f.t.Fatalf("balance %s: %v", asset, err)
	}
	return balance
}

func TestRedeemStablePath(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")
	wallet := testAddr(1)

	receipt, err := f.redeem(wallet, "100", true)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if receipt.FeeUsd.Cmp(mustUsd(t, "1")) != 0 {
		t.Fatalf("expected 1 USD fee at 100 bps, got %s", FormatUsd(receipt.FeeUsd))
	}
	if receipt.PayoutAsset != "USDC" {
		t.Fatalf("expected USDC payout, got %s", receipt.PayoutAsset)
	}
	if receipt.PayoutAmount.Cmp(big.NewInt(99_000_000)) != 0 {
		t.Fatalf("expected 99 USDC, got %s", receipt.PayoutAmount)
	}
	wantPull := new(big.Int).Mul(big.NewInt(100), pow10(18))
	if receipt.TokenAmount.Cmp(wantPull) != 0 {
		t.Fatalf("expected to pull 100 DTK, got %s", receipt.TokenAmount)
	}
	if !receipt.Burned {
		t.Fatalf("DTK is configured to burn")
	}

	remaining, err := f.engine.RemainingAllocation()
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining.Cmp(mustUsd(t, "1900")) != 0 {
		t.Fatalf("round should hold 1900, got %s", FormatUsd(remaining))
	}
	limit, err := f.engine.UserLimit(wallet)
	if err != nil {
		t.Fatalf("user limit: %v", err)
	}
	if limit.Cmp(mustUsd(t, "1900")) != 0 {
		t.Fatalf("daily room should be 1900, got %s", FormatUsd(limit))
	}
	if got := f.balance("USDC"); got.Cmp(big.NewInt(4_901_000_000)) != 0 {
		t.Fatalf("unexpected USDC balance %s", got)
	}
	if got := f.balance("DTK"); got.Sign() != 0 {
		t.Fatalf("burned tokens must not accrue, got %s", got)
	}

	stored, ok, err := f.engine.Ledger().Receipt(receipt.ReceiptID)
	if err != nil || !ok {
		t.Fatalf("receipt lookup: ok=%t err=%v", ok, err)
	}
	if stored.Wallet != wallet {
		t.Fatalf("receipt wallet mismatch")
	}

	var sawBurn, sawSettle bool
	for _, event := range f.emitted.emitted {
		switch event.EventType() {
		case events.TypeTokenBurned:
			sawBurn = true
		case events.TypeRedemptionSettled:
			sawSettle = true
		}
	}
	if !sawBurn || !sawSettle {
		t.Fatalf("expected burn and settle events, got %+v", f.emitted.emitted)
	}
}

func TestRedeemFeeTierBoundary(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")

	receipt, err := f.redeem(testAddr(1), "1000", true)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if receipt.FeeUsd.Cmp(mustUsd(t, "5")) != 0 {
		t.Fatalf("expected 5 USD fee at 50 bps, got %s", FormatUsd(receipt.FeeUsd))
	}
	if receipt.PayoutAmount.Cmp(big.NewInt(995_000_000)) != 0 {
		t.Fatalf("expected 995 USDC, got %s", receipt.PayoutAmount)
	}
}

func TestRedeemVolatileFallback(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")
	if err := f.engine.SetFeeTiers(f.owner, FeeSchedule{
		Basis: FeeBasisRequest,
		Tiers: []FeeTier{{ThresholdUsd: big.NewInt(0), FeeBps: 0}},
	}); err != nil {
		t.Fatalf("set fees: %v", err)
	}
	// Drain stable liquidity so the router must fall back.
	if _, err := f.engine.EmergencyWithdraw(f.owner, "USDC"); err != nil {
		t.Fatalf("drain stable: %v", err)
	}

	receipt, err := f.redeem(testAddr(1), "15", true)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if receipt.PayoutAsset != "WETH" {
		t.Fatalf("expected WETH fallback, got %s", receipt.PayoutAsset)
	}
	want, _ := new(big.Int).SetString("750000000000000000", 10)
	if receipt.PayoutAmount.Cmp(want) != 0 {
		t.Fatalf("expected 0.75 WETH at price 20, got %s", receipt.PayoutAmount)
	}
}

func TestRedeemPrefersVolatileOnRequest(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")

	receipt, err := f.redeem(testAddr(2), "100", false)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if receipt.PayoutAsset != "WETH" {
		t.Fatalf("caller declined stable, expected WETH, got %s", receipt.PayoutAsset)
	}
}

func TestRedeemCheckOrdering(t *testing.T) {
	f := newFixture(t)

	if err := f.engine.Pause(f.owner); err != nil {
		t.Fatalf("pause: %v", err)
	}
	// Paused wins even over an unsupported token.
	if _, err := f.engine.Redeem(testAddr(1), "UNKNOWN", mustUsd(t, "10"), true, nil); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused first, got %v", err)
	}
	if err := f.engine.Unpause(f.owner); err != nil {
		t.Fatalf("unpause: %v", err)
	}

	// Unsupported token outranks a missing proof.
	if _, err := f.engine.Redeem(testAddr(9), "UNKNOWN", mustUsd(t, "10"), true, nil); !errors.Is(err, ErrTokenNotSupported) {
		t.Fatalf("expected ErrTokenNotSupported, got %v", err)
	}

	// Eligibility outranks round state: no round is funded yet.
	if _, err := f.redeem(testAddr(9), "10", true); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
	if _, err := f.redeem(testAddr(1), "10", true); !errors.Is(err, ErrRoundExhausted) {
		t.Fatalf("expected ErrRoundExhausted with no round, got %v", err)
	}

	// A locked round outranks the daily limit.
	if _, err := f.engine.FundRound(f.owner, mustUsd(t, "5000")); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := f.redeem(testAddr(1), "3000", true); !errors.Is(err, ErrRoundLocked) {
		t.Fatalf("expected ErrRoundLocked, got %v", err)
	}
	f.advance(61 * time.Second)
	f.setPrice("20")
	if _, err := f.redeem(testAddr(1), "3000", true); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded once open, got %v", err)
	}
}

func TestRedeemAtomicOnPayoutFailure(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")
	f.engine.SetPayoutExecutor(&recordingExecutor{err: errors.New("rail offline")})
	wallet := testAddr(1)

	if _, err := f.redeem(wallet, "100", true); err == nil {
		t.Fatalf("expected redemption failure")
	}

	limit, err := f.engine.UserLimit(wallet)
	if err != nil {
		t.Fatalf("user limit: %v", err)
	}
	if limit.Cmp(mustUsd(t, "2000")) != 0 {
		t.Fatalf("failed redemption must not consume limit, got %s", FormatUsd(limit))
	}
	remaining, err := f.engine.RemainingAllocation()
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining.Cmp(mustUsd(t, "2000")) != 0 {
		t.Fatalf("failed redemption must not consume the round, got %s", FormatUsd(remaining))
	}
	if got := f.balance("USDC"); got.Cmp(big.NewInt(5_000_000_000)) != 0 {
		t.Fatalf("failed redemption must not move balances, got %s", got)
	}
	receipts, _, err := f.engine.Ledger().ListReceipts(0, 0, "", 10)
	if err != nil {
		t.Fatalf("list receipts: %v", err)
	}
	if len(receipts) != 0 {
		t.Fatalf("failed redemption must not record a receipt, got %d", len(receipts))
	}
}

type tokenMove struct {
	Wallet [20]byte
	Token  string
	Amount *big.Int
}

type recordingTokenSource struct {
	pulls   []tokenMove
	refunds []tokenMove
	pullErr error
}

func (r *recordingTokenSource) Pull(from [20]byte, token string, amount *big.Int) error {
	if r.pullErr != nil {
		return r.pullErr
	}
	r.pulls = append(r.pulls, tokenMove{Wallet: from, Token: token, Amount: new(big.Int).Set(amount)})
	return nil
}

func (r *recordingTokenSource) Refund(to [20]byte, token string, amount *big.Int) error {
	r.refunds = append(r.refunds, tokenMove{Wallet: to, Token: token, Amount: new(big.Int).Set(amount)})
	return nil
}

func TestRedeemRefundsPullOnPayoutFailure(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")
	wallet := testAddr(1)
	source := &recordingTokenSource{}
	executor := &recordingExecutor{err: errors.New("rail offline")}
	f.engine.SetTokenSource(source)
	f.engine.SetPayoutExecutor(executor)

	_, err := f.redeem(wallet, "100", true)
	if !errors.Is(err, ErrPayoutFailed) {
		t.Fatalf("expected ErrPayoutFailed, got %v", err)
	}
	var failure *PayoutFailure
	if !errors.As(err, &failure) || failure.Asset != "USDC" {
		t.Fatalf("expected payout failure for USDC, got %v", err)
	}
	if len(source.pulls) != 1 || len(source.refunds) != 1 {
		t.Fatalf("expected one pull and one refund, got %d/%d", len(source.pulls), len(source.refunds))
	}
	wantPull := new(big.Int).Mul(big.NewInt(100), pow10(18))
	if source.refunds[0].Wallet != wallet || source.refunds[0].Token != "DTK" || source.refunds[0].Amount.Cmp(wantPull) != 0 {
		t.Fatalf("refund must mirror the pull, got %+v", source.refunds[0])
	}
	limit, err := f.engine.UserLimit(wallet)
	if err != nil {
		t.Fatalf("user limit: %v", err)
	}
	if limit.Cmp(mustUsd(t, "2000")) != 0 {
		t.Fatalf("failed redemption must not consume limit, got %s", FormatUsd(limit))
	}

	executor.err = nil
	if _, err := f.redeem(wallet, "100", true); err != nil {
		t.Fatalf("redeem after rail recovery: %v", err)
	}
	if len(source.pulls) != 2 || len(source.refunds) != 1 {
		t.Fatalf("successful settlement must not refund, got %d/%d", len(source.pulls), len(source.refunds))
	}
}

type reentrantExecutor struct {
	engine *Engine
	proof  []ProofNode
	amount *big.Int
	inner  error
}

func (r *reentrantExecutor) Transfer(asset string, to [20]byte, amount *big.Int) error {
	_, r.inner = r.engine.Redeem(to, "DTK", r.amount, true, r.proof)
	return r.inner
}

func TestRedeemReentrancyBlocked(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")
	wallet := testAddr(1)
	executor := &reentrantExecutor{engine: f.engine, proof: f.proof(wallet), amount: mustUsd(t, "50")}
	f.engine.SetPayoutExecutor(executor)

	if _, err := f.redeem(wallet, "100", true); err == nil {
		t.Fatalf("expected outer redemption to fail")
	}
	if !errors.Is(executor.inner, ErrReentrancy) {
		t.Fatalf("expected inner ErrReentrancy, got %v", executor.inner)
	}
	limit, err := f.engine.UserLimit(wallet)
	if err != nil {
		t.Fatalf("user limit: %v", err)
	}
	if limit.Cmp(mustUsd(t, "2000")) != 0 {
		t.Fatalf("reentrant attempt must leave state untouched, got %s", FormatUsd(limit))
	}
}

func TestRedeemInsufficientLiquidity(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")
	if _, err := f.engine.EmergencyWithdraw(f.owner, "USDC"); err != nil {
		t.Fatalf("drain stable: %v", err)
	}
	if _, err := f.engine.EmergencyWithdraw(f.owner, "WETH"); err != nil {
		t.Fatalf("drain volatile: %v", err)
	}
	if _, err := f.redeem(testAddr(1), "100", true); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestQuoteMatchesRedeem(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")
	wallet := testAddr(1)

	quote, err := f.engine.QuoteRedeem(wallet, "DTK", mustUsd(t, "100"), true)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	limit, err := f.engine.UserLimit(wallet)
	if err != nil {
		t.Fatalf("user limit: %v", err)
	}
	if limit.Cmp(mustUsd(t, "2000")) != 0 {
		t.Fatalf("quoting must not consume limit, got %s", FormatUsd(limit))
	}

	receipt, err := f.redeem(wallet, "100", true)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if quote.FeeUsd.Cmp(receipt.FeeUsd) != 0 {
		t.Fatalf("quote fee %s != settled fee %s", quote.FeeUsd, receipt.FeeUsd)
	}
	if quote.PayoutAsset != receipt.PayoutAsset || quote.PayoutAmount.Cmp(receipt.PayoutAmount) != 0 {
		t.Fatalf("quote payout %s %s != settled %s %s", quote.PayoutAsset, quote.PayoutAmount, receipt.PayoutAsset, receipt.PayoutAmount)
	}
	if quote.TokenAmount.Cmp(receipt.TokenAmount) != 0 {
		t.Fatalf("quote pull %s != settled pull %s", quote.TokenAmount, receipt.TokenAmount)
	}
}

func TestGovernanceAuthorization(t *testing.T) {
	f := newFixture(t)
	intruder := testAddr(0xCC)

	if err := f.engine.Pause(intruder); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SetDailyLimit(intruder, mustUsd(t, "1")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SetWhitelistRoot(intruder, f.tree.Root()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.FundRound(intruder, mustUsd(t, "100")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.EmergencyWithdraw(intruder, "USDC"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPauseBlocksAndUnpauseRestores(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")
	wallet := testAddr(1)

	if err := f.engine.Pause(f.owner); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.redeem(wallet, "100", true); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if err := f.engine.Unpause(f.owner); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := f.redeem(wallet, "100", true); err != nil {
		t.Fatalf("redeem after unpause: %v", err)
	}
}

func TestSetDailyLimitApplies(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")
	wallet := testAddr(1)

	if err := f.engine.SetDailyLimit(f.owner, mustUsd(t, "50")); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	if _, err := f.redeem(wallet, "100", true); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded under new limit, got %v", err)
	}
	if _, err := f.redeem(wallet, "50", true); err != nil {
		t.Fatalf("redeem within new limit: %v", err)
	}
}

func TestWhitelistRootRotationApplies(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")
	removed := testAddr(1)
	kept := testAddr(2)

	newTree, err := NewWhitelistTree([][20]byte{kept, testAddr(3), testAddr(4)})
	if err != nil {
		t.Fatalf("build new tree: %v", err)
	}
	if err := f.engine.SetWhitelistRoot(f.owner, newTree.Root()); err != nil {
		t.Fatalf("rotate root: %v", err)
	}
	if _, err := f.redeem(removed, "10", true); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("removed wallet must lose eligibility, got %v", err)
	}
	freshProof, ok := newTree.Proof(kept)
	if !ok {
		t.Fatalf("expected proof in new tree")
	}
	if _, err := f.engine.Redeem(kept, "DTK", mustUsd(t, "10"), true, freshProof); err != nil {
		t.Fatalf("kept wallet with fresh proof: %v", err)
	}
}

func TestDisableTokenBlocksNewRedemptions(t *testing.T) {
	f := newFixture(t)
	f.openRound("2000")

	disabled := TokenConfig{Symbol: "DTK", Decimals: 18, UsdRate: big.NewRat(1, 1), Enabled: false, BurnOnRedeem: true}
	if err := f.engine.SetSupportedToken(f.owner, disabled); err != nil {
		t.Fatalf("disable token: %v", err)
	}
	if _, err := f.redeem(testAddr(1), "10", true); !errors.Is(err, ErrTokenNotSupported) {
		t.Fatalf("expected ErrTokenNotSupported, got %v", err)
	}
	disabled.Enabled = true
	if err := f.engine.SetSupportedToken(f.owner, disabled); err != nil {
		t.Fatalf("re-enable token: %v", err)
	}
	if _, err := f.redeem(testAddr(1), "10", true); err != nil {
		t.Fatalf("redeem after re-enable: %v", err)
	}
}

func TestEmergencyWithdrawToTreasury(t *testing.T) {
	f := newFixture(t)
	executor := &recordingExecutor{}
	f.engine.SetPayoutExecutor(executor)

	amount, err := f.engine.EmergencyWithdraw(f.owner, "USDC")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(5_000_000_000)) != 0 {
		t.Fatalf("expected full balance withdrawn, got %s", amount)
	}
	if got := f.balance("USDC"); got.Sign() != 0 {
		t.Fatalf("expected drained balance, got %s", got)
	}
	if len(executor.transfers) != 1 {
		t.Fatalf("expected one transfer, got %d", len(executor.transfers))
	}
	if executor.transfers[0].To != testAddr(0xBB) {
		t.Fatalf("emergency funds must go to the treasury")
	}
}

func TestRoundExhaustionAndRefund(t *testing.T) {
	f := newFixture(t)
	f.openRound("100")
	wallet := testAddr(1)

	if _, err := f.redeem(wallet, "100", true); err != nil {
		t.Fatalf("redeem full round: %v", err)
	}
	if _, err := f.redeem(testAddr(2), "10", true); !errors.Is(err, ErrRoundExhausted) {
		t.Fatalf("expected ErrRoundExhausted, got %v", err)
	}
	round, err := f.engine.FundRound(f.owner, mustUsd(t, "500"))
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if round.ID != 2 {
		t.Fatalf("funding an exhausted vault opens a new round, got id %d", round.ID)
	}
	if _, err := f.redeem(testAddr(2), "10", true); !errors.Is(err, ErrRoundLocked) {
		t.Fatalf("new round must re-impose the delay, got %v", err)
	}
	f.advance(61 * time.Second)
	f.setPrice("20")
	if _, err := f.redeem(testAddr(2), "10", true); err != nil {
		t.Fatalf("redeem after delay: %v", err)
	}
}

func TestBootstrapPreservesGovernance(t *testing.T) {
	f := newFixture(t)

	if err := f.engine.SetDailyLimit(f.owner, mustUsd(t, "50")); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	if err := f.engine.Bootstrap(); err != nil {
		t.Fatalf("re-bootstrap: %v", err)
	}
	limit, err := f.engine.UserLimit(testAddr(1))
	if err != nil {
		t.Fatalf("user limit: %v", err)
	}
	if limit.Cmp(mustUsd(t, "50")) != 0 {
		t.Fatalf("bootstrap must not reset governance values, got %s", FormatUsd(limit))
	}
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t)

	if err := f.engine.Deposit(testAddr(0xCC), "USDC", big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.Deposit(f.owner, "", big.NewInt(1)); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters for blank asset, got %v", err)
	}
	if err := f.engine.Deposit(f.owner, "USDC", big.NewInt(0)); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters for zero amount, got %v", err)
	}
}
