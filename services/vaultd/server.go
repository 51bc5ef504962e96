package vaultd

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"revault/native/vault"
	"revault/observability/logging"
	"revault/observability/metrics"
)

// Server exposes the redemption engine over HTTP. Engine calls are serialised
// behind a mutex so concurrent clients queue instead of tripping the engine's
// reentrancy guard.
type Server struct {
	engine  *vault.Engine
	log     *slog.Logger
	metrics *metrics.VaultMetrics

	adminToken  string
	limits      RateLimitConfig
	priceOracle *vault.ManualOracle

	engineMu   sync.Mutex
	visitorsMu sync.Mutex
	visitors   map[string]*rate.Limiter

	router http.Handler
}

// NewServer constructs a configured HTTP handler over the engine.
func NewServer(engine *vault.Engine, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:     engine,
		log:        logger,
		metrics:    metrics.Vault(),
		adminToken: cfg.Admin.BearerToken,
		limits:     cfg.RateLimit,
		visitors:   make(map[string]*rate.Limiter),
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetPriceOracle exposes a manually fed oracle through the admin API. Without
// one the price endpoint reports the feed as disabled.
func (s *Server) SetPriceOracle(oracle *vault.ManualOracle) {
	s.priceOracle = oracle
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(pub chi.Router) {
		pub.Use(s.rateLimit)
		pub.Post("/v1/redeem", s.handleRedeem)
		pub.Post("/v1/quote", s.handleQuote)
		pub.Get("/v1/limits/{address}", s.handleLimits)
		pub.Get("/v1/round", s.handleRound)
		pub.Get("/v1/receipts", s.handleReceipts)
		pub.Get("/v1/receipts/export", s.handleReceiptExport)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(s.requireAdmin)
		admin.Post("/v1/admin/pause", s.handlePause)
		admin.Post("/v1/admin/unpause", s.handleUnpause)
		admin.Post("/v1/admin/round/fund", s.handleFundRound)
		admin.Post("/v1/admin/round/start", s.handleStartRound)
		admin.Post("/v1/admin/params/daily-limit", s.handleSetDailyLimit)
		admin.Post("/v1/admin/params/whitelist-root", s.handleSetWhitelistRoot)
		admin.Post("/v1/admin/params/fee-tiers", s.handleSetFeeTiers)
		admin.Post("/v1/admin/params/token", s.handleSetToken)
		admin.Post("/v1/admin/deposit", s.handleDeposit)
		admin.Post("/v1/admin/withdraw", s.handleWithdraw)
		admin.Post("/v1/admin/price", s.handleSetPrice)
	})

	return r
}

// --- middleware ---

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := s.limiterFor(clientID(r))
		if !limiter.Allow() {
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "request rate exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(id string) *rate.Limiter {
	s.visitorsMu.Lock()
	defer s.visitorsMu.Unlock()
	if limiter, ok := s.visitors[id]; ok {
		return limiter
	}
	perSecond := s.limits.RequestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := s.limits.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	s.visitors[id] = limiter
	return limiter
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			writeJSONError(w, http.StatusServiceUnavailable, "admin_disabled", "admin api is not configured")
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) != s.adminToken {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- payloads ---

type proofNodePayload struct {
	Sibling string `json:"sibling"`
	Left    bool   `json:"left"`
}

type redeemRequest struct {
	Wallet       string             `json:"wallet"`
	Token        string             `json:"token"`
	AmountUsd    string             `json:"amountUsd"`
	PreferStable bool               `json:"preferStable"`
	Proof        []proofNodePayload `json:"proof"`
}

type receiptPayload struct {
	ReceiptID    string `json:"receiptId"`
	Wallet       string `json:"wallet"`
	TokenIn      string `json:"tokenIn"`
	TokenAmount  string `json:"tokenAmount"`
	AmountUsd    string `json:"amountUsd"`
	FeeUsd       string `json:"feeUsd"`
	PayoutAsset  string `json:"payoutAsset"`
	PayoutAmount string `json:"payoutAmount"`
	RoundID      uint64 `json:"roundId"`
	SettledAt    int64  `json:"settledAt"`
	Burned       bool   `json:"burned"`
}

func renderReceipt(receipt *vault.RedemptionReceipt) receiptPayload {
	return receiptPayload{
		ReceiptID:    receipt.ReceiptID,
		Wallet:       "0x" + hex.EncodeToString(receipt.Wallet[:]),
		TokenIn:      receipt.TokenIn,
		TokenAmount:  receipt.TokenAmount.String(),
		AmountUsd:    vault.FormatUsd(receipt.AmountUsd),
		FeeUsd:       vault.FormatUsd(receipt.FeeUsd),
		PayoutAsset:  receipt.PayoutAsset,
		PayoutAmount: receipt.PayoutAmount.String(),
		RoundID:      receipt.RoundID,
		SettledAt:    receipt.SettledAt,
		Burned:       receipt.Burned,
	}
}

type quotePayload struct {
	TokenIn      string `json:"tokenIn"`
	TokenAmount  string `json:"tokenAmount"`
	AmountUsd    string `json:"amountUsd"`
	FeeUsd       string `json:"feeUsd"`
	NetUsd       string `json:"netUsd"`
	PayoutAsset  string `json:"payoutAsset"`
	PayoutAmount string `json:"payoutAmount"`
}

type roundPayload struct {
	ID           uint64 `json:"id"`
	FundedUsd    string `json:"fundedUsd"`
	RemainingUsd string `json:"remainingUsd"`
	StartTime    int64  `json:"startTime"`
	DelaySeconds uint64 `json:"delaySeconds"`
	Active       bool   `json:"active"`
	Locked       bool   `json:"locked"`
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, map[string]string{"error": reason, "message": message})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, vault.ErrPaused):
		return http.StatusServiceUnavailable, "paused"
	case errors.Is(err, vault.ErrTokenNotSupported):
		return http.StatusBadRequest, "token_not_supported"
	case errors.Is(err, vault.ErrNotEligible):
		return http.StatusForbidden, "not_eligible"
	case errors.Is(err, vault.ErrRoundLocked):
		return http.StatusConflict, "round_locked"
	case errors.Is(err, vault.ErrRoundExhausted):
		return http.StatusConflict, "round_exhausted"
	case errors.Is(err, vault.ErrLimitExceeded):
		return http.StatusTooManyRequests, "limit_exceeded"
	case errors.Is(err, vault.ErrInsufficientLiquidity):
		return http.StatusServiceUnavailable, "insufficient_liquidity"
	case errors.Is(err, vault.ErrInvalidOraclePrice):
		return http.StatusServiceUnavailable, "invalid_oracle_price"
	case errors.Is(err, vault.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, vault.ErrReentrancy):
		return http.StatusConflict, "busy"
	case errors.Is(err, vault.ErrPayoutFailed):
		return http.StatusBadGateway, "payout_failed"
	case errors.Is(err, vault.ErrInvalidParameters):
		return http.StatusBadRequest, "invalid_parameters"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) string {
	status, reason := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("engine call failed", "error", err.Error())
		writeJSONError(w, status, reason, "internal error")
		return reason
	}
	writeJSONError(w, status, reason, err.Error())
	return reason
}

func parseWallet(raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return out, fmt.Errorf("invalid wallet address %q", raw)
	}
	copy(out[:], ethcommon.HexToAddress(trimmed).Bytes())
	return out, nil
}

func parseProof(payload []proofNodePayload) ([]vault.ProofNode, error) {
	proof := make([]vault.ProofNode, 0, len(payload))
	for _, node := range payload {
		raw := strings.TrimPrefix(strings.TrimSpace(node.Sibling), "0x")
		decoded, err := hex.DecodeString(raw)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("invalid proof node %q", node.Sibling)
		}
		var sibling [32]byte
		copy(sibling[:], decoded)
		proof = append(proof, vault.ProofNode{Sibling: sibling, Left: node.Left})
	}
	return proof, nil
}

func parseUsdField(raw, field string) (*big.Int, error) {
	amount, err := vault.ParseUsd(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%s must be positive", field)
	}
	return amount, nil
}

func usdFloat(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	value, _ := new(big.Rat).SetFrac(new(big.Int).Set(amount), vault.UsdScale()).Float64()
	return value
}

func decodeBody(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func (s *Server) publishRoundGauge() {
	remaining, err := s.engine.RemainingAllocation()
	if err != nil {
		return
	}
	s.metrics.SetRoundRemaining(usdFloat(remaining))
}

// --- public handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	wallet, err := parseWallet(req.Wallet)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	amount, err := parseUsdField(req.AmountUsd, "amountUsd")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	proof, err := parseProof(req.Proof)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	s.engineMu.Lock()
	receipt, err := s.engine.Redeem(wallet, req.Token, amount, req.PreferStable, proof)
	s.engineMu.Unlock()
	if err != nil {
		reason := s.writeEngineError(w, err)
		s.metrics.ObserveRejected(reason)
		var failure *vault.PayoutFailure
		if errors.As(err, &failure) {
			s.metrics.ObservePayoutFailure(failure.Asset)
		}
		s.log.Info("redemption rejected",
			"reason", reason,
			"wallet", logging.MaskWallet(req.Wallet),
			"token", req.Token,
		)
		return
	}
	s.metrics.ObserveSettled(receipt.PayoutAsset, usdFloat(receipt.AmountUsd), usdFloat(receipt.FeeUsd))
	s.publishRoundGauge()
	s.log.Info("redemption settled",
		"receiptId", receipt.ReceiptID,
		"token", receipt.TokenIn,
		"amountUsd", vault.FormatUsd(receipt.AmountUsd),
		"feeUsd", vault.FormatUsd(receipt.FeeUsd),
		"payoutAsset", receipt.PayoutAsset,
		"roundId", strconv.FormatUint(receipt.RoundID, 10),
	)
	writeJSON(w, http.StatusOK, renderReceipt(receipt))
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	wallet, err := parseWallet(req.Wallet)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	amount, err := parseUsdField(req.AmountUsd, "amountUsd")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	quote, err := s.engine.QuoteRedeem(wallet, req.Token, amount, req.PreferStable)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotePayload{
		TokenIn:      quote.TokenIn,
		TokenAmount:  quote.TokenAmount.String(),
		AmountUsd:    vault.FormatUsd(quote.AmountUsd),
		FeeUsd:       vault.FormatUsd(quote.FeeUsd),
		NetUsd:       vault.FormatUsd(quote.NetUsd),
		PayoutAsset:  quote.PayoutAsset,
		PayoutAmount: quote.PayoutAmount.String(),
	})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	wallet, err := parseWallet(chi.URLParam(r, "address"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	remaining, err := s.engine.UserLimit(wallet)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	lifetime, err := s.engine.UserLifetime(wallet)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"remainingUsd": vault.FormatUsd(remaining),
		"lifetimeUsd":  vault.FormatUsd(lifetime),
	})
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	round, ok, err := s.engine.CurrentRound()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no_round", "no funding round exists")
		return
	}
	locked, err := s.engine.IsLocked()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roundPayload{
		ID:           round.ID,
		FundedUsd:    vault.FormatUsd(round.FundedUsd),
		RemainingUsd: vault.FormatUsd(round.RemainingUsd),
		StartTime:    round.StartTime,
		DelaySeconds: round.DelaySeconds,
		Active:       round.Active,
		Locked:       locked,
	})
}

func parseTimeRange(r *http.Request) (int64, int64, error) {
	parse := func(name string) (int64, error) {
		raw := strings.TrimSpace(r.URL.Query().Get(name))
		if raw == "" {
			return 0, nil
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", name, err)
		}
		return value, nil
	}
	start, err := parse("start")
	if err != nil {
		return 0, 0, err
	}
	end, err := parse("end")
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		limit = parsed
	}
	receipts, cursor, err := s.engine.Ledger().ListReceipts(start, end, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	rendered := make([]receiptPayload, 0, len(receipts))
	for _, receipt := range receipts {
		rendered = append(rendered, renderReceipt(receipt))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"receipts":   rendered,
		"nextCursor": cursor,
	})
}

func (s *Server) handleReceiptExport(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	raw, count, err := s.engine.Ledger().ReceiptsCSV(start, end)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=receipts-%d.csv", time.Now().Unix()))
	w.Header().Set("X-Receipt-Count", strconv.Itoa(count))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// --- admin handlers ---

type adminRequest struct {
	Authority string `json:"authority"`
	AmountUsd string `json:"amountUsd,omitempty"`
	Root      string `json:"root,omitempty"`
	Asset     string `json:"asset,omitempty"`
	Amount    string `json:"amount,omitempty"`
}

func (s *Server) decodeAuthority(w http.ResponseWriter, r *http.Request, req *adminRequest) ([20]byte, bool) {
	var zero [20]byte
	if err := decodeBody(r, req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return zero, false
	}
	authority, err := parseWallet(req.Authority)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return zero, false
	}
	return authority, true
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	authority, ok := s.decodeAuthority(w, r, &req)
	if !ok {
		return
	}
	s.engineMu.Lock()
	err := s.engine.Pause(authority)
	s.engineMu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	authority, ok := s.decodeAuthority(w, r, &req)
	if !ok {
		return
	}
	s.engineMu.Lock()
	err := s.engine.Unpause(authority)
	s.engineMu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (s *Server) handleFundRound(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	authority, ok := s.decodeAuthority(w, r, &req)
	if !ok {
		return
	}
	amount, err := parseUsdField(req.AmountUsd, "amountUsd")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.engineMu.Lock()
	round, err := s.engine.FundRound(authority, amount)
	s.engineMu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.publishRoundGauge()
	writeJSON(w, http.StatusOK, map[string]interface{}{"roundId": round.ID, "remainingUsd": vault.FormatUsd(round.RemainingUsd)})
}

func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	authority, ok := s.decodeAuthority(w, r, &req)
	if !ok {
		return
	}
	amount, err := parseUsdField(req.AmountUsd, "amountUsd")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.engineMu.Lock()
	round, err := s.engine.StartNewRound(authority, amount)
	s.engineMu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.publishRoundGauge()
	writeJSON(w, http.StatusOK, map[string]interface{}{"roundId": round.ID, "remainingUsd": vault.FormatUsd(round.RemainingUsd)})
}

func (s *Server) handleSetDailyLimit(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	authority, ok := s.decodeAuthority(w, r, &req)
	if !ok {
		return
	}
	limit, err := parseUsdField(req.AmountUsd, "amountUsd")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.engineMu.Lock()
	err = s.engine.SetDailyLimit(authority, limit)
	s.engineMu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"dailyLimitUsd": vault.FormatUsd(limit)})
}

func (s *Server) handleSetWhitelistRoot(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	authority, ok := s.decodeAuthority(w, r, &req)
	if !ok {
		return
	}
	raw := strings.TrimPrefix(strings.TrimSpace(req.Root), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 32 {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "root must be 32 hex bytes")
		return
	}
	var root [32]byte
	copy(root[:], decoded)
	s.engineMu.Lock()
	err = s.engine.SetWhitelistRoot(authority, root)
	s.engineMu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"whitelistRoot": "0x" + raw})
}

type feeTiersRequest struct {
	Authority string `json:"authority"`
	Basis     string `json:"basis"`
	Tiers     []struct {
		ThresholdUsd string `json:"thresholdUsd"`
		FeeBps       uint64 `json:"feeBps"`
	} `json:"tiers"`
}

func (s *Server) handleSetFeeTiers(w http.ResponseWriter, r *http.Request) {
	var req feeTiersRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	authority, err := parseWallet(req.Authority)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	schedule := vault.FeeSchedule{Basis: vault.FeeBasis(strings.ToLower(strings.TrimSpace(req.Basis)))}
	for _, tier := range req.Tiers {
		threshold, err := vault.ParseUsd(tier.ThresholdUsd)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid threshold: %v", err))
			return
		}
		schedule.Tiers = append(schedule.Tiers, vault.FeeTier{ThresholdUsd: threshold, FeeBps: tier.FeeBps})
	}
	s.engineMu.Lock()
	err = s.engine.SetFeeTiers(authority, schedule)
	s.engineMu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tiers": len(schedule.Tiers), "basis": string(schedule.Basis)})
}

type tokenRequest struct {
	Authority    string `json:"authority"`
	Symbol       string `json:"symbol"`
	Decimals     uint8  `json:"decimals"`
	UsdRate      string `json:"usdRate"`
	Enabled      bool   `json:"enabled"`
	BurnOnRedeem bool   `json:"burnOnRedeem"`
}

func (s *Server) handleSetToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	authority, err := parseWallet(req.Authority)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	rateText := strings.TrimSpace(req.UsdRate)
	if rateText == "" {
		rateText = "1"
	}
	usdRate, ok := new(big.Rat).SetString(rateText)
	if !ok || usdRate.Sign() <= 0 {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "usdRate must be a positive decimal")
		return
	}
	cfg := vault.TokenConfig{
		Symbol:       req.Symbol,
		Decimals:     req.Decimals,
		UsdRate:      usdRate,
		Enabled:      req.Enabled,
		BurnOnRedeem: req.BurnOnRedeem,
	}
	s.engineMu.Lock()
	err = s.engine.SetSupportedToken(authority, cfg)
	s.engineMu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbol": cfg.Symbol, "enabled": cfg.Enabled})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	authority, ok := s.decodeAuthority(w, r, &req)
	if !ok {
		return
	}
	amount, parsed := new(big.Int).SetString(strings.TrimSpace(req.Amount), 10)
	if !parsed || amount.Sign() <= 0 {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "amount must be a positive base-unit integer")
		return
	}
	s.engineMu.Lock()
	err := s.engine.Deposit(authority, req.Asset, amount)
	s.engineMu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if balance, err := s.engine.Ledger().Balance(req.Asset); err == nil {
		units, _ := new(big.Float).SetInt(balance).Float64()
		s.metrics.SetBalance(strings.ToUpper(strings.TrimSpace(req.Asset)), units)
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset": req.Asset, "credited": amount.String()})
}

type priceRequest struct {
	Base  string `json:"base"`
	Quote string `json:"quote,omitempty"`
	Price string `json:"price"`
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	if s.priceOracle == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "price_feed_disabled", "no manual price feed configured")
		return
	}
	var req priceRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	quote := strings.TrimSpace(req.Quote)
	if quote == "" {
		quote = "USD"
	}
	if err := s.priceOracle.SetDecimal(req.Base, quote, req.Price, time.Now()); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"base": strings.ToUpper(strings.TrimSpace(req.Base)), "price": req.Price})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	authority, ok := s.decodeAuthority(w, r, &req)
	if !ok {
		return
	}
	s.engineMu.Lock()
	amount, err := s.engine.EmergencyWithdraw(authority, req.Asset)
	s.engineMu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset": req.Asset, "withdrawn": amount.String()})
}
