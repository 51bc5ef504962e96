package vault

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
)

// Ledger owns the vault's balances and settled-redemption receipts within
// storage. It is constructed over whichever store the caller is working
// against, so staged and durable access share one code path.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the vault's holding of the supplied asset.
func (l *Ledger) Balance(asset string) (*big.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger not initialised")
	}
	var record amountRecord
	ok, err := l.store.KVGet(balanceKey(asset), &record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseAmount(record.Amount)
}

// Credit increases the vault's holding of the asset.
func (l *Ledger) Credit(asset string, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger: credit amount must not be negative")
	}
	current, err := l.Balance(asset)
	if err != nil {
		return err
	}
	updated := new(big.Int).Add(current, amount)
	return l.store.KVPut(balanceKey(asset), amountRecord{Amount: updated.String()})
}

// Debit decreases the vault's holding of the asset, failing when the balance
// cannot cover the amount. Outflow never exceeds the pre-call balance.
func (l *Ledger) Debit(asset string, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger: debit amount must not be negative")
	}
	current, err := l.Balance(asset)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	updated := new(big.Int).Sub(current, amount)
	return l.store.KVPut(balanceKey(asset), amountRecord{Amount: updated.String()})
}

type storedReceipt struct {
	ReceiptID    string
	Wallet       [20]byte
	TokenIn      string
	TokenAmount  string
	AmountUsd    string
	FeeUsd       string
	PayoutAsset  string
	PayoutAmount string
	RoundID      uint64
	SettledAt    uint64
	Burned       bool
}

type receiptIndexEntry struct {
	ReceiptID string
	Settled   uint64
}

func toStoredReceipt(r *RedemptionReceipt) storedReceipt {
	stored := storedReceipt{
		ReceiptID:   strings.TrimSpace(r.ReceiptID),
		Wallet:      r.Wallet,
		TokenIn:     strings.TrimSpace(r.TokenIn),
		PayoutAsset: strings.TrimSpace(r.PayoutAsset),
		RoundID:     r.RoundID,
		Burned:      r.Burned,
	}
	if r.TokenAmount != nil {
		stored.TokenAmount = r.TokenAmount.String()
	}
	if r.AmountUsd != nil {
		stored.AmountUsd = r.AmountUsd.String()
	}
	if r.FeeUsd != nil {
		stored.FeeUsd = r.FeeUsd.String()
	}
	if r.PayoutAmount != nil {
		stored.PayoutAmount = r.PayoutAmount.String()
	}
	if r.SettledAt > 0 {
		stored.SettledAt = uint64(r.SettledAt)
	}
	return stored
}

func fromStoredReceipt(stored *storedReceipt) (*RedemptionReceipt, error) {
	if stored == nil {
		return nil, fmt.Errorf("ledger: nil stored receipt")
	}
	tokenAmount, err := parseAmount(stored.TokenAmount)
	if err != nil {
		return nil, fmt.Errorf("ledger: token amount: %w", err)
	}
	amountUsd, err := parseAmount(stored.AmountUsd)
	if err != nil {
		return nil, fmt.Errorf("ledger: usd amount: %w", err)
	}
	feeUsd, err := parseAmount(stored.FeeUsd)
	if err != nil {
		return nil, fmt.Errorf("ledger: fee amount: %w", err)
	}
	payoutAmount, err := parseAmount(stored.PayoutAmount)
	if err != nil {
		return nil, fmt.Errorf("ledger: payout amount: %w", err)
	}
	return &RedemptionReceipt{
		ReceiptID:    stored.ReceiptID,
		Wallet:       stored.Wallet,
		TokenIn:      stored.TokenIn,
		TokenAmount:  tokenAmount,
		AmountUsd:    amountUsd,
		FeeUsd:       feeUsd,
		PayoutAsset:  stored.PayoutAsset,
		PayoutAmount: payoutAmount,
		RoundID:      stored.RoundID,
		SettledAt:    int64(stored.SettledAt),
		Burned:       stored.Burned,
	}, nil
}

// PutReceipt persists the receipt, enforcing unique identifiers.
func (l *Ledger) PutReceipt(receipt *RedemptionReceipt) error {
	if l == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if receipt == nil || strings.TrimSpace(receipt.ReceiptID) == "" {
		return fmt.Errorf("ledger: receiptId required")
	}
	key := receiptKey(receipt.ReceiptID)
	exists, err := l.store.KVGet(key, nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("ledger: receipt %s already exists", strings.TrimSpace(receipt.ReceiptID))
	}
	stored := toStoredReceipt(receipt)
	if err := l.store.KVPut(key, stored); err != nil {
		return err
	}
	entry := receiptIndexEntry{ReceiptID: stored.ReceiptID, Settled: stored.SettledAt}
	encoded, err := rlp.EncodeToBytes(entry)
	if err != nil {
		return err
	}
	return l.store.KVAppend(receiptIndexKey, encoded)
}

// Receipt retrieves a settled redemption by identifier.
func (l *Ledger) Receipt(receiptID string) (*RedemptionReceipt, bool, error) {
	if l == nil {
		return nil, false, fmt.Errorf("ledger not initialised")
	}
	var stored storedReceipt
	ok, err := l.store.KVGet(receiptKey(receiptID), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	receipt, err := fromStoredReceipt(&stored)
	if err != nil {
		return nil, false, err
	}
	return receipt, true, nil
}

// ListReceipts returns receipts within the supplied inclusive time range,
// paging with the cursor of the last returned identifier.
func (l *Ledger) ListReceipts(startTs, endTs int64, cursor string, limit int) ([]*RedemptionReceipt, string, error) {
	if l == nil {
		return nil, "", fmt.Errorf("ledger not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	entries, err := l.loadReceiptIndex()
	if err != nil {
		return nil, "", err
	}
	filtered := make([]receiptIndexEntry, 0, len(entries))
	for _, entry := range entries {
		settled := int64(entry.Settled)
		if startTs != 0 && settled < startTs {
			continue
		}
		if endTs != 0 && settled > endTs {
			continue
		}
		filtered = append(filtered, entry)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Settled == filtered[j].Settled {
			return filtered[i].ReceiptID < filtered[j].ReceiptID
		}
		return filtered[i].Settled < filtered[j].Settled
	})
	startIdx := 0
	trimmedCursor := strings.TrimSpace(cursor)
	if trimmedCursor != "" {
		for i, entry := range filtered {
			if entry.ReceiptID == trimmedCursor {
				startIdx = i + 1
				break
			}
		}
	}
	receipts := make([]*RedemptionReceipt, 0, min(limit, len(filtered)-startIdx))
	nextCursor := ""
	for i := startIdx; i < len(filtered) && len(receipts) < limit; i++ {
		receipt, ok, err := l.Receipt(filtered[i].ReceiptID)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			continue
		}
		receipts = append(receipts, receipt)
		nextCursor = filtered[i].ReceiptID
	}
	if startIdx+len(receipts) >= len(filtered) {
		nextCursor = ""
	}
	return receipts, nextCursor, nil
}

func (l *Ledger) loadReceiptIndex() ([]receiptIndexEntry, error) {
	var raw [][]byte
	if err := l.store.KVGetList(receiptIndexKey, &raw); err != nil {
		return nil, err
	}
	entries := make([]receiptIndexEntry, 0, len(raw))
	for _, encoded := range raw {
		if len(encoded) == 0 {
			continue
		}
		var entry receiptIndexEntry
		if err := rlp.DecodeBytes(encoded, &entry); err != nil {
			return nil, err
		}
		if strings.TrimSpace(entry.ReceiptID) == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReceiptCSVHeader exposes the canonical CSV header for receipt exports.
var ReceiptCSVHeader = []string{"receiptId", "wallet", "tokenIn", "tokenAmount", "amountUsd", "feeUsd", "payoutAsset", "payoutAmount", "roundId", "settledAt", "burned"}

// ExportCSV renders receipts within the window as base64 CSV for reporting
// integrations.
func (l *Ledger) ExportCSV(startTs, endTs int64) (string, int, error) {
	raw, count, err := l.ReceiptsCSV(startTs, endTs)
	if err != nil {
		return "", 0, err
	}
	return base64.StdEncoding.EncodeToString(raw), count, nil
}

// ReceiptsCSV renders receipts within the window as plain CSV bytes.
func (l *Ledger) ReceiptsCSV(startTs, endTs int64) ([]byte, int, error) {
	if l == nil {
		return nil, 0, fmt.Errorf("ledger not initialised")
	}
	receipts, _, err := l.ListReceipts(startTs, endTs, "", int(^uint(0)>>1))
	if err != nil {
		return nil, 0, err
	}
	builder := &strings.Builder{}
	builder.WriteString(strings.Join(ReceiptCSVHeader, ","))
	builder.WriteString("\n")
	for _, receipt := range receipts {
		row := []string{
			receipt.ReceiptID,
			hex.EncodeToString(receipt.Wallet[:]),
			receipt.TokenIn,
			receipt.TokenAmount.String(),
			receipt.AmountUsd.String(),
			receipt.FeeUsd.String(),
			receipt.PayoutAsset,
			receipt.PayoutAmount.String(),
			strconv.FormatUint(receipt.RoundID, 10),
			strconv.FormatInt(receipt.SettledAt, 10),
			strconv.FormatBool(receipt.Burned),
		}
		builder.WriteString(strings.Join(row, ","))
		builder.WriteString("\n")
	}
	return []byte(builder.String()), len(receipts), nil
}
