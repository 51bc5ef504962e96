package vault

import (
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
	"testing"
)

func TestLedgerCreditDebit(t *testing.T) {
	ledger := NewLedger(newTestStore(t))

	balance, err := ledger.Balance("USDC")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected zero opening balance, got %s", balance)
	}
	if err := ledger.Credit("USDC", big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.Debit("USDC", big.NewInt(40)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	balance, err = ledger.Balance("usdc")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected 60, got %s", balance)
	}
	if err := ledger.Debit("USDC", big.NewInt(100)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	balance, err = ledger.Balance("USDC")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("failed debit must not move the balance, got %s", balance)
	}
}

func testReceipt(id string, settled int64) *RedemptionReceipt {
	return &RedemptionReceipt{
		ReceiptID:    id,
		Wallet:       testAddr(1),
		TokenIn:      "DTK",
		TokenAmount:  big.NewInt(1_000_000),
		AmountUsd:    big.NewInt(1_000_000),
		FeeUsd:       big.NewInt(10_000),
		PayoutAsset:  "USDC",
		PayoutAmount: big.NewInt(990_000),
		RoundID:      1,
		SettledAt:    settled,
		Burned:       true,
	}
}

func TestLedgerReceiptRoundTrip(t *testing.T) {
	ledger := NewLedger(newTestStore(t))
	original := testReceipt("r-1", 1_700_000_100)
	if err := ledger.PutReceipt(original); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ledger.PutReceipt(testReceipt("r-1", 1_700_000_200)); err == nil {
		t.Fatalf("duplicate receipt id must be rejected")
	}
	loaded, ok, err := ledger.Receipt("r-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("receipt not found")
	}
	if loaded.Wallet != original.Wallet || loaded.TokenIn != original.TokenIn || loaded.SettledAt != original.SettledAt {
		t.Fatalf("receipt fields did not survive storage: %+v", loaded)
	}
	if loaded.PayoutAmount.Cmp(original.PayoutAmount) != 0 || !loaded.Burned {
		t.Fatalf("receipt amounts did not survive storage: %+v", loaded)
	}
}

func TestLedgerListReceipts(t *testing.T) {
	ledger := NewLedger(newTestStore(t))
	for i, id := range []string{"r-1", "r-2", "r-3", "r-4"} {
		if err := ledger.PutReceipt(testReceipt(id, 1_700_000_000+int64(i)*100)); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	receipts, cursor, err := ledger.ListReceipts(0, 0, "", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(receipts) != 2 || receipts[0].ReceiptID != "r-1" || receipts[1].ReceiptID != "r-2" {
		t.Fatalf("unexpected first page: %+v", receipts)
	}
	if cursor != "r-2" {
		t.Fatalf("expected cursor r-2, got %q", cursor)
	}
	receipts, cursor, err = ledger.ListReceipts(0, 0, cursor, 2)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(receipts) != 2 || receipts[0].ReceiptID != "r-3" || receipts[1].ReceiptID != "r-4" {
		t.Fatalf("unexpected second page: %+v", receipts)
	}
	if cursor != "" {
		t.Fatalf("expected exhausted cursor, got %q", cursor)
	}

	receipts, _, err = ledger.ListReceipts(1_700_000_100, 1_700_000_200, "", 10)
	if err != nil {
		t.Fatalf("list windowed: %v", err)
	}
	if len(receipts) != 2 || receipts[0].ReceiptID != "r-2" || receipts[1].ReceiptID != "r-3" {
		t.Fatalf("unexpected time filter result: %+v", receipts)
	}
}

func TestLedgerExportCSV(t *testing.T) {
	ledger := NewLedger(newTestStore(t))
	if err := ledger.PutReceipt(testReceipt("r-1", 1_700_000_100)); err != nil {
		t.Fatalf("put: %v", err)
	}
	encoded, count, err := ledger.ExportCSV(0, 0)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 exported receipt, got %d", count)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(decoded)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if lines[0] != strings.Join(ReceiptCSVHeader, ",") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "r-1,") {
		t.Fatalf("unexpected row %q", lines[1])
	}

	raw, rawCount, err := ledger.ReceiptsCSV(0, 0)
	if err != nil {
		t.Fatalf("receipts csv: %v", err)
	}
	if rawCount != 1 {
		t.Fatalf("expected 1 receipt in plain export, got %d", rawCount)
	}
	if string(raw) != string(decoded) {
		t.Fatalf("plain export must match the encoded payload")
	}
}
