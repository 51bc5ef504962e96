package logging

import "testing"

func TestMaskFieldRedactsUnknownKeys(t *testing.T) {
	attr := MaskField("proof", "0xdeadbeef")
	if attr.Value.String() != RedactedValue {
		t.Fatalf("expected redaction, got %q", attr.Value.String())
	}
	attr = MaskField("reason", "limit_exceeded")
	if attr.Value.String() != "limit_exceeded" {
		t.Fatalf("allowlisted key must pass through, got %q", attr.Value.String())
	}
	attr = MaskField("proof", "")
	if attr.Value.String() != "" {
		t.Fatalf("empty values pass through, got %q", attr.Value.String())
	}
}

func TestMaskWallet(t *testing.T) {
	masked := MaskWallet("0x1111111111111111111111111111111111111111")
	if masked != "0x1111..1111" {
		t.Fatalf("unexpected mask %q", masked)
	}
	if got := MaskWallet("0xshort"); got != "0xshort" {
		t.Fatalf("short values stay untouched, got %q", got)
	}
}
