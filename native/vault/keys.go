package vault

import (
	"encoding/hex"
	"strings"
)

var (
	paramsRootKey       = []byte("vault/params/root")
	paramsDailyLimitKey = []byte("vault/params/dailyLimit")
	paramsFeeTiersKey   = []byte("vault/params/feeTiers")
	paramsPausedKey     = []byte("vault/params/paused")
	tokenConfigPrefix   = []byte("vault/token/")
	roundCurrentKey     = []byte("vault/round/current")
	usageDailyPrefix    = []byte("vault/usage/daily/")
	usageLifetimePrefix = []byte("vault/usage/lifetime/")
	balancePrefix       = []byte("vault/balance/")
	receiptPrefix       = []byte("vault/receipt/")
	receiptIndexKey     = []byte("vault/receipt/index")
)

func prefixedKey(prefix []byte, suffix string) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return buf
}

func tokenConfigKey(symbol string) []byte {
	return prefixedKey(tokenConfigPrefix, strings.ToUpper(strings.TrimSpace(symbol)))
}

func usageDailyKey(addr [20]byte) []byte {
	return prefixedKey(usageDailyPrefix, hex.EncodeToString(addr[:]))
}

func usageLifetimeKey(addr [20]byte) []byte {
	return prefixedKey(usageLifetimePrefix, hex.EncodeToString(addr[:]))
}

func balanceKey(asset string) []byte {
	return prefixedKey(balancePrefix, strings.ToUpper(strings.TrimSpace(asset)))
}

func receiptKey(receiptID string) []byte {
	return prefixedKey(receiptPrefix, strings.TrimSpace(receiptID))
}
