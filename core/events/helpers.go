package events

import (
	"math/big"
	"strconv"
	"strings"

	"rocket/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAccount(addr [20]byte) string {
	return crypto.FormatAccount(addr)
}

func formatAccounts(addrs [][20]byte) string {
	parts := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		parts = append(parts, formatAccount(addr))
	}
	return strings.Join(parts, ",")
}

func formatIDs(ids []uint64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(id, 10))
	}
	return strings.Join(parts, ",")
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }
