package chain

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
)

var (
	btcLegacy = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	btcBech32 = regexp.MustCompile(`^bc1[02-9ac-hj-np-z]{11,71}$`)
)

// ValidAddress reports whether address is well formed for the chain.
func ValidAddress(c domain.Chain, address string) bool {
	switch c {
	case domain.ChainEthereum, domain.ChainHyperliquid:
		return strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
	case domain.ChainBitcoin:
		return btcLegacy.MatchString(address) || btcBech32.MatchString(strings.ToLower(address))
	}
	return false
}

// NormalizeAddress returns the canonical form used as storage key.
// EVM and bech32 addresses are case-insensitive and stored lowercased.
func NormalizeAddress(c domain.Chain, address string) string {
	address = strings.TrimSpace(address)
	if c.IsEVM() || strings.HasPrefix(strings.ToLower(address), "bc1") {
		return strings.ToLower(address)
	}
	return address
}

// ParseAddress validates and normalises a user supplied address.
func ParseAddress(c domain.Chain, address string) (string, error) {
	address = NormalizeAddress(c, address)
	if !ValidAddress(c, address) {
		return "", &apperr.Error{
			Kind:    apperr.KindInput,
			Op:      "chain.address",
			Message: "invalid " + string(c) + " address " + address,
			Details: map[string]any{"chain": string(c), "address": address},
		}
	}
	return address, nil
}
