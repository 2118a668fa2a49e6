package domain

import (
	"fmt"
	"strings"
)

// Chain identifies a supported blockchain.
type Chain string

const (
	ChainEthereum    Chain = "ETH"
	ChainBitcoin     Chain = "BTC"
	ChainHyperliquid Chain = "HL"
)

// SupportedChains lists every chain the tracker can scan, in display order.
var SupportedChains = []Chain{ChainEthereum, ChainBitcoin, ChainHyperliquid}

// ChainNames maps a chain to its human-readable name.
var ChainNames = map[Chain]string{
	ChainEthereum:    "Ethereum",
	ChainBitcoin:     "Bitcoin",
	ChainHyperliquid: "Hyperliquid",
}

// ParseChain normalises a user supplied chain code.
func ParseChain(s string) (Chain, error) {
	c := Chain(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := ChainNames[c]; !ok {
		return "", fmt.Errorf("unsupported chain %q", s)
	}
	return c, nil
}

// IsEVM reports whether addresses on the chain use the 0x hex format.
func (c Chain) IsEVM() bool {
	return c == ChainEthereum || c == ChainHyperliquid
}
