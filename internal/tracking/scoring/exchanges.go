package scoring

import "strings"

// defaultExchanges are well-known exchange hot wallets.
var defaultExchanges = []string{
	// Binance
	"0x28c6c06298d514db089934071355e5743bf21d60",
	"0x21a31ee1afc51d94c2efccaa2092ad1028285549",
	"0xdfd5293d8e347dfe59e90efd55b2956a1343963d",
	"0xdf21d1c36786e0e8e2ddc149f842953ee27fee37",
	"bc1qgdjqv0av3q56jvd82tkdjpy7gdp9ut7tlqhqpm5s",
	"34xp4vrocgjym3xr7ycvpfhocnxv4twseo",
	// Coinbase
	"0x71660c4005ba85c37ccec55d0c4493e66fe775d3",
	"0x503828976d22510aad0201ac7ec88293211d23da",
	"0xa9d1e08c7793af67e9d92fe308d5697fb81d3e43",
	// Kraken
	"0x2910543af39aba0cd09dbb2d50200b3e800a63d2",
	"0x267be1c1d684f78cb4f6a176c4911b741e4ffdc0",
	// OKX
	"0x6cc5f688a315f3dc28a7781717a9a798a59fda7b",
	// Bitfinex
	"bc1qgxj7pjw5gsd0zeuxfqnzz48fqm0rhzygnctphw",
}

// ExchangeSet is a case-insensitive set of known exchange addresses.
type ExchangeSet map[string]struct{}

// NewExchangeSet builds the default set plus extra addresses.
func NewExchangeSet(extra ...string) ExchangeSet {
	s := make(ExchangeSet, len(defaultExchanges)+len(extra))
	for _, a := range defaultExchanges {
		s[strings.ToLower(a)] = struct{}{}
	}
	for _, a := range extra {
		if a = strings.TrimSpace(a); a != "" {
			s[strings.ToLower(a)] = struct{}{}
		}
	}
	return s
}

// Contains reports whether addr belongs to a known exchange.
func (s ExchangeSet) Contains(addr string) bool {
	_, ok := s[strings.ToLower(addr)]
	return ok
}
