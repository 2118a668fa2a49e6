package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
)

func TestValidAddress(t *testing.T) {
	cases := []struct {
		chain domain.Chain
		addr  string
		want  bool
	}{
		{domain.ChainEthereum, "0x28C6c06298d514Db089934071355E5743bf21d60", true},
		{domain.ChainEthereum, "0x28c6c06298d514db089934071355e5743bf21d6", false},
		{domain.ChainEthereum, "28c6c06298d514db089934071355e5743bf21d60", false},
		{domain.ChainEthereum, "0xZZc6c06298d514db089934071355e5743bf21d60", false},
		{domain.ChainHyperliquid, "0x28c6c06298d514db089934071355e5743bf21d60", true},
		{domain.ChainBitcoin, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", true},
		{domain.ChainBitcoin, "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", true},
		{domain.ChainBitcoin, "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", true},
		{domain.ChainBitcoin, "0x28c6c06298d514db089934071355e5743bf21d60", false},
		{domain.ChainBitcoin, "1A1zP1eP5QGefi2DMPTfTL5SLmv7Divf0O", false},
		{domain.Chain("SOL"), "anything", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ValidAddress(tc.chain, tc.addr), "%s %s", tc.chain, tc.addr)
	}
}

func TestParseAddress(t *testing.T) {
	got, err := ParseAddress(domain.ChainEthereum, " 0x28C6c06298d514Db089934071355E5743bf21d60 ")
	require.NoError(t, err)
	assert.Equal(t, "0x28c6c06298d514db089934071355e5743bf21d60", got)

	btc, err := ParseAddress(domain.ChainBitcoin, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	require.NoError(t, err)
	assert.Equal(t, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", btc)

	_, err = ParseAddress(domain.ChainEthereum, "0x123")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err))
	assert.Equal(t, apperr.ExitData, apperr.ExitCode(err))
}
