package httpfetch

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/whalewatch/internal/core/domain"
)

var kinds = map[string]domain.TxKind{
	"transfer":       domain.TxKindTransfer,
	"token_transfer": domain.TxKindTokenTransfer,
	"erc20_transfer": domain.TxKindTokenTransfer,
	"internal":       domain.TxKindInternal,
	"perp_open":      domain.TxKindPerpOpen,
	"perp_close":     domain.TxKindPerpClose,
}

func (w wireTx) toDomain(c domain.Chain) (domain.Transaction, error) {
	if w.Hash == "" {
		return domain.Transaction{}, fmt.Errorf("missing hash")
	}
	if w.ValueUSD < 0 {
		return domain.Transaction{}, fmt.Errorf("negative usd value %f", w.ValueUSD)
	}
	native := decimal.Zero
	if w.ValueNative != "" {
		d, err := decimal.NewFromString(w.ValueNative)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("invalid native value %q: %w", w.ValueNative, err)
		}
		native = d
	}
	kind, ok := kinds[strings.ToLower(w.Kind)]
	if !ok {
		kind = domain.TxKindTransfer
	}
	from, to := w.From, w.To
	if c.IsEVM() {
		from, to = strings.ToLower(from), strings.ToLower(to)
	}
	return domain.Transaction{
		Hash:        w.Hash,
		Chain:       c,
		Timestamp:   time.Unix(w.Timestamp, 0).UTC(),
		From:        from,
		To:          to,
		ValueNative: native,
		ValueUSD:    w.ValueUSD,
		FeeUSD:      w.FeeUSD,
		Kind:        kind,
		BlockNumber: w.BlockNumber,
		TokenSymbol: w.TokenSymbol,
	}, nil
}
