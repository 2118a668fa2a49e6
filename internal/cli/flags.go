package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
)

// scanFlags are shared by stream and scan.
type scanFlags struct {
	chains    []string
	tags      []string
	window    time.Duration
	threshold int
}

func (f *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.chains, "chain", nil, "limit to chains (ETH, BTC, HL)")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "limit to wallets carrying any of these tags")
	cmd.Flags().DurationVar(&f.window, "window", 0, "scoring window (default from config)")
	cmd.Flags().IntVar(&f.threshold, "threshold", -1, "alert threshold 0-100 (default from config)")
}

// apply overrides the loaded config with explicitly set flags.
func (f *scanFlags) apply(cmd *cobra.Command) error {
	if cmd.Flags().Changed("chain") {
		chains := make([]domain.Chain, 0, len(f.chains))
		for _, s := range f.chains {
			c, err := domain.ParseChain(s)
			if err != nil {
				return apperr.Wrap(apperr.KindInput, "cli.flags", err)
			}
			chains = append(chains, c)
		}
		appCfg.Scan.Chains = chains
	}
	if cmd.Flags().Changed("tag") {
		appCfg.Scan.Tags = f.tags
	}
	if cmd.Flags().Changed("window") {
		if f.window <= 0 {
			return apperr.New(apperr.KindInput, "cli.flags", "window must be positive, got %s", f.window)
		}
		appCfg.Scan.Window = f.window
	}
	if cmd.Flags().Changed("threshold") {
		if f.threshold < 0 || f.threshold > domain.MaxScore {
			return apperr.New(apperr.KindInput, "cli.flags", "threshold must be within 0..%d, got %d", domain.MaxScore, f.threshold)
		}
		appCfg.Scan.Threshold = f.threshold
	}
	return nil
}
