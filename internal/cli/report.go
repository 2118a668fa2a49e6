package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/chain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
	"github.com/vietddude/whalewatch/internal/tracking/report"
)

var (
	reportWallet  string
	reportChain   string
	reportSummary bool
	reportDays    int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize stored score history",
	Long: `Summarize the score history of one wallet (--wallet) or of every tracked
wallet (--summary) over the last --days days. Output is JSON.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportWallet, "wallet", "", "wallet address to report on")
	reportCmd.Flags().StringVar(&reportChain, "chain", "", "chain of the wallet, or filter for --summary")
	reportCmd.Flags().BoolVar(&reportSummary, "summary", false, "report on every tracked wallet")
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "number of days to cover")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	const op = "cli.report"
	if reportSummary == (reportWallet != "") {
		return apperr.New(apperr.KindInput, op, "exactly one of --wallet or --summary is required")
	}
	if reportDays < 1 {
		return apperr.New(apperr.KindInput, op, "days must be at least 1, got %d", reportDays)
	}
	var filterChain domain.Chain
	if reportChain != "" {
		c, err := domain.ParseChain(reportChain)
		if err != nil {
			return apperr.Wrap(apperr.KindInput, op, err)
		}
		filterChain = c
	}

	w, err := newWatcher(cmd)
	if err != nil {
		return err
	}
	defer stopWatcher(w)

	ctx := cmd.Context()
	now := clock()
	since := now.AddDate(0, 0, -reportDays)

	wallets, err := w.Registry().List(ctx, reportChain, nil)
	if err != nil {
		return err
	}

	if reportSummary {
		snaps, err := w.Scores().History(ctx, storage.ScoreFilter{Chain: filterChain, Since: since})
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, op, err)
		}
		return writeJSON(cmd, report.Summary(wallets, snaps, reportDays, now))
	}

	var matches []*domain.Wallet
	for _, wl := range wallets {
		if chain.NormalizeAddress(wl.Chain, reportWallet) == wl.Address {
			matches = append(matches, wl)
		}
	}
	switch len(matches) {
	case 0:
		return apperr.New(apperr.KindNotFound, op, "wallet %s is not tracked", reportWallet)
	case 1:
	default:
		return apperr.New(apperr.KindInput, op, "wallet %s is tracked on several chains, pass --chain", reportWallet)
	}

	target := matches[0]
	snaps, err := w.Scores().History(ctx, storage.ScoreFilter{Chain: target.Chain, Address: target.Address, Since: since})
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, op, err)
	}
	return writeJSON(cmd, report.ForWallet(target, snaps, reportDays, now))
}

// clock is the wall clock, or the test clock when one is installed.
func clock() time.Time {
	if watcherOptions.Now != nil {
		return watcherOptions.Now()
	}
	return time.Now()
}
