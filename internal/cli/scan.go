package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/tracking/stream"
)

var scanOpts scanFlags

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle and print the result as JSON",
	Long: `Run one scan cycle over the tracked wallets. Exits 0 when at least one
alert fired and 1 when none did.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanOpts.register(scanCmd)
	rootCmd.AddCommand(scanCmd)
}

type scanError struct {
	Chain   domain.Chain `json:"chain"`
	Address string       `json:"address"`
	Stage   string       `json:"stage"`
	Error   apperr.Kind  `json:"error"`
	Message string       `json:"message"`
}

type scanOutput struct {
	StartedAt     time.Time              `json:"started_at"`
	CompletedAt   time.Time              `json:"completed_at"`
	WindowSeconds int64                  `json:"window_seconds"`
	Threshold     int                    `json:"threshold"`
	Wallets       []*domain.ScoredWallet `json:"wallets"`
	Alerts        []*domain.Alert        `json:"alerts"`
	Deduplicated  int                    `json:"deduplicated"`
	Errors        []scanError            `json:"errors"`
	Summary       domain.ScanSummary     `json:"summary"`
}

func newScanOutput(res *stream.CycleResult, window time.Duration, threshold int) scanOutput {
	out := scanOutput{
		StartedAt:     res.StartedAt,
		CompletedAt:   res.CompletedAt,
		WindowSeconds: int64(window / time.Second),
		Threshold:     threshold,
		Wallets:       res.Scored(),
		Alerts:        res.Alerts,
		Deduplicated:  res.Deduplicated,
		Errors:        []scanError{},
		Summary:       res.Summary,
	}
	if out.Wallets == nil {
		out.Wallets = []*domain.ScoredWallet{}
	}
	if out.Alerts == nil {
		out.Alerts = []*domain.Alert{}
	}
	for _, wr := range res.Results {
		if wr.Err == nil {
			continue
		}
		out.Errors = append(out.Errors, scanError{
			Chain:   wr.Wallet.Chain,
			Address: wr.Wallet.Address,
			Stage:   wr.Stage,
			Error:   apperr.KindOf(wr.Err),
			Message: wr.Err.Error(),
		})
	}
	return out
}

func runScan(cmd *cobra.Command, _ []string) error {
	if err := scanOpts.apply(cmd); err != nil {
		return err
	}

	w, err := newWatcher(cmd)
	if err != nil {
		return err
	}
	defer stopWatcher(w)

	res, err := w.Engine().Scan(cmd.Context())
	if err != nil {
		return err
	}
	if err := writeJSON(cmd, newScanOutput(res, appCfg.Scan.Window, appCfg.Scan.Threshold)); err != nil {
		return err
	}
	if len(res.Alerts) == 0 {
		return exitStatus(apperr.ExitNoAlerts)
	}
	return nil
}
