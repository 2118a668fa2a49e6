package cli

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/whalewatch/internal/core/apperr"
)

var (
	streamFlags     scanFlags
	streamInterval  time.Duration
	streamMaxCycles int
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Poll tracked wallets and write events as JSON lines to stdout",
	Args:  cobra.NoArgs,
	RunE:  runStream,
}

func init() {
	streamFlags.register(streamCmd)
	streamCmd.Flags().DurationVar(&streamInterval, "interval", 0, "time between cycle starts (default from config)")
	streamCmd.Flags().IntVar(&streamMaxCycles, "max-cycles", 0, "stop after this many cycles (0 = until interrupted)")
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, _ []string) error {
	if err := streamFlags.apply(cmd); err != nil {
		return err
	}
	if cmd.Flags().Changed("interval") {
		if streamInterval <= 0 {
			return apperr.New(apperr.KindInput, "cli.stream", "interval must be positive, got %s", streamInterval)
		}
		appCfg.Scan.Interval = streamInterval
	}
	if cmd.Flags().Changed("max-cycles") {
		if streamMaxCycles < 0 {
			return apperr.New(apperr.KindInput, "cli.stream", "max-cycles must not be negative")
		}
		appCfg.Scan.MaxCycles = streamMaxCycles
	}

	w, err := newWatcher(cmd)
	if err != nil {
		return err
	}
	defer stopWatcher(w)

	ctx := cmd.Context()
	if err := w.Start(ctx); err != nil {
		return err
	}

	totals, err := w.Engine().Run(ctx)
	slog.Info("Stream stopped", "cycles", totals.CyclesCompleted, "alerts", totals.TotalAlerts)
	return err
}
