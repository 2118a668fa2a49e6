package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/whalewatch/internal/control"
	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/config"
)

var (
	cfgPath string
	isDebug bool

	// appCfg is loaded once per invocation before any command runs.
	appCfg *config.AppConfig

	// watcherOptions lets tests swap fetchers and the clock.
	watcherOptions control.Options
)

var rootCmd = &cobra.Command{
	Use:   "whalewatch",
	Short: "Whale wallet tracker",
	Long: `Whalewatch polls tracked wallets, scores their flows against history and
peers, and streams alerts as newline-delimited JSON.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// exitStatus ends the process with a code but no error payload.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:])
}

func execute(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return apperr.ExitAlerts
	}

	var status exitStatus
	if errors.As(err, &status) {
		return int(status)
	}
	if errors.Is(err, context.Canceled) {
		return apperr.ExitInterrupt
	}

	if apperr.KindOf(err) == apperr.KindUnknown {
		// cobra usage errors and other unclassified failures
		err = apperr.Wrap(apperr.KindInput, "cli", err)
	}
	enc := json.NewEncoder(rootCmd.ErrOrStderr())
	_ = enc.Encode(apperr.Payload(err))
	return apperr.ExitCode(err)
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		return err
	}

	// Setup logging
	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Logging.Level == "error":
		slogLevel = slog.LevelError
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	appCfg = cfg
	return nil
}

// newWatcher builds the tracker from the loaded config.
func newWatcher(cmd *cobra.Command) (*control.Watcher, error) {
	opts := watcherOptions
	if opts.Output == nil {
		opts.Output = cmd.OutOrStdout()
	}
	return control.NewWatcher(cmd.Context(), appCfg, opts)
}

func stopWatcher(w *control.Watcher) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
