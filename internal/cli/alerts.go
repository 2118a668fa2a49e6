package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

var (
	alertsLimit int
	alertsChain string
	alertsSince time.Duration
	alertsJSON  bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect alert history",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent alerts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runAlertsList,
}

func init() {
	alertsListCmd.Flags().IntVar(&alertsLimit, "limit", 20, "maximum number of alerts")
	alertsListCmd.Flags().StringVar(&alertsChain, "chain", "", "filter by chain")
	alertsListCmd.Flags().DurationVar(&alertsSince, "since", 0, "only alerts newer than this age (e.g. 24h)")
	alertsListCmd.Flags().BoolVar(&alertsJSON, "json", false, "print JSON instead of a table")

	alertsCmd.AddCommand(alertsListCmd)
	rootCmd.AddCommand(alertsCmd)
}

func runAlertsList(cmd *cobra.Command, _ []string) error {
	filter := storage.AlertFilter{Limit: alertsLimit}
	if alertsLimit < 0 {
		return apperr.New(apperr.KindInput, "cli.alerts", "limit must not be negative")
	}
	if alertsChain != "" {
		c, err := domain.ParseChain(alertsChain)
		if err != nil {
			return apperr.Wrap(apperr.KindInput, "cli.alerts", err)
		}
		filter.Chain = c
	}
	if alertsSince > 0 {
		filter.Since = clock().Add(-alertsSince)
	}

	w, err := newWatcher(cmd)
	if err != nil {
		return err
	}
	defer stopWatcher(w)

	alerts, err := w.Alerts().List(cmd.Context(), filter)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "cli.alerts", err)
	}
	if alertsJSON {
		if alerts == nil {
			alerts = []*domain.Alert{}
		}
		return writeJSON(cmd, alerts)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRIGGERED\tCHAIN\tWALLET\tSCORE\tSEVERITY\tDIRECTION\tNET FLOW (USD)\tNOTIFIED")
	for _, a := range alerts {
		name := a.Label
		if name == "" {
			name = a.Address
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%.2f\t%t\n",
			a.TriggeredAt.Format(time.RFC3339), a.Chain, name, a.Score, a.Severity, a.Direction, a.NetFlowUSD, a.WebhookSent)
	}
	return tw.Flush()
}
