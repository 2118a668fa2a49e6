package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/tracking/registry"
)

var (
	walletLabel  string
	walletTags   []string
	walletChain  string
	walletJSON   bool
	importDryRun bool
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage tracked wallets",
}

var walletAddCmd = &cobra.Command{
	Use:   "add [chain] [address]",
	Short: "Start tracking a wallet",
	Args:  cobra.ExactArgs(2),
	RunE:  runWalletAdd,
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked wallets",
	Args:  cobra.NoArgs,
	RunE:  runWalletList,
}

var walletRemoveCmd = &cobra.Command{
	Use:   "remove [chain] [address]",
	Short: "Stop tracking a wallet",
	Args:  cobra.ExactArgs(2),
	RunE:  runWalletRemove,
}

var walletImportCmd = &cobra.Command{
	Use:   "import [csv]",
	Short: "Track every wallet listed in a CSV file",
	Long: `Track every wallet listed in a CSV file with a header row naming the
columns address, chain, label and tags. Tags are comma separated inside
their field. Invalid rows are reported and skipped; --dry-run validates
without writing.`,
	Args: cobra.ExactArgs(1),
	RunE: runWalletImport,
}

func init() {
	walletAddCmd.Flags().StringVar(&walletLabel, "label", "", "human readable label")
	walletAddCmd.Flags().StringSliceVar(&walletTags, "tag", nil, "tags (repeatable)")
	walletListCmd.Flags().StringVar(&walletChain, "chain", "", "filter by chain")
	walletListCmd.Flags().StringSliceVar(&walletTags, "tag", nil, "filter by any of these tags")
	walletListCmd.Flags().BoolVar(&walletJSON, "json", false, "print JSON instead of a table")

	walletImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate only, do not track")

	walletCmd.AddCommand(walletAddCmd, walletListCmd, walletRemoveCmd, walletImportCmd)
	rootCmd.AddCommand(walletCmd)
}

func runWalletAdd(cmd *cobra.Command, args []string) error {
	w, err := newWatcher(cmd)
	if err != nil {
		return err
	}
	defer stopWatcher(w)

	wallet, err := w.Registry().Add(cmd.Context(), registry.AddRequest{
		Chain:   args[0],
		Address: args[1],
		Label:   walletLabel,
		Tags:    walletTags,
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd, wallet)
}

func runWalletList(cmd *cobra.Command, _ []string) error {
	w, err := newWatcher(cmd)
	if err != nil {
		return err
	}
	defer stopWatcher(w)

	wallets, err := w.Registry().List(cmd.Context(), walletChain, walletTags)
	if err != nil {
		return err
	}
	if walletJSON {
		if wallets == nil {
			wallets = []*domain.Wallet{}
		}
		return writeJSON(cmd, wallets)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHAIN\tADDRESS\tLABEL\tTAGS\tAGE (DAYS)")
	for _, wl := range wallets {
		age := "unknown"
		if wl.AgeDays >= 0 {
			age = fmt.Sprint(wl.AgeDays)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", wl.Chain, wl.Address, wl.Label, strings.Join(wl.Tags, ","), age)
	}
	return tw.Flush()
}

func runWalletRemove(cmd *cobra.Command, args []string) error {
	w, err := newWatcher(cmd)
	if err != nil {
		return err
	}
	defer stopWatcher(w)

	if err := w.Registry().Remove(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stopped tracking %s on %s\n", args[1], strings.ToUpper(args[0]))
	return nil
}

func runWalletImport(cmd *cobra.Command, args []string) error {
	reqs, err := readWalletCSV(args[0])
	if err != nil {
		return err
	}

	w, err := newWatcher(cmd)
	if err != nil {
		return err
	}
	defer stopWatcher(w)

	res, err := w.Registry().Import(cmd.Context(), reqs, importDryRun)
	if err != nil {
		return err
	}
	return writeJSON(cmd, res)
}

// readWalletCSV parses an import file. Columns are matched by header name;
// address and chain are required.
func readWalletCSV(path string) ([]registry.AddRequest, error) {
	const op = "cli.import"
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInput, op, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.New(apperr.KindInput, op, "%s is empty", path)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInput, op, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"address", "chain"} {
		if _, ok := cols[required]; !ok {
			return nil, apperr.New(apperr.KindInput, op, "%s: missing %q column", path, required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var reqs []registry.AddRequest
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInput, op, err)
		}
		req := registry.AddRequest{
			Chain:   field(rec, "chain"),
			Address: field(rec, "address"),
			Label:   field(rec, "label"),
		}
		if tags := field(rec, "tags"); tags != "" {
			req.Tags = strings.Split(tags, ",")
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
