package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzhole/logshield/internal/analyzer"
	"github.com/gzhole/logshield/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or clear tenants' historical windows",
	Long: `Each tenant keeps a window of its most recent results (at most 100, expiring
after the configured TTL). The window raises the risk score of later scans
in proportion to its share of failed results.

Examples:
  logshield history show               # List tenants with a window
  logshield history show acme          # Show acme's window
  logshield history clear acme         # Forget acme's window`,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [tenant]",
	Short: "List tenants, or show one tenant's window",
	Args:  cobra.MaximumNArgs(1),
	RunE:  historyShow,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <tenant>",
	Short: "Delete a tenant's window",
	Args:  cobra.ExactArgs(1),
	RunE:  historyClear,
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

var errMemoryHistory = errors.New("history backend is \"memory\"; nothing is persisted between runs")

func openStore() (*history.BadgerStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Engine.HistoryBackend == "memory" {
		return nil, errMemoryHistory
	}
	return history.Open(history.DefaultConfig(cfg.HistoryDir))
}

func historyShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	format, err := resolveFormat(out)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		tenants, err := store.Tenants(cmd.Context())
		if err != nil {
			return err
		}
		if format != formatTable {
			if tenants == nil {
				tenants = []string{}
			}
			return writeJSON(out, tenants)
		}
		if len(tenants) == 0 {
			fmt.Fprintln(out, "No tenant has a historical window.")
			return nil
		}
		for _, t := range tenants {
			fmt.Fprintln(out, t)
		}
		return nil
	}

	window, found, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !found {
		window = []analyzer.Result{}
	}
	switch format {
	case formatJSON:
		return writeJSON(out, window)
	case formatJSONL:
		return writeJSONL(out, window)
	}
	if len(window) == 0 {
		fmt.Fprintf(out, "No historical window for %q.\n", args[0])
		return nil
	}
	fmt.Fprintf(out, "Window for %q: %d results, history adjustment %+.2f\n\n",
		args[0], len(window), analyzer.HistoryAdjustment(window))
	return printResultsTable(out, window, analyzer.Summarize(window))
}

func historyClear(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared history for %q.\n", args[0])
	return nil
}
