package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/gzhole/logshield/internal/analyzer"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatJSONL = "jsonl"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// resolveFormat picks the output format: the --output flag when set,
// otherwise a table for terminals and JSON for pipes.
func resolveFormat(w io.Writer) (string, error) {
	switch strings.ToLower(outputFmt) {
	case "":
		if isTerminal(w) {
			return formatTable, nil
		}
		return formatJSON, nil
	case formatTable:
		return formatTable, nil
	case formatJSON:
		return formatJSON, nil
	case formatJSONL:
		return formatJSONL, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or jsonl)", outputFmt)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

var (
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	stylePassed  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// statusLabel renders a status, colored only on a terminal.
func statusLabel(w io.Writer, s analyzer.Status) string {
	label := strings.ToUpper(string(s))
	if !isTerminal(w) {
		return label
	}
	switch s {
	case analyzer.StatusFailed:
		return styleFailed.Render(label)
	case analyzer.StatusWarning:
		return styleWarning.Render(label)
	case analyzer.StatusPassed:
		return stylePassed.Render(label)
	default:
		return styleMuted.Render(label)
	}
}

func printResultsTable(w io.Writer, results []analyzer.Result, summary analyzer.Summary) error {
	if len(results) == 0 {
		fmt.Fprintln(w, "No rule matched any entry.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ENTRY\tRULE\tSEVERITY\tSTATUS\tRISK\tCONFIDENCE\tCOMPONENTS")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
			r.Metadata.EntryIndex, r.RuleID, r.Severity, statusLabel(w, r.Status),
			r.Metadata.RiskScore, r.Confidence, strings.Join(r.AffectedComponents, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Results: %d  failed: %d  warning: %d  passed: %d  aggregate risk: %.2f\n",
		summary.Total,
		summary.ByStatus[analyzer.StatusFailed],
		summary.ByStatus[analyzer.StatusWarning],
		summary.ByStatus[analyzer.StatusPassed],
		summary.Risk)
	return nil
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
