package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/logshield/internal/analyzer"
	"github.com/gzhole/logshield/internal/logger"
)

var (
	resultsStatus  string
	resultsTenant  string
	resultsRule    string
	resultsLast    int
	resultsSummary bool
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "View and filter recorded results",
	Long: `View results recorded by previous analyze runs (~/.logshield/results.jsonl).

Examples:
  logshield results                       # Show all results
  logshield results --last 20             # Show the last 20 results
  logshield results --status failed       # Only failed results
  logshield results --tenant acme --summary`,
	RunE: resultsCommand,
}

func init() {
	resultsCmd.Flags().StringVar(&resultsStatus, "status", "", "Filter by status (passed, warning, failed, error)")
	resultsCmd.Flags().StringVar(&resultsTenant, "tenant", "", "Filter by tenant")
	resultsCmd.Flags().StringVar(&resultsRule, "rule", "", "Filter by rule ID")
	resultsCmd.Flags().IntVar(&resultsLast, "last", 0, "Show last N results")
	resultsCmd.Flags().BoolVar(&resultsSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(resultsCmd)
}

func resultsCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	records, err := readResults(cfg.ResultsPath)
	if err != nil {
		return fmt.Errorf("failed to read results: %w", err)
	}
	filtered := filterResults(records)
	if resultsLast > 0 && resultsLast < len(filtered) {
		filtered = filtered[len(filtered)-resultsLast:]
	}

	out := cmd.OutOrStdout()
	format, err := resolveFormat(out)
	if err != nil {
		return err
	}

	results := make([]analyzer.Result, len(filtered))
	for i, rec := range filtered {
		results[i] = rec.Result
	}
	summary := analyzer.Summarize(results)

	switch {
	case format == formatJSON && resultsSummary:
		return writeJSON(out, summary)
	case format == formatJSON:
		if filtered == nil {
			filtered = []logger.ResultRecord{}
		}
		return writeJSON(out, filtered)
	case format == formatJSONL:
		return writeJSONL(out, filtered)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No recorded results found.")
		return nil
	}
	if resultsSummary {
		printResultsSummary(out, filtered, summary)
		return nil
	}
	for _, rec := range filtered {
		r := rec.Result
		fmt.Fprintf(out, "%s %s %s [%s] risk %.2f\n", formatTimestamp(rec.LoggedAt), statusLabel(out, r.Status), r.RuleID, r.Severity, r.Metadata.RiskScore)
		fmt.Fprintf(out, "     %s\n", r.Message)
		if r.Recommendation != "" {
			fmt.Fprintf(out, "     Recommendation: %s\n", r.Recommendation)
		}
		if r.Metadata.Tenant != "" {
			fmt.Fprintf(out, "     Tenant: %s  Scan: %s  Entry: %d\n", r.Metadata.Tenant, r.Metadata.ScanID, r.Metadata.EntryIndex)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func readResults(path string) ([]logger.ResultRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var records []logger.ResultRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var rec logger.ResultRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // skip malformed lines
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

func filterResults(records []logger.ResultRecord) []logger.ResultRecord {
	if resultsStatus == "" && resultsTenant == "" && resultsRule == "" {
		return records
	}
	var filtered []logger.ResultRecord
	for _, rec := range records {
		if resultsStatus != "" && !strings.EqualFold(string(rec.Status), resultsStatus) {
			continue
		}
		if resultsTenant != "" && rec.Metadata.Tenant != resultsTenant {
			continue
		}
		if resultsRule != "" && rec.RuleID != resultsRule {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

func printResultsSummary(out io.Writer, filtered []logger.ResultRecord, s analyzer.Summary) {
	fmt.Fprintln(out, "═══════════════════════════════════════════")
	fmt.Fprintln(out, "  logshield Results Summary")
	fmt.Fprintln(out, "═══════════════════════════════════════════")
	fmt.Fprintf(out, "  Total results:   %d\n", s.Total)
	fmt.Fprintf(out, "  FAILED:          %d\n", s.ByStatus[analyzer.StatusFailed])
	fmt.Fprintf(out, "  WARNING:         %d\n", s.ByStatus[analyzer.StatusWarning])
	fmt.Fprintf(out, "  PASSED:          %d\n", s.ByStatus[analyzer.StatusPassed])
	fmt.Fprintf(out, "  Aggregate risk:  %.2f\n", s.Risk)
	fmt.Fprintln(out, "═══════════════════════════════════════════")
	if len(filtered) > 0 {
		fmt.Fprintf(out, "  First result:    %s\n", formatTimestamp(filtered[0].LoggedAt))
		fmt.Fprintf(out, "  Last result:     %s\n", formatTimestamp(filtered[len(filtered)-1].LoggedAt))
	}
	fmt.Fprintln(out)
}
