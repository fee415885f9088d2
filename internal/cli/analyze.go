package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gzhole/logshield/internal/analyzer"
	"github.com/gzhole/logshield/internal/entry"
	"github.com/gzhole/logshield/internal/logger"
	"github.com/gzhole/logshield/internal/ruleset"
)

var (
	analyzeTenant    string
	analyzeScanID    string
	analyzeRules     string
	analyzeFailOn    string
	analyzeNoRecord  bool
	analyzeWorkers   int
	analyzeMatchMode string
	analyzeStrict    bool
	analyzeUnicode   bool
	analyzeBackend   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file ...]",
	Short: "Analyze log entries against the rule set",
	Long: `Read log entries (a JSON array or JSON Lines) from files, or from stdin when
no file or "-" is given, evaluate them against the active rules and print
one result per matching (entry, rule) pair.

Examples:
  logshield analyze scan.jsonl --tenant acme
  cat findings.json | logshield analyze -o json
  logshield analyze report.json --rules ./rules.yaml --fail-on warning`,
	RunE: analyzeCommand,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeTenant, "tenant", "default", "Tenant whose historical window is used")
	f.StringVar(&analyzeScanID, "scan-id", "", "Scan identifier (default: generated)")
	f.StringVar(&analyzeRules, "rules", "", "Rules file (overrides config)")
	f.StringVar(&analyzeFailOn, "fail-on", "failed", "Exit non-zero when a result has this status or worse: failed, warning or none")
	f.BoolVar(&analyzeNoRecord, "no-record", false, "Do not append results to the results file")
	f.IntVar(&analyzeWorkers, "workers", 0, "Concurrent entry evaluations (overrides config)")
	f.StringVar(&analyzeMatchMode, "match-mode", "", "Default condition combination: any or all (overrides config)")
	f.BoolVar(&analyzeStrict, "strict-history", false, "Fail when the historical window cannot be read")
	f.BoolVar(&analyzeUnicode, "unicode-signal", false, "Add the unicode_smuggling feature")
	f.StringVar(&analyzeBackend, "history", "", "History backend: badger or memory (overrides config)")
	rootCmd.AddCommand(analyzeCmd)
}

func readEntries(stdin io.Reader, args []string) ([]entry.Entry, error) {
	if len(args) == 0 {
		args = []string{"-"}
	}
	var all []entry.Entry
	for _, path := range args {
		var (
			entries []entry.Entry
			err     error
		)
		if path == "-" {
			entries, err = entry.Read(stdin)
		} else {
			entries, err = entry.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read entries from %s: %w", path, err)
		}
		all = append(all, entries...)
	}
	return all, nil
}

func shouldFail(summary analyzer.Summary, failOn string) (bool, error) {
	switch failOn {
	case "none":
		return false, nil
	case "failed":
		return summary.Failed(), nil
	case "warning":
		return summary.Failed() || summary.ByStatus[analyzer.StatusWarning] > 0, nil
	}
	return false, fmt.Errorf("unknown --fail-on value %q", failOn)
}

func analyzeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if analyzeRules != "" {
		cfg.RulesPath = analyzeRules
	}
	if analyzeWorkers > 0 {
		cfg.Engine.Workers = analyzeWorkers
	}
	if analyzeMatchMode != "" {
		cfg.Engine.MatchMode = analyzeMatchMode
	}
	if analyzeStrict {
		cfg.Engine.StrictHistoryLoad = true
	}
	if analyzeUnicode {
		cfg.Engine.UnicodeSignal = true
	}
	if analyzeBackend != "" {
		cfg.Engine.HistoryBackend = analyzeBackend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	format, err := resolveFormat(out)
	if err != nil {
		return err
	}
	if _, err := shouldFail(analyzer.Summary{}, analyzeFailOn); err != nil {
		return err
	}

	rules, _, err := loadRules(cfg)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	entries, err := readEntries(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	eng, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	for _, w := range ruleset.Warnings(rules) {
		eng.log.Warn("rule warning", "detail", w)
	}

	results, err := eng.orchestrator.Analyze(cmd.Context(), entries, rules.Rules,
		analyzer.Scan{Tenant: analyzeTenant, ScanID: analyzeScanID})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if !analyzeNoRecord && cfg.ResultsPath != "" {
		w, err := logger.NewResultWriter(cfg.ResultsPath)
		if err != nil {
			eng.log.Warn("results file unavailable", "error", err)
		} else {
			if err := w.Write(results); err != nil {
				eng.log.Warn("failed to record results", "error", err)
			}
			_ = w.Close()
		}
	}

	summary := analyzer.Summarize(results)
	switch format {
	case formatJSON:
		err = writeJSON(out, struct {
			Results []analyzer.Result `json:"results"`
			Summary analyzer.Summary  `json:"summary"`
		}{results, summary})
	case formatJSONL:
		err = writeJSONL(out, results)
	default:
		err = printResultsTable(out, results, summary)
	}
	if err != nil {
		return err
	}

	fail, _ := shouldFail(summary, analyzeFailOn)
	if fail {
		return ErrFailedResults
	}
	return nil
}
