package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/logshield/internal/features"
	"github.com/gzhole/logshield/internal/patterns"
	"github.com/gzhole/logshield/internal/taxonomy"
)

var patternName string

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect the built-in detection patterns",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pattern names, weights and references",
	RunE:  patternsList,
}

var patternsTestCmd = &cobra.Command{
	Use:   "test <text>",
	Short: "Run the pattern catalog over a piece of text",
	Long: `Run the pattern catalog over text and print every pattern that matched,
its occurrences and the feature value it would contribute.

Examples:
  logshield patterns test "id=1 UNION SELECT password FROM users"
  logshield patterns test --pattern xss "<img onerror=alert(1)>"`,
	Args: cobra.MinimumNArgs(1),
	RunE: patternsTest,
}

func init() {
	patternsTestCmd.Flags().StringVar(&patternName, "pattern", "", "Only evaluate this pattern")
	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsTestCmd)
	rootCmd.AddCommand(patternsCmd)
}

type patternRow struct {
	Name        string   `json:"name"`
	Class       string   `json:"class"`
	Weight      float64  `json:"weight"`
	Description string   `json:"description"`
	References  []string `json:"references,omitempty"`
}

func patternsList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	format, err := resolveFormat(out)
	if err != nil {
		return err
	}

	tax := taxonomy.Default()
	var rows []patternRow
	for _, p := range patterns.Default().Patterns() {
		rows = append(rows, patternRow{
			Name:        p.Name,
			Class:       string(p.Class),
			Weight:      p.Weight,
			Description: p.Description,
			References:  tax.References(p.Name),
		})
	}

	switch format {
	case formatJSON:
		return writeJSON(out, rows)
	case formatJSONL:
		return writeJSONL(out, rows)
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "NAME\tCLASS\tWEIGHT\tREFERENCES\tDESCRIPTION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", r.Name, r.Class, r.Weight, strings.Join(r.References, ", "), r.Description)
	}
	return tw.Flush()
}

type patternHit struct {
	Pattern string   `json:"pattern"`
	Count   int      `json:"count"`
	Feature float64  `json:"feature"`
	Matches []string `json:"matches"`
}

func patternsTest(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	format, err := resolveFormat(out)
	if err != nil {
		return err
	}

	cat := patterns.Default()
	if patternName != "" {
		if _, ok := cat.Weight(patternName); !ok {
			return fmt.Errorf("unknown pattern %q (known: %s)", patternName, strings.Join(cat.Names(), ", "))
		}
	}

	text := strings.Join(args, " ")
	hits := []patternHit{}
	for _, m := range cat.Match(text, patternName) {
		w, _ := cat.Weight(m.Pattern)
		hits = append(hits, patternHit{
			Pattern: m.Pattern,
			Count:   m.Count(),
			Feature: float64(m.Count()) * w,
			Matches: m.Matches,
		})
	}

	switch format {
	case formatJSON:
		return writeJSON(out, hits)
	case formatJSONL:
		return writeJSONL(out, hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No pattern matched.")
		return nil
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "FEATURE\tCOUNT\tVALUE\tMATCHES")
	for _, h := range hits {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%s\n", features.PatternFeature(h.Pattern), h.Count, h.Feature, strings.Join(h.Matches, " | "))
	}
	return tw.Flush()
}
