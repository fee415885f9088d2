package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/logshield/internal/ruleset"
)

var rulesAll bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rule sets",
	Long: `Inspect the rule set logshield analyzes with: the base rules file
(~/.logshield/rules.yaml, or the built-in defaults when it is absent) merged
with every enabled pack in ~/.logshield/packs.

Examples:
  logshield rules list                 # Active rules
  logshield rules list --all           # Include inactive rules
  logshield rules validate my.yaml     # Check a rules file`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the merged rule set",
	RunE:  rulesList,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a rules file (default: the configured rules and packs)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  rulesValidate,
}

func init() {
	rulesListCmd.Flags().BoolVar(&rulesAll, "all", false, "Include inactive rules")
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rootCmd.AddCommand(rulesCmd)
}

func rulesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rs, _, err := loadRules(cfg)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	rules := rs.Active()
	if rulesAll {
		rules = rs.Rules
	}

	out := cmd.OutOrStdout()
	format, err := resolveFormat(out)
	if err != nil {
		return err
	}
	switch format {
	case formatJSON:
		return writeJSON(out, rules)
	case formatJSONL:
		return writeJSONL(out, rules)
	}

	if len(rules) == 0 {
		fmt.Fprintln(out, "No rules.")
		return nil
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "ID\tSEVERITY\tCATEGORY\tACTIVE\tCONDITIONS")
	for _, r := range rules {
		paths := make([]string, 0, r.Conditions.Len())
		for _, c := range r.Conditions.Clauses() {
			paths = append(paths, c.Path)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.ID, r.Severity, r.Category, r.Active, strings.Join(paths, ","))
	}
	return tw.Flush()
}

func rulesValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var (
		rs     *ruleset.RuleSet
		source string
		err    error
	)
	if len(args) == 1 {
		source = args[0]
		rs, err = ruleset.Load(source)
	} else {
		cfg, cerr := loadConfig()
		if cerr != nil {
			return cerr
		}
		source = cfg.RulesPath
		var infos []ruleset.PackInfo
		rs, infos, err = loadRules(cfg)
		for _, info := range infos {
			if info.Error != "" {
				fmt.Fprintf(out, "pack %s: %s\n", info.Name, info.Error)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	for _, w := range ruleset.Warnings(rs) {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	fmt.Fprintf(out, "%s: %d rules (%d active) OK\n", source, len(rs.Rules), len(rs.Active()))
	return nil
}
