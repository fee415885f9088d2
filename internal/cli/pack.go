package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/logshield/internal/ruleset"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage rule packs",
	Long: `Rule packs are YAML files of extra rules for one log source or threat
domain. They live in the packs directory (default ~/.logshield/packs) and are
merged after the base rules in file-name order. A file whose name starts with
"_" is disabled.

Examples:
  logshield pack list
  logshield pack disable java-compat
  logshield pack enable java-compat
  logshield pack show nginx`,
}

var packListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed rule packs",
	RunE:  packList,
}

var packEnableCmd = &cobra.Command{
	Use:   "enable <pack-name>",
	Short: "Enable a disabled rule pack",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setPackEnabled(cmd, args[0], true) },
}

var packDisableCmd = &cobra.Command{
	Use:   "disable <pack-name>",
	Short: "Disable a rule pack",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setPackEnabled(cmd, args[0], false) },
}

var packShowCmd = &cobra.Command{
	Use:   "show <pack-name>",
	Short: "Print a rule pack file",
	Args:  cobra.ExactArgs(1),
	RunE:  packShow,
}

func init() {
	packCmd.AddCommand(packListCmd, packEnableCmd, packDisableCmd, packShowCmd)
	rootCmd.AddCommand(packCmd)
}

var errPackNotFound = errors.New("pack not found")

func packsDir() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.PacksDir, 0o700); err != nil {
		return "", err
	}
	return cfg.PacksDir, nil
}

// findPack locates name in dir under either extension, enabled or not.
func findPack(dir, name string) (path string, enabled bool, err error) {
	for _, ext := range []string{".yaml", ".yml"} {
		for _, on := range []bool{true, false} {
			file := name + ext
			if !on {
				file = "_" + file
			}
			p := filepath.Join(dir, file)
			if _, err := os.Stat(p); err == nil {
				return p, on, nil
			}
		}
	}
	return "", false, fmt.Errorf("%w: %q not found in %s", errPackNotFound, name, dir)
}

func setPackEnabled(cmd *cobra.Command, name string, enable bool) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}
	path, enabled, err := findPack(dir, strings.TrimPrefix(name, "_"))
	if err != nil {
		return err
	}

	state := "disabled"
	if enable {
		state = "enabled"
	}
	out := cmd.OutOrStdout()
	if enabled == enable {
		fmt.Fprintf(out, "Pack %q is already %s.\n", name, state)
		return nil
	}

	base := filepath.Base(path)
	if enable {
		base = strings.TrimPrefix(base, "_")
	} else {
		base = "_" + base
	}
	if err := os.Rename(path, filepath.Join(dir, base)); err != nil {
		return fmt.Errorf("failed to update pack %q: %w", name, err)
	}
	fmt.Fprintf(out, "Pack %q %s.\n", name, state)
	return nil
}

func packList(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	// A merge conflict still returns the infos; surface it after the list.
	_, infos, mergeErr := ruleset.LoadPacks(dir, ruleset.DefaultRuleSet())
	defer func() {
		if mergeErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", mergeErr)
		}
	}()

	out := cmd.OutOrStdout()
	format, err := resolveFormat(out)
	if err != nil {
		return err
	}
	if infos == nil {
		infos = []ruleset.PackInfo{}
	}
	switch format {
	case formatJSON:
		return writeJSON(out, infos)
	case formatJSONL:
		return writeJSONL(out, infos)
	}

	if len(infos) == 0 {
		fmt.Fprintf(out, "No rule packs installed. Copy pack files to %s\n", dir)
		return nil
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "STATE\tNAME\tVERSION\tRULES\tDESCRIPTION")
	for _, info := range infos {
		state, desc := "on", info.Description
		if !info.Enabled {
			state = "off"
		}
		if info.Error != "" {
			state, desc = "error", info.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", state, info.Name, info.Version, info.RuleCount, desc)
	}
	return tw.Flush()
}

func packShow(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}
	path, _, err := findPack(dir, args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
