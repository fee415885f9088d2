package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir   = ".logshield"
	DefaultConfigFile  = "config.yaml"
	DefaultRulesFile   = "rules.yaml"
	DefaultPacksDir    = "packs"
	DefaultHistoryDir  = "history"
	DefaultResultsFile = "results.jsonl"
)

// ErrInvalidConfig marks a config file that decodes but fails validation.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// ConfigDir is the directory the file was loaded from. Relative paths
	// below are resolved against it.
	ConfigDir   string        `yaml:"-"`
	RulesPath   string        `yaml:"rules"`
	PacksDir    string        `yaml:"packs_dir"`
	HistoryDir  string        `yaml:"history_dir"`
	ResultsPath string        `yaml:"results"`
	Engine      EngineConfig  `yaml:"engine"`
	Logging     LoggingConfig `yaml:"logging"`
	Server      ServerConfig  `yaml:"server"`
}

// EngineConfig controls the analysis orchestrator.
type EngineConfig struct {
	// MatchMode is the default condition combination: "any" or "all".
	MatchMode    string        `yaml:"match_mode" validate:"oneof=any all"`
	Workers      int           `yaml:"workers" validate:"min=1,max=256"`
	HistoryLimit int           `yaml:"history_limit" validate:"min=1,max=100"`
	HistoryTTL   time.Duration `yaml:"history_ttl" validate:"min=0"`
	// HistoryBackend selects the cache: "badger" persists under HistoryDir,
	// "memory" keeps windows for the life of the process.
	HistoryBackend    string `yaml:"history_backend" validate:"oneof=badger memory"`
	StrictHistoryLoad bool   `yaml:"strict_history_load"`
	UnicodeSignal     bool   `yaml:"unicode_signal"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
	// Tracing exports spans to stdout.
	Tracing bool `yaml:"tracing"`
	// WatchRules reloads the rule set when the rules file or packs change.
	WatchRules bool `yaml:"watch_rules"`
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MatchMode:      "any",
		Workers:        4,
		HistoryLimit:   100,
		HistoryTTL:     24 * time.Hour,
		HistoryBackend: "badger",
	}
}

// Default returns the configuration used when no file exists.
func Default(configDir string) *Config {
	return &Config{
		ConfigDir:   configDir,
		RulesPath:   filepath.Join(configDir, DefaultRulesFile),
		PacksDir:    filepath.Join(configDir, DefaultPacksDir),
		HistoryDir:  filepath.Join(configDir, DefaultHistoryDir),
		ResultsPath: filepath.Join(configDir, DefaultResultsFile),
		Engine:      DefaultEngineConfig(),
		Logging:     LoggingConfig{Level: "info"},
		Server:      ServerConfig{Addr: ":8080", WatchRules: true},
	}
}

// DefaultPath returns ~/.logshield/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, DefaultConfigDir, DefaultConfigFile), nil
}

// Load reads the config file at path (DefaultPath when empty). A missing
// file yields the defaults. Keys absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	configDir := filepath.Dir(path)
	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	cfg := Default(configDir)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.ConfigDir = configDir
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths() {
	for _, p := range []*string{&c.RulesPath, &c.PacksDir, &c.HistoryDir, &c.ResultsPath, &c.Logging.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.ConfigDir, *p)
		}
	}
}

var configValidate = validator.New()

// Validate checks field constraints, reporting every violation.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%w: %s fails %q (got %v)", ErrInvalidConfig, fe.Namespace(), fe.Tag()+paramSuffix(fe), fe.Value()))
	}
	return errors.Join(errs...)
}

func paramSuffix(fe validator.FieldError) string {
	if fe.Param() == "" {
		return ""
	}
	return "=" + fe.Param()
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
