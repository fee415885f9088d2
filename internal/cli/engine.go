package cli

import (
	"errors"
	"fmt"

	"github.com/gzhole/logshield/internal/analyzer"
	"github.com/gzhole/logshield/internal/condition"
	"github.com/gzhole/logshield/internal/config"
	"github.com/gzhole/logshield/internal/features"
	"github.com/gzhole/logshield/internal/history"
	"github.com/gzhole/logshield/internal/logger"
	"github.com/gzhole/logshield/internal/ruleset"
)

// engine bundles what analyze, serve and history need.
type engine struct {
	cfg          *config.Config
	log          *logger.Logger
	orchestrator *analyzer.Orchestrator
	store        *history.BadgerStore
}

// loadRules reads the base rules and merges enabled packs.
func loadRules(cfg *config.Config) (*ruleset.RuleSet, []ruleset.PackInfo, error) {
	base, err := ruleset.Load(cfg.RulesPath)
	if err != nil {
		return nil, nil, err
	}
	return ruleset.LoadPacks(cfg.PacksDir, base)
}

// openHistory opens the configured history backend. The memory backend
// returns a nil store.
func openHistory(cfg *config.Config, log *logger.Logger) (analyzer.HistoryCache, *history.BadgerStore, error) {
	if cfg.Engine.HistoryBackend == "memory" {
		return analyzer.NewInMemoryHistory(), nil, nil
	}
	hc := history.DefaultConfig(cfg.HistoryDir)
	hc.Logger = log.Logger
	store, err := history.Open(hc)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

func openEngine(cfg *config.Config) (*engine, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	mode, err := condition.ParseMode(cfg.Engine.MatchMode)
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	cache, store, err := openHistory(cfg, log)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	var xopts []features.Option
	if cfg.Engine.UnicodeSignal {
		xopts = append(xopts, features.WithUnicodeSignal())
	}

	o := analyzer.New(analyzer.Options{
		Extractor:         features.NewExtractor(nil, xopts...),
		Evaluator:         condition.NewEvaluator(mode),
		History:           cache,
		Workers:           cfg.Engine.Workers,
		HistoryLimit:      cfg.Engine.HistoryLimit,
		HistoryTTL:        cfg.Engine.HistoryTTL,
		StrictHistoryLoad: cfg.Engine.StrictHistoryLoad,
		Logger:            log.Logger,
	})
	return &engine{cfg: cfg, log: log, orchestrator: o, store: store}, nil
}

func (e *engine) Close() error {
	var errs []error
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	errs = append(errs, e.log.Close())
	return errors.Join(errs...)
}
