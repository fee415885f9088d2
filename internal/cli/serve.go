package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzhole/logshield/internal/config"
	"github.com/gzhole/logshield/internal/logger"
	"github.com/gzhole/logshield/internal/ruleset"
	"github.com/gzhole/logshield/internal/server"
	"github.com/gzhole/logshield/internal/telemetry"
)

var (
	serveAddr     string
	serveTracing  string
	serveNoWatch  bool
	serveOTLPAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analyzer over HTTP",
	Long: `Start an HTTP server exposing:

  POST /v1/analyze   {tenant, entries, rules?} -> {scan_id, results, summary}
  GET  /v1/rules     active rules
  GET  /v1/patterns  pattern catalog
  GET  /healthz      liveness
  GET  /metrics      Prometheus metrics

The rules file and packs directory are watched and reloaded on change.`,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config, default :8080)")
	serveCmd.Flags().StringVar(&serveTracing, "trace-exporter", "", "Trace exporter: none, stdout or otlp (default: stdout when tracing is enabled in config)")
	serveCmd.Flags().StringVar(&serveOTLPAddr, "otlp-endpoint", "localhost:4317", "OTLP collector address for --trace-exporter otlp")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not reload rules on file changes")
	rootCmd.AddCommand(serveCmd)
}

func traceExporter(cfg *config.Config) string {
	if serveTracing != "" {
		return serveTracing
	}
	if cfg.Server.Tracing {
		return telemetry.ExporterStdout
	}
	return telemetry.ExporterNone
}

func serveCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveNoWatch {
		cfg.Server.WatchRules = false
	}

	ctx := cmd.Context()
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "logshield",
		ServiceVersion: Version,
		Exporter:       traceExporter(cfg),
		OTLPEndpoint:   serveOTLPAddr,
		OTLPInsecure:   true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	eng, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	watcher, err := ruleset.NewWatcher(func() (*ruleset.RuleSet, error) {
		rs, _, err := loadRules(cfg)
		return rs, err
	}, []string{cfg.RulesPath, cfg.PacksDir}, ruleset.WatcherOptions{Logger: eng.log.Logger})
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	if cfg.Server.WatchRules {
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	opts := server.Options{
		Analyzer: eng.orchestrator,
		Rules:    watcher,
		Logger:   eng.log.Logger,
		Version:  Version,
	}
	if cfg.ResultsPath != "" {
		w, err := logger.NewResultWriter(cfg.ResultsPath)
		if err != nil {
			return err
		}
		defer w.Close()
		opts.Sink = w
	}

	return server.New(opts).Run(ctx, cfg.Server.Addr)
}
