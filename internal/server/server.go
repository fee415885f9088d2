// Package server exposes the analyzer over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gzhole/logshield/internal/analyzer"
	"github.com/gzhole/logshield/internal/entry"
	"github.com/gzhole/logshield/internal/patterns"
	"github.com/gzhole/logshield/internal/ruleset"
)

// RuleSource supplies the rule set used when a request carries no rules.
// *ruleset.Watcher satisfies it.
type RuleSource interface {
	Current() *ruleset.RuleSet
}

type staticRules struct{ rs *ruleset.RuleSet }

func (s staticRules) Current() *ruleset.RuleSet { return s.rs }

// StaticRules wraps a fixed rule set.
func StaticRules(rs *ruleset.RuleSet) RuleSource { return staticRules{rs: rs} }

// ResultSink receives every successful batch's results.
type ResultSink interface {
	Write(results []analyzer.Result) error
}

type Options struct {
	Analyzer *analyzer.Orchestrator
	Rules    RuleSource
	Catalog  *patterns.Catalog
	Sink     ResultSink
	Logger   *slog.Logger
	Version  string
}

type Server struct {
	opts   Options
	engine *gin.Engine
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Tenant  string         `json:"tenant" binding:"required"`
	ScanID  string         `json:"scan_id"`
	Entries []entry.Entry  `json:"entries" binding:"required"`
	// Rules, when present, replaces the served rule set for this request.
	// It is a rules document: a list of rules or {"rules": [...]}.
	Rules json.RawMessage `json:"rules,omitempty"`
}

type AnalyzeResponse struct {
	ScanID  string            `json:"scan_id"`
	Tenant  string            `json:"tenant"`
	Results []analyzer.Result `json:"results"`
	Summary analyzer.Summary  `json:"summary"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// New builds the router. Analyzer and Rules are required.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Catalog == nil {
		opts.Catalog = patterns.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("logshield"))
	r.Use(requestLogger(opts.Logger))

	s := &Server{opts: opts, engine: r}
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.GET("/rules", s.handleRules)
	v1.GET("/patterns", s.handlePatterns)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.opts.Logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.opts.Version})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	var rules []ruleset.Rule
	if len(req.Rules) > 0 && !bytes.Equal(req.Rules, []byte("null")) {
		rs, err := ruleset.Decode(bytes.NewReader(req.Rules))
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid rules", Details: splitJoined(err)})
			return
		}
		rules = rs.Rules
	} else {
		rules = s.opts.Rules.Current().Rules
	}

	scanID := req.ScanID
	if scanID == "" {
		scanID = uuid.NewString()
	}
	scan := analyzer.Scan{Tenant: req.Tenant, ScanID: scanID}

	results, err := s.opts.Analyzer.Analyze(c.Request.Context(), req.Entries, rules, scan)
	if err != nil {
		s.opts.Logger.Error("analyze failed", "tenant", req.Tenant, "scan_id", scanID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if s.opts.Sink != nil {
		if err := s.opts.Sink.Write(results); err != nil {
			s.opts.Logger.Warn("failed to record results", "scan_id", scanID, "error", err)
		}
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		ScanID:  scanID,
		Tenant:  req.Tenant,
		Results: results,
		Summary: analyzer.Summarize(results),
	})
}

func (s *Server) handleRules(c *gin.Context) {
	rs := s.opts.Rules.Current()
	c.JSON(http.StatusOK, gin.H{"version": rs.Version, "rules": rs.Active()})
}

type patternView struct {
	Name        string  `json:"name"`
	Class       string  `json:"class"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

func (s *Server) handlePatterns(c *gin.Context) {
	ps := s.opts.Catalog.Patterns()
	out := make([]patternView, 0, len(ps))
	for _, p := range ps {
		out = append(out, patternView{Name: p.Name, Class: string(p.Class), Weight: p.Weight, Description: p.Description})
	}
	c.JSON(http.StatusOK, gin.H{"patterns": out})
}

// splitJoined flattens an errors.Join result into one message per error.
func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
