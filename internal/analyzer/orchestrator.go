package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gzhole/logshield/internal/condition"
	"github.com/gzhole/logshield/internal/entry"
	"github.com/gzhole/logshield/internal/features"
	"github.com/gzhole/logshield/internal/redact"
	"github.com/gzhole/logshield/internal/ruleset"
	"github.com/gzhole/logshield/internal/taxonomy"
)

var (
	// ErrHistoryLoad wraps cache read failures. It only reaches callers when
	// StrictHistoryLoad is set.
	ErrHistoryLoad = errors.New("history load failed")
	// ErrHistoryPersist wraps cache write failures, which fail the batch.
	ErrHistoryPersist = errors.New("history persist failed")
)

// State is a step of the batch lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoadingHistory
	StateEvaluating
	StatePersistingHistory
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingHistory:
		return "loading-history"
	case StateEvaluating:
		return "evaluating"
	case StatePersistingHistory:
		return "persisting-history"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures an Orchestrator. Zero values select defaults.
type Options struct {
	Extractor *features.Extractor
	Scorer    *Scorer
	Evaluator *condition.Evaluator
	// Taxonomy supplies references for rules that declare none.
	Taxonomy *taxonomy.Catalog
	History  HistoryCache

	// Workers bounds how many entries are evaluated concurrently.
	Workers      int
	HistoryLimit int
	HistoryTTL   time.Duration
	// StrictHistoryLoad fails the batch when the cache cannot be read
	// instead of continuing with an empty window.
	StrictHistoryLoad bool

	Logger       *slog.Logger
	OnTransition func(scan Scan, from, to State)

	Now   func() time.Time
	NewID func() string
}

// Orchestrator runs analysis batches. It is safe for concurrent use;
// batches for the same tenant are serialized.
type Orchestrator struct {
	opts  Options
	locks tenantLocks
}

// New returns an orchestrator with defaults filled in.
func New(opts Options) *Orchestrator {
	if opts.Extractor == nil {
		opts.Extractor = features.NewExtractor(nil)
	}
	if opts.Scorer == nil {
		opts.Scorer = NewScorer(opts.Extractor.Catalog())
	}
	if opts.Evaluator == nil {
		opts.Evaluator = condition.NewEvaluator(condition.ModeAny)
	}
	if opts.Taxonomy == nil {
		opts.Taxonomy = taxonomy.Default()
	}
	if opts.History == nil {
		opts.History = NewInMemoryHistory()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.HistoryLimit <= 0 || opts.HistoryLimit > DefaultHistoryLimit {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = DefaultHistoryTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Orchestrator{opts: opts, locks: tenantLocks{m: make(map[string]*tenantLock)}}
}

// History returns the cache the orchestrator reads and writes.
func (o *Orchestrator) History() HistoryCache { return o.opts.History }

// batch tracks the lifecycle of one Analyze call.
type batch struct {
	o     *Orchestrator
	scan  Scan
	state State
	log   *slog.Logger
}

func (b *batch) transition(to State) {
	from := b.state
	b.state = to
	b.log.Debug("batch state", "from", from.String(), "to", to.String())
	if b.o.opts.OnTransition != nil {
		b.o.opts.OnTransition(b.scan, from, to)
	}
}

func (b *batch) fail(span trace.Span, err error) error {
	b.transition(StateFailed)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	batchesTotal.WithLabelValues("failed").Inc()
	b.log.Error("batch failed", "error", err)
	return err
}

// Analyze evaluates every entry against every active rule and returns the
// results ordered by entry index, then rule index. Only pairs whose
// conditions match produce a result. A pair that errors is logged and
// skipped. The batch fails on context cancellation, on a cache write error,
// and on a cache read error in strict mode.
func (o *Orchestrator) Analyze(ctx context.Context, entries []entry.Entry, rules []ruleset.Rule, scan Scan) ([]Result, error) {
	start := time.Now()
	if scan.ScanID == "" {
		scan.ScanID = o.opts.NewID()
	}
	ctx, span := tracer.Start(ctx, "analyzer.Orchestrator.Analyze",
		trace.WithAttributes(
			attribute.String("tenant", scan.Tenant),
			attribute.String("scan_id", scan.ScanID),
			attribute.Int("entries", len(entries)),
			attribute.Int("rules", len(rules)),
		),
	)
	defer span.End()

	b := &batch{o: o, scan: scan, state: StateIdle,
		log: o.opts.Logger.With("tenant", scan.Tenant, "scan_id", scan.ScanID)}

	release, err := o.locks.acquire(ctx, scan.Tenant)
	if err != nil {
		return nil, b.fail(span, err)
	}
	defer release()

	b.transition(StateLoadingHistory)
	history, err := o.loadHistory(ctx, b)
	if err != nil {
		return nil, b.fail(span, err)
	}

	b.transition(StateEvaluating)
	results, err := o.evaluate(ctx, b, entries, rules, history)
	if err != nil {
		return nil, b.fail(span, err)
	}

	b.transition(StatePersistingHistory)
	if err := o.persistHistory(ctx, b, history, results); err != nil {
		return nil, b.fail(span, err)
	}

	b.transition(StateDone)
	batchesTotal.WithLabelValues("done").Inc()
	batchDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "")
	b.log.Info("batch complete", "entries", len(entries), "rules", len(rules),
		"results", len(results), "duration", time.Since(start))
	return results, nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, b *batch) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "analyzer.Orchestrator.loadHistory")
	defer span.End()

	history, found, err := o.opts.History.Get(ctx, b.scan.Tenant)
	if err != nil {
		historyErrorsTotal.WithLabelValues("load").Inc()
		span.RecordError(err)
		if o.opts.StrictHistoryLoad {
			return nil, fmt.Errorf("%w: %w", ErrHistoryLoad, err)
		}
		b.log.Warn("history unavailable, continuing with empty window", "error", err)
		return nil, nil
	}
	span.SetAttributes(attribute.Bool("found", found), attribute.Int("size", len(history)))
	if !found {
		return nil, nil
	}
	return history, nil
}

func (o *Orchestrator) persistHistory(ctx context.Context, b *batch, history, results []Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "analyzer.Orchestrator.persistHistory")
	defer span.End()

	window := make([]Result, 0, len(history)+len(results))
	window = append(window, history...)
	window = append(window, results...)
	window = TruncateWindow(window, o.opts.HistoryLimit)
	span.SetAttributes(attribute.Int("size", len(window)))

	if err := o.opts.History.Set(ctx, b.scan.Tenant, window, o.opts.HistoryTTL); err != nil {
		historyErrorsTotal.WithLabelValues("persist").Inc()
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrHistoryPersist, err)
	}
	return nil
}

type indexedRule struct {
	index int
	rule  ruleset.Rule
}

func (o *Orchestrator) evaluate(ctx context.Context, b *batch, entries []entry.Entry, rules []ruleset.Rule, history []Result) ([]Result, error) {
	active := make([]indexedRule, 0, len(rules))
	for i, r := range rules {
		if r.Active {
			active = append(active, indexedRule{index: i, rule: r})
		}
	}

	// One slot per entry keeps (entry, rule) order without sorting.
	slots := make([][]Result, len(entries))
	var pairErrors atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = o.evaluateEntry(b, i, entries[i], active, history, &pairErrors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := []Result{}
	for _, s := range slots {
		results = append(results, s...)
	}
	if n := pairErrors.Load(); n > 0 {
		b.log.Warn("some entry/rule pairs were skipped", "count", n)
	}
	return results, nil
}

func (o *Orchestrator) evaluateEntry(b *batch, ei int, e entry.Entry, rules []indexedRule, history []Result, pairErrors *atomic.Int64) []Result {
	var out []Result
	for _, ir := range rules {
		res, matched, err := o.evaluatePair(b.scan, ei, e, ir, history)
		if err != nil {
			pairErrors.Add(1)
			pairErrorsTotal.WithLabelValues(pairErrorReason(err)).Inc()
			b.log.Warn("pair evaluation failed", "entry_index", ei, "rule_id", ir.rule.ID, "error", err)
			continue
		}
		if !matched {
			continue
		}
		resultsTotal.WithLabelValues(string(res.Status), string(res.Severity)).Inc()
		riskScore.Observe(res.Metadata.RiskScore)
		out = append(out, res)
	}
	return out
}

var errPanic = errors.New("panic during evaluation")

func pairErrorReason(err error) string {
	switch {
	case errors.Is(err, condition.ErrInvalidSpec):
		return "invalid_spec"
	case errors.Is(err, errPanic):
		return "panic"
	default:
		return "other"
	}
}

func (o *Orchestrator) evaluatePair(scan Scan, ei int, e entry.Entry, ir indexedRule, history []Result) (res Result, matched bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, matched, err = Result{}, false, fmt.Errorf("%w: %v", errPanic, p)
		}
	}()

	r := ir.rule
	outcome, err := o.opts.Evaluator.EvaluateMode(e, r.Conditions, r.MatchMode)
	if err != nil {
		return Result{}, false, err
	}
	if !outcome.Matches {
		return Result{}, false, nil
	}

	v := o.opts.Extractor.Extract(e)
	score := o.opts.Scorer.Score(v, history)
	status := Classify(score, r.Severity)

	refs := r.References
	if len(refs) == 0 {
		refs = o.opts.Taxonomy.References(r.Category)
	}

	return Result{
		ID:       o.opts.NewID(),
		RuleID:   r.ID,
		RuleName: r.Name,
		Status:   status,
		Severity: r.Severity,
		Message:  explain(r, e, outcome, v, score, status),
		Details: Details{
			MatchedConditions: outcome.MatchedPaths,
			PatternScores:     v.PatternScores(),
			Features:          v,
			References:        refs,
			Timestamp:         o.opts.Now().UTC(),
		},
		Recommendation:     r.Recommendation,
		AffectedComponents: affectedComponents(e),
		Confidence:         Confidence(score, v),
		Metadata: Metadata{
			RiskScore:  score,
			EntryIndex: ei,
			RuleIndex:  ir.index,
			Category:   r.Category,
			Tenant:     scan.Tenant,
			ScanID:     scan.ScanID,
		},
	}, true, nil
}

const evidenceMaxRunes = 120

// explain renders the human-readable reason for a result. Quoted evidence
// is truncated and redacted.
func explain(r ruleset.Rule, e entry.Entry, out condition.Outcome, v features.Vector, score float64, status Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rule %q matched on %s.", r.Name, strings.Join(out.MatchedPaths, ", "))

	t := Threshold(r.Severity)
	switch status {
	case StatusFailed:
		fmt.Fprintf(&sb, " Risk score %.2f is at or above the %s threshold %.2f.", score, r.Severity, t)
	case StatusWarning:
		fmt.Fprintf(&sb, " Risk score %.2f is within %.0f%% of the %s threshold %.2f.", score, WarningRatio*100, r.Severity, t)
	default:
		fmt.Fprintf(&sb, " Risk score %.2f is below the %s threshold %.2f.", score, r.Severity, t)
	}

	if scores := v.PatternScores(); len(scores) > 0 {
		var parts []string
		for _, name := range v.Names() {
			if p, ok := features.IsPattern(name); ok {
				parts = append(parts, fmt.Sprintf("%s (%.2f)", p, scores[p]))
			}
		}
		fmt.Fprintf(&sb, " Detected patterns: %s.", strings.Join(parts, ", "))
	}

	var evidence []string
	for _, path := range out.MatchedPaths {
		val, ok := e.Lookup(path)
		if !ok || val == nil {
			continue
		}
		shown := redact.Redact(entry.Stringify(redact.Field(lastSegment(path), val)))
		evidence = append(evidence, fmt.Sprintf("%s=%q", path, truncate(shown, evidenceMaxRunes)))
	}
	if len(evidence) > 0 {
		fmt.Fprintf(&sb, " Evidence: %s.", strings.Join(evidence, "; "))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// componentFields are read, in order, in addition to application@version.
var componentFields = []string{"component", "service", "package", "file"}

func affectedComponents(e entry.Entry) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if app, ok := e.Application(); ok {
		if ver, ok := e.Version(); ok && ver != "" {
			app += "@" + ver
		}
		add(app)
	}
	for _, f := range componentFields {
		if v, ok := e.Field(f); ok {
			add(v)
		}
	}
	return redact.Strings(out)
}

func lastSegment(path string) string {
	return path[strings.LastIndexByte(path, '.')+1:]
}

// tenantLocks serializes batches per tenant. Entries are reference counted
// so idle tenants do not accumulate.
type tenantLocks struct {
	mu sync.Mutex
	m  map[string]*tenantLock
}

type tenantLock struct {
	sem  chan struct{}
	refs int
}

func (l *tenantLocks) acquire(ctx context.Context, tenant string) (func(), error) {
	l.mu.Lock()
	tl, ok := l.m[tenant]
	if !ok {
		tl = &tenantLock{sem: make(chan struct{}, 1)}
		l.m[tenant] = tl
	}
	tl.refs++
	l.mu.Unlock()

	select {
	case tl.sem <- struct{}{}:
		return func() {
			<-tl.sem
			l.unref(tenant, tl)
		}, nil
	case <-ctx.Done():
		l.unref(tenant, tl)
		return nil, ctx.Err()
	}
}

func (l *tenantLocks) unref(tenant string, tl *tenantLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tl.refs--
	if tl.refs == 0 {
		delete(l.m, tenant)
	}
}
