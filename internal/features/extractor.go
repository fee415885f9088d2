// Package features turns one entry into a named vector of numeric signals
// used as scoring input.
package features

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gzhole/logshield/internal/entry"
	"github.com/gzhole/logshield/internal/patterns"
)

// Feature names produced by the extractor. Pattern features are named
// PatternPrefix + pattern name.
const (
	PatternPrefix            = "pattern_"
	FeatureSeverity          = "severity_score"
	FeatureMessageComplexity = "message_complexity"
	FeatureToolReliability   = "tool_reliability"
	FeatureUnicodeSmuggling  = "unicode_smuggling"
)

// Vector maps feature names to weights. Values are normalized to [0,1]
// except pattern features, which are matchCount × weight and may exceed 1.
type Vector map[string]float64

// PatternFeature returns the feature name for a catalog pattern.
func PatternFeature(pattern string) string { return PatternPrefix + pattern }

// IsPattern reports whether name is a pattern feature, returning the
// pattern name.
func IsPattern(name string) (string, bool) {
	if !strings.HasPrefix(name, PatternPrefix) {
		return "", false
	}
	return strings.TrimPrefix(name, PatternPrefix), true
}

// Names returns the feature names sorted, so sums over a vector are
// computed in a stable order.
func (v Vector) Names() []string {
	names := make([]string, 0, len(v))
	for n := range v {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PatternCount is the number of distinct patterns that fired.
func (v Vector) PatternCount() int {
	n := 0
	for name := range v {
		if _, ok := IsPattern(name); ok {
			n++
		}
	}
	return n
}

// PatternScores returns pattern name → score for the pattern features.
func (v Vector) PatternScores() map[string]float64 {
	scores := make(map[string]float64)
	for name, value := range v {
		if p, ok := IsPattern(name); ok {
			scores[p] = value
		}
	}
	return scores
}

var severityWeights = map[string]float64{
	"low":      1,
	"medium":   3,
	"high":     7,
	"critical": 10,
}

// SeverityWeight maps an entry severity onto the 1–10 scale.
func SeverityWeight(severity string) (float64, bool) {
	w, ok := severityWeights[strings.ToLower(strings.TrimSpace(severity))]
	return w, ok
}

// DefaultToolReliability applies to tools missing from the table.
const DefaultToolReliability = 0.7

var toolReliability = map[string]float64{
	"semgrep":   0.9,
	"snyk":      0.9,
	"codeql":    0.9,
	"burp":      0.9,
	"sonarqube": 0.85,
	"gosec":     0.85,
	"trivy":     0.85,
	"zap":       0.85,
	"checkmarx": 0.85,
	"bandit":    0.8,
	"eslint":    0.8,
	"brakeman":  0.8,
}

// ToolReliability returns how much the named source tool is trusted.
func ToolReliability(tool string) float64 {
	if r, ok := toolReliability[strings.ToLower(strings.TrimSpace(tool))]; ok {
		return r
	}
	return DefaultToolReliability
}

// Extractor builds feature vectors. It is stateless after construction and
// safe for concurrent use.
type Extractor struct {
	catalog       *patterns.Catalog
	unicodeSignal bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithUnicodeSignal adds the unicode_smuggling feature for messages carrying
// invisible, bidi, tag or control characters.
func WithUnicodeSignal() Option {
	return func(x *Extractor) { x.unicodeSignal = true }
}

// NewExtractor returns an extractor over catalog (nil uses patterns.Default).
func NewExtractor(catalog *patterns.Catalog, opts ...Option) *Extractor {
	if catalog == nil {
		catalog = patterns.Default()
	}
	x := &Extractor{catalog: catalog}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Catalog returns the pattern catalog the extractor scans with.
func (x *Extractor) Catalog() *patterns.Catalog { return x.catalog }

// Extract computes the feature vector for e. Features whose source field is
// absent are left unset.
func (x *Extractor) Extract(e entry.Entry) Vector {
	v := Vector{}

	for _, m := range x.catalog.Match(e.Text(), "") {
		weight, _ := x.catalog.Weight(m.Pattern)
		v[PatternFeature(m.Pattern)] = float64(m.Count()) * weight
	}

	if sev, ok := e.Severity(); ok {
		if w, known := SeverityWeight(sev); known {
			v[FeatureSeverity] = w / 10
		}
	}

	if msg, ok := e.Message(); ok {
		v[FeatureMessageComplexity] = math.Min(float64(utf8.RuneCountInString(msg))/1000, 1)
		if x.unicodeSignal && len(ScanUnicode(msg)) > 0 {
			v[FeatureUnicodeSmuggling] = 1
		}
	}

	if tool, ok := e.Tool(); ok {
		v[FeatureToolReliability] = ToolReliability(tool)
	}

	return v
}
