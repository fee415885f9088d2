package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gzhole/logshield/internal/entry"
	"github.com/gzhole/logshield/internal/features"
	"github.com/gzhole/logshield/internal/ruleset"
)

func historyOf(statuses ...Status) []Result {
	out := make([]Result, len(statuses))
	for i, s := range statuses {
		out[i] = Result{Status: s}
	}
	return out
}

func TestScore_SeverityOnlyCriticalFails(t *testing.T) {
	v := features.NewExtractor(nil).Extract(entry.Entry{"severity": "critical"})
	require.Len(t, v, 1, "only severity_score is expected")

	score := NewScorer(nil).Score(v, nil)
	assert.InDelta(t, 1.0, score, 1e-9)
	assert.Equal(t, StatusFailed, Classify(score, ruleset.SeverityCritical))
}

func TestScore_WeightedMean(t *testing.T) {
	v := features.Vector{
		"pattern_sql_injection":           0.9,
		features.FeatureSeverity:          0.7,
		features.FeatureMessageComplexity: 0.011,
		features.FeatureToolReliability:   0.9,
	}
	want := (0.9*0.9 + 0.7*0.8 + 0.011*0.3 + 0.9*0.6) / (0.9 + 0.8 + 0.3 + 0.6)
	assert.InDelta(t, want, NewScorer(nil).Score(v, nil), 1e-9)
}

func TestScore_EmptyVector(t *testing.T) {
	s := NewScorer(nil)
	assert.Zero(t, s.Score(features.Vector{}, nil))
	// History alone can still contribute.
	assert.InDelta(t, 0.2, s.Score(features.Vector{}, historyOf(StatusFailed, StatusFailed)), 1e-9)
}

func TestScore_ClampedWhenPatternsExceedOne(t *testing.T) {
	v := features.Vector{"pattern_command_injection": 0.95 * 6}
	assert.Equal(t, 1.0, NewScorer(nil).Score(v, nil))
}

func TestScore_BoundsOverManyVectors(t *testing.T) {
	s := NewScorer(nil)
	hist := historyOf(StatusFailed, StatusPassed, StatusFailed)
	for _, v := range []features.Vector{
		{},
		{"unknown_feature": 0},
		{"unknown_feature": 1},
		{"pattern_xss": 0.8, "pattern_secrets": 3.4},
		{features.FeatureSeverity: 0.1, features.FeatureToolReliability: 0.7},
		{"pattern_nonexistent": 12},
	} {
		for _, h := range [][]Result{nil, hist} {
			got := s.Score(v, h)
			assert.GreaterOrEqual(t, got, 0.0, "%v", v)
			assert.LessOrEqual(t, got, 1.0, "%v", v)
		}
	}
}

func TestScore_HistoryOnlyRaises(t *testing.T) {
	s := NewScorer(nil)
	v := features.Vector{features.FeatureSeverity: 0.3, features.FeatureToolReliability: 0.7}
	base := s.Score(v, nil)

	prev := base
	hist := historyOf(StatusPassed, StatusWarning)
	for i := 0; i < 12; i++ {
		hist = append(hist, Result{Status: StatusFailed})
		got := s.Score(v, hist)
		require.GreaterOrEqual(t, got, prev-1e-12, "adding a failure lowered the score")
		require.LessOrEqual(t, got, base+MaxHistoryAdjustment+1e-12)
		prev = got
	}
}

func TestHistoryAdjustment_UsesLastTen(t *testing.T) {
	hist := historyOf(
		StatusFailed, StatusFailed, StatusFailed, StatusFailed, StatusFailed, // older, ignored
		StatusFailed, StatusPassed, StatusPassed, StatusPassed, StatusPassed,
		StatusPassed, StatusPassed, StatusPassed, StatusPassed, StatusPassed,
	)
	assert.InDelta(t, 0.1*MaxHistoryAdjustment, HistoryAdjustment(hist), 1e-9)
	assert.InDelta(t, 0.1, HistoryAdjustment(historyOf(StatusFailed, StatusPassed)), 1e-9)
	assert.Zero(t, HistoryAdjustment(nil))
}

func TestScore_Deterministic(t *testing.T) {
	s := NewScorer(nil)
	v := features.Vector{
		"pattern_sql_injection": 1.8, "pattern_xss": 0.8, "pattern_secrets": 0.85,
		features.FeatureSeverity: 0.7, features.FeatureMessageComplexity: 0.123,
		features.FeatureToolReliability: 0.85, "custom": 0.4,
	}
	first := s.Score(v, nil)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, s.Score(v, nil))
	}
}

func TestWeight(t *testing.T) {
	s := NewScorer(nil)
	cases := map[string]float64{
		"pattern_command_injection":       0.95,
		"pattern_deprecated_api":          0.6,
		"pattern_unknown":                 WeightDefault,
		features.FeatureSeverity:          0.8,
		features.FeatureMessageComplexity: 0.3,
		features.FeatureToolReliability:   0.6,
		features.FeatureUnicodeSmuggling:  WeightDefault,
	}
	for feature, want := range cases {
		assert.Equal(t, want, s.Weight(feature), feature)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		sev   ruleset.Severity
		want  Status
	}{
		{0.30, ruleset.SeverityLow, StatusFailed},
		{0.22, ruleset.SeverityLow, StatusWarning},
		{0.20, ruleset.SeverityLow, StatusPassed},
		{0.50, ruleset.SeverityMedium, StatusFailed},
		{0.36, ruleset.SeverityMedium, StatusWarning},
		{0.69, ruleset.SeverityHigh, StatusWarning},
		{0.70, ruleset.SeverityHigh, StatusFailed},
		{0.48, ruleset.SeverityHigh, StatusPassed},
		{0.89, ruleset.SeverityCritical, StatusWarning},
		{0.90, ruleset.SeverityCritical, StatusFailed},
		{0.62, ruleset.SeverityCritical, StatusPassed},
		{0.50, "bogus", StatusFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score, tt.sev), "Classify(%v, %s)", tt.score, tt.sev)
	}
}

func TestConfidence(t *testing.T) {
	v := features.Vector{
		"pattern_xss": 0.8, "pattern_sql_injection": 0.9,
		features.FeatureSeverity: 0.7, features.FeatureToolReliability: 0.9,
	}
	// 4 features give 0.4, capped at 0.2; 2 patterns give 0.4, capped at 0.3.
	assert.InDelta(t, 0.3+0.2+0.3, Confidence(0.3, v), 1e-9)
	assert.InDelta(t, 0.2, Confidence(0.1, features.Vector{features.FeatureSeverity: 0.1}), 1e-9)
	assert.Equal(t, 1.0, Confidence(0.95, v))
}
