package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gzhole/logshield/internal/ruleset"
)

func TestAggregate_Empty(t *testing.T) {
	assert.Zero(t, Aggregate(nil))
	assert.Zero(t, Aggregate([]Result{}))
}

func TestAggregate_Formula(t *testing.T) {
	// Per-result scores: 2.0, 0.72, 0.025, 0.4.
	results := []Result{
		{Status: StatusFailed, Severity: ruleset.SeverityCritical, Confidence: 1.0},
		{Status: StatusWarning, Severity: ruleset.SeverityHigh, Confidence: 0.8},
		{Status: StatusPassed, Severity: ruleset.SeverityLow, Confidence: 0.5},
		{Status: StatusError, Severity: ruleset.SeverityMedium, Confidence: 0.5},
	}
	want := (2.0 + 0.72 + 0.025 + 0.4) / (4 * 2.0)
	assert.InDelta(t, want, Aggregate(results), 1e-9)
}

func TestAggregate_MaxIsOne(t *testing.T) {
	results := []Result{
		{Status: StatusFailed, Severity: ruleset.SeverityCritical, Confidence: 1},
		{Status: StatusFailed, Severity: ruleset.SeverityCritical, Confidence: 1},
	}
	assert.Equal(t, 1.0, Aggregate(results))
}

func TestAggregate_UnknownValuesContributeNothing(t *testing.T) {
	results := []Result{{Status: "skipped", Severity: ruleset.SeverityHigh, Confidence: 1}}
	assert.Zero(t, Aggregate(results))
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{RuleID: "a", Status: StatusFailed, Severity: ruleset.SeverityHigh, Confidence: 0.9},
		{RuleID: "a", Status: StatusWarning, Severity: ruleset.SeverityHigh, Confidence: 0.6},
		{RuleID: "b", Status: StatusPassed, Severity: ruleset.SeverityLow, Confidence: 0.2},
	}
	s := Summarize(results)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.ByStatus[StatusFailed])
	assert.Equal(t, 1, s.ByStatus[StatusWarning])
	assert.Equal(t, 1, s.ByStatus[StatusPassed])
	assert.Equal(t, 2, s.BySeverity[ruleset.SeverityHigh])
	assert.Equal(t, 2, s.ByRule["a"])
	assert.Equal(t, 1, s.ByRule["b"])
	assert.InDelta(t, Aggregate(results), s.Risk, 1e-9)
	assert.True(t, s.Failed())
	assert.False(t, Summarize(nil).Failed(), "empty summary reports no failure")
}
