package analyzer

import (
	"math"

	"github.com/gzhole/logshield/internal/ruleset"
)

var statusWeights = map[Status]float64{
	StatusFailed:  1.0,
	StatusError:   0.8,
	StatusWarning: 0.6,
	StatusPassed:  0.1,
}

var severityMultipliers = map[ruleset.Severity]float64{
	ruleset.SeverityCritical: 2.0,
	ruleset.SeverityHigh:     1.5,
	ruleset.SeverityMedium:   1.0,
	ruleset.SeverityLow:      0.5,
}

// maxResultScore is the largest status weight times the largest severity
// multiplier.
const maxResultScore = 1.0 * 2.0

// Aggregate reduces one scan's results to an overall risk in [0,1].
// Unknown statuses and severities contribute nothing.
func Aggregate(results []Result) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += statusWeights[r.Status] * severityMultipliers[r.Severity] * r.Confidence
	}
	return math.Min(sum/(float64(len(results))*maxResultScore), 1)
}

// Summary counts a scan's results and carries its aggregate risk.
type Summary struct {
	Total      int                      `json:"total"`
	ByStatus   map[Status]int           `json:"by_status"`
	BySeverity map[ruleset.Severity]int `json:"by_severity"`
	ByRule     map[string]int           `json:"by_rule"`
	Risk       float64                  `json:"aggregate_risk"`
}

// Summarize builds the Summary for results.
func Summarize(results []Result) Summary {
	s := Summary{
		Total:      len(results),
		ByStatus:   make(map[Status]int),
		BySeverity: make(map[ruleset.Severity]int),
		ByRule:     make(map[string]int),
		Risk:       Aggregate(results),
	}
	for _, r := range results {
		s.ByStatus[r.Status]++
		s.BySeverity[r.Severity]++
		s.ByRule[r.RuleID]++
	}
	return s
}

// Failed reports whether any result failed.
func (s Summary) Failed() bool { return s.ByStatus[StatusFailed] > 0 }
