// Package analyzer scores log entries against rules and aggregates the
// outcome of a scan.
//
// The Orchestrator drives one batch: it loads the tenant's historical
// window, evaluates every (entry, active rule) pair, and writes the window
// back. For each pair whose conditions match, the entry's feature vector is
// scored, classified against the rule's severity threshold and explained.
package analyzer

import (
	"time"

	"github.com/gzhole/logshield/internal/features"
	"github.com/gzhole/logshield/internal/ruleset"
)

// Status is the verdict for one (entry, rule) pair.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
	// StatusError is never produced by the orchestrator; callers use it for
	// their own failure bookkeeping and Aggregate weighs it.
	StatusError Status = "error"
)

// Scan identifies one batch. Tenant keys the historical cache.
type Scan struct {
	Tenant string `json:"tenant"`
	ScanID string `json:"scan_id"`
}

// Details carries the evidence behind a result.
type Details struct {
	MatchedConditions []string           `json:"matched_conditions"`
	PatternScores     map[string]float64 `json:"pattern_scores"`
	Features          features.Vector    `json:"features"`
	References        []string           `json:"references,omitempty"`
	Timestamp         time.Time          `json:"timestamp"`
}

// Metadata records where a result came from and its raw score.
type Metadata struct {
	RiskScore  float64 `json:"risk_score"`
	EntryIndex int     `json:"entry_index"`
	RuleIndex  int     `json:"rule_index"`
	Category   string  `json:"category,omitempty"`
	Tenant     string  `json:"tenant,omitempty"`
	ScanID     string  `json:"scan_id,omitempty"`
}

// Result is the analysis outcome for one matching (entry, rule) pair. It is
// JSON-serializable because it is cached as history.
type Result struct {
	ID                 string           `json:"id"`
	RuleID             string           `json:"rule_id"`
	RuleName           string           `json:"rule_name"`
	Status             Status           `json:"status"`
	Severity           ruleset.Severity `json:"severity"`
	Message            string           `json:"message"`
	Details            Details          `json:"details"`
	Recommendation     string           `json:"recommendation,omitempty"`
	AffectedComponents []string         `json:"affected_components"`
	Confidence         float64          `json:"confidence"`
	Metadata           Metadata         `json:"metadata"`
}
