package analyzer

import (
	"math"

	"github.com/gzhole/logshield/internal/features"
	"github.com/gzhole/logshield/internal/patterns"
	"github.com/gzhole/logshield/internal/ruleset"
)

// Fixed feature weights. Pattern features take their catalog weight.
const (
	WeightSeverity          = 0.8
	WeightMessageComplexity = 0.3
	WeightToolReliability   = 0.6
	WeightDefault           = 0.5

	// HistoryLookback is how many recent results feed the adjustment.
	HistoryLookback = 10
	// MaxHistoryAdjustment bounds how far history can raise a score.
	MaxHistoryAdjustment = 0.2
)

// Scorer turns a feature vector into a risk score in [0,1]. It is immutable
// and safe for concurrent use.
type Scorer struct {
	catalog *patterns.Catalog
}

// NewScorer returns a scorer using catalog for pattern weights (nil uses
// patterns.Default).
func NewScorer(catalog *patterns.Catalog) *Scorer {
	if catalog == nil {
		catalog = patterns.Default()
	}
	return &Scorer{catalog: catalog}
}

// Weight returns the weight applied to a feature.
func (s *Scorer) Weight(feature string) float64 {
	if name, ok := features.IsPattern(feature); ok {
		if w, known := s.catalog.Weight(name); known {
			return w
		}
		return WeightDefault
	}
	switch feature {
	case features.FeatureSeverity:
		return WeightSeverity
	case features.FeatureMessageComplexity:
		return WeightMessageComplexity
	case features.FeatureToolReliability:
		return WeightToolReliability
	}
	return WeightDefault
}

// Score computes the weighted mean of v, raised by the share of failures
// among the most recent history entries. History can only raise a score.
func (s *Scorer) Score(v features.Vector, history []Result) float64 {
	var sum, weights float64
	for _, name := range v.Names() {
		w := s.Weight(name)
		sum += v[name] * w
		weights += w
	}
	score := 0.0
	if weights > 0 {
		score = sum / weights
	}
	score += HistoryAdjustment(history)
	return clamp01(score)
}

// HistoryAdjustment is failedShare(last min(len, 10)) × 0.2, or 0 for an
// empty window. History is ordered oldest first.
func HistoryAdjustment(history []Result) float64 {
	n := len(history)
	if n == 0 {
		return 0
	}
	window := history
	if n > HistoryLookback {
		window = history[n-HistoryLookback:]
	}
	failed := 0
	for _, r := range window {
		if r.Status == StatusFailed {
			failed++
		}
	}
	return float64(failed) / float64(len(window)) * MaxHistoryAdjustment
}

var severityThresholds = map[ruleset.Severity]float64{
	ruleset.SeverityLow:      0.3,
	ruleset.SeverityMedium:   0.5,
	ruleset.SeverityHigh:     0.7,
	ruleset.SeverityCritical: 0.9,
}

// WarningRatio is the fraction of a threshold at which a result warns.
const WarningRatio = 0.7

// Threshold returns the failing score for a severity. Unknown severities use
// the medium threshold.
func Threshold(sev ruleset.Severity) float64 {
	if t, ok := severityThresholds[sev]; ok {
		return t
	}
	return severityThresholds[ruleset.SeverityMedium]
}

// Classify maps a score onto a status for a rule of the given severity.
func Classify(score float64, sev ruleset.Severity) Status {
	t := Threshold(sev)
	switch {
	case score >= t:
		return StatusFailed
	case score >= WarningRatio*t:
		return StatusWarning
	default:
		return StatusPassed
	}
}

// Confidence grows with the score, the number of features and the number of
// distinct patterns that fired.
func Confidence(score float64, v features.Vector) float64 {
	featureBonus := math.Min(float64(len(v))/10, 0.2)
	patternBonus := math.Min(float64(v.PatternCount())/5, 0.3)
	return clamp01(score + featureBonus + patternBonus)
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
