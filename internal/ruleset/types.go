// Package ruleset loads, merges and validates detection rules. Rules are
// read-only once loaded; the engine never mutates or persists them.
package ruleset

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/gzhole/logshield/internal/condition"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every valid severity from least to most severe.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rule is a named, severity-tagged detection with a declarative condition
// set and remediation text.
type Rule struct {
	ID             string         `yaml:"id" json:"id" validate:"required,ruleid"`
	Name           string         `yaml:"name" json:"name" validate:"required"`
	Category       string         `yaml:"category,omitempty" json:"category,omitempty"`
	Severity       Severity       `yaml:"severity" json:"severity" validate:"required,oneof=low medium high critical"`
	Conditions     condition.Set  `yaml:"conditions" json:"conditions"`
	Recommendation string         `yaml:"recommendation,omitempty" json:"recommendation,omitempty"`
	Active         bool           `yaml:"active" json:"active"`
	MatchMode      condition.Mode `yaml:"match_mode,omitempty" json:"match_mode,omitempty" validate:"omitempty,oneof=any all"`
	References     []string       `yaml:"references,omitempty" json:"references,omitempty" validate:"dive,required"`
}

// ruleDoc is the on-disk shape. Active is a pointer so an omitted flag can
// default to true.
type ruleDoc struct {
	ID             string         `yaml:"id" json:"id"`
	Name           string         `yaml:"name" json:"name"`
	Category       string         `yaml:"category" json:"category"`
	Severity       Severity       `yaml:"severity" json:"severity"`
	Conditions     condition.Set  `yaml:"conditions" json:"conditions"`
	Recommendation string         `yaml:"recommendation" json:"recommendation"`
	Active         *bool          `yaml:"active" json:"active"`
	MatchMode      condition.Mode `yaml:"match_mode" json:"match_mode"`
	References     []string       `yaml:"references" json:"references"`
}

func (d ruleDoc) rule() Rule {
	active := true
	if d.Active != nil {
		active = *d.Active
	}
	return Rule{
		ID:             d.ID,
		Name:           d.Name,
		Category:       d.Category,
		Severity:       d.Severity,
		Conditions:     d.Conditions,
		Recommendation: d.Recommendation,
		Active:         active,
		MatchMode:      d.MatchMode,
		References:     d.References,
	}
}

func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var doc ruleDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	*r = doc.rule()
	return nil
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var doc ruleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*r = doc.rule()
	return nil
}

// RuleSet is a versioned list of rules, as read from a rules file.
type RuleSet struct {
	Version string `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules" validate:"dive"`
}

// Active returns the active rules in declaration order.
func (rs *RuleSet) Active() []Rule {
	if rs == nil {
		return nil
	}
	active := make([]Rule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.Active {
			active = append(active, r)
		}
	}
	return active
}

// Get finds a rule by ID.
func (rs *RuleSet) Get(id string) (Rule, bool) {
	if rs == nil {
		return Rule{}, false
	}
	for _, r := range rs.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

func (rs *RuleSet) clone() *RuleSet {
	out := &RuleSet{Version: rs.Version, Rules: make([]Rule, len(rs.Rules))}
	copy(out.Rules, rs.Rules)
	return out
}
