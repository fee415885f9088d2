package ruleset

import (
	"github.com/gzhole/logshield/internal/condition"
)

// DefaultRuleSet is used when no rules file exists. It covers the same
// ground as the pattern catalog, one rule per threat class.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Version: "1",
		Rules: []Rule{
			{
				ID:       "sqli-keywords",
				Name:     "SQL injection payload in request",
				Category: "sql_injection",
				Severity: SeverityHigh,
				Conditions: condition.NewSet(
					condition.Clause{Path: "message", Spec: condition.MustRegex(`union\s+(all\s+)?select|'\s*or\s+'?\d+'?\s*=\s*'?\d+|;\s*drop\s+table`, "i")},
				),
				Recommendation: "Use parameterized queries and reject input containing SQL control syntax.",
				Active:         true,
			},
			{
				ID:       "xss-markup",
				Name:     "Script markup reflected in input",
				Category: "xss",
				Severity: SeverityHigh,
				Conditions: condition.NewSet(
					condition.Clause{Path: "message", Spec: condition.MustRegex(`<script|javascript:|onerror\s*=`, "i")},
				),
				Recommendation: "Encode output for its HTML context and set a restrictive Content-Security-Policy.",
				Active:         true,
			},
			{
				ID:       "cmd-injection",
				Name:     "Shell command chaining in input",
				Category: "command_injection",
				Severity: SeverityCritical,
				Conditions: condition.NewSet(
					condition.Clause{Path: "message", Spec: condition.MustRegex(`;\s*(rm|del|wget|curl|nc|bash)\b|\|\s*(sh|bash)\b|\$\([^)]+\)`, "i")},
				),
				Recommendation: "Never pass user input to a shell; call binaries with an argument vector.",
				Active:         true,
			},
			{
				ID:       "path-traversal",
				Name:     "Directory traversal sequence",
				Category: "path_traversal",
				Severity: SeverityHigh,
				Conditions: condition.NewSet(
					condition.Clause{Path: "message", Spec: condition.MustRegex(`\.\./|\.\.\\|%2e%2e%2f|/etc/passwd`, "i")},
				),
				Recommendation: "Resolve paths against an allowed root and reject anything that escapes it.",
				Active:         true,
			},
			{
				ID:       "secret-in-log",
				Name:     "Credential written to log",
				Category: "secrets",
				Severity: SeverityCritical,
				Conditions: condition.NewSet(
					condition.Clause{Path: "message", Spec: condition.MustRegex(`(api[_-]?key|secret|password|token)\s*[=:]\s*\S{6,}|AKIA[0-9A-Z]{16}|-----BEGIN [A-Z ]*PRIVATE KEY-----`, "i")},
				),
				Recommendation: "Rotate the exposed credential and scrub it from log storage.",
				Active:         true,
			},
			{
				ID:       "deprecated-api",
				Name:     "Deprecated API in use",
				Category: "deprecated_api",
				Severity: SeverityMedium,
				Conditions: condition.NewSet(
					condition.Clause{Path: "message", Spec: condition.Substring("deprecated")},
				),
				Recommendation: "Migrate to the supported replacement before the API is removed.",
				Active:         true,
			},
			{
				ID:       "version-conflict",
				Name:     "Dependency version conflict",
				Category: "version_conflict",
				Severity: SeverityMedium,
				Conditions: condition.NewSet(
					condition.Clause{Path: "message", Spec: condition.MustRegex(`version\s+(conflict|mismatch)|incompatible\s+version`, "i")},
				),
				Recommendation: "Pin compatible versions and regenerate the lock file.",
				Active:         true,
			},
			{
				ID:       "missing-dependency",
				Name:     "Missing dependency",
				Category: "missing_dependency",
				Severity: SeverityMedium,
				Conditions: condition.NewSet(
					condition.Clause{Path: "message", Spec: condition.MustRegex(`module\s+not\s+found|cannot\s+find\s+(module|package)|no\s+module\s+named|classnotfoundexception`, "i")},
				),
				Recommendation: "Declare the dependency explicitly and verify the build installs it.",
				Active:         true,
			},
			{
				ID:       "config-error",
				Name:     "Invalid configuration",
				Category: "config_error",
				Severity: SeverityLow,
				Conditions: condition.NewSet(
					condition.Clause{Path: "message", Spec: condition.MustRegex(`invalid\s+config(uration)?|misconfigur(ed|ation)|missing\s+required\s+(setting|property)`, "i")},
				),
				Recommendation: "Validate configuration at startup and fail fast on unknown or missing keys.",
				Active:         true,
			},
		},
	}
}
