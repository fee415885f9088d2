// Package redact masks credentials before text leaves the engine: result
// explanations, the JSONL result log and CLI output.
package redact

import (
	"regexp"
)

// Placeholder replaces every masked span.
const Placeholder = "[REDACTED]"

var sensitivePatterns = []*regexp.Regexp{
	// AWS
	regexp.MustCompile(`(?i)(aws_access_key_id|aws_secret_access_key|aws_session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{20,}['"]?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),

	// GitHub
	regexp.MustCompile(`(?i)(github_token|gh_token|github_pat)\s*[=:]\s*['"]?[A-Za-z0-9_-]{30,}['"]?`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),

	regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|secretkey|secret-key|access_token|auth_token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_.-]{20,}`),
	regexp.MustCompile(`(?i)authorization:\s*basic\s+[A-Za-z0-9+/=]{8,}`),

	// credentials embedded in connection strings and URLs
	regexp.MustCompile(`[a-z][a-z0-9+.-]*://[^:/\s]+:[^@\s]+@`),

	// JWTs show up verbatim in access logs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`),

	regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`),
	regexp.MustCompile(`[sr]k_live_[0-9a-zA-Z]{24}`),

	regexp.MustCompile(`(?i)(password|passwd|pwd|secret)"?\s*[=:]\s*\\?['"]?[^\s'"\\]{6,}['"]?`),
}

// Redact replaces credential-looking spans in input with Placeholder.
func Redact(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, Placeholder)
	}
	return result
}

// sensitiveKey matches field names whose whole value is a credential.
var sensitiveKey = regexp.MustCompile(`(?i)^(password|passwd|pwd|secret|token|authorization|credentials?|(api|secret|access|auth|private)[_-]?(key|token|secret))$`)

// Field redacts the value stored under key: all of it when key names a
// credential, otherwise every string inside it.
func Field(key string, v any) any {
	if v != nil && sensitiveKey.MatchString(key) {
		return Placeholder
	}
	return Value(v)
}

// Value returns a copy of a decoded JSON value with every string redacted
// and credential-named map fields masked. Maps and slices are copied; other
// values are returned as is.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return Redact(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Field(k, child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Value(child)
		}
		return out
	default:
		return v
	}
}

// Strings redacts each element of in.
func Strings(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Redact(s)
	}
	return out
}
