// Package patterns holds the fixed catalog of named detection signatures the
// feature extractor runs over every entry.
//
// The catalog is built once and never mutated afterwards; a single *Catalog
// is safe to share between goroutines.
package patterns

import (
	"regexp"
	"sync"
)

// Class groups signatures by what they detect.
type Class string

const (
	ClassSecurity      Class = "security"
	ClassCompatibility Class = "compatibility"
)

// Pattern is one named, weighted signature.
type Pattern struct {
	Name        string
	Class       Class
	Weight      float64 // severity weight in [0,1]
	Description string
	re          *regexp.Regexp
}

// Expression returns the source of the compiled expression.
func (p Pattern) Expression() string { return p.re.String() }

// Match is the result of one pattern over one text. Matches holds every
// occurrence, not just the first.
type Match struct {
	Pattern string
	Class   Class
	Matches []string
}

// Count returns the number of occurrences.
func (m Match) Count() int { return len(m.Matches) }

// Catalog is an immutable, ordered set of patterns.
type Catalog struct {
	patterns []Pattern
	byName   map[string]int
}

type definition struct {
	name        string
	class       Class
	weight      float64
	description string
	expr        string
}

var definitions = []definition{
	// --- security signatures ---
	{
		name:        "sql_injection",
		class:       ClassSecurity,
		weight:      0.9,
		description: "SQL injection payloads (UNION SELECT, tautologies, stacked DML)",
		expr: `(union\s+(all\s+)?select` +
			`|select\s+[^;]{1,200}?\s+from\s` +
			`|insert\s+into\s` +
			`|delete\s+from\s` +
			`|drop\s+(table|database)\s` +
			`|'\s*or\s+'?\d+'?\s*=\s*'?\d+` +
			`|'\s*;\s*--)`,
	},
	{
		name:        "xss",
		class:       ClassSecurity,
		weight:      0.8,
		description: "Cross-site scripting markup and handlers",
		expr:        `(<script[^>]*>|javascript:|\bon(error|load|click|mouseover|focus)\s*=|<iframe[^>]*>|document\.cookie)`,
	},
	{
		name:        "path_traversal",
		class:       ClassSecurity,
		weight:      0.85,
		description: "Directory traversal sequences",
		expr:        `(\.\.[/\\]|%2e%2e(%2f|%5c|/)|\.\.%2f|/etc/passwd)`,
	},
	{
		name:        "command_injection",
		class:       ClassSecurity,
		weight:      0.95,
		description: "Shell metacharacters chaining into commands",
		expr: `(;\s*(rm|del|cat|wget|curl|nc|bash|sh|chmod)\b` +
			`|\|\s*(sh|bash|zsh|nc)\b` +
			`|&&\s*(rm|curl|wget|nc)\b` +
			"|`[^`]+`" +
			`|\$\([^)]+\))`,
	},
	{
		name:        "auth_bypass",
		class:       ClassSecurity,
		weight:      0.9,
		description: "Authentication bypass and privilege escalation phrasing",
		expr: `(auth(entication)?\s+bypass` +
			`|bypass(ed|ing)?\s+(the\s+)?auth(entication|orization)?` +
			`|unauthori[sz]ed\s+access` +
			`|privilege\s+escalation` +
			`|is_?admin\s*[=:]\s*true)`,
	},
	{
		name:        "secrets",
		class:       ClassSecurity,
		weight:      0.85,
		description: "Embedded credentials, keys and tokens",
		expr: `((api[_-]?key|api[_-]?secret|secret[_-]?key|access[_-]?token|auth[_-]?token|password|passwd)\\?"?\s*[=:]\s*\\?['"]?[^\s'"\\]{6,}` +
			`|akia[0-9a-z]{16}` +
			`|ghp_[0-9a-z]{36}` +
			`|-----begin [a-z ]*private key-----)`,
	},

	// --- compatibility signatures ---
	{
		name:        "version_conflict",
		class:       ClassCompatibility,
		weight:      0.7,
		description: "Conflicting or incompatible dependency versions",
		expr:        `(version\s+(conflict|mismatch)|incompatible\s+(version|with)|requires\s+version|conflicting\s+dependenc(y|ies)|peer\s+dep(endency)?\s+conflict)`,
	},
	{
		name:        "deprecated_api",
		class:       ClassCompatibility,
		weight:      0.6,
		description: "Deprecated or removed API usage",
		expr:        `(deprecat(ed|ion)|no\s+longer\s+supported|will\s+be\s+removed|has\s+been\s+removed|obsolete)`,
	},
	{
		name:        "missing_dependency",
		class:       ClassCompatibility,
		weight:      0.75,
		description: "Unresolvable modules, packages and classes",
		expr:        `(module\s+not\s+found|cannot\s+find\s+(module|package)|no\s+module\s+named|missing\s+dependenc(y|ies)|unresolved\s+(import|dependency)|classnotfoundexception)`,
	},
	{
		name:        "config_error",
		class:       ClassCompatibility,
		weight:      0.65,
		description: "Invalid or missing configuration",
		expr:        `(invalid\s+config(uration)?|config(uration)?\s+(error|invalid)|misconfigur(ed|ation)|missing\s+required\s+(setting|property|field|option))`,
	},
}

// New compiles the catalog. It panics only if a built-in expression is
// invalid, which the package tests guard against.
func New() *Catalog {
	c := &Catalog{
		patterns: make([]Pattern, 0, len(definitions)),
		byName:   make(map[string]int, len(definitions)),
	}
	for _, d := range definitions {
		c.byName[d.name] = len(c.patterns)
		c.patterns = append(c.patterns, Pattern{
			Name:        d.name,
			Class:       d.class,
			Weight:      d.weight,
			Description: d.description,
			re:          regexp.MustCompile(`(?i)` + d.expr),
		})
	}
	return c
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the shared catalog, compiled on first use.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = New()
	})
	return defaultCatalog
}

// Match runs the catalog over text. When name is non-empty only that pattern
// is evaluated (an unknown name yields no matches). Only patterns with at
// least one occurrence are returned, in catalog order.
func (c *Catalog) Match(text, name string) []Match {
	if name != "" {
		idx, ok := c.byName[name]
		if !ok {
			return nil
		}
		if m, hit := c.patterns[idx].match(text); hit {
			return []Match{m}
		}
		return nil
	}

	var matches []Match
	for _, p := range c.patterns {
		if m, hit := p.match(text); hit {
			matches = append(matches, m)
		}
	}
	return matches
}

func (p Pattern) match(text string) (Match, bool) {
	found := p.re.FindAllString(text, -1)
	if len(found) == 0 {
		return Match{}, false
	}
	return Match{Pattern: p.Name, Class: p.Class, Matches: found}, true
}

// Weight returns the severity weight of the named pattern.
func (c *Catalog) Weight(name string) (float64, bool) {
	idx, ok := c.byName[name]
	if !ok {
		return 0, false
	}
	return c.patterns[idx].Weight, true
}

// Patterns returns a copy of the catalog's definitions in order.
func (c *Catalog) Patterns() []Pattern {
	out := make([]Pattern, len(c.patterns))
	copy(out, c.patterns)
	return out
}

// Names returns the pattern names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.patterns))
	for i, p := range c.patterns {
		names[i] = p.Name
	}
	return names
}
