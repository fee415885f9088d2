package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Detects(t *testing.T) {
	c := New()

	tests := []struct {
		name    string
		text    string
		pattern string
	}{
		{"union select", `{"message":"id=1 union select password from users"}`, "sql_injection"},
		{"tautology", `{"message":"' or 1=1 --"}`, "sql_injection"},
		{"script tag", `{"message":"<script>alert(1)</script>"}`, "xss"},
		{"event handler", `{"message":"<img src=x onerror=alert(1)>"}`, "xss"},
		{"dot dot slash", `{"path":"../../etc/shadow"}`, "path_traversal"},
		{"encoded traversal", `{"path":"%2e%2e%2fetc"}`, "path_traversal"},
		{"chained rm", `{"message":"name=x; rm -rf /tmp"}`, "command_injection"},
		{"subshell", `{"message":"$(whoami)"}`, "command_injection"},
		{"auth bypass", `{"message":"authentication bypass via header"}`, "auth_bypass"},
		{"inline password", `{"message":"password=hunter2secret"}`, "secrets"},
		{"password field", `{"password":"hunter2secret"}`, "secrets"},
		{"api key field", `{"api_key":"abcdef123456"}`, "secrets"},
		{"aws key", `{"message":"akiaabcdefghijklmnop"}`, "secrets"},
		{"version conflict", `{"message":"version conflict between react 17 and 18"}`, "version_conflict"},
		{"deprecated", `{"message":"componentwillmount is deprecated"}`, "deprecated_api"},
		{"missing module", `{"message":"error: cannot find module 'left-pad'"}`, "missing_dependency"},
		{"bad config", `{"message":"invalid configuration for key tls"}`, "config_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := c.Match(tt.text, tt.pattern)
			require.Len(t, matches, 1, "expected %s to fire", tt.pattern)
			assert.Equal(t, tt.pattern, matches[0].Pattern)
			assert.GreaterOrEqual(t, matches[0].Count(), 1)
		})
	}
}

func TestCatalog_CleanText(t *testing.T) {
	c := New()
	assert.Empty(t, c.Match(`{"message":"user logged in successfully","severity":"low"}`, ""))
}

func TestCatalog_CountsEveryOccurrence(t *testing.T) {
	c := New()
	matches := c.Match("deprecated here, deprecated there, DEPRECATED everywhere", "deprecated_api")
	require.Len(t, matches, 1)
	assert.Equal(t, 3, matches[0].Count())
}

func TestCatalog_SingleNameOnlyEvaluatesThatPattern(t *testing.T) {
	c := New()
	text := "union select 1; rm -rf /"

	all := c.Match(text, "")
	assert.GreaterOrEqual(t, len(all), 2)

	only := c.Match(text, "command_injection")
	require.Len(t, only, 1)
	assert.Equal(t, "command_injection", only[0].Pattern)

	assert.Empty(t, c.Match(text, "no_such_pattern"))
}

func TestCatalog_Weights(t *testing.T) {
	c := Default()

	w, ok := c.Weight("command_injection")
	require.True(t, ok)
	assert.Equal(t, 0.95, w)

	w, ok = c.Weight("deprecated_api")
	require.True(t, ok)
	assert.Equal(t, 0.6, w)

	_, ok = c.Weight("unknown")
	assert.False(t, ok)

	for _, p := range c.Patterns() {
		assert.GreaterOrEqual(t, p.Weight, 0.0, p.Name)
		assert.LessOrEqual(t, p.Weight, 1.0, p.Name)
		assert.NotEmpty(t, p.Expression())
	}
}

func TestCatalog_Classes(t *testing.T) {
	c := New()
	counts := map[Class]int{}
	for _, p := range c.Patterns() {
		counts[p.Class]++
	}
	assert.Equal(t, 6, counts[ClassSecurity])
	assert.Equal(t, 4, counts[ClassCompatibility])
	assert.Len(t, c.Names(), 10)
}

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
