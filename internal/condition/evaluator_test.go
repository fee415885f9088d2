package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gzhole/logshield/internal/entry"
)

func mustSpec(t *testing.T, raw any) Spec {
	t.Helper()
	s, err := ParseSpec(raw)
	require.NoError(t, err)
	return s
}

func TestParseSpec_Kinds(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want Kind
	}{
		{"nil", nil, KindNull},
		{"slash regex", "/union|select/", KindRegex},
		{"slash regex with flags", "/union|select/i", KindRegex},
		{"plain string", "error", KindSubstring},
		{"lone slash", "/", KindRegex},
		{"empty regex", "//", KindRegex},
		{"path ending in letters", "/login/gui", KindSubstring},
		{"path ending in y", "/usr/sys", KindSubstring},
		{"unclosed slash", "/var/log", KindSubstring},
		{"number", float64(3), KindLiteral},
		{"bool", true, KindLiteral},
		{"regex op", map[string]any{"$regex": "^a"}, KindRegex},
		{"in op", map[string]any{"$in": []any{"a"}}, KindIn},
		{"gt op", map[string]any{"$gt": 5}, KindGt},
		{"lt op", map[string]any{"$lt": "5"}, KindLt},
		{"eq op", map[string]any{"$eq": "x"}, KindEq},
		{"plain object", map[string]any{"k": "v"}, KindLiteral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustSpec(t, tt.raw).Kind())
		})
	}
}

func TestParseSpec_SlashStrings(t *testing.T) {
	s := mustSpec(t, "/login/gui")
	ok, err := s.Match("GET /LOGIN page", true)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.Match("POST /Login/GUI", true)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, raw := range []string{"/", "//"} {
		ok, err := mustSpec(t, raw).Match("anything at all", true)
		require.NoError(t, err)
		assert.True(t, ok, raw)
	}

	ok, err = mustSpec(t, "/^get /m").Match("POST /a\nGET /b", true)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = mustSpec(t, "/^get /").Match("POST /a\nGET /b", true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseSpec_OperatorPrecedence(t *testing.T) {
	s := mustSpec(t, map[string]any{"$eq": "x", "$gt": 1, "$in": []any{"a"}, "$regex": "b"})
	assert.Equal(t, KindRegex, s.Kind())

	s = mustSpec(t, map[string]any{"$eq": "x", "$lt": 1, "$gt": 9})
	assert.Equal(t, KindGt, s.Kind())

	s = mustSpec(t, map[string]any{"$eq": "x", "$lt": 1})
	assert.Equal(t, KindLt, s.Kind())
}

func TestParseSpec_Errors(t *testing.T) {
	bad := []any{
		map[string]any{"$regex": "("},
		map[string]any{"$regex": 5},
		map[string]any{"$regex": "a", "$options": "q"},
		map[string]any{"$in": "not-a-list"},
		map[string]any{"$gt": "ten"},
		"/(unclosed/",
	}
	for _, raw := range bad {
		_, err := ParseSpec(raw)
		assert.ErrorIs(t, err, ErrInvalidSpec, "raw %#v", raw)
	}
}

func TestSpecMatch(t *testing.T) {
	tests := []struct {
		name    string
		spec    any
		value   any
		present bool
		want    bool
	}{
		{"null vs missing", nil, nil, false, true},
		{"null vs null", nil, nil, true, true},
		{"null vs value", nil, "x", true, false},
		{"substring ci", "ERROR", "disk error occurred", true, true},
		{"substring miss", "warn", "disk error", true, false},
		{"substring on number", "40", float64(404), true, true},
		{"substring vs missing", "x", nil, false, false},
		{"regex ci", "/^GET /", "get /index", true, true},
		{"regex miss", "/union|select/", "' OR 1=1 --", true, false},
		{"regex op case sensitive", map[string]any{"$regex": "^Admin"}, "admin", true, false},
		{"regex op options", map[string]any{"$regex": "^Admin", "$options": "i"}, "admin", true, true},
		{"in hit", map[string]any{"$in": []any{"high", "critical"}}, "critical", true, true},
		{"in numeric", map[string]any{"$in": []any{float64(1), float64(2)}}, 2, true, true},
		{"in miss", map[string]any{"$in": []any{"high"}}, "low", true, false},
		{"gt numeric", map[string]any{"$gt": 5}, float64(7), true, true},
		{"gt string coerced", map[string]any{"$gt": 5}, "10", true, true},
		{"gt not numeric", map[string]any{"$gt": 5}, "ten", true, false},
		{"gt missing", map[string]any{"$gt": -1}, nil, false, false},
		{"lt", map[string]any{"$lt": 5}, float64(2), true, true},
		{"lt equal", map[string]any{"$lt": 5}, float64(5), true, false},
		{"eq strict", map[string]any{"$eq": float64(5)}, "5", true, false},
		{"eq same", map[string]any{"$eq": "5"}, "5", true, true},
		{"literal bool", true, true, true, true},
		{"literal number", float64(3), 3, true, true},
		{"literal mismatch type", float64(3), "3", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustSpec(t, tt.spec).Match(tt.value, tt.present)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpecMatch_ZeroValueErrors(t *testing.T) {
	_, err := Spec{}.Match("x", true)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestEvaluate_OrSemantics(t *testing.T) {
	ev := NewEvaluator(ModeAny)
	set, err := ParseSet(map[string]any{
		"message":  "/union|select/",
		"severity": map[string]any{"$in": []any{"high", "critical"}},
	})
	require.NoError(t, err)

	out, err := ev.Evaluate(entry.Entry{"message": "nothing here", "severity": "high"}, set)
	require.NoError(t, err)
	assert.True(t, out.Matches)
	assert.Equal(t, []string{"severity"}, out.MatchedPaths)

	out, err = ev.Evaluate(entry.Entry{"message": "nothing here", "severity": "low"}, set)
	require.NoError(t, err)
	assert.False(t, out.Matches)
	assert.Empty(t, out.MatchedPaths)
}

func TestEvaluate_AllMode(t *testing.T) {
	set := NewSet(
		Clause{Path: "message", Spec: Substring("deprecated")},
		Clause{Path: "meta.count", Spec: Gt(2)},
	)
	e := entry.Entry{"message": "API deprecated", "meta": map[string]any{"count": float64(1)}}

	out, err := NewEvaluator(ModeAll).Evaluate(e, set)
	require.NoError(t, err)
	assert.False(t, out.Matches)
	assert.Equal(t, []string{"message"}, out.MatchedPaths)

	out, err = NewEvaluator(ModeAny).EvaluateMode(e, set, ModeAll)
	require.NoError(t, err)
	assert.False(t, out.Matches)

	e["meta"] = map[string]any{"count": float64(3)}
	out, err = NewEvaluator(ModeAll).Evaluate(e, set)
	require.NoError(t, err)
	assert.True(t, out.Matches)
	assert.Equal(t, []string{"message", "meta.count"}, out.MatchedPaths)
}

func TestEvaluate_EmptyAndNonMappingSets(t *testing.T) {
	ev := NewEvaluator("")
	e := entry.Entry{"message": "x"}

	out, err := ev.Evaluate(e, Set{})
	require.NoError(t, err)
	assert.False(t, out.Matches)

	set, err := ParseSet([]any{"message", "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
	out, err = ev.Evaluate(e, set)
	require.NoError(t, err)
	assert.False(t, out.Matches)
}

func TestEvaluate_MissingPathOnlyMatchesNull(t *testing.T) {
	ev := NewEvaluator(ModeAny)
	e := entry.Entry{"message": "x"}

	out, err := ev.Evaluate(e, NewSet(Clause{Path: "a.b.c", Spec: Substring("")}))
	require.NoError(t, err)
	assert.False(t, out.Matches)

	out, err = ev.Evaluate(e, NewSet(Clause{Path: "a.b.c", Spec: Null()}))
	require.NoError(t, err)
	assert.True(t, out.Matches)
}

func TestEvaluate_InvalidSpecIsAnError(t *testing.T) {
	ev := NewEvaluator(ModeAny)
	_, err := ev.Evaluate(entry.Entry{"message": "x"}, NewSet(Clause{Path: "message"}))
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

// A rule fires only through its declared condition; pattern detection on the
// same text is a separate signal.
func TestEvaluate_ConditionIndependentOfPatterns(t *testing.T) {
	ev := NewEvaluator(ModeAny)

	sqli := entry.Entry{"message": "' OR 1=1 --", "severity": "high"}
	set, err := ParseSet(map[string]any{"message": "/union|select/i"})
	require.NoError(t, err)
	out, err := ev.Evaluate(sqli, set)
	require.NoError(t, err)
	assert.False(t, out.Matches)

	eval := entry.Entry{"message": "eval(userInput)", "severity": "critical", "tool": "semgrep"}
	cmdRule, err := ParseSet(map[string]any{"message": `/;\s*(rm|del)/`})
	require.NoError(t, err)
	out, err = ev.Evaluate(eval, cmdRule)
	require.NoError(t, err)
	assert.False(t, out.Matches)

	sqlRule, err := ParseSet(map[string]any{"message": "/union|select|insert/"})
	require.NoError(t, err)
	out, err = ev.Evaluate(eval, sqlRule)
	require.NoError(t, err)
	assert.False(t, out.Matches)
}

func TestSet_YAMLKeepsOrderAndRoundTrips(t *testing.T) {
	doc := `
severity:
  $in: [high, critical]
message: /union\s+select/
tool: ~
`
	var set Set
	require.NoError(t, yaml.Unmarshal([]byte(doc), &set))
	require.Equal(t, 3, set.Len())

	clauses := set.Clauses()
	assert.Equal(t, "severity", clauses[0].Path)
	assert.Equal(t, KindIn, clauses[0].Spec.Kind())
	assert.Equal(t, "message", clauses[1].Path)
	assert.Equal(t, KindRegex, clauses[1].Spec.Kind())
	assert.Equal(t, KindNull, clauses[2].Spec.Kind())

	out, err := yaml.Marshal(set)
	require.NoError(t, err)
	var again Set
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, 3, again.Len())
}

func TestSet_YAMLRejectsBadRegex(t *testing.T) {
	var set Set
	err := yaml.Unmarshal([]byte("message: {$regex: '('}\n"), &set)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestSet_JSON(t *testing.T) {
	var set Set
	require.NoError(t, set.UnmarshalJSON([]byte(`{"b":"x","a":{"$gt":3}}`)))
	clauses := set.Clauses()
	require.Len(t, clauses, 2)
	assert.Equal(t, "a", clauses[0].Path)
	assert.Equal(t, KindGt, clauses[0].Spec.Kind())

	data, err := set.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"$gt":3},"b":"x"}`, string(data))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAny, m)

	m, err = ParseMode("all")
	require.NoError(t, err)
	assert.Equal(t, ModeAll, m)

	_, err = ParseMode("most")
	assert.Error(t, err)
}
