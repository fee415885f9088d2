package history

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gzhole/logshield/internal/analyzer"
	"github.com/gzhole/logshield/internal/entry"
	"github.com/gzhole/logshield/internal/features"
	"github.com/gzhole/logshield/internal/ruleset"
)

func openInMemory(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleWindow() []analyzer.Result {
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return []analyzer.Result{
		{
			ID: "r1", RuleID: "sqli-keywords", RuleName: "SQL injection keywords",
			Status: analyzer.StatusFailed, Severity: ruleset.SeverityHigh,
			Message: "Rule matched.",
			Details: analyzer.Details{
				MatchedConditions: []string{"message"},
				PatternScores:     map[string]float64{"sql_injection": 0.9},
				Features:          features.Vector{"pattern_sql_injection": 0.9, features.FeatureSeverity: 0.7},
				References:        []string{"CWE-89"},
				Timestamp:         ts,
			},
			AffectedComponents: []string{"api@1.0"},
			Confidence:         0.8,
			Metadata:           analyzer.Metadata{RiskScore: 0.82, Tenant: "acme", ScanID: "s1"},
		},
		{ID: "r2", Status: analyzer.StatusPassed, Severity: ruleset.SeverityLow, AffectedComponents: []string{}},
	}
}

func TestBadgerStore_MissIsNotError(t *testing.T) {
	s := openInMemory(t)
	got, found, err := s.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	want := sampleWindow()

	require.NoError(t, s.Set(ctx, "acme", want, time.Hour))
	got, found, err := s.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestBadgerStore_EmptyWindowIsAHit(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	require.NoError(t, s.Set(ctx, "acme", nil, time.Hour))

	got, found, err := s.Get(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, got)
}

func TestBadgerStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	require.NoError(t, s.Set(ctx, "ttl", sampleWindow(), time.Hour))
	require.NoError(t, s.Set(ctx, "forever", sampleWindow(), 0))

	expiresAt := func(tenant string) uint64 {
		var at uint64
		require.NoError(t, s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(key(tenant))
			if err != nil {
				return err
			}
			at = item.ExpiresAt()
			return nil
		}))
		return at
	}

	at := expiresAt("ttl")
	assert.Greater(t, at, uint64(time.Now().Unix()))
	assert.LessOrEqual(t, at, uint64(time.Now().Add(time.Hour+time.Minute).Unix()))
	assert.Zero(t, expiresAt("forever"))
}

func TestBadgerStore_DeleteAndTenants(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	for _, tenant := range []string{"b", "a", "c"} {
		require.NoError(t, s.Set(ctx, tenant, sampleWindow(), 0))
	}

	tenants, err := s.Tenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tenants)

	require.NoError(t, s.Delete(ctx, "b"))
	require.NoError(t, s.Delete(ctx, "missing"))
	tenants, err = s.Tenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, tenants)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = 0

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "acme", sampleWindow(), time.Hour))
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()
	got, found, err := s.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, got, 2)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestBadgerStore_BacksOrchestrator(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	o := analyzer.New(analyzer.Options{History: s, HistoryLimit: 3})
	rules := ruleset.DefaultRuleSet().Active()

	entries := []entry.Entry{
		{"message": "SELECT * FROM users UNION SELECT password FROM admins", "severity": "high"},
		{"message": "<script>alert(1)</script>", "severity": "medium"},
	}
	for i := 0; i < 3; i++ {
		_, err := o.Analyze(ctx, entries, rules, analyzer.Scan{Tenant: "acme"})
		require.NoError(t, err)
	}

	window, found, err := s.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, window, 3)
}
