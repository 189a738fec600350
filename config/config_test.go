package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Duration(10*time.Minute), cfg.ApprovalTTL)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.False(t, cfg.TradingEnabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trading_enabled: true
notional_limit: 250.5
market_allowlist:
  - btc-above-100k-2026
  - eth-flip
approval_ttl: 5m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.TradingEnabled)
	assert.Equal(t, 250.5, cfg.NotionalLimit)
	assert.Equal(t, []string{"btc-above-100k-2026", "eth-flip"}, cfg.MarketAllowlist)
	assert.Equal(t, Duration(5*time.Minute), cfg.ApprovalTTL)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notional_limit: 100\n"), 0o644))

	t.Setenv("NOTIONAL_LIMIT", "42.5")
	t.Setenv("MARKET_ALLOWLIST", "a-market, b-market ,")
	t.Setenv("SANDBOXED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 42.5, cfg.NotionalLimit)
	assert.Equal(t, []string{"a-market", "b-market"}, cfg.MarketAllowlist)
	assert.True(t, cfg.Sandboxed)
}

func TestEnvParseErrors(t *testing.T) {
	t.Setenv("TRADING_ENABLED", "definitely")
	_, err := Load("")
	assert.Error(t, err)
}

func TestPolicyConversion(t *testing.T) {
	cfg := &Config{
		TradingEnabled:  true,
		Sandboxed:       true,
		NotionalLimit:   75,
		MarketAllowlist: []string{"m1"},
		ApprovalTTL:     Duration(time.Minute),
	}

	policy := cfg.Policy()
	assert.True(t, policy.TradingEnabled)
	assert.True(t, policy.Sandboxed)
	assert.Equal(t, 75.0, policy.NotionalLimit)
	assert.Equal(t, []string{"m1"}, policy.MarketAllowlist)
	assert.Equal(t, time.Minute, policy.ApprovalTTL)
}
