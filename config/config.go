// Package config loads broker configuration from the environment, with an
// optional YAML file layered underneath. Values end up in a plain struct
// handed explicitly to the core, never read ambiently from inside it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"polybroker/approval"
)

type Config struct {
	PrivateKey      string   `yaml:"private_key"`
	TradingEnabled  bool     `yaml:"trading_enabled"`
	Sandboxed       bool     `yaml:"sandboxed"`
	NotionalLimit   float64  `yaml:"notional_limit"`
	MarketAllowlist []string `yaml:"market_allowlist"`
	ApprovalTTL     Duration `yaml:"approval_ttl"`
	ListenAddr      string   `yaml:"listen_addr"`
	ClobURL         string   `yaml:"clob_url"`
	GammaURL        string   `yaml:"gamma_url"`
	MarketWSURL     string   `yaml:"market_ws_url"`
	LogLevel        string   `yaml:"log_level"`
}

// Duration parses YAML values like "5m" that the yaml package would
// otherwise reject for time.Duration fields.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func defaults() Config {
	return Config{
		ApprovalTTL: Duration(10 * time.Minute),
		ListenAddr:  ":8080",
	}
}

// Load reads an optional YAML file (path from CONFIG_FILE or configFile
// argument), then overlays environment variables. A .env file is honored
// if present.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	cfg := defaults()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PRIVATE_KEY"); v != "" {
		c.PrivateKey = v
	}
	if v := os.Getenv("TRADING_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRADING_ENABLED %q: %w", v, err)
		}
		c.TradingEnabled = enabled
	}
	if v := os.Getenv("SANDBOXED"); v != "" {
		sandboxed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SANDBOXED %q: %w", v, err)
		}
		c.Sandboxed = sandboxed
	}
	if v := os.Getenv("NOTIONAL_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid NOTIONAL_LIMIT %q: %w", v, err)
		}
		c.NotionalLimit = limit
	}
	if v := os.Getenv("MARKET_ALLOWLIST"); v != "" {
		c.MarketAllowlist = splitList(v)
	}
	if v := os.Getenv("APPROVAL_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid APPROVAL_TTL %q: %w", v, err)
		}
		c.ApprovalTTL = Duration(ttl)
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("CLOB_URL"); v != "" {
		c.ClobURL = v
	}
	if v := os.Getenv("GAMMA_URL"); v != "" {
		c.GammaURL = v
	}
	if v := os.Getenv("MARKET_WS_URL"); v != "" {
		c.MarketWSURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Policy converts the loaded configuration into the trading policy the
// core re-reads on every propose and resume.
func (c *Config) Policy() approval.Policy {
	return approval.Policy{
		TradingEnabled:  c.TradingEnabled,
		Sandboxed:       c.Sandboxed,
		NotionalLimit:   c.NotionalLimit,
		MarketAllowlist: c.MarketAllowlist,
		ApprovalTTL:     time.Duration(c.ApprovalTTL),
	}
}
