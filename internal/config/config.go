// Package config loads smcplan settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jwtly10/smcplan/internal/backtest"
	"github.com/jwtly10/smcplan/internal/indicator"
	"github.com/jwtly10/smcplan/internal/planner"
	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/jwtly10/smcplan/internal/structure"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Instrument string `yaml:"instrument"`
	Timeframe  string `yaml:"timeframe"`
	// Bars is how much history each analysis fetches.
	Bars int `yaml:"bars"`

	Account struct {
		Balance     float64 `yaml:"balance"`
		RiskPercent float64 `yaml:"risk_percent"`
		// PipValue is the account-currency value of one pip per unit. Zero sizes in price units.
		PipValue      float64 `yaml:"pip_value"`
		OpenPositions int     `yaml:"open_positions"`
	} `yaml:"account"`

	Risk       risk.Parameters   `yaml:"risk"`
	Sizing     risk.PolicyConfig `yaml:"sizing"`
	Detector   structure.Config  `yaml:"detector"`
	Indicators indicator.Params  `yaml:"indicators"`
	Planner    struct {
		planner.Config `yaml:",inline"`
		Profile        planner.Profile `yaml:"profile"`
	} `yaml:"planner"`
	Backtest backtest.Config `yaml:"backtest"`

	OANDA struct {
		AccountID string `yaml:"account_id"`
		APIKey    string `yaml:"api_key"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"oanda"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		AnalyzeCron string `yaml:"analyze_cron"`
	} `yaml:"schedule"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	DebugTopics string `yaml:"debug_topics"`
}

// Default returns a config with every section at its package default.
func Default() *Config {
	cfg := &Config{
		Instrument: "EUR_USD",
		Timeframe:  "H1",
		Bars:       200,
		Risk:       risk.DefaultParameters(),
		Sizing:     risk.DefaultPolicyConfig(),
		Detector:   structure.DefaultConfig(),
		Indicators: indicator.DefaultParams(),
		Backtest:   backtest.DefaultConfig(),
	}
	cfg.Account.Balance = 10000
	cfg.Account.RiskPercent = 1
	cfg.Planner.Config = planner.DefaultConfig()
	cfg.Database.SQLitePath = "data/smcplan.db"
	cfg.Schedule.AnalyzeCron = "0 1 * * * *"
	cfg.Metrics.Addr = ":9102"
	return cfg
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; the defaults are used instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("OANDA_ACCOUNT_ID"); v != "" {
		cfg.OANDA.AccountID = v
	}
	if v := os.Getenv("OANDA_API_KEY"); v != "" {
		cfg.OANDA.APIKey = v
	}
	if v := os.Getenv("OANDA_API_URL"); v != "" {
		cfg.OANDA.BaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DEBUG_TOPICS"); v != "" {
		cfg.DebugTopics = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("RISK_MAX_PERCENT"); v != "" {
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse RISK_MAX_PERCENT %q: %w", v, err)
		}
		cfg.Risk.MaxRiskPercent = pct
	}

	return cfg, nil
}

// Validate checks every section. OANDA credentials are checked where they are used.
func (c *Config) Validate() error {
	if c.Instrument == "" {
		return fmt.Errorf("instrument is required")
	}
	if c.Timeframe == "" {
		return fmt.Errorf("timeframe is required")
	}
	if c.Bars <= 0 {
		return fmt.Errorf("bars must be positive")
	}
	if c.Indicators.ATRPeriod <= 0 {
		return fmt.Errorf("indicators.atr_period must be positive")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Account.RiskPercent < 0 || c.Account.PipValue < 0 || c.Account.OpenPositions < 0 {
		return fmt.Errorf("account values must not be negative")
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if _, err := risk.NewPolicy(c.Sizing); err != nil {
		return fmt.Errorf("sizing: %w", err)
	}
	if _, _, err := c.Analysis(); err != nil {
		return err
	}
	return c.Backtest.Validate()
}

// Analysis returns the detector and planner settings with the planner profile applied.
func (c *Config) Analysis() (structure.Config, planner.Config, error) {
	det, plan := c.Detector, c.Planner.Config
	if c.Planner.Profile != "" {
		var err error
		if det, plan, err = planner.ForProfile(c.Planner.Profile, det, plan); err != nil {
			return structure.Config{}, planner.Config{}, err
		}
	}
	if err := det.Validate(); err != nil {
		return structure.Config{}, planner.Config{}, err
	}
	if err := plan.Validate(); err != nil {
		return structure.Config{}, planner.Config{}, err
	}
	return det, plan, nil
}
