package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"SectorCycles/internal/model"
)

// PeriodConfig is a named date window as written in YAML.
type PeriodConfig struct {
	Name  string `yaml:"name" validate:"required"`
	Start string `yaml:"start" validate:"required,datetime=2006-01-02"`
	End   string `yaml:"end" validate:"required,datetime=2006-01-02"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port int `yaml:"port" validate:"min=1,max=65535"`
		// RefreshToken enables POST /api/refresh for callers presenting it as
		// a bearer token.
		RefreshToken string `yaml:"refresh_token"`
	} `yaml:"server"`
	DataSource struct {
		Provider  string `yaml:"provider" validate:"oneof=yahoo financego alpaca rest mock"`
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		Feed      string `yaml:"feed"`
	} `yaml:"data_source"`
	Fetch struct {
		MaxWorkers      int `yaml:"max_workers" validate:"min=0"`
		RateLimitPerMin int `yaml:"rate_limit_per_min" validate:"min=0"`
	} `yaml:"fetch"`
	Periods       []PeriodConfig `yaml:"periods" validate:"required,min=1,dive"`
	Tickers       []string       `yaml:"tickers" validate:"required,min=1,dive,required"`
	DefaultPeriod string         `yaml:"default_period" validate:"required"`
	Schedule      struct {
		RefreshCron string `yaml:"refresh_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresURL string `yaml:"postgres_url"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy string `yaml:"proxy"`
}

// DefaultPeriods are the macroeconomic cycle windows used when none are configured.
var DefaultPeriods = []PeriodConfig{
	{Name: "trough", Start: "2008-10-01", End: "2009-06-01"},
	{Name: "expansion", Start: "2012-01-01", End: "2015-01-01"},
	{Name: "peak", Start: "2019-06-01", End: "2020-02-01"},
	{Name: "contraction", Start: "2007-12-01", End: "2008-10-01"},
	{Name: "all_data", Start: "2005-01-01", End: "2024-06-01"},
}

// DefaultTickers are the GICS sector ETFs.
var DefaultTickers = []string{
	"XLB", // materials
	"XLI", // industrials
	"XLF", // financials
	"XLK", // information technology
	"XLY", // consumer discretionary
	"XLP", // consumer staples
	"XLE", // energy
	"XLV", // health care
	"VOX", // communication services
	"XLU", // utilities
	"IYR", // real estate
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REFRESH_TOKEN"); v != "" {
		cfg.Server.RefreshToken = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.DataSource.APISecret = v
	}
	// Standard Alpaca env vars win over the generic ones.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.DataSource.APISecret = v
	}
	if v := os.Getenv("FETCH_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.MaxWorkers = n
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("REFRESH_CRON"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8050
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
	}
	if cfg.Fetch.MaxWorkers == 0 {
		cfg.Fetch.MaxWorkers = 1
	}
	if len(cfg.Periods) == 0 {
		cfg.Periods = append([]PeriodConfig(nil), DefaultPeriods...)
	}
	if len(cfg.Tickers) == 0 {
		cfg.Tickers = append([]string(nil), DefaultTickers...)
	}
	if cfg.DefaultPeriod == "" {
		cfg.DefaultPeriod = "all_data"
	}
	if cfg.Database.SQLitePath == "" && cfg.Database.PostgresURL == "" {
		cfg.Database.SQLitePath = "data/sector_cycles.db"
	}
}

// ConfigError reports configuration the pipeline must not run with.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}

var validate = validator.New()

// Validate checks field constraints and period/ticker consistency.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{Field: fe.Namespace(), Msg: fmt.Sprintf("failed %q constraint (value %v)", fe.Tag(), fe.Value())}
		}
		return &ConfigError{Field: "config", Msg: err.Error()}
	}

	if _, err := c.ResolvePeriods(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Tickers))
	for _, t := range c.Tickers {
		if seen[t] {
			return &ConfigError{Field: "tickers", Msg: fmt.Sprintf("duplicate ticker %q", t)}
		}
		seen[t] = true
	}

	found := false
	for _, p := range c.Periods {
		if p.Name == c.DefaultPeriod {
			found = true
			break
		}
	}
	if !found {
		return &ConfigError{Field: "default_period", Msg: fmt.Sprintf("%q is not a configured period", c.DefaultPeriod)}
	}

	switch c.DataSource.Provider {
	case "rest":
		if c.DataSource.BaseURL == "" {
			return &ConfigError{Field: "data_source.base_url", Msg: "required for the rest provider"}
		}
	case "alpaca":
		if c.DataSource.APIKey == "" || c.DataSource.APISecret == "" {
			return &ConfigError{Field: "data_source.api_key", Msg: "alpaca provider needs api_key and api_secret"}
		}
	}
	return nil
}

// reservedPeriodNames collide with chat commands.
var reservedPeriodNames = map[string]bool{"status": true, "failures": true, "refresh": true}

// ResolvePeriods parses the configured windows in order. Names must be
// unique, usable as a URL path segment and chat command, and every window
// must satisfy start < end.
func (c *Config) ResolvePeriods() ([]model.Period, error) {
	out := make([]model.Period, 0, len(c.Periods))
	names := make(map[string]bool, len(c.Periods))
	for i, pc := range c.Periods {
		field := fmt.Sprintf("periods[%d]", i)
		if pc.Name == "" {
			return nil, &ConfigError{Field: field + ".name", Msg: "required"}
		}
		if strings.ContainsAny(pc.Name, "/@?# \t") {
			return nil, &ConfigError{Field: field + ".name", Msg: fmt.Sprintf("period %q must not contain '/', '@', '?', '#' or whitespace", pc.Name)}
		}
		if reservedPeriodNames[pc.Name] {
			return nil, &ConfigError{Field: field + ".name", Msg: fmt.Sprintf("period %q is a reserved command name", pc.Name)}
		}
		if names[pc.Name] {
			return nil, &ConfigError{Field: field + ".name", Msg: fmt.Sprintf("duplicate period %q", pc.Name)}
		}
		names[pc.Name] = true

		start, err := model.ParseDate(pc.Start)
		if err != nil {
			return nil, &ConfigError{Field: field + ".start", Msg: err.Error()}
		}
		end, err := model.ParseDate(pc.End)
		if err != nil {
			return nil, &ConfigError{Field: field + ".end", Msg: err.Error()}
		}
		if !start.Before(end) {
			return nil, &ConfigError{Field: field, Msg: fmt.Sprintf("start %s must be before end %s", pc.Start, pc.End)}
		}
		out = append(out, model.Period{Name: pc.Name, Start: start, End: end})
	}
	return out, nil
}
