package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for talentledger.
// Values come from environment variables, optionally layered over a YAML
// file whose keys are the lower-case variable names.
type Config struct {
	DatabaseURL string `mapstructure:"database_url" json:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path" json:"sqlite_path,omitempty"`
	RedisAddr   string `mapstructure:"redis_addr" json:"redis_addr,omitempty"`
	HTTPAddr    string `mapstructure:"http_addr" json:"http_addr"`

	DBMaxOpenConns    int           `mapstructure:"db_max_open_conns" json:"db_max_open_conns"`
	DBMaxIdleConns    int           `mapstructure:"db_max_idle_conns" json:"db_max_idle_conns"`
	DBConnMaxLifetime time.Duration `mapstructure:"db_conn_max_lifetime" json:"-"`
	DBConnMaxIdleTime time.Duration `mapstructure:"db_conn_max_idle_time" json:"-"`

	HTTPShutdownTimeout time.Duration `mapstructure:"http_shutdown_timeout" json:"-"`

	MetricsEnabled bool   `mapstructure:"metrics_enabled" json:"metrics_enabled"`
	MetricsPath    string `mapstructure:"metrics_path" json:"metrics_path"`

	// LedgerSettleDelay is how long after the last completion signal the
	// ledger waits before reloading.
	LedgerSettleDelay time.Duration `mapstructure:"ledger_settle_delay" json:"-"`
	// LedgerResyncSchedule is an optional cron expression for periodic
	// full reloads. Empty disables resync.
	LedgerResyncSchedule string        `mapstructure:"ledger_resync_schedule" json:"ledger_resync_schedule,omitempty"`
	LedgerTimezone       string        `mapstructure:"ledger_timezone" json:"ledger_timezone"`
	LedgerSessionTTL     time.Duration `mapstructure:"ledger_session_ttl" json:"-"`

	WorkflowTimeout         time.Duration `mapstructure:"workflow_timeout" json:"-"`
	WorkflowSigningSecret   string        `mapstructure:"workflow_signing_secret" json:"workflow_signing_secret,omitempty"`
	WorkflowDefaultEndpoint string        `mapstructure:"workflow_default_endpoint" json:"workflow_default_endpoint,omitempty"`
	ContactWebhookURL       string        `mapstructure:"contact_webhook_url" json:"contact_webhook_url,omitempty"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold" json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown  time.Duration `mapstructure:"circuit_breaker_cooldown" json:"-"`

	MailAPIURL string `mapstructure:"mail_api_url" json:"mail_api_url"`
	MailAPIKey string `mapstructure:"mail_api_key" json:"mail_api_key,omitempty"`
	MailFrom   string `mapstructure:"mail_from" json:"mail_from"`

	GeminiAPIKey string `mapstructure:"gemini_api_key" json:"gemini_api_key,omitempty"`
	GeminiModel  string `mapstructure:"gemini_model" json:"gemini_model"`

	// SignalEndpoint is the talentledger server base URL the worker posts
	// completion signals to.
	SignalEndpoint string `mapstructure:"signal_endpoint" json:"signal_endpoint,omitempty"`

	LogJSON  bool `mapstructure:"log_json" json:"log_json"`
	LogDebug bool `mapstructure:"log_debug" json:"log_debug"`
}

var defaults = map[string]any{
	"database_url":              "",
	"sqlite_path":               "",
	"redis_addr":                "",
	"http_addr":                 "",
	"db_max_open_conns":         25,
	"db_max_idle_conns":         5,
	"db_conn_max_lifetime":      "30m",
	"db_conn_max_idle_time":     "5m",
	"http_shutdown_timeout":     "10s",
	"metrics_enabled":           false,
	"metrics_path":              "/metrics",
	"ledger_settle_delay":       "1s",
	"ledger_resync_schedule":    "",
	"ledger_timezone":           "UTC",
	"ledger_session_ttl":        "30m",
	"workflow_timeout":          "30s",
	"workflow_signing_secret":   "",
	"workflow_default_endpoint": "",
	"contact_webhook_url":       "",
	"circuit_breaker_threshold": 5,
	"circuit_breaker_cooldown":  "2m",
	"mail_api_url":              "https://api.resend.com/emails",
	"mail_api_key":              "",
	"mail_from":                 "TalentLedger <noreply@talentledger.dev>",
	"gemini_api_key":            "",
	"gemini_model":              "gemini-2.5-flash",
	"signal_endpoint":           "",
	"log_json":                  false,
	"log_debug":                 false,
	"port":                      "",
}

// New returns a viper instance with every key defaulted and bound to its
// upper-case environment variable. Callers may bind flags before Load.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from the environment and, when path is not
// empty, from the YAML file at path. Durations that do not parse are
// returned as ValidationErrors.
func Load(path string) (Config, error) {
	return LoadFrom(New(), path)
}

func LoadFrom(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := checkDurations(v); err != nil {
		return Config{}, err
	}

	// viper's default decode hook turns duration strings into time.Duration.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := v.GetString("port"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}

	return cfg, nil
}

// checkDurations reports every unparseable duration at once, named by its
// environment variable, instead of the decoder's first-failure error.
func checkDurations(v *viper.Viper) error {
	var errs ValidationErrors
	for _, d := range (Config{}).durations() {
		raw := v.GetString(d.key)
		if _, err := time.ParseDuration(raw); err != nil {
			errs = append(errs, ValidationError{
				Field:   strings.ToUpper(d.key),
				Message: fmt.Sprintf("invalid duration %q", raw),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type durationField struct {
	key   string
	value time.Duration
}

func (c Config) durations() []durationField {
	return []durationField{
		{"db_conn_max_lifetime", c.DBConnMaxLifetime},
		{"db_conn_max_idle_time", c.DBConnMaxIdleTime},
		{"http_shutdown_timeout", c.HTTPShutdownTimeout},
		{"ledger_settle_delay", c.LedgerSettleDelay},
		{"ledger_session_ttl", c.LedgerSessionTTL},
		{"workflow_timeout", c.WorkflowTimeout},
		{"circuit_breaker_cooldown", c.CircuitBreakerCooldown},
	}
}

// MaskedJSON returns the configuration as JSON with secrets masked.
// Durations are rendered in time.Duration notation.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.DatabaseURL = maskSecret(c.DatabaseURL)
	masked.WorkflowSigningSecret = maskSecret(c.WorkflowSigningSecret)
	masked.MailAPIKey = maskSecret(c.MailAPIKey)
	masked.GeminiAPIKey = maskSecret(c.GeminiAPIKey)

	raw, err := json.Marshal(masked)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	for _, d := range c.durations() {
		out[d.key] = d.value.String()
	}
	return json.MarshalIndent(out, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}
