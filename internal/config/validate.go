package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/djlord-it/talentledger/internal/cron"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		add("DATABASE_URL", "required unless SQLITE_PATH is set")
	}
	if cfg.DatabaseURL != "" && cfg.SQLitePath != "" {
		add("SQLITE_PATH", "must not be set together with DATABASE_URL")
	}

	for _, d := range cfg.durations() {
		if d.value <= 0 {
			add(strings.ToUpper(d.key), "must be positive")
		}
	}

	if cfg.LedgerResyncSchedule != "" {
		if _, err := cron.NewParser().Parse(cfg.LedgerResyncSchedule, cfg.LedgerTimezone); err != nil {
			add("LEDGER_RESYNC_SCHEDULE", err.Error())
		}
	}

	if cfg.DBMaxOpenConns <= 0 {
		add("DB_MAX_OPEN_CONNS", "must be positive")
	}
	if cfg.DBMaxIdleConns < 0 {
		add("DB_MAX_IDLE_CONNS", "must not be negative")
	}
	if cfg.CircuitBreakerThreshold < 0 {
		add("CIRCUIT_BREAKER_THRESHOLD", "must not be negative (0 disables)")
	}
	if !strings.HasPrefix(cfg.MetricsPath, "/") {
		add("METRICS_PATH", "must start with /")
	}

	for _, u := range []struct{ field, raw string }{
		{"WORKFLOW_DEFAULT_ENDPOINT", cfg.WorkflowDefaultEndpoint},
		{"CONTACT_WEBHOOK_URL", cfg.ContactWebhookURL},
		{"MAIL_API_URL", cfg.MailAPIURL},
		{"SIGNAL_ENDPOINT", cfg.SignalEndpoint},
	} {
		if u.raw == "" {
			continue
		}
		if err := validateHTTPURL(u.raw); err != nil {
			add(u.field, err.Error())
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
