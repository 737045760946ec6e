package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"kalafw/internal/core/errors"
)

// ValidationRule defines a configuration validation rule
type ValidationRule interface {
	Validate(cfg *Config) error
}

// ConfigValidator validates configuration using a set of rules
type ConfigValidator struct {
	rules []ValidationRule
}

// NewConfigValidator creates a new validator with default rules
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		rules: []ValidationRule{
			&FirewallConfigRule{},
			&SessionConfigRule{},
			&HistoryConfigRule{},
			&StatusConfigRule{},
		},
	}
}

// AddRule adds a custom validation rule
func (v *ConfigValidator) AddRule(rule ValidationRule) {
	v.rules = append(v.rules, rule)
}

// Validate validates the configuration using all rules
func (v *ConfigValidator) Validate(cfg *Config) error {
	for _, rule := range v.rules {
		if err := rule.Validate(cfg); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// FirewallConfigRule validates firewall backend configuration
type FirewallConfigRule struct{}

func (r *FirewallConfigRule) Validate(cfg *Config) error {
	switch cfg.Firewall.Backend {
	case BackendExec, BackendGoIPTables, BackendDryRun:
	default:
		return errors.NewValidationError("firewall.backend", fmt.Sprintf("unsupported backend: %s", cfg.Firewall.Backend))
	}

	if cfg.Firewall.Backend == BackendExec && strings.TrimSpace(cfg.Firewall.Binary) == "" {
		return errors.NewValidationError("firewall.binary", "binary is required for the exec backend")
	}

	return nil
}

// SessionConfigRule validates REPL session configuration
type SessionConfigRule struct{}

func (r *SessionConfigRule) Validate(cfg *Config) error {
	if strings.ContainsAny(cfg.Session.Prompt, "\r\n") {
		return errors.NewValidationError("session.prompt", "prompt must be a single line")
	}
	return nil
}

// HistoryConfigRule validates history store configuration
type HistoryConfigRule struct{}

func (r *HistoryConfigRule) Validate(cfg *Config) error {
	switch cfg.History.Backend {
	case HistoryFile:
		return nil
	case HistoryEtcd:
	default:
		return errors.NewValidationError("history.backend", fmt.Sprintf("unsupported history backend: %s", cfg.History.Backend))
	}

	if len(cfg.History.Etcd.Endpoints) == 0 {
		return errors.NewValidationError("history.etcd.endpoints", "at least one endpoint is required for the etcd backend")
	}
	for i, ep := range cfg.History.Etcd.Endpoints {
		if strings.TrimSpace(ep) == "" {
			return errors.NewValidationError(fmt.Sprintf("history.etcd.endpoints[%d]", i), "endpoint must not be empty")
		}
	}
	if cfg.History.Etcd.Key == "" {
		return errors.NewValidationError("history.etcd.key", "key is required")
	}
	if cfg.History.Etcd.DialTimeout != "" {
		if _, err := time.ParseDuration(cfg.History.Etcd.DialTimeout); err != nil {
			return errors.NewValidationError("history.etcd.dialTimeout", "invalid duration format")
		}
	}

	return nil
}

// StatusConfigRule validates the status endpoint configuration
type StatusConfigRule struct{}

func (r *StatusConfigRule) Validate(cfg *Config) error {
	if !cfg.Status.Enabled {
		return nil
	}

	if _, _, err := net.SplitHostPort(cfg.Status.Addr); err != nil {
		return errors.NewValidationError("status.addr", "address must be host:port")
	}
	if cfg.Status.RequestsPerSecond <= 0 {
		return errors.NewValidationError("status.requestsPerSecond", "rate must be positive")
	}
	if cfg.Status.Burst <= 0 {
		return errors.NewValidationError("status.burst", "burst must be positive")
	}

	return nil
}
