package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	coreerrors "kalafw/internal/core/errors"
	"kalafw/internal/logging"
)

// Backend names accepted in firewall.backend
const (
	BackendExec       = "exec"
	BackendGoIPTables = "go-iptables"
	BackendDryRun     = "dry-run"
)

// History store names accepted in history.backend
const (
	HistoryFile = "file"
	HistoryEtcd = "etcd"
)

// Config represents the main configuration structure
type Config struct {
	Firewall FirewallConfig `yaml:"firewall" json:"firewall"`
	Session  SessionConfig  `yaml:"session" json:"session"`
	History  HistoryConfig  `yaml:"history" json:"history"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Status   StatusConfig   `yaml:"status" json:"status"`
}

// FirewallConfig selects how firewall commands are executed
type FirewallConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Binary  string `yaml:"binary" json:"binary"`
	Sudo    bool   `yaml:"sudo" json:"sudo"`
}

// SessionConfig represents REPL session configuration
type SessionConfig struct {
	RulesFile              string `yaml:"rulesFile" json:"rulesFile"`
	HistoryFile            string `yaml:"historyFile" json:"historyFile"`
	SaveHistoryOnInterrupt bool   `yaml:"saveHistoryOnInterrupt" json:"saveHistoryOnInterrupt"`
	Prompt                 string `yaml:"prompt" json:"prompt"`
	NoColor                bool   `yaml:"noColor" json:"noColor"`
}

// HistoryConfig selects where command history is persisted
type HistoryConfig struct {
	Backend string     `yaml:"backend" json:"backend"`
	Etcd    EtcdConfig `yaml:"etcd" json:"etcd"`
}

// EtcdConfig holds etcd history store settings
type EtcdConfig struct {
	Endpoints   []string `yaml:"endpoints" json:"endpoints"`
	Key         string   `yaml:"key" json:"key"`
	DialTimeout string   `yaml:"dialTimeout" json:"dialTimeout"`
}

// LoggingConfig represents logger configuration
type LoggingConfig struct {
	Debug bool   `yaml:"debug" json:"debug"`
	File  string `yaml:"file" json:"file"`
}

// StatusConfig represents the optional read-only status endpoint
type StatusConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	Addr              string  `yaml:"addr" json:"addr"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// Default returns the configuration used when no config file exists
func Default() *Config {
	return &Config{
		Firewall: FirewallConfig{
			Backend: BackendExec,
			Binary:  "iptables",
			Sudo:    true,
		},
		Session: SessionConfig{
			HistoryFile: "kalaFirewall.txt",
			Prompt:      "kala@firewall $ ",
		},
		History: HistoryConfig{
			Backend: HistoryFile,
			Etcd: EtcdConfig{
				Key:         "/kalafw/history",
				DialTimeout: "5s",
			},
		},
		Status: StatusConfig{
			Addr:              "127.0.0.1:9181",
			RequestsPerSecond: 5,
			Burst:             10,
		},
	}
}

// Provider defines the interface for configuration providers
type Provider interface {
	Load() (*Config, error)
	Save(*Config) error
}

// FileProvider implements configuration loading from a YAML file
type FileProvider struct {
	configPath string
	logger     *logging.Logger
}

// NewFileProvider creates a new file-based configuration provider
func NewFileProvider(configPath string, logger *logging.Logger) *FileProvider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileProvider{
		configPath: configPath,
		logger:     logger,
	}
}

// Load loads configuration from the file, layered over Default. A missing
// file is not an error. The result is not validated: callers apply their
// overrides first and then call Validate.
func (p *FileProvider) Load() (*Config, error) {
	config := Default()

	configData, err := os.ReadFile(p.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		p.logger.Debug("Config file not found, using defaults", logging.String("path", p.configPath))
	case err != nil:
		return nil, coreerrors.NewConfigError("failed to read config file", err)
	default:
		if err := yaml.Unmarshal(configData, config); err != nil {
			return nil, coreerrors.NewInvalidConfigError(p.configPath, err)
		}
	}

	p.logger.LogConfigLoad(p.configPath, nil)
	return config, nil
}

// Save saves configuration to the file
func (p *FileProvider) Save(cfg *Config) error {
	validator := NewConfigValidator()
	if err := validator.Validate(cfg); err != nil {
		return err
	}

	configData, err := yaml.Marshal(cfg)
	if err != nil {
		return coreerrors.NewConfigError("failed to marshal config", err)
	}

	if dir := filepath.Dir(p.configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return coreerrors.NewConfigError("failed to create config directory", err)
		}
	}

	if err := os.WriteFile(p.configPath, configData, 0644); err != nil {
		return coreerrors.NewConfigError("failed to write config file", err)
	}

	p.logger.Info("Configuration saved successfully", logging.String("path", p.configPath))
	return nil
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string, logger *logging.Logger) (*Config, error) {
	provider := NewFileProvider(configPath, logger)
	return provider.Load()
}

// SaveConfig saves configuration to the specified path
func SaveConfig(cfg *Config, configPath string, logger *logging.Logger) error {
	provider := NewFileProvider(configPath, logger)
	return provider.Save(cfg)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validator := NewConfigValidator()
	return validator.Validate(c)
}
