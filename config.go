// config.go: host configuration loading, defaults and validation
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Operation modes for the bot host.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// HostConfig is the static configuration of the bot host.
//
// DebounceWindow and Watch are also honored by the runtime config watcher,
// which re-applies them live when the config file changes.
type HostConfig struct {
	// Mode is "production" or "development"; it selects the bot token.
	Mode string `json:"mode" yaml:"mode"`

	// Version is reported in the startup banner and /start replies.
	Version string `json:"version" yaml:"version"`

	// ExtensionRoot is the directory scanned for extensions at startup and
	// watched for changes afterwards.
	ExtensionRoot string `json:"extension_root" yaml:"extension_root"`

	// ModuleSuffix and PackageMarker configure the directory scanner.
	ModuleSuffix  string `json:"module_suffix" yaml:"module_suffix"`
	PackageMarker string `json:"package_marker" yaml:"package_marker"`

	// Watch enables filesystem-driven hot reload of extensions.
	Watch bool `json:"watch" yaml:"watch"`

	// DebounceWindow is the minimum interval between accepted change events
	// for the same path.
	DebounceWindow time.Duration `json:"debounce_window" yaml:"debounce_window"`

	// HTTPAddr is the listen address of the shared HTTP application
	// extensions register routes into. Empty disables it.
	HTTPAddr string `json:"http_addr" yaml:"http_addr"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level"`
	LogFile  string `json:"log_file" yaml:"log_file"`

	// Mail configures the mail-forwarder extension.
	Mail MailConfig `json:"mail" yaml:"mail"`
}

// MailConfig configures mailbox polling for the mail-forwarder extension.
// The account password is taken from the environment variable named by
// PasswordEnv, never from the file itself.
type MailConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	Host          string        `json:"host" yaml:"host"`
	Port          int           `json:"port" yaml:"port"`
	TLS           bool          `json:"tls" yaml:"tls"`
	Username      string        `json:"username" yaml:"username"`
	PasswordEnv   string        `json:"password_env" yaml:"password_env"`
	GroupID       int64         `json:"group_id" yaml:"group_id"`
	ThreadID      int64         `json:"thread_id" yaml:"thread_id"`
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`
}

// DefaultHostConfig returns the configuration used when no file is given.
func DefaultHostConfig() HostConfig {
	cfg := HostConfig{}
	cfg.setDefaults()
	return cfg
}

func (c *HostConfig) setDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDevelopment
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.ExtensionRoot == "" {
		c.ExtensionRoot = "cogs"
	}
	if c.ModuleSuffix == "" {
		c.ModuleSuffix = ".go"
	}
	if c.PackageMarker == "" {
		c.PackageMarker = "doc.go"
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 500 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Mail.CheckInterval <= 0 {
		c.Mail.CheckInterval = 30 * time.Second
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 995
		c.Mail.TLS = true
	}
}

// Validate checks the configuration for contradictions. Defaults are applied
// first, so a zero value is always valid.
func (c *HostConfig) Validate() error {
	c.setDefaults()

	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return NewConfigValidationError("mode must be production or development")
	}
	if c.DebounceWindow < 0 {
		return NewConfigValidationError("debounce_window must not be negative")
	}
	if c.Mail.Enabled {
		if c.Mail.Host == "" {
			return NewConfigValidationError("mail.host is required when mail is enabled")
		}
		if c.Mail.Username == "" {
			return NewConfigValidationError("mail.username is required when mail is enabled")
		}
		if c.Mail.GroupID == 0 {
			return NewConfigValidationError("mail.group_id is required when mail is enabled")
		}
	}
	return nil
}

// ScanOptions derives the scanner options from the config.
func (c *HostConfig) ScanOptions() ScanOptions {
	return ScanOptions{Suffix: c.ModuleSuffix, PackageMarker: c.PackageMarker}
}

// LoadHostConfig reads and validates a YAML host configuration file.
func LoadHostConfig(path string) (HostConfig, error) {
	var cfg HostConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, NewConfigParseError(path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, NewConfigParseError(path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
