// config_test.go: host configuration tests
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHostConfig(t *testing.T) {
	cfg := DefaultHostConfig()

	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.Equal(t, "cogs", cfg.ExtensionRoot)
	assert.Equal(t, ".go", cfg.ModuleSuffix)
	assert.Equal(t, "doc.go", cfg.PackageMarker)
	assert.Equal(t, 500*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, 995, cfg.Mail.Port)
	assert.True(t, cfg.Mail.TLS)
	assert.NoError(t, cfg.Validate())
}

func TestHostConfigValidateMode(t *testing.T) {
	cfg := DefaultHostConfig()
	cfg.Mode = "staging"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
}

func TestHostConfigValidateMail(t *testing.T) {
	cfg := DefaultHostConfig()
	cfg.Mail.Enabled = true

	err := cfg.Validate()
	require.Error(t, err, "enabled mail requires host, username and group")

	cfg.Mail.Host = "pop.example.org"
	cfg.Mail.Username = "bot@example.org"
	cfg.Mail.GroupID = -100123
	assert.NoError(t, cfg.Validate())
}

func TestLoadHostConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: production
extension_root: extensions
watch: true
debounce_window: 250ms
http_addr: ":8080"
mail:
  enabled: true
  host: pop.example.org
  username: bot@example.org
  password_env: MAIL_PASSWORD
  group_id: -100123456
  thread_id: 42
  check_interval: 1m
`), 0o644))

	cfg, err := LoadHostConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.Equal(t, "extensions", cfg.ExtensionRoot)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, int64(-100123456), cfg.Mail.GroupID)
	assert.Equal(t, time.Minute, cfg.Mail.CheckInterval)
	assert.Equal(t, 995, cfg.Mail.Port, "defaults fill in unset fields")
}

func TestLoadHostConfigMissingFile(t *testing.T) {
	_, err := LoadHostConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, hasErrorCode(err, ErrCodeConfigParseError))
}

func TestLoadHostConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: [unclosed"), 0o644))

	_, err := LoadHostConfig(path)
	require.Error(t, err)
	assert.True(t, hasErrorCode(err, ErrCodeConfigParseError))
}

func TestScanOptionsFromConfig(t *testing.T) {
	cfg := DefaultHostConfig()
	cfg.ModuleSuffix = ".ext"
	cfg.PackageMarker = "__init__.ext"

	opts := cfg.ScanOptions()
	assert.Equal(t, ".ext", opts.Suffix)
	assert.Equal(t, "__init__.ext", opts.PackageMarker)
}
