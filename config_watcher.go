// config_watcher.go: live re-application of watchable host settings
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"context"
	"time"

	"github.com/agilira/argus"
)

// ConfigWatcher monitors the host configuration file and re-applies the
// settings that are safe to change at runtime: the watch toggle and the
// watcher debounce window. Structural settings (extension root, mail
// account, HTTP address) keep their startup values; changing those takes a
// restart.
type ConfigWatcher struct {
	host    *Host
	path    string
	logger  Logger
	watcher *argus.Watcher
}

// NewConfigWatcher creates a watcher over the given configuration file.
func NewConfigWatcher(host *Host, path string) *ConfigWatcher {
	return &ConfigWatcher{
		host:   host,
		path:   path,
		logger: host.Logger(),
	}
}

// Start begins monitoring the configuration file.
func (cw *ConfigWatcher) Start() error {
	watcher := argus.New(argus.Config{
		PollInterval:         2 * time.Second,
		OptimizationStrategy: argus.OptimizationAuto,
	})

	if err := watcher.Watch(cw.path, cw.onChange); err != nil {
		return NewConfigWatcherError("failed to watch config file", err)
	}
	if err := watcher.Start(); err != nil {
		return NewConfigWatcherError("failed to start config watcher", err)
	}

	cw.watcher = watcher
	cw.logger.Info("Configuration watcher has been started", "path", cw.path)
	return nil
}

// Stop terminates configuration monitoring.
func (cw *ConfigWatcher) Stop() error {
	if cw.watcher == nil {
		return nil
	}
	if err := cw.watcher.Stop(); err != nil {
		return NewConfigWatcherError("failed to stop config watcher", err)
	}
	cw.watcher = nil
	cw.logger.Info("Configuration watcher has been stopped")
	return nil
}

func (cw *ConfigWatcher) onChange(event argus.ChangeEvent) {
	if event.IsDelete {
		cw.logger.Warn("Configuration file was deleted, keeping current settings", "path", event.Path)
		return
	}

	cfg, err := LoadHostConfig(cw.path)
	if err != nil {
		// A broken edit must not tear down the running host.
		cw.logger.Error("Configuration reload failed, keeping current settings", "path", cw.path, "error", err)
		return
	}

	switch running := cw.host.Watcher() != nil; {
	case cfg.Watch && !running:
		if err := cw.host.EnableWatch(context.Background()); err != nil {
			cw.logger.Error("Failed to enable extension watching", "error", err)
		} else {
			cw.logger.Info("Extension watching enabled")
		}
	case !cfg.Watch && running:
		cw.host.DisableWatch()
		cw.logger.Info("Extension watching disabled")
	}

	if w := cw.host.Watcher(); w != nil && cfg.DebounceWindow != w.Debounce() {
		w.SetDebounce(cfg.DebounceWindow)
		cw.logger.Info("Debounce window updated", "debounce", cfg.DebounceWindow)
	}
	if cfg.LogLevel != cw.host.Config().LogLevel {
		cw.logger.Info("Log level change requires a restart to take effect", "requested", cfg.LogLevel)
	}
}
