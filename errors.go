// errors.go: structured error definitions for the extension lifecycle system
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	stderrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for the extension host
const (
	// Extension lifecycle errors (1000-1099)
	ErrCodeExtensionNotFound      = "EXT_1001"
	ErrCodeExtensionAlreadyLoaded = "EXT_1002"
	ErrCodeExtensionNotLoaded     = "EXT_1003"
	ErrCodeNoEntryPoint           = "EXT_1004"
	ErrCodeExtensionFailed        = "EXT_1005"

	// Directory scanner errors (1100-1199)
	ErrCodeInvalidPath = "SCAN_1101"

	// Change watcher errors (1200-1299)
	ErrCodeWatcherError = "WATCH_1201"

	// Configuration errors (1300-1399)
	ErrCodeConfigParseError      = "CONFIG_1301"
	ErrCodeConfigValidationError = "CONFIG_1302"
	ErrCodeConfigWatcherError    = "CONFIG_1303"

	// Scheduler errors (1400-1499)
	ErrCodeScheduleError = "SCHED_1401"

	// Telegram transport errors (1500-1599)
	ErrCodeTelegramAPIError = "TG_1501"

	// Mail transport errors (1600-1699)
	ErrCodeMailFetchError = "MAIL_1601"
)

// Extension lifecycle error constructors

func NewExtensionNotFoundError(key string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeExtensionNotFound, "Extension not found").
			WithUserMessage("The requested extension does not resolve to a loadable unit").
			WithContext("extension_key", key).
			WithSeverity("error")
	}
	return errors.New(ErrCodeExtensionNotFound, "Extension not found").
		WithUserMessage("The requested extension does not resolve to a loadable unit").
		WithContext("extension_key", key).
		WithSeverity("error")
}

func NewExtensionAlreadyLoadedError(key string) *errors.Error {
	return errors.New(ErrCodeExtensionAlreadyLoaded, "Extension already loaded").
		WithUserMessage("The extension is already loaded; unload it before loading again").
		WithContext("extension_key", key).
		WithSeverity("error")
}

func NewExtensionNotLoadedError(key string) *errors.Error {
	return errors.New(ErrCodeExtensionNotLoaded, "Extension not loaded").
		WithUserMessage("The extension is not present in the registry").
		WithContext("extension_key", key).
		WithSeverity("error")
}

func NewNoEntryPointError(key string) *errors.Error {
	return errors.New(ErrCodeNoEntryPoint, "Extension has no entry point").
		WithUserMessage("The extension does not expose a 'Setup' entry point").
		WithContext("extension_key", key).
		WithSeverity("error")
}

func NewExtensionFailedError(key string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeExtensionFailed, "Extension failed").
		WithUserMessage("The extension raised an error during execution or setup").
		WithContext("extension_key", key).
		WithSeverity("error")
}

// Directory scanner error constructors

func NewInvalidPathError(path string, message string) *errors.Error {
	return errors.New(ErrCodeInvalidPath, "Invalid extension path: "+message).
		WithUserMessage("The extension root path is outside the allowed boundary or not a directory").
		WithContext("path", path).
		WithSeverity("error")
}

// Change watcher error constructors

func NewWatcherError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeWatcherError, "Watcher error: "+message).
		WithUserMessage("Extension change watching failed").
		WithSeverity("error")
}

// Configuration error constructors

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParseError, "Configuration parse error").
		WithUserMessage("Failed to parse host configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string) *errors.Error {
	return errors.New(ErrCodeConfigValidationError, "Configuration validation error: "+message).
		WithUserMessage("Host configuration validation failed").
		WithSeverity("error")
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigWatcherError, "Configuration watcher error: "+message).
		WithUserMessage("Host configuration monitoring failed").
		WithSeverity("error")
}

// Scheduler error constructors

func NewScheduleError(owner string, message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeScheduleError, "Schedule error: "+message).
		WithUserMessage("Background job scheduling failed").
		WithContext("owner_key", owner).
		WithSeverity("error")
}

// Transport error constructors

func NewTelegramAPIError(method string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeTelegramAPIError, "Telegram API error").
		WithUserMessage("Telegram Bot API request failed").
		WithContext("method", method).
		WithSeverity("error").
		AsRetryable()
}

func NewMailFetchError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeMailFetchError, "Mail fetch error: "+message).
		WithUserMessage("Mailbox polling failed").
		WithSeverity("error").
		AsRetryable()
}

// hasErrorCode reports whether err carries the given structured error code
// anywhere in its chain.
func hasErrorCode(err error, code string) bool {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.ErrorCode() == errors.ErrorCode(code)
	}
	return false
}

// IsExtensionNotFound reports whether err is an ExtensionNotFound error.
func IsExtensionNotFound(err error) bool {
	return hasErrorCode(err, ErrCodeExtensionNotFound)
}

// IsExtensionAlreadyLoaded reports whether err is an ExtensionAlreadyLoaded error.
func IsExtensionAlreadyLoaded(err error) bool {
	return hasErrorCode(err, ErrCodeExtensionAlreadyLoaded)
}

// IsExtensionNotLoaded reports whether err is an ExtensionNotLoaded error.
// Reload uses this to treat an unloaded target like a plain load.
func IsExtensionNotLoaded(err error) bool {
	return hasErrorCode(err, ErrCodeExtensionNotLoaded)
}

// IsNoEntryPoint reports whether err indicates a unit without a Setup entry point.
func IsNoEntryPoint(err error) bool {
	return hasErrorCode(err, ErrCodeNoEntryPoint)
}

// IsExtensionFailed reports whether err wraps a failure raised by extension code.
func IsExtensionFailed(err error) bool {
	return hasErrorCode(err, ErrCodeExtensionFailed)
}

// IsInvalidPath reports whether err is a scanner path-boundary violation.
func IsInvalidPath(err error) bool {
	return hasErrorCode(err, ErrCodeInvalidPath)
}
