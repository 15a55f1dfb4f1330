// doc.go: package documentation
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

// Package mailbot is a Telegram bot host with a hot-reloadable extension
// system.
//
// The host owns a routing tree of update handlers and an extension registry.
// Extensions ("cogs") are self-registering units of behavior: each one
// exposes a Setup entry point that registers handlers, background jobs and
// HTTP routes through a key-scoped Scope, and an optional Teardown. The host
// can load, unload and reload extensions at runtime without restarting; a
// filesystem watcher over the extension source directory turns edits into
// debounced hot reloads during development.
//
// Everything an extension registers is tagged with its key, so unloading is
// a mechanical walk: tear down, strip every owned handler from the tree,
// drop the registry record, invalidate the cached unit.
package mailbot
