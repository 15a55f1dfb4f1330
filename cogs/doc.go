// doc.go: package documentation and package marker for the extension scanner
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

// Package cogs holds the bot's built-in extensions.
//
// Each extension lives in its own file and self-registers a unit builder
// from init, keyed by its file name without the suffix. The directory
// doubles as the host's extension root: the scanner discovers the same keys
// from the files that the builders registered at link time, and the change
// watcher maps edits to those files back to reloads of the matching keys.
package cogs
