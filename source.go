// source.go: pluggable code source resolving extension keys to loadable units
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"strings"
	"sync"
)

// Unit is a loaded extension code unit: its entry points and nothing else.
//
// Setup is required; a unit without it fails the load with NoEntryPointError.
// Teardown is optional and invoked best-effort during unload.
type Unit struct {
	Key      string
	Setup    func(s *Scope) error
	Teardown func(s *Scope) error
}

// Builder constructs a fresh Unit. It stands in for executing a module in an
// isolated namespace: each invocation must return a unit with no state shared
// with previous invocations, so a reload starts from scratch.
type Builder func() (*Unit, error)

// Source resolves extension keys to loadable units and owns the unit cache.
//
// The host consults it on every load and invalidates entries on unload or
// failed load so the next load re-executes the builder instead of reusing a
// stale unit.
type Source interface {
	// Resolve returns the cached or freshly built unit for key.
	// A key with no registered builder yields ExtensionNotFound; a builder
	// error yields ExtensionFailed.
	Resolve(key string) (*Unit, error)

	// Invalidate drops the cached unit for key, if any.
	Invalidate(key string)
}

// StaticSource is a registry of statically linked, self-registering unit
// builders keyed by extension key. It is the compiled-in equivalent of a
// module search path.
type StaticSource struct {
	mu       sync.RWMutex
	builders map[string]Builder
	cache    map[string]*Unit
}

// NewStaticSource creates an empty builder registry.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		builders: make(map[string]Builder),
		cache:    make(map[string]*Unit),
	}
}

// Register binds a builder to a key. Re-registering a key replaces the
// builder and drops any cached unit.
func (s *StaticSource) Register(key string, b Builder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builders[key] = b
	delete(s.cache, key)
}

// Keys returns the registered extension keys in no particular order.
func (s *StaticSource) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.builders))
	for k := range s.builders {
		keys = append(keys, k)
	}
	return keys
}

// Resolve implements Source.
func (s *StaticSource) Resolve(key string) (*Unit, error) {
	s.mu.RLock()
	if unit, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return unit, nil
	}
	builder, ok := s.builders[key]
	s.mu.RUnlock()

	if !ok {
		return nil, NewExtensionNotFoundError(key, nil)
	}

	unit, err := builder()
	if err != nil {
		return nil, NewExtensionFailedError(key, err)
	}
	if unit == nil {
		return nil, NewExtensionFailedError(key, nil)
	}
	unit.Key = key

	s.mu.Lock()
	s.cache[key] = unit
	s.mu.Unlock()
	return unit, nil
}

// Invalidate implements Source.
func (s *StaticSource) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, key)
}

// DefaultSource is the process-wide builder registry that extensions
// self-register into from their init functions, in the manner of database
// drivers.
var DefaultSource = NewStaticSource()

// RegisterBuilder binds a builder to a key in the DefaultSource.
func RegisterBuilder(key string, b Builder) {
	DefaultSource.Register(key, b)
}

// resolveKey normalizes key against an optional package context.
//
// A key beginning with the namespace separator is relative and requires a
// package: ".stats" in package "tools" resolves to "tools.stats". The empty
// key never resolves.
func resolveKey(key, pkg string) (string, error) {
	if strings.HasPrefix(key, ".") {
		if pkg == "" {
			return "", NewExtensionNotFoundError(key, nil)
		}
		key = pkg + key
	}
	if key == "" || strings.HasSuffix(key, ".") || strings.Contains(key, "..") {
		return "", NewExtensionNotFoundError(key, nil)
	}
	return key, nil
}
