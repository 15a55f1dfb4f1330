// registry.go: bookkeeping for loaded extensions
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/robfig/cron/v3"
)

// ExtensionRecord tracks one loaded extension: the unit handle plus the IDs
// of every handler and scheduled job registered under its key.
//
// The record is owned exclusively by the Registry. It is created on a
// successful load and destroyed on unload or reload; holding the unit here
// keeps the handle alive until the unload walk has removed every reference
// into it.
type ExtensionRecord struct {
	Key        string
	Unit       *Unit
	HandlerIDs map[string]struct{}
	JobIDs     []cron.EntryID
	LoadedAt   time.Time
}

// Registry maps extension keys to loaded-extension records and enforces
// at-most-one load per key.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*ExtensionRecord
}

// NewRegistry creates an empty extension registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*ExtensionRecord)}
}

// Get returns the record for key, if present.
func (r *Registry) Get(key string) (*ExtensionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key]
	return rec, ok
}

// Contains reports whether key is currently loaded.
func (r *Registry) Contains(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[key]
	return ok
}

// Put inserts a record for the unit. It returns false if the key is already
// present, leaving the registry untouched.
func (r *Registry) Put(rec *ExtensionRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.Key]; exists {
		return false
	}
	if rec.LoadedAt.IsZero() {
		rec.LoadedAt = timecache.CachedTime()
	}
	r.records[rec.Key] = rec
	return true
}

// Remove deletes and returns the record for key.
func (r *Registry) Remove(key string) (*ExtensionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if ok {
		delete(r.records, key)
	}
	return rec, ok
}

// Keys returns the loaded extension keys in no particular order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.records))
	for k := range r.records {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of loaded extensions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
