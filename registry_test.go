// registry_test.go: loaded-extension bookkeeping tests
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPutEnforcesUniqueness(t *testing.T) {
	r := NewRegistry()

	require.True(t, r.Put(&ExtensionRecord{Key: "mail"}))
	assert.False(t, r.Put(&ExtensionRecord{Key: "mail"}), "duplicate key must be rejected")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryPutStampsLoadTime(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Put(&ExtensionRecord{Key: "mail"}))

	rec, ok := r.Get("mail")
	require.True(t, ok)
	assert.False(t, rec.LoadedAt.IsZero())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Put(&ExtensionRecord{Key: "mail"}))

	rec, ok := r.Remove("mail")
	require.True(t, ok)
	assert.Equal(t, "mail", rec.Key)
	assert.False(t, r.Contains("mail"))

	_, ok = r.Remove("mail")
	assert.False(t, ok)
}

func TestRegistryKeys(t *testing.T) {
	r := NewRegistry()
	r.Put(&ExtensionRecord{Key: "a"})
	r.Put(&ExtensionRecord{Key: "b"})

	assert.ElementsMatch(t, []string{"a", "b"}, r.Keys())
}
