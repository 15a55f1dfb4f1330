// source_test.go: code source and key resolution tests
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		pkg     string
		want    string
		wantErr bool
	}{
		{name: "absolute key", key: "tools.stats", want: "tools.stats"},
		{name: "relative key with package", key: ".stats", pkg: "tools", want: "tools.stats"},
		{name: "relative key without package", key: ".stats", wantErr: true},
		{name: "empty key", key: "", wantErr: true},
		{name: "trailing separator", key: "tools.", wantErr: true},
		{name: "double separator", key: "tools..stats", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveKey(tt.key, tt.pkg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsExtensionNotFound(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticSourceResolveCaches(t *testing.T) {
	src := NewStaticSource()
	builds := 0
	src.Register("k", func() (*Unit, error) {
		builds++
		return &Unit{Setup: func(*Scope) error { return nil }}, nil
	})

	u1, err := src.Resolve("k")
	require.NoError(t, err)
	u2, err := src.Resolve("k")
	require.NoError(t, err)

	assert.Same(t, u1, u2)
	assert.Equal(t, 1, builds)
	assert.Equal(t, "k", u1.Key)
}

func TestStaticSourceInvalidateRebuilds(t *testing.T) {
	src := NewStaticSource()
	builds := 0
	src.Register("k", func() (*Unit, error) {
		builds++
		return &Unit{}, nil
	})

	_, err := src.Resolve("k")
	require.NoError(t, err)
	src.Invalidate("k")
	_, err = src.Resolve("k")
	require.NoError(t, err)

	assert.Equal(t, 2, builds)
}

func TestStaticSourceUnknownKey(t *testing.T) {
	src := NewStaticSource()
	_, err := src.Resolve("missing")
	require.Error(t, err)
	assert.True(t, IsExtensionNotFound(err))
}

func TestStaticSourceBuilderFailure(t *testing.T) {
	src := NewStaticSource()
	src.Register("broken", func() (*Unit, error) {
		return nil, errors.New("boom")
	})

	_, err := src.Resolve("broken")
	require.Error(t, err)
	assert.True(t, IsExtensionFailed(err))

	// A failed build must not poison the cache.
	src.Register("broken", func() (*Unit, error) { return &Unit{}, nil })
	_, err = src.Resolve("broken")
	assert.NoError(t, err)
}

func TestStaticSourceNilUnit(t *testing.T) {
	src := NewStaticSource()
	src.Register("nil", func() (*Unit, error) { return nil, nil })

	_, err := src.Resolve("nil")
	require.Error(t, err)
	assert.True(t, IsExtensionFailed(err))
}

func TestStaticSourceReRegisterDropsCache(t *testing.T) {
	src := NewStaticSource()
	src.Register("k", func() (*Unit, error) { return &Unit{}, nil })
	first, err := src.Resolve("k")
	require.NoError(t, err)

	src.Register("k", func() (*Unit, error) { return &Unit{}, nil })
	second, err := src.Resolve("k")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
