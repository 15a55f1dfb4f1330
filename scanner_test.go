// scanner_test.go: extension discovery tests
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree lays out a file tree under a fresh temp dir. Entries with a
// trailing slash are directories; files get placeholder content.
func writeTree(t *testing.T, entries []string) string {
	t.Helper()
	root := t.TempDir()
	for _, entry := range entries {
		path := filepath.Join(root, filepath.FromSlash(entry))
		if entry[len(entry)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("package x\n"), 0o644))
	}
	return root
}

func collectKeys(t *testing.T, root string, opts ScanOptions) []string {
	t.Helper()
	seq, err := ScanDirectory(root, opts)
	require.NoError(t, err)
	var keys []string
	for k := range seq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestScanDirectoryNestedPackages(t *testing.T) {
	root := writeTree(t, []string{
		"a/doc.go",
		"a/b.go",
		"c.go",
	})

	keys := collectKeys(t, root, ScanOptions{})
	assert.Equal(t, []string{"a.b", "c"}, keys)
}

func TestScanDirectorySkipsNonModules(t *testing.T) {
	root := writeTree(t, []string{
		"doc.go",          // package marker, not a module
		"good.go",         // module
		"good_test.go",    // test file
		"_draft.go",       // underscore-prefixed
		".hidden.go",      // hidden
		"notes.txt",       // wrong suffix
		"nopackage/x.go",  // directory without marker: not descended
		"pkg/doc.go",      // marker makes pkg a package
		"pkg/inner.go",    // nested module
		"pkg/deep/",       // marker-less nested dir
		"pkg/deep/y.go",   // unreachable
	})

	keys := collectKeys(t, root, ScanOptions{})
	assert.Equal(t, []string{"good", "pkg.inner"}, keys)
}

func TestScanDirectoryEscapingPath(t *testing.T) {
	_, err := ScanDirectory("../outside", ScanOptions{})
	require.Error(t, err)
	assert.True(t, IsInvalidPath(err))
}

func TestScanDirectoryMissingPath(t *testing.T) {
	_, err := ScanDirectory(filepath.Join(t.TempDir(), "absent"), ScanOptions{})
	require.Error(t, err)
	assert.True(t, IsInvalidPath(err))
}

func TestScanDirectoryNotADirectory(t *testing.T) {
	root := writeTree(t, []string{"file.go"})
	_, err := ScanDirectory(filepath.Join(root, "file.go"), ScanOptions{})
	require.Error(t, err)
	assert.True(t, IsInvalidPath(err))
}

func TestScanDirectoryRestartable(t *testing.T) {
	root := writeTree(t, []string{"a.go", "b.go"})
	seq, err := ScanDirectory(root, ScanOptions{})
	require.NoError(t, err)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count(), "each range must walk the tree afresh")
}

func TestScanDirectoryEarlyStop(t *testing.T) {
	root := writeTree(t, []string{"a.go", "b.go", "c.go"})
	seq, err := ScanDirectory(root, ScanOptions{})
	require.NoError(t, err)

	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestScanDirectoryCustomOptions(t *testing.T) {
	root := writeTree(t, []string{
		"mod.ext",
		"sub/__init__.ext",
		"sub/inner.ext",
		"skipme.go",
	})

	keys := collectKeys(t, root, ScanOptions{Suffix: ".ext", PackageMarker: "__init__.ext"})
	assert.Equal(t, []string{"mod", "sub.inner"}, keys)
}

func TestKeyForPath(t *testing.T) {
	root := filepath.Join("cogs")

	key, ok := keyForPath(root, filepath.Join("cogs", "mail.go"), ScanOptions{})
	require.True(t, ok)
	assert.Equal(t, "mail", key)

	key, ok = keyForPath(root, filepath.Join("cogs", "tools", "stats.go"), ScanOptions{})
	require.True(t, ok)
	assert.Equal(t, "tools.stats", key)

	_, ok = keyForPath(root, filepath.Join("cogs", "doc.go"), ScanOptions{})
	assert.False(t, ok, "package marker is not a module")

	_, ok = keyForPath(root, filepath.Join("cogs", "mail_test.go"), ScanOptions{})
	assert.False(t, ok)

	_, ok = keyForPath(root, filepath.Join("elsewhere", "mail.go"), ScanOptions{})
	assert.False(t, ok, "paths outside the root never map to keys")
}
