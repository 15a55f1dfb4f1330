// scanner.go: recursive discovery of extension keys under a root directory
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// ScanOptions controls how a directory tree is interpreted as extensions.
type ScanOptions struct {
	// Suffix marks loadable module files. Default ".go".
	Suffix string

	// PackageMarker names the file whose presence makes a sub-directory a
	// package worth descending into. The marker itself is never a module.
	// Default "doc.go".
	PackageMarker string
}

func (o *ScanOptions) setDefaults() {
	if o.Suffix == "" {
		o.Suffix = ".go"
	}
	if o.PackageMarker == "" {
		o.PackageMarker = "doc.go"
	}
}

// ScanDirectory discovers extension keys under root.
//
// The returned sequence is lazy and restartable: each range walks the tree
// afresh. Keys are the file paths relative to root with separators replaced
// by "." and the module suffix stripped. Callers must not assume any
// emission order.
//
// The root is validated eagerly: a path whose relative form reaches outside
// the working tree, a missing path, or a non-directory all fail with
// InvalidPath before any key is produced. Errors encountered mid-walk
// (e.g. a directory deleted while scanning) silently end that branch, the
// same way a module that vanishes between scan and load surfaces later as
// ExtensionNotFound.
func ScanDirectory(root string, opts ScanOptions) (iter.Seq[string], error) {
	opts.setDefaults()

	rel, err := filepath.Rel(".", root)
	if err != nil {
		rel = root
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg == ".." {
			return nil, NewInvalidPathError(root, "path escapes the scanning root")
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, NewInvalidPathError(root, "path does not exist")
	}
	if !info.IsDir() {
		return nil, NewInvalidPathError(root, "path is not a directory")
	}

	seq := func(yield func(string) bool) {
		walkModules(root, "", opts, yield)
	}
	return seq, nil
}

// walkModules emits keys for loadable files in dir and recurses into
// sub-directories carrying the package marker. prefix is the dotted
// namespace accumulated so far. Returns false once yield stops the walk.
func walkModules(dir, prefix string, opts ScanOptions, yield func(string) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if hasPackageMarker(filepath.Join(dir, name), opts.PackageMarker) {
				childPrefix := name
				if prefix != "" {
					childPrefix = prefix + "." + name
				}
				if !walkModules(filepath.Join(dir, name), childPrefix, opts, yield) {
					return false
				}
			}
			continue
		}
		if !isModuleFile(name, opts) {
			continue
		}
		key := strings.TrimSuffix(name, opts.Suffix)
		if prefix != "" {
			key = prefix + "." + key
		}
		if !yield(key) {
			return false
		}
	}
	return true
}

// hasPackageMarker reports whether dir contains the package marker file.
func hasPackageMarker(dir, marker string) bool {
	info, err := os.Stat(filepath.Join(dir, marker))
	return err == nil && !info.IsDir()
}

// isModuleFile reports whether name looks like a loadable module file:
// carries the suffix, is not the package marker, not a test file, and not
// hidden or underscore-prefixed.
func isModuleFile(name string, opts ScanOptions) bool {
	if !strings.HasSuffix(name, opts.Suffix) {
		return false
	}
	if name == opts.PackageMarker {
		return false
	}
	if strings.HasSuffix(name, "_test"+opts.Suffix) {
		return false
	}
	if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
		return false
	}
	return true
}

// keyForPath derives the extension key for a loadable file under root, or
// ("", false) when the path is not a loadable module in that root.
func keyForPath(root, path string, opts ScanOptions) (string, bool) {
	opts.setDefaults()

	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	base := filepath.Base(rel)
	if !isModuleFile(base, opts) {
		return "", false
	}
	key := strings.TrimSuffix(filepath.ToSlash(rel), opts.Suffix)
	key = strings.ReplaceAll(key, "/", ".")
	key = strings.TrimPrefix(key, ".")
	return key, true
}
