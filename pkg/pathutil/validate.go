// Package pathutil provides path canonicalization for lock bookkeeping.
package pathutil

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonical returns the form of p used as a snapshot key: NFC normalized,
// both '/' and '\' treated as separators, cleaned for the host platform.
// Lock payloads use forward slashes while callers may hand in either.
func Canonical(p string) string {
	if p == "" {
		return ""
	}
	p = norm.NFC.String(p)
	p = strings.ReplaceAll(p, `\`, "/")
	return filepath.Clean(filepath.FromSlash(p))
}

// Abs canonicalizes p after making it absolute.
func Abs(p string) (string, error) {
	abs, err := filepath.Abs(Canonical(p))
	if err != nil {
		return "", err
	}
	return Canonical(abs), nil
}

// HasPathPrefix reports whether path equals root or lies underneath it.
// Unlike strings.HasPrefix it does not match "/repo2" against "/repo".
func HasPathPrefix(root, path string) bool {
	root = Canonical(root)
	path = Canonical(path)
	if root == path {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(path, root)
}

// RelSlash returns path relative to root with forward slashes, the form the
// backing tool expects on its command line.
func RelSlash(root, path string) (string, bool) {
	if !HasPathPrefix(root, path) {
		return "", false
	}
	rel, err := filepath.Rel(Canonical(root), Canonical(path))
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// JoinRoot joins a slash-separated relative path from the backing tool onto
// root and canonicalizes the result.
func JoinRoot(root, rel string) string {
	return Canonical(filepath.Join(Canonical(root), Canonical(rel)))
}
