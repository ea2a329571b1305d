package pathutil_test

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/PinkPanter/gitlock/pkg/pathutil"
	"github.com/stretchr/testify/assert"
)

func TestCanonical_MixedSeparators(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path layout")
	}
	assert.Equal(t, "/r/a.txt", pathutil.Canonical(`/r\a.txt`))
	assert.Equal(t, "/r/sub/b.png", pathutil.Canonical("/r//sub/./b.png"))
}

func TestCanonical_NFC(t *testing.T) {
	decomposed := "cafe\u0301.png"
	composed := "caf\u00e9.png"
	assert.Equal(t, pathutil.Canonical(composed), pathutil.Canonical(decomposed))
}

func TestCanonical_Empty(t *testing.T) {
	assert.Equal(t, "", pathutil.Canonical(""))
}

func TestHasPathPrefix(t *testing.T) {
	root := filepath.FromSlash("/repo")
	assert.True(t, pathutil.HasPathPrefix(root, filepath.FromSlash("/repo/a.txt")))
	assert.True(t, pathutil.HasPathPrefix(root, root))
	assert.False(t, pathutil.HasPathPrefix(root, filepath.FromSlash("/repo2/a.txt")))
	assert.False(t, pathutil.HasPathPrefix(root, filepath.FromSlash("/other/a.txt")))
}

func TestRelSlash(t *testing.T) {
	rel, ok := pathutil.RelSlash(filepath.FromSlash("/repo"), filepath.FromSlash("/repo/Assets/Art/hero.psd"))
	assert.True(t, ok)
	assert.Equal(t, "Assets/Art/hero.psd", rel)

	_, ok = pathutil.RelSlash(filepath.FromSlash("/repo"), filepath.FromSlash("/elsewhere/x"))
	assert.False(t, ok)
}

func TestJoinRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path layout")
	}
	assert.Equal(t, "/r/Assets/a.txt", pathutil.JoinRoot("/r", "Assets/a.txt"))
}
