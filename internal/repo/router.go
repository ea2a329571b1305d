package repo

import (
	"sort"

	"github.com/PinkPanter/gitlock/pkg/pathutil"
)

// Router maps absolute file paths to the repository root owning them.
// Roots are held deepest first so a file inside a submodule resolves to the
// submodule rather than its parent.
type Router struct {
	roots []string
}

// NewRouter canonicalizes roots and orders them by descending length.
func NewRouter(roots []string) *Router {
	sorted := make([]string, 0, len(roots))
	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		c := pathutil.Canonical(r)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return &Router{roots: sorted}
}

// Roots returns the roots in matching order.
func (r *Router) Roots() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.roots))
	copy(out, r.roots)
	return out
}

// Route returns the owning root and the slash-separated path relative to it.
func (r *Router) Route(path string) (root, rel string, ok bool) {
	if r == nil {
		return "", "", false
	}
	for _, root := range r.roots {
		if rel, ok := pathutil.RelSlash(root, path); ok {
			return root, rel, true
		}
	}
	return "", "", false
}
