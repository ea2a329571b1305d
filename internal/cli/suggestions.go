package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PinkPanter/gitlock/pkg/color"
	"github.com/PinkPanter/gitlock/pkg/model"
)

const maxSuggestions = 3

// suggestLockedPaths offers held locks whose paths look like query.
func suggestLockedPaths(query string, records []model.LockRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("No locks are held. Run %s to check the server.", color.Code("gitlock list"))
	}

	base := strings.ToLower(filepath.Base(query))
	var matches []string
	for _, r := range records {
		if strings.HasPrefix(strings.ToLower(filepath.Base(r.Path)), base) {
			matches = append(matches, color.Path(r.Path))
		}
	}
	// If no prefix matches, try substring
	if len(matches) == 0 {
		for _, r := range records {
			if strings.Contains(strings.ToLower(r.Path), base) {
				matches = append(matches, color.Path(r.Path))
			}
		}
	}

	if len(matches) == 0 {
		return fmt.Sprintf("Run %s to see held locks.", color.Code("gitlock status"))
	}
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	hint := "Did you mean"
	if len(matches) > 1 {
		hint += " one of"
	}
	return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
}

// formatNotLockedHint explains an unlock of a path with no known lock.
func formatNotLockedHint(path string, records []model.LockRecord) string {
	var sb strings.Builder
	sb.WriteString(color.Warningf("no lock is known for '%s'", path))
	sb.WriteString("\n")
	sb.WriteString(color.Dim("  " + suggestLockedPaths(path, records)))
	return sb.String()
}

// formatNotInRepositoryHint is appended to errors raised outside a git
// working tree.
func formatNotInRepositoryHint() string {
	return color.Dim(fmt.Sprintf("  Run gitlock from inside a git working tree, or create one with %s.",
		color.Code("git init")))
}
