package repo

import (
	"strings"

	"github.com/PinkPanter/gitlock/pkg/errclass"
)

// ParseSubmodules extracts submodule paths from either the output of
// `git config --file .gitmodules --get-regexp path`
//
//	submodule.art.path libs/art
//
// or raw .gitmodules stanzas
//
//	[submodule "art"]
//		path = libs/art
//
// Lines that fit neither shape stop the scan: the rest of the text is taken
// as one trailing path and a ParseAnomaly error is returned next to the
// paths. It never fails outright.
func ParseSubmodules(output string) ([]string, error) {
	var paths []string
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "", strings.HasPrefix(line, "#"), strings.HasPrefix(line, ";"):
			continue
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			continue
		}

		if key, value, ok := strings.Cut(line, "="); ok {
			key = strings.TrimSpace(key)
			if key == "path" {
				if v := unquote(strings.TrimSpace(value)); v != "" {
					paths = append(paths, v)
				}
				continue
			}
			if isStanzaKey(key) {
				continue
			}
		}

		if key, value, ok := strings.Cut(line, " "); ok && strings.HasPrefix(key, "submodule.") {
			if strings.HasSuffix(key, ".path") {
				if v := unquote(strings.TrimSpace(value)); v != "" {
					paths = append(paths, v)
				}
			}
			continue
		}

		rest := strings.TrimSpace(strings.Join(lines[i:], " "))
		if rest != "" {
			paths = append(paths, unquote(rest))
		}
		return paths, errclass.ErrParseAnomaly.WithMessagef("unrecognized submodule line %q", line)
	}
	return paths, nil
}

func isStanzaKey(key string) bool {
	switch key {
	case "url", "branch", "update", "ignore", "shallow", "fetchRecurseSubmodules":
		return true
	}
	return false
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
