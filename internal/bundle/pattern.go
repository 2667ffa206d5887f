package bundle

import (
	"path/filepath"
	"strings"

	"crusader-launcher/internal/platform"
)

// matcher tests bundle entry paths against a platform's ignore patterns.
// Windows patterns match case-insensitively whatever the host is.
type matcher struct {
	patterns [][]string
	fold     bool
}

func newMatcher(p platform.Platform) *matcher {
	m := &matcher{fold: p == platform.Windows}
	for _, pattern := range p.IgnorePatterns() {
		m.patterns = append(m.patterns, strings.Split(filepath.ToSlash(pattern), "/"))
	}
	return m
}

// ignored reports whether relPath, or any directory above it, matches a pattern
func (m *matcher) ignored(relPath string) (bool, string) {
	segments := strings.Split("./"+strings.TrimPrefix(filepath.ToSlash(relPath), "./"), "/")
	for end := 2; end <= len(segments); end++ {
		for _, pattern := range m.patterns {
			if matchPattern(pattern, segments[:end], m.fold) {
				return true, strings.Join(pattern, "/")
			}
		}
	}
	return false, ""
}

// matchPattern checks if path segments match the pattern segments
func matchPattern(pattern, path []string, fold bool) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}

	if len(path) == 0 {
		return false
	}

	// Extension patterns (e.g. "*.pdb") only look at the last segment
	if len(pattern) == 1 && strings.HasPrefix(pattern[0], "*") && strings.Contains(pattern[0], ".") && !strings.ContainsAny(pattern[0][1:], "*?[") {
		if len(path) != 1 {
			return false
		}
		ext := pattern[0][strings.LastIndex(pattern[0], "."):]
		last := path[0]
		if fold {
			return strings.HasSuffix(strings.ToLower(last), strings.ToLower(ext))
		}
		return strings.HasSuffix(last, ext)
	}

	if pattern[0] == "**" {
		for i := 0; i <= len(path); i++ {
			if matchPattern(pattern[1:], path[i:], fold) {
				return true
			}
		}
		return false
	}

	seg, name := pattern[0], path[0]
	if fold {
		seg, name = strings.ToLower(seg), strings.ToLower(name)
	}
	matched, err := filepath.Match(seg, name)
	if err != nil || !matched {
		return false
	}

	return matchPattern(pattern[1:], path[1:], fold)
}
