// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package guard

import "unicode/utf8"

// Match reports whether path matches the glob pattern as a whole.
// '*' matches any run of characters including '/', '?' matches exactly one
// character, and every other character matches itself. A pattern that is not
// valid UTF-8 never matches.
func Match(pattern, path string) bool {
	if !utf8.ValidString(pattern) {
		return false
	}
	p := []rune(pattern)
	s := []rune(path)

	// Greedy scan with a single backtrack point: the most recent '*'.
	pi, si := 0, 0
	starP, starS := -1, 0
	for si < len(s) {
		switch {
		case pi < len(p) && p[pi] == '*':
			starP, starS = pi, si
			pi++
		case pi < len(p) && (p[pi] == '?' || p[pi] == s[si]):
			pi++
			si++
		case starP >= 0:
			starS++
			pi, si = starP+1, starS
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

func matchAny(patterns []string, path string) (string, bool) {
	for _, p := range patterns {
		if Match(p, path) {
			return p, true
		}
	}
	return "", false
}
