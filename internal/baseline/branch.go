package baseline

import "strings"

// UnknownBranch is used when a branch name is empty.
const UnknownBranch = "unknown"

// Sanitize makes a branch name safe for use as a path segment and cache
// key. Characters other than ASCII letters, digits, '_', '-' and '.' become
// '_'. Names that would resolve to the current or parent directory, and the
// empty name, map to UnknownBranch.
func Sanitize(branch string) string {
	if branch == "" {
		return UnknownBranch
	}
	var b strings.Builder
	b.Grow(len(branch))
	for _, r := range branch {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "." || s == ".." {
		return UnknownBranch
	}
	return s
}
