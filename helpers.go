package kransite

import (
	"net/url"
	"path"
	"strings"
	"unicode"
)

// Slugify converts a name to a URL-safe slug. Letters and digits are
// kept (lowercased), everything else collapses into single hyphens.
// Works for Cyrillic names, which most category names here are.
func Slugify(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// containsFold reports whether s contains substr, ignoring case.
// strings.ToLower folds the full Unicode range, unlike sqlite's lower().
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
