package crypto

import "strings"

// MaxNameLength bounds sanitized storage names.
const MaxNameLength = 255

// SanitizeName makes an externally supplied name safe to use as a storage
// object name: anything outside [A-Za-z0-9._-] becomes "_", parent-directory
// sequences are collapsed and the result is capped at MaxNameLength.
func SanitizeName(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	safe := b.String()
	for strings.Contains(safe, "..") {
		safe = strings.ReplaceAll(safe, "..", "_")
	}

	if len(safe) > MaxNameLength {
		safe = safe[:MaxNameLength]
	}
	return safe
}
