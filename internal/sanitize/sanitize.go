// Package sanitize provides shared identifier sanitization for element ids
// and relay subjects.
//
// Generated element ids must survive a "#id" selector round trip, so they
// only contain: [a-z0-9-]
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxIdentifierLength is the maximum length of a sanitized identifier.
	MaxIdentifierLength = 48

	// HashSuffixLength is the length of the hash suffix added to truncated identifiers.
	// Format: -<8-char-hash> = 9 characters total
	HashSuffixLength = 9

	// DefaultIdentifier is used when sanitization produces an empty result.
	DefaultIdentifier = "module"
)

// Identifier sanitizes a string for use inside a generated element id.
//
// Rules applied:
//   - Converts to lowercase
//   - Replaces invalid characters with hyphens
//   - Collapses multiple hyphens
//   - Trims leading/trailing hyphens
//   - Truncates to MaxIdentifierLength with hash suffix if too long
//   - Returns DefaultIdentifier if result would be empty
//
// Examples:
//
//	"announcer"    -> "announcer"
//	"Side Panel!"  -> "side-panel"
//	"" or "!!!"    -> "module"
func Identifier(s string) string {
	if s == "" {
		return DefaultIdentifier
	}

	var result strings.Builder
	result.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}

	sanitized := result.String()
	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}
	sanitized = strings.Trim(sanitized, "-")

	if sanitized == "" {
		return DefaultIdentifier
	}
	if len(sanitized) > MaxIdentifierLength {
		sanitized = truncateWithHash(sanitized)
	}
	return sanitized
}

// truncateWithHash truncates a string to fit within MaxIdentifierLength,
// appending a hash suffix to preserve uniqueness.
//
// Format: <truncated>-<8-char-hash>
func truncateWithHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	hashSuffix := "-" + hex.EncodeToString(hash[:])[:8]

	truncated := strings.TrimRight(s[:MaxIdentifierLength-HashSuffixLength], "-")
	return truncated + hashSuffix
}

// ElementID builds a generated element id from a prefix, a module name and
// a uniqueness suffix.
//
// Example: ElementID("mod", "Side Panel", "1a2b3c4d") -> "mod-side-panel-1a2b3c4d"
func ElementID(prefix, name, suffix string) string {
	parts := []string{prefix, Identifier(name)}
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return strings.Join(parts, "-")
}

// SubjectToken makes a message name safe as the last token of a NATS
// subject. Whitespace and the wildcards '*' and '>' become underscores;
// dots are kept so names can form subject hierarchies.
func SubjectToken(name string) string {
	if name == "" {
		return "_"
	}
	return strings.Map(func(c rune) rune {
		switch c {
		case ' ', '\t', '\n', '\r', '*', '>':
			return '_'
		}
		return c
	}, name)
}
