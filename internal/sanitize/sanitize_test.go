package sanitize

import (
	"regexp"
	"strings"
	"testing"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "announcer",
			expected: "announcer",
		},
		{
			name:     "uppercase conversion",
			input:    "SidePanel",
			expected: "sidepanel",
		},
		{
			name:     "spaces to hyphens",
			input:    "side panel",
			expected: "side-panel",
		},
		{
			name:     "namespaced module name",
			input:    "widgets/chart.line",
			expected: "widgets-chart-line",
		},
		{
			name:     "underscores become hyphens",
			input:    "foo_bar",
			expected: "foo-bar",
		},
		{
			name:     "special characters",
			input:    "my-module!@#$%",
			expected: "my-module",
		},
		{
			name:     "multiple hyphens collapsed",
			input:    "foo---bar",
			expected: "foo-bar",
		},
		{
			name:     "leading and trailing trimmed",
			input:    "--foo--",
			expected: "foo",
		},
		{
			name:     "empty string",
			input:    "",
			expected: DefaultIdentifier,
		},
		{
			name:     "only special characters",
			input:    "!!!",
			expected: DefaultIdentifier,
		},
		{
			name:     "non-ascii replaced",
			input:    "café",
			expected: "caf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identifier(tt.input); got != tt.expected {
				t.Errorf("Identifier(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIdentifier_LengthLimit(t *testing.T) {
	result := Identifier(strings.Repeat("a", 100))

	if len(result) > MaxIdentifierLength {
		t.Errorf("Identifier should be <= %d chars, got %d", MaxIdentifierLength, len(result))
	}
	if !regexp.MustCompile(`-[0-9a-f]{8}$`).MatchString(result) {
		t.Errorf("Truncated identifier should end with a hash suffix, got %q", result)
	}
}

func TestIdentifier_LengthLimit_Uniqueness(t *testing.T) {
	result1 := Identifier(strings.Repeat("a", 100))
	result2 := Identifier(strings.Repeat("a", 99) + "b")

	if result1 == result2 {
		t.Error("Different inputs should produce different hashed outputs")
	}
}

func TestIdentifier_ExactlyMaxLength(t *testing.T) {
	input := strings.Repeat("a", MaxIdentifierLength)

	if result := Identifier(input); result != input {
		t.Errorf("Input at max length should not be modified, got %q", result)
	}
}

func TestElementID(t *testing.T) {
	tests := []struct {
		prefix, name, suffix string
		expected             string
	}{
		{"mod", "announcer", "1a2b3c4d", "mod-announcer-1a2b3c4d"},
		{"mod", "Side Panel", "ff00", "mod-side-panel-ff00"},
		{"mod", "", "ff00", "mod-module-ff00"},
		{"mod", "journal", "", "mod-journal"},
	}

	valid := regexp.MustCompile(`^[a-z0-9-]+$`)
	for _, tt := range tests {
		got := ElementID(tt.prefix, tt.name, tt.suffix)
		if got != tt.expected {
			t.Errorf("ElementID(%q, %q, %q) = %q, want %q", tt.prefix, tt.name, tt.suffix, got, tt.expected)
		}
		if !valid.MatchString(got) {
			t.Errorf("ElementID produced invalid id %q", got)
		}
	}
}

func TestSubjectToken(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "_"},
		{"navigate", "navigate"},
		{"module:ready", "module:ready"},
		{"a.b", "a.b"},
		{"two words", "two_words"},
		{"wild*card", "wild_card"},
		{"full>", "full_"},
		{"line\nbreak", "line_break"},
	}

	for _, tt := range tests {
		if got := SubjectToken(tt.input); got != tt.expected {
			t.Errorf("SubjectToken(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
