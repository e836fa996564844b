package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"shorter than limit", "short", 10, "short"},
		{"exact limit", "exact", 5, "exact"},
		{"ascii cut", "abcdefgh", 3, "abc"},
		{"does not split a two byte rune", "ab" + "ж" + "cd", 3, "ab"},
		{"keeps a whole rune at the boundary", "ab" + "ж" + "cd", 4, "abж"},
		{"does not split a four byte rune", "😀😀", 5, "😀"},
		{"zero limit", "abc", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.input, tt.max)
			assert.Equal(t, tt.expected, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncate_LongMultibyte(t *testing.T) {
	got := Truncate(strings.Repeat("я", 400), 500)

	assert.LessOrEqual(t, len(got), 500)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 250, utf8.RuneCountInString(got))
}
