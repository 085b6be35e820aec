package story

import (
	"strings"
	"testing"
)

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"plain heading", "The Sleepy Star\n\nOnce upon a time...", "The Sleepy Star"},
		{"title marker", "Title: The Sleepy Star\n\nBody", "The Sleepy Star"},
		{"markdown heading", "# The Sleepy Star\nBody", "The Sleepy Star"},
		{"double markdown heading", "## The Sleepy Star\nBody", "The Sleepy Star"},
		{"quoted heading", "\"The Sleepy Star\"\nBody", "The Sleepy Star"},
		{"starts with narrative", "Once upon a time, there was a star.", DefaultTitle},
		{"leading blank lines", "\n\n  \nThe Sleepy Star\nBody", "The Sleepy Star"},
		{"empty text", "", DefaultTitle},
		{"only whitespace", "   \n  \n", DefaultTitle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.text); got != tc.want {
				t.Fatalf("DeriveTitle(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestDeriveTitleCapsLength(t *testing.T) {
	long := strings.Repeat("a very long title ", 20)
	title := DeriveTitle(long + "\nBody")
	if got := len([]rune(title)); got > 80 {
		t.Fatalf("title not capped, got %d runes", got)
	}
}
