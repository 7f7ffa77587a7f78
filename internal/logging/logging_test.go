package logging

import (
	"strings"
	"testing"

	"github.com/arkilian/roomsql/internal/config"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "no literals",
			input:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = ?",
		},
		{
			name:     "string literal redacted",
			input:    "SELECT * FROM users WHERE name = 'alice' AND note = 'it''s'",
			expected: "SELECT * FROM users WHERE name = '[REDACTED]' AND note = '[REDACTED]'",
		},
		{
			name:     "password pattern",
			input:    "ATTACH 'db' KEY password=hunter2",
			expected: "ATTACH '[REDACTED]' KEY password=[REDACTED]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeQuery(tt.input); got != tt.expected {
				t.Errorf("SanitizeQuery(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeQueryTruncates(t *testing.T) {
	long := "SELECT " + strings.Repeat("a, ", 100) + "b FROM t"
	got := SanitizeQuery(long)
	if len(got) != MaxQueryLogLength+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncation to %d chars plus ellipsis, got %d", MaxQueryLogLength, len(got))
	}
}

func TestSanitizeDSN(t *testing.T) {
	if got := SanitizeDSN("file:app.db?_pass=secret&mode=ro"); got != "file:app.db?_pass="+RedactedText+"&mode=ro" {
		t.Errorf("unexpected DSN: %s", got)
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := New(config.LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("New(%s): %v", format, err)
		}
		if !logger.Core().Enabled(-1) {
			t.Errorf("%s logger should enable debug", format)
		}
	}

	if _, err := New(config.LogConfig{Level: "loud", Format: "json"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New(config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}
