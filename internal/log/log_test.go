package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":  LevelDebug,
		" ERROR": LevelError,
		"info":   LevelInfo,
		"":       LevelInfo,
		"trace":  LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)

	Debug("hidden message")
	Info("visible message", "calendar", "calendar.work")
	Error("failed message", errors.New("boom"), "status", 500)

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Fatalf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "visible message") || !strings.Contains(out, "calendar.work") {
		t.Fatalf("info line missing: %q", out)
	}
	if !strings.Contains(out, "boom") {
		t.Fatalf("error value missing: %q", out)
	}
}
