package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelInfo, &buf)

	l.Debug("hidden %d", 1)
	l.Info("task %s started", "abc")
	l.Warn("fallback to %s", "google")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered, got %q", out)
	}
	if !strings.Contains(out, "task abc started") {
		t.Errorf("missing info line in %q", out)
	}
	if !strings.Contains(out, "fallback to google") {
		t.Errorf("missing warn line in %q", out)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelDebug, &buf).With("task", "t-1")
	l.Debug("hello")

	out := buf.String()
	if !strings.Contains(out, "t-1") {
		t.Errorf("expected field value in %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevel_String(t *testing.T) {
	if LevelWarn.String() != "WARN" {
		t.Errorf("got %s", LevelWarn.String())
	}
	if Level(42).String() != "UNKNOWN" {
		t.Errorf("got %s", Level(42).String())
	}
}
