package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"msg=\"job submitted\"", "job_id=abc"}},
		{"TEXT", []string{"job_id=abc"}},
		{"json", []string{`"msg":"job submitted"`, `"job_id":"abc"`}},
		{"JSON", []string{`"job_id":"abc"`}},
		{"", []string{"job_id=abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Options{Level: slog.LevelInfo, Format: tt.format, Writer: &buf})
			logger.Info("job submitted", "job_id", "abc")

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected %q in output, got: %s", w, out)
				}
			}
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelWarn, Writer: &buf})

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", output)
	}
	if !strings.Contains(output, "should appear") {
		t.Errorf("WARN message should appear at WARN level, got: %s", output)
	}
}

func TestNew_CommandAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelDebug, Writer: &buf, Command: "sentiment"})
	child := logger.With("component", "job-poller")

	child.Debug("polled job", "status", "pending")

	output := buf.String()
	for _, want := range []string{"cmd=sentiment", "component=job-poller", "status=pending"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestNew_MasksCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelInfo, Format: "json", Writer: &buf}).
		With("client_secret", "s3cret")

	logger.Info("token refreshed",
		"token", "abc.def",
		slog.Group("request", "Authorization", "Bearer abc.def", "path", "/sentiment"))

	output := buf.String()
	if strings.Contains(output, "s3cret") || strings.Contains(output, "abc.def") {
		t.Errorf("credential leaked into output: %s", output)
	}
	for _, want := range []string{`"token":"[redacted]"`, `"client_secret":"[redacted]"`, `"Authorization":"[redacted]"`, `"path":"/sentiment"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not enable any level")
	}
	logger.Error("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"warning+1", slog.LevelWarn + 1},
		{"info+2", slog.LevelInfo + 2},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", DefaultLevel},
		{"", DefaultLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
