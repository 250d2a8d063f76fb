// Package logging builds the slog loggers of the pulse command. Records go to
// stderr so that stdout carries only command output, and credential
// attributes are masked before they reach a handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultLevel applies when no level is configured or the value is not
// understood.
const DefaultLevel = slog.LevelInfo

// Redacted replaces the value of every credential attribute.
const Redacted = "[redacted]"

var credentialKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"client_secret": true,
	"authorization": true,
	"api_key":       true,
}

// Options configures New.
type Options struct {
	Level slog.Level

	// Format is "json" or "text"; anything else selects text.
	Format string

	// Writer defaults to os.Stderr.
	Writer io.Writer

	// Command, when set, is attached to every record as "cmd".
	Command string
}

// New creates a logger from opts.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level, ReplaceAttr: maskCredentials}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}

	logger := slog.New(handler)
	if opts.Command != "" {
		logger = logger.With("cmd", opts.Command)
	}
	return logger
}

func maskCredentials(_ []string, a slog.Attr) slog.Attr {
	if credentialKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a level name such as "debug", "warning" or "info+2" to
// a slog.Level. Empty and unknown values yield DefaultLevel.
func ParseLevel(s string) slog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultLevel
	}
	if rest, ok := strings.CutPrefix(s, "warning"); ok {
		s = "warn" + rest
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return DefaultLevel
	}
	return level
}
