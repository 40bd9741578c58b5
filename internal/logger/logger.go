package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	levelVar slog.LevelVar
	active   atomic.Pointer[slog.Logger]

	// sink and format only change under setMu; reads go through active.
	setMu  sync.Mutex
	sink   io.Writer = os.Stdout
	format           = FormatText
)

func init() {
	levelVar.Set(slog.LevelInfo)
	rebuild()
}

func rebuild() {
	opts := &slog.HandlerOptions{Level: &levelVar}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(sink, opts)
	} else {
		h = slog.NewTextHandler(sink, opts)
	}
	active.Store(slog.New(h))
}

// SetOutput redirects every subsequent log line to w. nil means stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	setMu.Lock()
	defer setMu.Unlock()
	sink = w
	rebuild()
}

// SetFormat switches between the text (default) and json handlers.
func SetFormat(f string) {
	setMu.Lock()
	defer setMu.Unlock()
	if strings.EqualFold(strings.TrimSpace(f), FormatJSON) {
		format = FormatJSON
	} else {
		format = FormatText
	}
	rebuild()
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// ValidFormat reports whether f names a supported handler.
func ValidFormat(f string) bool {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "", FormatText, FormatJSON:
		return true
	}
	return false
}

// SetLevel applies level; unknown names fall back to info.
func SetLevel(level string) {
	l, _ := ParseLevel(level)
	levelVar.Set(l)
}

// Slog exposes the active structured logger for callers that want attributes.
func Slog() *slog.Logger {
	return active.Load()
}

// With returns the active logger carrying attrs, e.g. user and season.
func With(attrs ...any) *slog.Logger {
	return active.Load().With(attrs...)
}

func Debugf(format string, v ...any) { active.Load().Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { active.Load().Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { active.Load().Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { active.Load().Error(fmt.Sprintf(format, v...)) }
