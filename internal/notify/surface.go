package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// LogSurface writes each toast as a structured log record.
type LogSurface struct {
	logger *slog.Logger
}

func NewLogSurface(logger *slog.Logger) *LogSurface {
	return &LogSurface{logger: logger}
}

func (s *LogSurface) Show(t Type, toast Toast) {
	level := slog.LevelInfo
	switch t {
	case TypeError:
		level = slog.LevelError
	case TypeWarning:
		level = slog.LevelWarn
	}
	attrs := []any{"id", toast.ID, "type", string(t), "title", toast.Title}
	if toast.Description != "" {
		attrs = append(attrs, "message", toast.Description)
	}
	s.logger.Log(context.Background(), level, "toast", attrs...)
}

// WriterSurface prints toasts as single lines, for terminals.
type WriterSurface struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSurface(w io.Writer) *WriterSurface {
	return &WriterSurface{w: w}
}

var typeLabels = map[Type]string{
	TypeSuccess: "ok",
	TypeError:   "error",
	TypeWarning: "warn",
	TypeInfo:    "info",
}

func (s *WriterSurface) Show(t Type, toast Toast) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", typeLabels[t], toast.Title)
	if toast.Description != "" {
		fmt.Fprintf(&b, ": %s", toast.Description)
	}
	if toast.Action != nil {
		fmt.Fprintf(&b, " (%s", toast.Action.Label)
		if toast.Action.URL != "" {
			fmt.Fprintf(&b, " %s", toast.Action.URL)
		}
		b.WriteString(")")
	}
	b.WriteString("\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.w, b.String())
}
