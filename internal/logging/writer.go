package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Writer is an io.Writer implementation that forwards subprocess output to slog.
// Each non-empty line becomes one record at the configured level, so helm and
// kubectl chatter lands in the structured log instead of raw stderr.
type Writer struct {
	logger *slog.Logger
	level  slog.Level
	tool   string
}

// NewWriter constructs a Writer bound to the provided logger, logging lines
// from the named tool at the given level.
func NewWriter(logger *slog.Logger, level Level, tool string) *Writer {
	return &Writer{logger: logger, level: slog.Level(level), tool: tool}
}

// Write logs each line of the given bytes as a separate record.
func (w *Writer) Write(p []byte) (int, error) {
	if w.logger == nil {
		return len(p), nil
	}
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		w.logger.Log(context.Background(), w.level, "tool output", "tool", w.tool, "line", line)
	}
	return len(p), nil
}
