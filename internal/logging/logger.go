package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup initializes the global slog logger with JSON output to stdout.
// Development environments also get debug records.
func Setup(env string) {
	slog.SetDefault(slog.New(NewJSONHandler(os.Stdout, env)))
}

func NewJSONHandler(w io.Writer, env string) slog.Handler {
	level := slog.LevelInfo
	if strings.EqualFold(env, "development") {
		level = slog.LevelDebug
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}
