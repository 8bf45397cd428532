package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// EnvLogLevel names the environment variable read by the --log-level flag.
const EnvLogLevel = "LOG_LEVEL"

// ParseLogLevel converts a level name into a slog.Level.
// Unknown or empty names yield slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, module, version string, lvl slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: lvl <= slog.LevelDebug,
		Level:     lvl,
	})
	return slog.New(h).With(
		slog.String("module", module),
		slog.String("version", version),
	)
}

// SetDefaultStructuredLogger installs a JSON logger on stderr as the slog
// default, tagged with module and version.
func SetDefaultStructuredLogger(module, version, level string) {
	slog.SetDefault(newLogger(os.Stderr, module, version, ParseLogLevel(level)))
}

// NewLogLogger returns a standard library logger backed by the default
// slog handler, for APIs such as http.Server.ErrorLog.
func NewLogLogger(lvl slog.Level) *log.Logger {
	return slog.NewLogLogger(slog.Default().Handler(), lvl)
}
