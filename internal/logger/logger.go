package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with application-specific methods
type Logger struct {
	zerolog.Logger
}

// New creates a Logger writing to stdout. Unknown levels fall back to
// info. The "text" and "console" formats produce human-readable output
// for development; anything else produces JSON.
func New(level, format string) *Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	var out io.Writer
	switch format {
	case "text", "console":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	default:
		out = os.Stdout
	}

	z := zerolog.New(out).Level(parsed).With().Timestamp().Caller().Logger()
	return &Logger{Logger: z}
}

// WithComponent returns a child logger tagged with the component name
func (l *Logger) WithComponent(component string) *Logger {
	child := l.With().Str("component", component).Logger()
	return &Logger{Logger: child}
}

// HTTPRequest writes one access log entry per served request
func (l *Logger) HTTPRequest(method, path, requestID, clientIP string, status int, bytes int64, duration time.Duration) {
	l.Info().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", status).
		Int64("bytes", bytes).
		Dur("duration", duration).
		Str("client_ip", clientIP).
		Msg("http request")
}
