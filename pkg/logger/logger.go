// pkg/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger
)

// Cloud Logging reads the level from "severity" and expects its own names.
var severityNames = map[zerolog.Level]string{
	zerolog.TraceLevel: "DEBUG",
	zerolog.DebugLevel: "DEBUG",
	zerolog.InfoLevel:  "INFO",
	zerolog.WarnLevel:  "WARNING",
	zerolog.ErrorLevel: "ERROR",
	zerolog.FatalLevel: "CRITICAL",
	zerolog.PanicLevel: "ALERT",
}

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	Log = New(os.Stdout, "console").Level(zerolog.InfoLevel)
	log.Logger = Log
}

// New builds a logger writing to w. Format "json" emits Cloud Logging
// compatible records, anything else a colored console stream.
func New(w io.Writer, format string) zerolog.Logger {
	if strings.EqualFold(format, "json") {
		return zerolog.New(severityWriter{w: w}).
			With().
			Timestamp().
			Caller().
			Logger()
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Configure replaces the global logger with one using the given format and level.
func Configure(levelStr, format string) {
	Log = New(os.Stdout, format)
	SetLevel(levelStr)
}

// SetLevel sets the log level
func SetLevel(levelStr string) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil || levelStr == "" {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	Log = Log.Level(level)
	// packages logging through zerolog/log share the same sink
	log.Logger = Log
}

// severityWriter adds a "severity" field next to zerolog's own level field.
type severityWriter struct {
	w io.Writer
}

func (s severityWriter) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s severityWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	name, ok := severityNames[level]
	if !ok {
		name = "DEFAULT"
	}
	// p is a single JSON object; splice the field in after the opening brace.
	if len(p) > 1 && p[0] == '{' {
		out := make([]byte, 0, len(p)+len(name)+16)
		out = append(out, `{"severity":"`...)
		out = append(out, name...)
		out = append(out, '"')
		if p[1] != '}' {
			out = append(out, ',')
		}
		out = append(out, p[1:]...)
		if _, err := s.w.Write(out); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return s.w.Write(p)
}
