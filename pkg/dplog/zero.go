package dplog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var Zero = NewZeroLogger("", "info", false)

var logFile *os.File

// NewZeroLogger builds the data plane logger. Output is JSON unless pretty is set,
// in which case a human readable console writer is used.
func NewZeroLogger(filepath string, level string, pretty bool) *zerolog.Logger {
	file, writer, err := newWriter(filepath)
	if err != nil {
		writer = os.Stdout
	}
	if file != nil {
		logFile = file
	}

	var out io.Writer = writer
	if pretty {
		out = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(level))
	return &logger
}

// ReloadLogger swaps the global logger, closing the previously opened log file.
func ReloadLogger(filepath string, level string, pretty bool) {
	oldFile := logFile
	Zero = NewZeroLogger(filepath, level, pretty)
	if oldFile != nil && oldFile != logFile {
		_ = oldFile.Close()
	}
}

// UpdateZeroLogLevel changes the level of the global logger in place.
func UpdateZeroLogLevel(logLevel string) error {
	if _, err := zerolog.ParseLevel(strings.ToLower(logLevel)); err != nil && !strings.EqualFold(logLevel, "warning") {
		return err
	}
	level := parseLevel(logLevel)
	zeroLogger := Zero.With().Logger().Level(level)
	Zero = &zeroLogger
	return nil
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warning", "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
