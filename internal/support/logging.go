package support

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ConfigureLogger points the default charmbracelet logger at stderr and, when
// logFile is set, a rotating file as well. Unknown levels and formats fall
// back to info and text. The returned closer releases the file.
func ConfigureLogger(level, format, logFile string) io.Closer {
	lvl, levelErr := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if levelErr != nil {
		lvl = log.InfoLevel
	}
	formatter, formatErr := parseFormatter(format)
	if formatErr != nil {
		formatter = log.TextFormatter
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotating)
		closer = rotating
	}

	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(formatter)
	log.SetReportTimestamp(true)

	if levelErr != nil {
		log.Warn("Unknown log level, using info", "level", level)
	}
	if formatErr != nil {
		log.Warn("Unknown log format, using text", "error", formatErr)
	}
	return closer
}

func parseFormatter(format string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return log.TextFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	}
	return 0, fmt.Errorf("invalid log format %q", format)
}
