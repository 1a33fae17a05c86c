package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	colorBlack = iota + 30
	colorRed
	colorGreen
	colorYellow
	colorBlue
	colorMagenta
	colorCyan
	colorWhite

	colorBold     = 1
	colorDarkGray = 90
)

func colorize(s interface{}, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// New creates a logger based on the ENV and LOG_LEVEL environment variables
func New() zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv("LOG_LEVEL")))

	if IsDevelopment(os.Getenv("ENV")) {
		return NewDevelopment(os.Stderr)
	}
	return NewProduction(os.Stderr)
}

// IsDevelopment reports whether env names a development environment.
// An unset ENV counts as development.
func IsDevelopment(env string) bool {
	return env == "development" || env == "dev" || env == ""
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewDevelopment creates a development logger with console output and colors
func NewDevelopment(out io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		FormatLevel: func(i interface{}) string {
			var l string
			if ll, ok := i.(string); ok {
				switch ll {
				case "trace":
					l = colorize("TRC", colorMagenta)
				case "debug":
					l = colorize("DBG", colorYellow)
				case "info":
					l = colorize("INF", colorGreen)
				case "warn":
					l = colorize("WRN", colorRed)
				case "error":
					l = colorize("ERR", colorRed)
				case "fatal":
					l = colorize("FTL", colorRed)
				case "panic":
					l = colorize("PNC", colorRed)
				default:
					l = colorize(strings.ToUpper(ll)[0:3], colorBold)
				}
			} else {
				l = strings.ToUpper(fmt.Sprintf("%s", i))[0:3]
			}
			return l
		},
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// NewProduction creates a production logger with JSON output and UNIX timestamps
func NewProduction(out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(out).With().Timestamp().Logger()
}

// TokenPreview returns a sanitized form of a bearer token that is safe to log.
func TokenPreview(token string) string {
	if len(token) > 12 {
		return token[:6] + "…" + token[len(token)-6:]
	}
	return strings.Repeat("*", len(token))
}
