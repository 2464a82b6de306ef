// Package logging builds the zerolog loggers used by the binaries.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps a config string to a zerolog level. Unknown values fall
// back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "DISABLED", "OFF":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New returns a timestamped logger writing to w at level. pretty selects
// the colored console format; otherwise every line is one JSON object.
func New(level string, pretty bool, w io.Writer) zerolog.Logger {
	out := w
	if pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// Sampled keeps bursts of per-tick debug lines readable: five trace or
// debug entries per period, then one in n. Info and above pass untouched.
func Sampled(log zerolog.Logger, period time.Duration, n uint32) zerolog.Logger {
	burst := &zerolog.BurstSampler{
		Burst:       5,
		Period:      period,
		NextSampler: &zerolog.BasicSampler{N: n},
	}
	return log.Sample(zerolog.LevelSampler{TraceSampler: burst, DebugSampler: burst})
}
