// Package logger wires up the module's structured logger.
package logger

import (
	"os"

	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
)

// debugEnv, when set to any non-empty value, lowers Log's level to
// debug; otherwise Log is set to info.
const debugEnv = "TINYINFINITENSOR_DEBUG"

// Log is the package-wide structured logger used by core/graph,
// core/alloc and runtime/cpu to emit diagnostic events. It never
// participates in control flow.
var Log = newLogger()

func newLogger() zerolog.Logger {
	l := logger.With().Str("component", "tensorgraph").Caller().Logger().
		Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	if os.Getenv(debugEnv) != "" {
		l = l.Level(zerolog.DebugLevel)
	}
	return l
}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}
