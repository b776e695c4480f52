// Package debug provides debug logging for the segment-go internals, turned
// on by setting SEGMENTGO_DEBUG=true in the environment.
package debug

import (
	"log"
	"os"
	"strconv"
)

var enabled bool

func init() {
	enabled, _ = strconv.ParseBool(os.Getenv("SEGMENTGO_DEBUG"))
}

// Enabled reports whether debug logging is turned on.
func Enabled() bool { return enabled }

// Printf formats a log line and writes it to stderr if debug is enabled.
func Printf(format string, args ...interface{}) {
	if enabled {
		log.Printf(format, args...)
	}
}
