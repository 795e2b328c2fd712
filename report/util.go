package report

import (
	"fmt"
	"strings"
)

func sprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

func joinChain(chain []string) string {
	return strings.Join(chain, " -> ")
}

// ParseLogLevel maps a CLI-supplied log level name to a LogLevel, defaulting
// to LogLevelVerbose for an unrecognized value.
func ParseLogLevel(name string) LogLevel {
	switch name {
	case "silent":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "warn":
		return LogLevelWarn
	default:
		return LogLevelVerbose
	}
}
