package config

import (
	"fmt"
	"os"
	"strings"
)

// Exitf prints a fatal error to stderr and terminates the process with
// exit code 1. Command entry points use it for failures that happen
// before structured logging is up, such as flag or environment parsing.
func Exitf(format string, args ...any) {
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
