// Package report prints the user-facing console diagnostics.
package report

import (
	"os"

	"github.com/fatih/color"
)

var (
	errColor  = color.New(color.FgRed)
	warnColor = color.New(color.FgGreen)
)

// Errorf prints a fatal diagnostic and terminates with a non-zero code.
func Errorf(format string, args ...interface{}) {
	errColor.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// Warningf prints a non-fatal diagnostic.
func Warningf(format string, args ...interface{}) {
	warnColor.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
