// Package output provides console output formatting and colorization for
// the csx CLI.
package output

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Color schemes
var (
	ColorSuccess = color.New(color.FgGreen)
	ColorError   = color.New(color.FgRed)
	ColorWarning = color.New(color.FgYellow)
	ColorInfo    = color.New(color.FgCyan)
	ColorHeader  = color.New(color.Bold, color.FgWhite)
)

// IsColorEnabled reports whether color output should be used for stdout.
func IsColorEnabled() bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if t := os.Getenv("TERM"); t == "dumb" {
		return false
	}
	return true
}

// DisableColors disables all color output globally.
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output globally.
func EnableColors() {
	color.NoColor = false
}
