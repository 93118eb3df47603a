package output

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Verbosity controls how much diagnostic chatter a Console emits.
type Verbosity int

const (
	// VerbosityQuiet shows errors only.
	VerbosityQuiet Verbosity = iota
	// VerbosityNormal shows errors, warnings, and key operations (default).
	VerbosityNormal
	// VerbosityDetailed shows the above plus per-package progress.
	VerbosityDetailed
	// VerbosityDiagnostic shows the above plus registry requests and cache
	// hit/miss accounting.
	VerbosityDiagnostic
)

// ParseVerbosity maps a --verbosity flag value to a Verbosity level,
// accepting the dotnet-style short spellings alongside full words.
func ParseVerbosity(s string) (Verbosity, error) {
	switch s {
	case "q", "quiet":
		return VerbosityQuiet, nil
	case "n", "normal", "":
		return VerbosityNormal, nil
	case "d", "detailed":
		return VerbosityDetailed, nil
	case "diag", "diagnostic":
		return VerbosityDiagnostic, nil
	default:
		return VerbosityNormal, fmt.Errorf("unknown verbosity %q: want quiet, normal, detailed, or diagnostic", s)
	}
}

// Console is the output abstraction every csx command writes through,
// so that verbosity, color, and stream separation (stdout for data,
// stderr for messages) are applied consistently.
type Console struct {
	out       io.Writer
	err       io.Writer
	verbosity Verbosity
	mu        sync.Mutex
	colors    bool
}

// NewConsole creates a Console writing to out/err at the given verbosity.
func NewConsole(out, err io.Writer, verbosity Verbosity) *Console {
	c := &Console{out: out, err: err, verbosity: verbosity, colors: IsColorEnabled()}
	if !c.colors {
		DisableColors()
	}
	return c
}

// DefaultConsole creates a Console on stdout/stderr at normal verbosity.
func DefaultConsole() *Console {
	return NewConsole(os.Stdout, os.Stderr, VerbosityNormal)
}

// SetVerbosity changes the console's verbosity level.
func (c *Console) SetVerbosity(v Verbosity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbosity = v
}

// Verbosity returns the console's current verbosity level.
func (c *Console) Verbosity() Verbosity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verbosity
}

// Stdout exposes the raw data stream, for commands that write machine
// readable output (e.g. the --resolve-only path list) that must never be
// decorated.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Println writes a line to stdout.
func (c *Console) Println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, a...)
}

// Printf writes formatted output to stdout.
func (c *Console) Printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, a...)
}

// Success writes a green message to stdout (shown at normal verbosity+).
func (c *Console) Success(format string, a ...any) {
	if c.verbosity < VerbosityNormal {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.colors {
		_, _ = ColorSuccess.Fprintf(c.out, format+"\n", a...)
		return
	}
	_, _ = fmt.Fprintf(c.out, format+"\n", a...)
}

// Error writes a red message to stderr. Always shown, regardless of
// verbosity.
func (c *Console) Error(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.colors {
		_, _ = ColorError.Fprintf(c.err, "Error: "+format+"\n", a...)
		return
	}
	_, _ = fmt.Fprintf(c.err, "Error: "+format+"\n", a...)
}

// Warning writes a yellow message to stderr (shown at normal verbosity+).
func (c *Console) Warning(format string, a ...any) {
	if c.verbosity < VerbosityNormal {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.colors {
		_, _ = ColorWarning.Fprintf(c.err, "Warning: "+format+"\n", a...)
		return
	}
	_, _ = fmt.Fprintf(c.err, "Warning: "+format+"\n", a...)
}

// Info writes a cyan message to stderr (shown at normal verbosity+), used
// for progress narration that must not pollute a piped stdout.
func (c *Console) Info(format string, a ...any) {
	if c.verbosity < VerbosityNormal {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.colors {
		_, _ = ColorInfo.Fprintf(c.err, format+"\n", a...)
		return
	}
	_, _ = fmt.Fprintf(c.err, format+"\n", a...)
}

// Detail writes to stderr only at VerbosityDetailed and above, for
// per-package progress lines.
func (c *Console) Detail(format string, a ...any) {
	if c.verbosity < VerbosityDetailed {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.err, format+"\n", a...)
}
