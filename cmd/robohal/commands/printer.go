package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

func success(w io.Writer, format string, a ...any) {
	green.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, a...))
}

func warning(w io.Writer, format string, a ...any) {
	yellow.Fprintf(w, "! %s\n", fmt.Sprintf(format, a...))
}

// failure prints err in red and returns it for cobra, which is told not to print it.
func failure(w io.Writer, err error) error {
	red.Fprintf(w, "✗ %v\n", err)
	return err
}

// boardLine prints one board of a listing.
func boardLine(w io.Writer, kind, serial, firmware string) {
	if firmware == "" {
		firmware = faint.Sprint("-")
	}
	fmt.Fprintf(w, "%s  %s  %s\n", cyan.Sprintf("%-12s", kind), serial, firmware)
}
