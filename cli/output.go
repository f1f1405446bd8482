// Package cli holds terminal output helpers shared by the critq commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// Printer writes messages to an output and an error stream, coloring them
// unless color is disabled.
type Printer struct {
	out io.Writer
	err io.Writer

	success *color.Color
	warn    *color.Color
	fail    *color.Color
	bold    *color.Color
	dim     *color.Color
}

// NewPrinter returns a printer writing to out and errOut. When useColor is
// false no escape sequences are written.
func NewPrinter(out, errOut io.Writer, useColor bool) *Printer {
	p := &Printer{
		out:     out,
		err:     errOut,
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.success, p.warn, p.fail, p.bold, p.dim} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Stdout returns a printer on the process streams, colored when stdout is a
// terminal.
func Stdout() *Printer {
	return NewPrinter(os.Stdout, os.Stderr, !color.NoColor)
}

// Out is the output stream.
func (p *Printer) Out() io.Writer { return p.out }

// Info prints an informational message.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.out, msg)
}

// Infof prints a formatted informational message.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Heading prints msg in bold.
func (p *Printer) Heading(msg string) {
	fmt.Fprintln(p.out, p.bold.Sprint(msg))
}

// Faint prints a de-emphasized line.
func (p *Printer) Faint(msg string) {
	fmt.Fprintln(p.out, p.dim.Sprint(msg))
}

// Successf prints a formatted success message.
func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.out, p.success.Sprint("✓ ")+fmt.Sprintf(format, args...))
}

// Warnf prints a formatted warning to the error stream.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.err, p.warn.Sprint("warning: ")+fmt.Sprintf(format, args...))
}

// Error prints err to the error stream.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.err, p.fail.Sprint("error: ")+err.Error())
}

// Yes formats a positive table cell.
func (p *Printer) Yes(s string) string { return p.success.Sprint(s) }

// No formats a negative table cell.
func (p *Printer) No(s string) string { return p.fail.Sprint(s) }

// Table prints rows in aligned columns under a bold header.
func (p *Printer) Table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	bolded := make([]string, len(headers))
	for i, h := range headers {
		bolded[i] = p.bold.Sprint(h)
	}
	fmt.Fprintln(tw, strings.Join(bolded, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// FatalErr prints an error message with details to stderr and exits with code 1.
func FatalErr(msg string, err error) {
	Stdout().Error(fmt.Errorf("%s: %w", msg, err))
	os.Exit(1)
}
