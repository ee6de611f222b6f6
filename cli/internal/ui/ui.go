// Package ui prints colored status lines. Color is disabled automatically
// when the output is not a terminal or NO_COLOR is set.
package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	HeaderColor  = color.New(color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	HintColor    = color.New(color.FgMagenta)
)

func Header(w io.Writer, format string, a ...any) {
	HeaderColor.Fprintf(w, format+"\n", a...)
}

func Info(w io.Writer, format string, a ...any) {
	InfoColor.Fprintf(w, format+"\n", a...)
}

func Success(w io.Writer, format string, a ...any) {
	SuccessColor.Fprintf(w, format+"\n", a...)
}

func Warning(w io.Writer, format string, a ...any) {
	WarningColor.Fprintf(w, format+"\n", a...)
}

func Error(w io.Writer, format string, a ...any) {
	ErrorColor.Fprintf(w, format+"\n", a...)
}

// Hint prints remediation guidance surrounded by blank lines.
func Hint(w io.Writer, hint string) {
	HintColor.Fprintf(w, "\n%s\n\n", hint)
}

// Plain writes without color, for machine-readable output.
func Plain(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, format+"\n", a...)
}
