package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ANSI styles used for terminal output. Disabled by --no-color.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Human-facing messages go to msgOut, machine-readable output to dataOut.
// Tests swap both.
var (
	msgOut  io.Writer = os.Stderr
	dataOut io.Writer = os.Stdout
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printMarked(color, mark, format string, args []any) {
	fmt.Fprintln(msgOut, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMarked(colorGreen, "✓", format, args) }
func printError(format string, args ...any)   { printMarked(colorRed, "✗", format, args) }
func printWarning(format string, args ...any) { printMarked(colorYellow, "⚠", format, args) }
func printStep(format string, args ...any)    { printMarked(colorCyan, "→", format, args) }

// printStatus prints an indented "label: value" line.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(msgOut, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func printJSON(v any) error {
	enc := json.NewEncoder(dataOut)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
