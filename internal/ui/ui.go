// Package ui holds the presentation constants of the console: banner, help
// text and a colored line printer. Nothing here has state beyond the writer
// and the color switch.
package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// ClearScreen moves the cursor home and erases the display.
const ClearScreen = "\033[H\033[J"

// DefaultPrompt is shown before each REPL read.
const DefaultPrompt = "kala@firewall $ "

// HelpEntry is one line of the help table.
type HelpEntry struct {
	Usage       string
	Description string
	Attr        color.Attribute
}

// Help lists the commands understood by the console.
var Help = []HelpEntry{
	{"allow <IP>", "Allow traffic for a specific IP", color.FgGreen},
	{"reset", "Reset all iptables rules", color.FgYellow},
	{"clear", "Clear the screen", color.FgCyan},
	{"history", "Show command history", color.FgCyan},
	{"help", "Show this help", color.FgCyan},
	{"exit", "Exit the program", color.FgRed},
}

// Printer writes colored status lines.
type Printer struct {
	w       io.Writer
	noColor bool
}

// NewPrinter returns a printer writing to w. Colors are off when noColor is set.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	return &Printer{w: w, noColor: noColor}
}

func (p *Printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c
}

func (p *Printer) line(attr color.Attribute, format string, args ...interface{}) {
	fmt.Fprintln(p.w, p.paint(attr).Sprintf(format, args...))
}

// Info prints a success line in green.
func (p *Printer) Info(format string, args ...interface{}) {
	p.line(color.FgGreen, format, args...)
}

// Warn prints a yellow line.
func (p *Printer) Warn(format string, args ...interface{}) {
	p.line(color.FgYellow, format, args...)
}

// Error prints a red line.
func (p *Printer) Error(format string, args ...interface{}) {
	p.line(color.FgRed, format, args...)
}

// Notice prints a cyan line.
func (p *Printer) Notice(format string, args ...interface{}) {
	p.line(color.FgCyan, format, args...)
}

// Plain prints without color.
func (p *Printer) Plain(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Prompt renders the prompt string in cyan.
func (p *Printer) Prompt(prompt string) string {
	return p.paint(color.FgCyan).Sprint(prompt)
}

// Banner prints the start-up banner.
func (p *Printer) Banner() {
	cyan := p.paint(color.FgCyan).SprintFunc()
	red := p.paint(color.FgRed).SprintFunc()
	green := p.paint(color.FgGreen).SprintFunc()
	blue := p.paint(color.FgBlue).SprintFunc()

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, cyan("    ======================================"))
	fmt.Fprintln(p.w, cyan("    |           ")+red("KalaFireWall")+cyan("           |"))
	fmt.Fprintln(p.w, cyan("    |   ")+green("Simple Network Monitor")+cyan("       |"))
	fmt.Fprintln(p.w, cyan("    | ")+blue("Developed for Traffic Control")+cyan("   |"))
	fmt.Fprintln(p.w, cyan("    ======================================"))
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, cyan("    +++++++++++++++++++++++++++++++++++++++++++++++"))
	fmt.Fprintln(p.w, green("     By ")+blue("N V R K Sai Kamesh"))
	fmt.Fprintln(p.w, cyan("    +++++++++++++++++++++++++++++++++++++++++++++++"))
	fmt.Fprintln(p.w)
}

// Help prints the command table.
func (p *Printer) Help() {
	p.Notice("Available Commands:")
	for _, e := range Help {
		usage := p.paint(e.Attr).Sprintf("%-15s", e.Usage)
		fmt.Fprintf(p.w, "  %s - %s\n", usage, e.Description)
	}
}

// Clear erases the terminal and redraws the banner.
func (p *Printer) Clear() {
	fmt.Fprint(p.w, ClearScreen)
	p.Banner()
}
