package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// PartialFailureLines is the warning shown when some stages failed but the
// run as a whole completed.
var PartialFailureLines = []string{
	"WARNING!",
	"Some nodes failed to provision without error.",
	"This usually means a small number of nodes failed to start on a few VMs.",
	"However, most of the time the deployment will still be usable.",
	"See the output from Ansible to determine which VMs had failures.",
}

// Printer writes console output, styled when Styled is set.
type Printer struct {
	Out    io.Writer
	Styled bool
}

// NewPrinter styles output only when w is an interactive terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{Out: w, Styled: IsInteractive(w)}
}

// IsInteractive reports whether w is a terminal.
func IsInteractive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// FormatBanner renders the stage banner:
//
//	=========================================
//	Ansible Run 2 of 5: Provision Normal Nodes
//	=========================================
func FormatBanner(n, total int, name string) string {
	msg := fmt.Sprintf("Ansible Run %d of %d: %s", n, total, name)
	line := strings.Repeat("=", len(msg))
	return line + "\n" + msg + "\n" + line
}

// Banner prints the banner for stage n of total.
func (p *Printer) Banner(n, total int, name string) {
	p.println(p.style(bannerStyle, FormatBanner(n, total, name)))
}

// PartialFailureWarning prints the aggregate warning after a run in which
// some stages failed.
func (p *Printer) PartialFailureWarning() {
	p.println("")
	p.println(p.style(warningStyle, PartialFailureLines[0]))
	for _, line := range PartialFailureLines[1:] {
		p.println(line)
	}
}

// Result prints one line per outcome with a status mark.
func (p *Printer) Result(name, status, detail string) {
	var mark string
	switch status {
	case "succeeded":
		mark = p.style(okStyle, checkMark)
	case "failed":
		mark = p.style(failedStyle, crossMark)
	default:
		mark = p.style(dimStyle, skipMark)
	}
	if detail != "" {
		p.println(fmt.Sprintf("  %s %-32s %s", mark, name, p.style(dimStyle, detail)))
		return
	}
	p.println(fmt.Sprintf("  %s %s", mark, name))
}

// Println writes a plain line.
func (p *Printer) Println(s string) {
	p.println(s)
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.Styled {
		return text
	}
	return s.Render(text)
}

func (p *Printer) println(s string) {
	_, _ = fmt.Fprintln(p.Out, s)
}
