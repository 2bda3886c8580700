package output

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"golang.org/x/term"
)

// Report widths: narrower wraps badly in tables, wider is hard to scan.
const (
	minReportWidth = 20
	maxReportWidth = 120
	fallbackWidth  = 80
)

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// TerminalWidth is the width of stdout, then $COLUMNS, then fallback (80
// when fallback is not positive).
func TerminalWidth(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	if fallback <= 0 {
		return fallbackWidth
	}
	return fallback
}

// RenderMarkdown renders text for stdout: styled for a terminal, plain
// (no ANSI) when piped.
func RenderMarkdown(text string) (string, error) {
	return renderMarkdown(text, TerminalWidth(fallbackWidth), stdoutIsTerminal())
}

// RenderMarkdownWithWidth renders with the plain style at a fixed width.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	return renderMarkdown(text, width, false)
}

func renderMarkdown(text string, width int, styled bool) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	width = min(max(width, minReportWidth), maxReportWidth)

	style := glamour.WithStandardStyle(styles.NoTTYStyle)
	if styled {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}
	out, err := r.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}
