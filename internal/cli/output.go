package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/rxrag/internal/metrics"
	"github.com/raphaelgruber/rxrag/internal/models"
	"golang.org/x/term"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Heading lipgloss.Color
	Answer  lipgloss.Color
	Source  lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Heading: lipgloss.Color("#5FAFD7"), // light blue
	Answer:  lipgloss.Color("#00D787"), // green
	Source:  lipgloss.Color("#AF87FF"), // purple
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) headingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Heading).Bold(true)
}

func (t Theme) answerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Answer)
}

func (t Theme) sourceStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Source).Italic(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// printer writes plain text, or styled text when out is a terminal.
type printer struct {
	out    io.Writer
	styled bool
	theme  Theme
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, styled: isTerminal(out), theme: defaultTheme}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) heading(text string) {
	fmt.Fprintln(p.out, p.render(p.theme.headingStyle(), text))
}

func (p *printer) hint(text string) {
	fmt.Fprintln(p.out, p.render(p.theme.hintStyle(), text))
}

func (p *printer) errorf(format string, args ...any) {
	fmt.Fprintln(p.out, p.render(p.theme.errorStyle(), "Error: "+fmt.Sprintf(format, args...)))
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// result prints an answer followed by its source tag.
func (p *printer) result(r models.Result) {
	fmt.Fprintln(p.out, p.render(p.theme.answerStyle(), r.Response))
	source := "none"
	if r.Source != models.SourceNone {
		source = string(r.Source)
	}
	fmt.Fprintln(p.out, p.render(p.theme.sourceStyle(), "[source: "+source+"]"))
}

// section prints a titled block of text.
func (p *printer) section(title, body string) {
	p.heading(title)
	p.heading(strings.Repeat("═", len([]rune(title))))
	fmt.Fprintln(p.out, body)
}

// stats displays runtime statistics.
func (p *printer) stats(sessions int, snap metrics.Snapshot) {
	p.heading("Server Statistics (in-memory, since restart)")
	p.heading("═══════════════════════════════════════════════")
	p.line("Uptime: %.1f seconds", snap.UptimeSeconds)
	p.line("Requests: %d, Failures: %d, Sessions: %d", snap.Requests, snap.Failures, sessions)
	p.line("Knowledge cache: %d hits, %d misses (%.0f%% hit rate)",
		snap.Cache.Hits, snap.Cache.Misses, snap.Cache.HitRate*100)

	ops := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"Inference", snap.Inference},
		{"Routing", snap.Route},
		{"LLM Generate", snap.LLMGenerate},
		{"Record Load", snap.RecordLoad},
		{"Catalog Query", snap.CatalogQuery},
	}
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		p.line("\n%s:", o.name)
		p.opStats(o.op)
	}
}

// opStats displays timing statistics for an operation.
func (p *printer) opStats(op *metrics.OperationSnapshot) {
	p.line("  Calls: %d, Total: %dms", op.Count, op.TotalTimeMs)
	p.line("  Time: avg %.1fms, min %dms, max %dms", op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	if op.TotalInputTokens != nil && op.TotalOutputTokens != nil {
		p.line("  Tokens: %d in, %d out", *op.TotalInputTokens, *op.TotalOutputTokens)
	}
}
