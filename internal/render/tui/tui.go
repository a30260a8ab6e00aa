package tui

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"

	"github.com/mickamy/xprobe/internal/insight"
	"github.com/mickamy/xprobe/internal/model"
)

// Options controls how the TUI renderer behaves.
type Options struct {
	EnableColor bool
	MaxRows     int
	BarWidth    int
	HidePlan    bool
}

type palette struct {
	red, yellow, cyan, bold, faint *color.Color
}

func newPalette(enable bool) palette {
	p := palette{
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		bold:   color.New(color.Bold),
		faint:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.red, p.yellow, p.cyan, p.bold, p.faint} {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Render prints the report summary, insights, bottlenecks, the ranked timeline and the raw plan.
func Render(w io.Writer, report *model.Report, opts Options) error {
	if w == nil {
		return errors.New("tui: writer is nil")
	}
	if report == nil || len(report.Timeline) == 0 {
		return errors.New("tui: empty report")
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = 20
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = 10
	}
	p := newPalette(opts.EnableColor)

	_, _ = fmt.Fprintln(w, p.bold.Sprint("=== SQL ANALYSIS REPORT ==="))
	_, _ = fmt.Fprintf(w, "Dialect %s | Joins %d | Subqueries %d | Full query %s\n",
		orDash(report.Dialect), report.JoinCount, report.SubqueryCount, insight.FormatSeconds(report.FullQueryDurationS))
	_, _ = fmt.Fprintf(w, "Tables: %s\n\n", strings.Join(report.Tables, ", "))

	renderInsights(w, report, p)

	_, _ = fmt.Fprintln(w, "Bottlenecks:")
	if len(report.Bottlenecks) == 0 {
		_, _ = fmt.Fprintln(w, "  (none measured)")
	}
	for _, step := range report.Bottlenecks {
		_, _ = fmt.Fprintf(w, "  * %s - %s : %s\n", step.Type, insight.CompactLabel(step), insight.FormatSeconds(step.DurationS))
	}
	_, _ = fmt.Fprintln(w)

	renderTimeline(w, report, opts, p)

	if !opts.HidePlan {
		_, _ = fmt.Fprintln(w, "\nPlan (raw):")
		if len(report.Explain) == 0 {
			_, _ = fmt.Fprintln(w, p.faint.Sprint("  (unavailable)"))
		}
		for _, row := range report.Explain.Strings() {
			_, _ = fmt.Fprintf(w, "  %s\n", row)
		}
	}
	return nil
}

func renderTimeline(w io.Writer, report *model.Report, opts Options, p palette) {
	longest := 0.0
	for _, step := range report.Timeline {
		longest = math.Max(longest, step.Seconds())
	}

	_, _ = fmt.Fprintln(w, "Timeline (sorted by measured duration):")
	for i, step := range report.Timeline {
		if i >= opts.MaxRows {
			_, _ = fmt.Fprintf(w, "  ... (%d more steps)\n", len(report.Timeline)-i)
			break
		}
		ratio := 0.0
		if longest > 0 {
			ratio = step.Seconds() / longest
		}
		bar := drawBar(ratio, opts.BarWidth)
		if c := pickColor(ratio, p); c != nil {
			bar = c.Sprint(bar)
		}
		duration := insight.FormatSeconds(step.DurationS)
		if step.DurationS == nil {
			duration = p.yellow.Sprint(duration)
		}
		_, _ = fmt.Fprintf(w, "  %-12s | %-60s | %s | %s\n", step.Type, truncate(step.Name, 60), bar, duration)
	}
}

func renderInsights(w io.Writer, report *model.Report, p palette) {
	messages := insight.BuildMessages(report)
	if len(messages) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "Insights:")
	for _, msg := range messages {
		icon := severityIcon(msg.Severity)
		text := msg.Text
		switch msg.Severity {
		case insight.SeverityCritical:
			text = p.red.Sprint(text)
		case insight.SeverityWarning:
			text = p.yellow.Sprint(text)
		}
		_, _ = fmt.Fprintf(w, "  - %s %s\n", icon, text)
	}
	_, _ = fmt.Fprintln(w)
}

func drawBar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	clamped := math.Min(math.Max(ratio, 0), 1)
	fill := int(math.Round(clamped * float64(width)))
	if clamped > 0 && fill == 0 {
		fill = 1
	}
	return strings.Repeat("#", fill) + strings.Repeat("-", width-fill)
}

func pickColor(ratio float64, p palette) *color.Color {
	switch {
	case ratio >= 0.80:
		return p.red
	case ratio >= 0.40:
		return p.yellow
	case ratio >= 0.10:
		return p.cyan
	default:
		return nil
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func severityIcon(sev insight.Severity) string {
	switch sev {
	case insight.SeverityCritical:
		return "🔥"
	case insight.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
