package insight

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mickamy/xprobe/internal/config"
	"github.com/mickamy/xprobe/internal/estimator"
	"github.com/mickamy/xprobe/internal/model"
	"github.com/mickamy/xprobe/internal/parser"
)

// Severity expresses the urgency of an insight message.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message represents an actionable observation about a report.
type Message struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
	Anchor   string   `json:"anchor,omitempty"`
}

// BuildMessages derives human-readable insight messages for a report.
func BuildMessages(report *model.Report) []Message {
	if report == nil {
		return nil
	}
	var out []Message

	if msg := dominantMessage(report); msg != nil {
		out = append(out, *msg)
	}
	if msg := failedProbeMessage(report); msg != nil {
		out = append(out, *msg)
	}
	out = append(out, crossProductMessages(report)...)
	out = append(out, subqueryShareMessages(report)...)
	if msg := nestedSubqueryMessage(report); msg != nil {
		out = append(out, *msg)
	}
	return out
}

func dominantMessage(report *model.Report) *Message {
	if len(report.Bottlenecks) == 0 {
		return nil
	}
	total := 0.0
	for _, step := range report.Timeline {
		if step.Measured() {
			total += *step.DurationS
		}
	}
	if total <= 0 {
		return nil
	}
	cfg := config.Active().Insights
	top := report.Bottlenecks[0]
	share := top.Seconds() / total
	text := fmt.Sprintf("Slowest step: %s took %s (%.1f%% of measured time)", CompactLabel(top), FormatSeconds(top.DurationS), share*100)

	severity := SeverityInfo
	switch {
	case share >= cfg.DominantStepPercent:
		severity = SeverityCritical
	case share >= cfg.DominantStepPercent/2:
		severity = SeverityWarning
	}
	if top.Type == model.StepTable {
		text += ", consider adding an index or tightening the filter"
	}
	return &Message{Severity: severity, Text: text, Anchor: AnchorID(top)}
}

func failedProbeMessage(report *model.Report) *Message {
	var failed []string
	for _, step := range report.Timeline {
		if step.DurationS == nil {
			failed = append(failed, step.Name)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	text := fmt.Sprintf("%d probe(s) failed and were left unmeasured: %s", len(failed), strings.Join(failed, ", "))
	return &Message{Severity: SeverityWarning, Text: text}
}

func crossProductMessages(report *model.Report) []Message {
	var msgs []Message
	for _, step := range report.Timeline {
		if step.Type != model.StepJoin || estimator.ConditionedJoin(step.Detail) {
			continue
		}
		text := fmt.Sprintf("%s has no shared key column, probed as a bounded cross product", step.Name)
		msgs = append(msgs, Message{Severity: SeverityInfo, Text: text, Anchor: AnchorID(step)})
	}
	return msgs
}

func subqueryShareMessages(report *model.Report) []Message {
	full := report.FullQueryDurationS
	if full == nil || *full <= 0 {
		return nil
	}
	cfg := config.Active().Insights
	var msgs []Message
	for _, step := range report.Timeline {
		if step.Type != model.StepSubquery || !step.Measured() {
			continue
		}
		share := *step.DurationS / *full
		if share < cfg.SubquerySharePercent {
			continue
		}
		text := fmt.Sprintf("%s alone costs %.0f%% of the full query, consider rewriting it as a join or caching its result", step.Name, share*100)
		msgs = append(msgs, Message{Severity: SeverityWarning, Text: text, Anchor: AnchorID(step)})
	}
	return msgs
}

func nestedSubqueryMessage(report *model.Report) *Message {
	fragments := len(parser.ExtractSubqueryFragments(report.Query))
	if report.SubqueryCount <= fragments {
		return nil
	}
	text := fmt.Sprintf("%d subqueries found but only %d probed, nested subqueries are timed with their enclosing fragment", report.SubqueryCount, fragments)
	return &Message{Severity: SeverityInfo, Text: text}
}

// FormatSeconds renders a duration in milliseconds, or "n/a" when the probe failed.
func FormatSeconds(d *float64) string {
	if d == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f ms", *d*1000)
}

// CompactLabel shortens long step names for inline summaries.
func CompactLabel(step model.Step) string {
	label := NormalizeWhitespace(step.Name)
	if utf8.RuneCountInString(label) > 60 {
		return string([]rune(label)[:57]) + "..."
	}
	return label
}

// NormalizeWhitespace collapses whitespace for use in HTML or text.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AnchorID derives a stable HTML anchor for a step.
func AnchorID(step model.Step) string {
	var b strings.Builder
	b.WriteString(string(step.Type))
	b.WriteByte('-')
	dash := false
	for _, r := range strings.ToLower(step.Name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
