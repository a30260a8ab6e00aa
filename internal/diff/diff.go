package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mickamy/xprobe/internal/config"
	"github.com/mickamy/xprobe/internal/model"
)

// Options configures the diff sensitivity.
type Options struct {
	MinDeltaMs       float64
	MinPercentChange float64
	MaxItems         int
}

// Report summarises the delta between two analysis reports.
type Report struct {
	Summary      SummaryDiff      `json:"summary"`
	Regressions  []Entry          `json:"regressions"`
	Improvements []Entry          `json:"improvements"`
	Unmeasured   []Entry          `json:"unmeasured"`
	Insights     []insightMessage `json:"insights"`
	Options      Options          `json:"-"`
}

// SummaryDiff covers the full-query duration and the top bottleneck on each side.
type SummaryDiff struct {
	BaseQueryMs        float64 `json:"base_query_ms"`
	TargetQueryMs      float64 `json:"target_query_ms"`
	DeltaQueryMs       float64 `json:"delta_query_ms"`
	PercentQuery       float64 `json:"percent_query"`
	BaseBottleneck     string  `json:"base_bottleneck"`
	TargetBottleneck   string  `json:"target_bottleneck"`
	BaseFailedProbes   int     `json:"base_failed_probes"`
	TargetFailedProbes int     `json:"target_failed_probes"`
}

// Entry captures the delta for steps sharing a type and name.
// Missing durations compare as zero; the flags record which side had none.
// Entries with a missing side are never ranked as regressions or improvements.
type Entry struct {
	Signature     string         `json:"signature"`
	Type          model.StepType `json:"type"`
	Name          string         `json:"name"`
	BaseMs        float64        `json:"base_ms"`
	TargetMs      float64        `json:"target_ms"`
	DeltaMs       float64        `json:"delta_ms"`
	PercentChange float64        `json:"percent_change"`
	BaseMissing   bool           `json:"base_missing"`
	TargetMissing bool           `json:"target_missing"`
}

type insightMessage struct {
	Severity string `json:"severity"`
	Icon     string `json:"icon"`
	Message  string `json:"message"`
}

// Compare builds a diff report for two analysis reports.
func Compare(base, target *model.Report, opts Options) (*Report, error) {
	if base == nil || len(base.Timeline) == 0 {
		return nil, fmt.Errorf("diff: base report missing")
	}
	if target == nil || len(target.Timeline) == 0 {
		return nil, fmt.Errorf("diff: target report missing")
	}

	opts = applyDefaults(opts)

	baseAgg := aggregate(base.Timeline)
	targetAgg := aggregate(target.Timeline)

	var regressions, improvements, unmeasured []Entry
	for _, sig := range unionKeys(baseAgg, targetAgg) {
		entry := buildEntry(sig, baseAgg[sig], targetAgg[sig])
		if entry.BaseMissing || entry.TargetMissing {
			if entry.BaseMissing != entry.TargetMissing {
				unmeasured = append(unmeasured, entry)
			}
			continue
		}
		if passesRegression(entry, opts) {
			regressions = append(regressions, entry)
		} else if passesImprovement(entry, opts) {
			improvements = append(improvements, entry)
		}
	}

	sort.SliceStable(regressions, func(i, j int) bool {
		return regressions[i].DeltaMs > regressions[j].DeltaMs
	})
	sort.SliceStable(improvements, func(i, j int) bool {
		return improvements[i].DeltaMs < improvements[j].DeltaMs
	})

	if opts.MaxItems > 0 {
		if len(regressions) > opts.MaxItems {
			regressions = regressions[:opts.MaxItems]
		}
		if len(improvements) > opts.MaxItems {
			improvements = improvements[:opts.MaxItems]
		}
	}

	baseMs := millis(base.FullQueryDurationS)
	targetMs := millis(target.FullQueryDurationS)
	report := &Report{
		Summary: SummaryDiff{
			BaseQueryMs:        baseMs,
			TargetQueryMs:      targetMs,
			DeltaQueryMs:       targetMs - baseMs,
			PercentQuery:       percentChange(baseMs, targetMs),
			BaseBottleneck:     topBottleneck(base),
			TargetBottleneck:   topBottleneck(target),
			BaseFailedProbes:   countFailed(base.Timeline),
			TargetFailedProbes: countFailed(target.Timeline),
		},
		Regressions:  regressions,
		Improvements: improvements,
		Unmeasured:   unmeasured,
		Options:      opts,
	}
	report.Insights = synthesizeInsights(report)
	return report, nil
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# xprobe diff\n\n")
	b.WriteString("## Summary\n")
	_, _ = fmt.Fprintf(&b, "- Full query: %.3f ms → %.3f ms (%+.3f ms, %+.1f%%)\n",
		r.Summary.BaseQueryMs, r.Summary.TargetQueryMs,
		r.Summary.DeltaQueryMs, r.Summary.PercentQuery)
	_, _ = fmt.Fprintf(&b, "- Top bottleneck: %s → %s\n", orNone(r.Summary.BaseBottleneck), orNone(r.Summary.TargetBottleneck))
	_, _ = fmt.Fprintf(&b, "- Failed probes: %d → %d\n\n", r.Summary.BaseFailedProbes, r.Summary.TargetFailedProbes)

	b.WriteString("### Insights\n")
	if len(r.Insights) == 0 {
		b.WriteString("- No notable timing changes detected\n")
	} else {
		for _, insight := range r.Insights {
			_, _ = fmt.Fprintf(&b, "- %s %s\n", insight.Icon, insight.Message)
		}
	}

	b.WriteString("\n### Regressions\n")
	writeTable(&b, r.Regressions)
	b.WriteString("\n### Improvements\n")
	writeTable(&b, r.Improvements)
	if len(r.Unmeasured) > 0 {
		b.WriteString("\n### Unmeasured\n")
		writeTable(&b, r.Unmeasured)
	}
	return b.String()
}

// JSON marshals the diff report into an indented JSON document.
func (r *Report) JSON() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}
	type alias Report
	return json.MarshalIndent((*alias)(r), "", "  ")
}

func writeTable(b *strings.Builder, entries []Entry) {
	if len(entries) == 0 {
		b.WriteString("- None above threshold\n")
		return
	}
	b.WriteString("| Step | Type | Base (ms) | Target (ms) | Δ (ms) | Δ % |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|\n")
	for _, entry := range entries {
		_, _ = fmt.Fprintf(b, "| %s | %s | %s | %s | %+.2f | %+.1f%% |\n",
			entry.Name,
			entry.Type,
			cell(entry.BaseMs, entry.BaseMissing),
			cell(entry.TargetMs, entry.TargetMissing),
			entry.DeltaMs,
			entry.PercentChange)
	}
}

func cell(ms float64, missing bool) string {
	if missing {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", ms)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func synthesizeInsights(r *Report) []insightMessage {
	if r == nil {
		return nil
	}
	var insights []insightMessage
	maxItems := 3

	for i, entry := range r.Regressions {
		if i >= maxItems {
			break
		}
		text := fmt.Sprintf("%s +%.2f ms (+%.1f%%)", entry.Name, entry.DeltaMs, entry.PercentChange)
		icon, level := "⚠️", "warning"
		if entry.DeltaMs >= r.Options.MinDeltaMs*10 {
			icon, level = "🔥", "critical"
		}
		insights = append(insights, insightMessage{Severity: level, Icon: icon, Message: text})
	}

	for i, entry := range r.Improvements {
		if i >= maxItems {
			break
		}
		text := fmt.Sprintf("%s %.2f ms (%.1f%%)", entry.Name, entry.DeltaMs, entry.PercentChange)
		insights = append(insights, insightMessage{Severity: "improvement", Icon: "✅", Message: text})
	}

	for _, entry := range r.Unmeasured {
		if entry.TargetMissing {
			insights = append(insights, insightMessage{Severity: "warning", Icon: "⚠️", Message: entry.Name + " no longer measures (probe failed)"})
		}
	}

	if r.Summary.BaseBottleneck != r.Summary.TargetBottleneck && r.Summary.TargetBottleneck != "" {
		text := fmt.Sprintf("Top bottleneck moved from %s to %s", orNone(r.Summary.BaseBottleneck), r.Summary.TargetBottleneck)
		insights = append(insights, insightMessage{Severity: "info", Icon: "ℹ️", Message: text})
	}
	return insights
}

type aggregated struct {
	Type    model.StepType
	Name    string
	Ms      float64
	Missing bool
	Present bool
}

func aggregate(steps []model.Step) map[string]aggregated {
	result := map[string]aggregated{}
	for _, step := range steps {
		sig := signature(step)
		entry := result[sig]
		entry.Type = step.Type
		entry.Name = step.Name
		entry.Present = true
		if step.DurationS == nil {
			entry.Missing = true
		}
		entry.Ms += step.Seconds() * 1000
		result[sig] = entry
	}
	return result
}

func signature(step model.Step) string {
	return string(step.Type) + "|" + step.Name
}

func unionKeys(base, target map[string]aggregated) []string {
	seen := map[string]struct{}{}
	for k := range base {
		seen[k] = struct{}{}
	}
	for k := range target {
		seen[k] = struct{}{}
	}
	all := make([]string, 0, len(seen))
	for k := range seen {
		all = append(all, k)
	}
	sort.Strings(all)
	return all
}

func buildEntry(sig string, base, target aggregated) Entry {
	ref := base
	if !ref.Present {
		ref = target
	}
	return Entry{
		Signature:     sig,
		Type:          ref.Type,
		Name:          ref.Name,
		BaseMs:        base.Ms,
		TargetMs:      target.Ms,
		DeltaMs:       target.Ms - base.Ms,
		PercentChange: percentChange(base.Ms, target.Ms),
		BaseMissing:   base.Missing || !base.Present,
		TargetMissing: target.Missing || !target.Present,
	}
}

func passesRegression(entry Entry, opts Options) bool {
	return entry.DeltaMs >= opts.MinDeltaMs && entry.PercentChange >= opts.MinPercentChange
}

func passesImprovement(entry Entry, opts Options) bool {
	return entry.DeltaMs <= -opts.MinDeltaMs && entry.PercentChange <= -opts.MinPercentChange
}

func topBottleneck(r *model.Report) string {
	if len(r.Bottlenecks) == 0 {
		return ""
	}
	return r.Bottlenecks[0].Name
}

func countFailed(steps []model.Step) int {
	n := 0
	for _, step := range steps {
		if step.DurationS == nil {
			n++
		}
	}
	return n
}

func millis(d *float64) float64 {
	if d == nil {
		return 0
	}
	return *d * 1000
}

func percentChange(base, target float64) float64 {
	const eps = 1e-9
	if math.Abs(base) <= eps {
		if math.Abs(target) <= eps {
			return 0
		}
		if target > 0 {
			return 100
		}
		return -100
	}
	return (target - base) / base * 100
}

func applyDefaults(opts Options) Options {
	cfg := config.Active().Diff
	if opts.MinDeltaMs <= 0 {
		opts.MinDeltaMs = cfg.MinDeltaMs
	}
	if opts.MinPercentChange <= 0 {
		opts.MinPercentChange = cfg.MinPercentChange
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = cfg.MaxItems
	}
	return opts
}
