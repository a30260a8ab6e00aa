package html

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"strings"

	"github.com/mickamy/xprobe/internal/insight"
	"github.com/mickamy/xprobe/internal/model"
)

// Options configures the HTML renderer.
type Options struct {
	Title         string
	IncludeStyles bool
}

var reportTpl = template.Must(template.New("report").Funcs(template.FuncMap{"join": strings.Join}).Parse(reportTemplate))

// Render writes a self-contained HTML report with summary tiles, insights, bottlenecks,
// the ranked timeline and the raw plan.
func Render(w io.Writer, report *model.Report, opts Options) error {
	if report == nil || len(report.Timeline) == 0 {
		return fmt.Errorf("html render: empty report")
	}
	if opts.Title == "" {
		opts.Title = "xprobe report"
	}
	if err := reportTpl.Execute(w, buildTemplateData(report, opts)); err != nil {
		return fmt.Errorf("html render: execute template: %w", err)
	}
	return nil
}

type templateData struct {
	Title         string
	IncludeStyles bool
	Summary       summaryView
	Query         string
	Bottlenecks   []listView
	Insights      []insightView
	Steps         []stepView
	Plan          []string
}

type summaryView struct {
	FullQuery   string
	Dialect     string
	Joins       int
	Subqueries  int
	Tables      []string
	Steps       int
	Failed      int
	GeneratedAt string
}

type listView struct {
	Label  string
	Type   string
	Time   string
	Share  string
	Anchor string
}

type insightView struct {
	Icon     string
	Severity string
	Text     string
	Anchor   string
}

type stepView struct {
	Label    string
	Type     string
	Anchor   string
	Time     string
	Detail   string
	BarWidth float64
	Heat     float64
	Failed   bool
}

func buildTemplateData(report *model.Report, opts Options) templateData {
	messages := insight.BuildMessages(report)
	insights := make([]insightView, 0, len(messages))
	for _, msg := range messages {
		insights = append(insights, insightView{
			Icon:     severityIcon(msg.Severity),
			Severity: string(msg.Severity),
			Text:     msg.Text,
			Anchor:   msg.Anchor,
		})
	}

	longest, total := 0.0, 0.0
	failed := 0
	for _, step := range report.Timeline {
		longest = math.Max(longest, step.Seconds())
		total += step.Seconds()
		if step.DurationS == nil {
			failed++
		}
	}

	bottlenecks := make([]listView, 0, len(report.Bottlenecks))
	for _, step := range report.Bottlenecks {
		bottlenecks = append(bottlenecks, listView{
			Label:  step.Name,
			Type:   string(step.Type),
			Time:   insight.FormatSeconds(step.DurationS),
			Share:  fmt.Sprintf("%.1f%%", share(step.Seconds(), total)*100),
			Anchor: insight.AnchorID(step),
		})
	}

	steps := make([]stepView, 0, len(report.Timeline))
	for _, step := range report.Timeline {
		ratio := share(step.Seconds(), longest)
		steps = append(steps, stepView{
			Label:    step.Name,
			Type:     string(step.Type),
			Anchor:   insight.AnchorID(step),
			Time:     insight.FormatSeconds(step.DurationS),
			Detail:   insight.NormalizeWhitespace(step.Detail),
			BarWidth: math.Min(100, ratio*100),
			Heat:     clamp(ratio, 0, 1),
			Failed:   step.DurationS == nil,
		})
	}

	generated := ""
	if !report.GeneratedAt.IsZero() {
		generated = report.GeneratedAt.Format("2006-01-02 15:04:05 MST")
	}

	return templateData{
		Title:         opts.Title,
		IncludeStyles: opts.IncludeStyles,
		Summary: summaryView{
			FullQuery:   insight.FormatSeconds(report.FullQueryDurationS),
			Dialect:     report.Dialect,
			Joins:       report.JoinCount,
			Subqueries:  report.SubqueryCount,
			Tables:      report.Tables,
			Steps:       len(report.Timeline),
			Failed:      failed,
			GeneratedAt: generated,
		},
		Query:       report.Query,
		Bottlenecks: bottlenecks,
		Insights:    insights,
		Steps:       steps,
		Plan:        report.Explain.Strings(),
	}
}

func share(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
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

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
	{{- if .IncludeStyles }}
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; margin: 0; padding: 0; background: #f7f7f8; color: #202124; }
		main { max-width: 960px; margin: 0 auto; padding: 32px 24px 48px; }
		header { background: #212a3b; color: #f7f7f8; padding: 32px 24px; }
		header h1 { margin: 0 0 8px; font-size: 28px; }
		header p { margin: 4px 0; opacity: 0.8; }
		section { margin-top: 32px; }
		section h2 { margin-bottom: 12px; font-size: 20px; }
		pre { background: #fff; border-radius: 10px; padding: 16px; overflow-x: auto; box-shadow: 0 4px 12px rgba(13,28,39,0.10); font-size: 13px; }
		.summary-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 12px; }
		.summary-tile { background: #fff; border-radius: 10px; padding: 16px; box-shadow: 0 6px 18px rgba(13,28,39,0.12); }
		.summary-tile strong { display: block; font-size: 14px; text-transform: uppercase; letter-spacing: 0.04em; color: #5b7083; margin-bottom: 6px; }
		.summary-tile span { font-size: 18px; font-weight: 600; }
		.list-card { background: #fff; border-radius: 12px; padding: 16px; box-shadow: 0 4px 12px rgba(13,28,39,0.10); }
		.list-card ul { list-style: none; padding: 0; margin: 0; }
		.list-card li { display: grid; grid-template-columns: 1fr auto auto auto; gap: 12px; font-size: 14px; padding: 8px 0; border-bottom: 1px solid rgba(91,112,131,0.16); }
		.list-card li:last-child { border-bottom: none; }
		.list-card a { color: inherit; }
		.timeline { list-style: none; margin: 0; padding: 0; }
		.step-card { background: #fff; border-radius: 12px; margin-bottom: 12px; position: relative; padding: 16px 18px 14px 18px; box-shadow: 0 8px 20px rgba(16,37,58,0.12); border-left: 6px solid rgba(33,42,59,0.1); }
		.step-card::after { content: ""; position: absolute; inset: 0; border-radius: inherit; background: linear-gradient(90deg, rgba(244,71,71,var(--heat)) 0%, rgba(244,71,71,0) 72%); opacity: 0.35; pointer-events: none; }
		.step-card.failed { border-left-color: #faae32; }
		.step-header { position: relative; z-index: 1; display: flex; justify-content: space-between; gap: 12px; align-items: baseline; }
		.step-label { font-weight: 600; font-size: 15px; }
		.step-metrics { font-size: 13px; color: #5b7083; }
		.step-bar { position: relative; z-index: 1; margin-top: 10px; background: rgba(33,42,59,0.08); border-radius: 999px; height: 8px; overflow: hidden; }
		.step-bar span { display: block; height: 100%; border-radius: inherit; background: linear-gradient(90deg, #f44747 0%, #faae32 100%); width: calc(var(--width) * 1%); }
		.step-detail { position: relative; z-index: 1; margin-top: 10px; font-size: 12px; color: #364a63; font-family: ui-monospace, SFMono-Regular, Menlo, monospace; word-break: break-word; }
		.insight-list { list-style: none; margin: 0; padding: 0; display: flex; flex-direction: column; gap: 10px; }
		.insight-list li { background: #fff; border-radius: 12px; padding: 14px 16px; box-shadow: 0 4px 12px rgba(13,28,39,0.10); font-size: 14px; color: #253043; display: flex; align-items: center; gap: 10px; }
		.insight-list li span.icon { font-size: 18px; }
		.insight-list li span.insight-text a { color: inherit; }
		.insight-list li.severity-critical { border-left: 4px solid #f44747; }
		.insight-list li.severity-warning { border-left: 4px solid #faae32; }
		.insight-list li.severity-info { border-left: 4px solid rgba(33,42,59,0.15); }
	</style>
	{{- end }}
</head>
<body>
	<header>
		<h1>{{.Title}}</h1>
		<p>Full query {{.Summary.FullQuery}}{{if .Summary.Dialect}} · {{.Summary.Dialect}}{{end}}{{if .Summary.GeneratedAt}} · {{.Summary.GeneratedAt}}{{end}}</p>
		<p>Tables {{join .Summary.Tables ", "}}</p>
	</header>
	<main>
		<section>
			<h2>Highlights</h2>
			<div class="summary-grid">
				<div class="summary-tile">
					<strong>Full query</strong>
					<span>{{.Summary.FullQuery}}</span>
				</div>
				<div class="summary-tile">
					<strong>Joins / Subqueries</strong>
					<span>{{.Summary.Joins}} / {{.Summary.Subqueries}}</span>
				</div>
				<div class="summary-tile">
					<strong>Timeline steps</strong>
					<span>{{.Summary.Steps}}</span>
				</div>
				<div class="summary-tile">
					<strong>Failed probes</strong>
					<span>{{.Summary.Failed}}</span>
				</div>
			</div>
		</section>

		<section>
			<h2>Query</h2>
			<pre>{{.Query}}</pre>
		</section>

		{{- if .Insights }}
		<section>
			<h2>Insights</h2>
			<ul class="insight-list">
				{{- range .Insights }}
				<li class="severity-{{.Severity}}"><span class="icon">{{.Icon}}</span><span class="insight-text">
					{{- if .Anchor -}}
						<a href="#{{.Anchor}}">{{.Text}}</a>
					{{- else -}}
						{{.Text}}
					{{- end -}}
				</span></li>
				{{- end }}
			</ul>
		</section>
		{{- end }}

		<section>
			<h2>Bottlenecks</h2>
			<div class="list-card">
				<ul>
					{{- if .Bottlenecks }}
						{{- range .Bottlenecks }}
						<li>
							<span><a href="#{{.Anchor}}">{{.Label}}</a></span>
							<span>{{.Type}}</span>
							<span>{{.Time}}</span>
							<span>{{.Share}}</span>
						</li>
						{{- end }}
					{{- else }}
						<li><span>No measured bottlenecks</span></li>
					{{- end }}
				</ul>
			</div>
		</section>

		<section>
			<h2>Timeline</h2>
			<ul class="timeline">
				{{- range .Steps }}
				<li>
					<div class="step-card{{if .Failed}} failed{{end}}" id="{{.Anchor}}" style="--heat: {{printf "%.3f" .Heat}};">
						<div class="step-header">
							<span class="step-label">{{.Label}}</span>
							<span class="step-metrics">{{.Type}} · {{.Time}}</span>
						</div>
						<div class="step-bar"><span style="--width: {{printf "%.2f" .BarWidth}};"></span></div>
						{{- if .Detail }}
						<div class="step-detail">{{.Detail}}</div>
						{{- end }}
					</div>
				</li>
				{{- end }}
			</ul>
		</section>

		<section>
			<h2>Plan</h2>
			{{- if .Plan }}
			<pre>{{join .Plan "\n"}}</pre>
			{{- else }}
			<p>Plan introspection unavailable.</p>
			{{- end }}
		</section>
	</main>
</body>
</html>
`
