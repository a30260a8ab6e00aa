package model

import "time"

// StepType tags which kind of probe produced a timeline step.
type StepType string

const (
	StepExplain  StepType = "explain_step"
	StepTable    StepType = "table_scan"
	StepJoin     StepType = "join"
	StepSubquery StepType = "subquery"
	StepQuery    StepType = "query"
)

// Step is one entry of the execution timeline.
// A nil DurationS means the probe failed or was skipped.
type Step struct {
	Name      string   `json:"name"`
	Type      StepType `json:"type"`
	DurationS *float64 `json:"duration_s"`
	Detail    string   `json:"detail"`
}

// Seconds returns the duration used for ranking; nil ranks as zero.
func (s Step) Seconds() float64 {
	if s.DurationS == nil {
		return 0
	}
	return *s.DurationS
}

// Measured reports whether the step carries a positive duration.
func (s Step) Measured() bool {
	return s.DurationS != nil && *s.DurationS > 0
}

// Report is the result of analysing one query.
type Report struct {
	ID                 string              `json:"id"`
	Dialect            string              `json:"dialect"`
	Query              string              `json:"query"`
	GeneratedAt        time.Time           `json:"generated_at"`
	JoinCount          int                 `json:"join_count"`
	SubqueryCount      int                 `json:"subquery_count"`
	Tables             []string            `json:"tables"`
	Explain            PlanRows            `json:"explain"`
	FullQueryDurationS *float64            `json:"full_query_duration_s"`
	Timeline           []Step              `json:"timeline"`
	Bottlenecks        []Step              `json:"bottlenecks"`
	TableCosts         map[string]*float64 `json:"table_costs"`
	JoinCosts          map[string]*float64 `json:"join_costs"`
	SubqueryCosts      map[string]*float64 `json:"subquery_costs"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
