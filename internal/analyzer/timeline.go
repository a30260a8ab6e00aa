package analyzer

import (
	"fmt"
	"sort"

	"github.com/mickamy/xprobe/internal/config"
	"github.com/mickamy/xprobe/internal/estimator"
	"github.com/mickamy/xprobe/internal/model"
)

// DefaultBottleneckLimit caps how many steps are flagged as bottlenecks.
const DefaultBottleneckLimit = config.MaxBottleneckLimit

// Probes groups everything measured during one analysis.
type Probes struct {
	Plan       []model.Step
	Tables     []estimator.TableCost
	Joins      []estimator.JoinCost
	Subqueries []estimator.SubqueryCost
	Query      model.Step
}

// BuildTimeline lays out the steps in insertion order: plan rows, table scans,
// joins (i<j pair order), subqueries (discovery order) and the full query last.
func BuildTimeline(p Probes) []model.Step {
	steps := make([]model.Step, 0, len(p.Plan)+len(p.Tables)+len(p.Joins)+len(p.Subqueries)+1)
	steps = append(steps, p.Plan...)
	for _, t := range p.Tables {
		steps = append(steps, model.Step{
			Name:      "Table scan: " + t.Table,
			Type:      model.StepTable,
			DurationS: t.Seconds,
			Detail:    t.SQL,
		})
	}
	for _, j := range p.Joins {
		steps = append(steps, model.Step{
			Name:      fmt.Sprintf("Join %s ⨝ %s", j.Left, j.Right),
			Type:      model.StepJoin,
			DurationS: j.Seconds,
			Detail:    j.SQL,
		})
	}
	for _, s := range p.Subqueries {
		steps = append(steps, model.Step{
			Name:      fmt.Sprintf("Subquery %d", s.Index),
			Type:      model.StepSubquery,
			DurationS: s.Seconds,
			Detail:    s.SQL,
		})
	}
	return append(steps, p.Query)
}

// SortTimeline returns a copy ordered by duration, longest first. Nil durations rank
// as zero but stay nil, and equal durations keep their insertion order.
func SortTimeline(steps []model.Step) []model.Step {
	sorted := append([]model.Step(nil), steps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Seconds() > sorted[j].Seconds()
	})
	return sorted
}

// SelectBottlenecks walks a sorted timeline from the top and keeps up to limit steps
// that have a positive measured duration. limit is clamped to DefaultBottleneckLimit.
func SelectBottlenecks(sorted []model.Step, limit int) []model.Step {
	if limit <= 0 || limit > DefaultBottleneckLimit {
		limit = DefaultBottleneckLimit
	}
	out := make([]model.Step, 0, limit)
	for _, step := range sorted {
		if len(out) >= limit {
			break
		}
		if step.Measured() {
			out = append(out, step)
		}
	}
	return out
}
