package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mickamy/xprobe/internal/config"
	"github.com/mickamy/xprobe/internal/estimator"
	"github.com/mickamy/xprobe/internal/explain"
	"github.com/mickamy/xprobe/internal/model"
	"github.com/mickamy/xprobe/internal/parser"
	"github.com/mickamy/xprobe/internal/runner"
)

// ErrQueryFailed reports that the analysed query itself could not run.
// No report is produced in that case.
var ErrQueryFailed = errors.New("query failed")

// Options customises one analysis. Unset probe fields fall back to the active config.
type Options struct {
	Probe  config.ProbeConfig
	Logger *slog.Logger
}

// Analyze probes query against conn and builds a ranked timeline report.
// conn must not be used by anyone else until Analyze returns.
func Analyze(ctx context.Context, conn runner.Conn, query string, opts Options) (*model.Report, error) {
	if conn == nil {
		return nil, fmt.Errorf("analyze: nil connection")
	}
	sql := parser.TrimQuery(query)
	if sql == "" {
		return nil, fmt.Errorf("analyze: empty query")
	}
	probeCfg := opts.Probe.Merge(config.Active().Probe)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("dialect", conn.Dialect())

	joinCount, subqueryCount := parser.CountJoinsAndSubqueries(sql)
	tables := parser.ExtractTableReferences(sql)
	logger.DebugContext(ctx, "query structure", "joins", joinCount, "subqueries", subqueryCount, "tables", tables)

	plan := explain.Plan(ctx, conn, sql, logger)

	full, err := runner.TimeQuery(ctx, conn, sql, runner.Options{
		Warmup:     probeCfg.WarmupEnabled(),
		Iterations: probeCfg.FullQueryIterations,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: %w: %w", ErrQueryFailed, err)
	}
	logger.DebugContext(ctx, "timed full query", "seconds", *full.Seconds, "rows", full.Rows)

	estOpts := estimator.Options{
		Probe:          runner.Options{Warmup: probeCfg.WarmupEnabled(), Iterations: probeCfg.Iterations},
		CrossJoinLimit: probeCfg.CrossJoinLimit,
		Logger:         logger,
	}
	tableCosts := estimator.TableCosts(ctx, conn, tables, estOpts)
	joinCosts := estimator.PairwiseJoinCosts(ctx, conn, tables, estOpts)

	var subqueryCosts []estimator.SubqueryCost
	if fragments := parser.ExtractSubqueryFragments(sql); len(fragments) > 0 {
		subqueryCosts = estimator.SubqueryCosts(ctx, conn, fragments, estOpts)
		for i := range subqueryCosts {
			subqueryCosts[i].SQL = truncate(subqueryCosts[i].SQL, probeCfg.DetailSubqueryChars)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	timeline := SortTimeline(BuildTimeline(Probes{
		Plan:       explain.Steps(plan),
		Tables:     tableCosts,
		Joins:      joinCosts,
		Subqueries: subqueryCosts,
		Query: model.Step{
			Name:      "Full query execution",
			Type:      model.StepQuery,
			DurationS: full.Seconds,
			Detail:    truncate(sql, probeCfg.DetailQueryChars),
		},
	}))

	report := &model.Report{
		ID:                 uuid.New().String(),
		Dialect:            conn.Dialect(),
		Query:              sql,
		GeneratedAt:        time.Now().UTC(),
		JoinCount:          joinCount,
		SubqueryCount:      subqueryCount,
		Tables:             tables,
		Explain:            plan,
		FullQueryDurationS: full.Seconds,
		Timeline:           timeline,
		Bottlenecks:        SelectBottlenecks(timeline, probeCfg.BottleneckLimit),
		TableCosts:         make(map[string]*float64, len(tableCosts)),
		JoinCosts:          make(map[string]*float64, len(joinCosts)),
		SubqueryCosts:      make(map[string]*float64, len(subqueryCosts)),
	}
	if report.Tables == nil {
		report.Tables = []string{}
	}
	for _, c := range tableCosts {
		report.TableCosts[c.Table] = c.Seconds
	}
	for _, c := range joinCosts {
		report.JoinCosts[c.Key()] = c.Seconds
	}
	for _, c := range subqueryCosts {
		report.SubqueryCosts[c.Key()] = c.Seconds
	}

	logger.DebugContext(ctx, "analysis complete", "steps", len(timeline), "bottlenecks", len(report.Bottlenecks))
	return report, nil
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
