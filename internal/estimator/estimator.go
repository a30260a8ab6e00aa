package estimator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mickamy/xprobe/internal/parser"
	"github.com/mickamy/xprobe/internal/runner"
)

// Options configures the cost probes.
type Options struct {
	Probe          runner.Options
	CrossJoinLimit int
	Logger         *slog.Logger
}

// TableCost is the measured COUNT(*) cost of one table.
type TableCost struct {
	Table   string
	SQL     string
	Seconds *float64
}

// JoinCost is the measured cost of joining two tables.
type JoinCost struct {
	Left    string
	Right   string
	SQL     string
	Seconds *float64
}

// Key identifies the pair in report cost maps.
func (j JoinCost) Key() string {
	return j.Left + "<>" + j.Right
}

// ConditionedJoin reports whether a join probe statement joined on a column
// rather than falling back to a bounded cross product.
func ConditionedJoin(sql string) bool {
	return strings.Contains(strings.ToUpper(sql), " ON ")
}

// SubqueryCost is the measured cost of one extracted subquery run standalone.
type SubqueryCost struct {
	Index   int
	SQL     string
	Seconds *float64
}

// Key identifies the subquery in report cost maps.
func (s SubqueryCost) Key() string {
	return fmt.Sprintf("subquery_%d", s.Index)
}

// TableCosts times SELECT COUNT(*) for every table. A table that cannot be counted
// gets a nil duration and does not stop the remaining probes.
func TableCosts(ctx context.Context, conn runner.Conn, tables []string, opts Options) []TableCost {
	opts = withDefaults(opts)
	out := make([]TableCost, 0, len(tables))
	for _, table := range tables {
		sql := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		out = append(out, TableCost{Table: table, SQL: sql, Seconds: probe(ctx, conn, sql, opts)})
	}
	return out
}

// EstimateJoinCost times a join between left and right. Without an explicit condition it
// joins on a column both tables share, or falls back to a bounded cross product.
func EstimateJoinCost(ctx context.Context, conn runner.Conn, left, right, condition string, opts Options) JoinCost {
	opts = withDefaults(opts)
	if strings.TrimSpace(condition) == "" {
		if col := SharedColumn(columns(ctx, conn, left, opts), columns(ctx, conn, right, opts)); col != "" {
			condition = fmt.Sprintf("%s.%s = %s.%s", left, col, right, col)
		}
	}
	sql := BuildJoinProbe(left, right, condition, opts.CrossJoinLimit)
	return JoinCost{Left: left, Right: right, SQL: sql, Seconds: probe(ctx, conn, sql, opts)}
}

// PairwiseJoinCosts estimates every unordered pair (i<j) of tables in order.
// Every pair is probed, including pairs the query never joins directly.
func PairwiseJoinCosts(ctx context.Context, conn runner.Conn, tables []string, opts Options) []JoinCost {
	if len(tables) < 2 {
		return nil
	}
	out := make([]JoinCost, 0, len(tables)*(len(tables)-1)/2)
	for i := 0; i < len(tables); i++ {
		for j := i + 1; j < len(tables); j++ {
			out = append(out, EstimateJoinCost(ctx, conn, tables[i], tables[j], "", opts))
		}
	}
	return out
}

// SubqueryCosts times each fragment as a standalone statement, outer parentheses removed.
func SubqueryCosts(ctx context.Context, conn runner.Conn, fragments []string, opts Options) []SubqueryCost {
	opts = withDefaults(opts)
	out := make([]SubqueryCost, 0, len(fragments))
	for i, fragment := range fragments {
		sql := parser.StripParens(fragment)
		out = append(out, SubqueryCost{Index: i + 1, SQL: sql, Seconds: probe(ctx, conn, sql, opts)})
	}
	return out
}

// BuildJoinProbe renders the join probe statement.
func BuildJoinProbe(left, right, condition string, limit int) string {
	if strings.TrimSpace(condition) != "" {
		return fmt.Sprintf("SELECT COUNT(*) FROM %s JOIN %s ON %s", left, right, condition)
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s, %s LIMIT %d", left, right, limit)
}

// SharedColumn picks the join column for two column lists. Candidates keep the left
// table's order; "id" or a name ending in "_id" wins, otherwise the first shared name.
func SharedColumn(left, right []string) string {
	rightSet := make(map[string]struct{}, len(right))
	for _, c := range right {
		rightSet[c] = struct{}{}
	}
	var shared []string
	for _, c := range left {
		if _, ok := rightSet[c]; ok {
			shared = append(shared, c)
		}
	}
	if len(shared) == 0 {
		return ""
	}
	for _, c := range shared {
		lower := strings.ToLower(c)
		if lower == "id" || strings.HasSuffix(lower, "_id") {
			return c
		}
	}
	return shared[0]
}

func columns(ctx context.Context, conn runner.Conn, table string, opts Options) []string {
	cols, err := conn.Columns(ctx, table)
	if err != nil {
		opts.Logger.DebugContext(ctx, "column introspection failed", "table", table, "error", err)
		return nil
	}
	return cols
}

func probe(ctx context.Context, conn runner.Conn, sql string, opts Options) *float64 {
	timing, err := runner.TimeQuery(ctx, conn, sql, opts.Probe)
	if err != nil {
		opts.Logger.DebugContext(ctx, "probe failed", "sql", sql, "error", err)
		return nil
	}
	return timing.Seconds
}

func withDefaults(opts Options) Options {
	if opts.CrossJoinLimit <= 0 {
		opts.CrossJoinLimit = 1000
	}
	if opts.Probe.Iterations <= 0 {
		opts.Probe.Iterations = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}
