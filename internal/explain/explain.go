package explain

import (
	"context"
	"log/slog"

	"github.com/mickamy/xprobe/internal/model"
	"github.com/mickamy/xprobe/internal/runner"
)

// Plan asks the database for its native plan of sql. Explanation is best effort:
// a failure is logged as a warning and yields no rows.
func Plan(ctx context.Context, conn runner.Conn, sql string, logger *slog.Logger) model.PlanRows {
	if logger == nil {
		logger = slog.Default()
	}
	rows, err := conn.Explain(ctx, sql)
	if err != nil {
		logger.WarnContext(ctx, "explain failed", "dialect", conn.Dialect(), "error", err)
		return model.PlanRows{}
	}
	return model.PlanRows(rows)
}

// Steps converts plan rows into zero-duration annotation steps.
func Steps(rows model.PlanRows) []model.Step {
	steps := make([]model.Step, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		text := row.String()
		steps = append(steps, model.Step{
			Name:      text,
			Type:      model.StepExplain,
			DurationS: model.Float(0),
			Detail:    text,
		})
	}
	return steps
}
