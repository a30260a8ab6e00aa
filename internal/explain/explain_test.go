package explain_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/xprobe/internal/explain"
	"github.com/mickamy/xprobe/internal/logger"
	"github.com/mickamy/xprobe/internal/model"
	"github.com/mickamy/xprobe/test"
)

func TestPlanReturnsRows(t *testing.T) {
	conn := &test.FakeConn{Plan: []model.PlanRow{
		model.TextRow("SCAN c"),
		model.TextRow("SEARCH o USING INDEX idx_orders_customer (customer_id=?)"),
	}}

	rows := explain.Plan(context.Background(), conn, "SELECT 1", nil)
	assert.Equal(t, []string{"SCAN c", "SEARCH o USING INDEX idx_orders_customer (customer_id=?)"}, rows.Strings())
	assert.Equal(t, []string{"EXPLAIN SELECT 1"}, conn.Calls())
}

func TestPlanFailureIsLoggedAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Format: "json", Writer: &buf})
	conn := &test.FakeConn{PlanErr: errors.New("near \"SELEC\": syntax error")}

	rows := explain.Plan(context.Background(), conn, "SELEC 1", log)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "syntax error")
}

func TestStepsAreZeroDurationAnnotations(t *testing.T) {
	steps := explain.Steps(model.PlanRows{model.TextRow("SCAN c"), nil, model.TextRow("USE TEMP B-TREE FOR ORDER BY")})
	require.Len(t, steps, 2)
	for _, step := range steps {
		assert.Equal(t, model.StepExplain, step.Type)
		require.NotNil(t, step.DurationS)
		assert.Zero(t, *step.DurationS)
		assert.Equal(t, step.Name, step.Detail)
	}
}
