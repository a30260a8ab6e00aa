package insight_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/xprobe/internal/insight"
	"github.com/mickamy/xprobe/internal/model"
)

func sampleReport() *model.Report {
	query := model.Step{Name: "Full query execution", Type: model.StepQuery, DurationS: model.Float(0.010), Detail: "SELECT ..."}
	sub := model.Step{Name: "Subquery 1", Type: model.StepSubquery, DurationS: model.Float(0.008), Detail: "SELECT AVG(total) FROM orders"}
	join := model.Step{Name: "Join orders ⨝ products", Type: model.StepJoin, DurationS: model.Float(0.004), Detail: "SELECT COUNT(*) FROM orders, products LIMIT 1000"}
	failed := model.Step{Name: "Table scan: ghosts", Type: model.StepTable, Detail: "SELECT COUNT(*) FROM ghosts"}
	plan := model.Step{Name: "SCAN o", Type: model.StepExplain, DurationS: model.Float(0)}

	return &model.Report{
		Query:              "SELECT * FROM orders o WHERE o.total > (SELECT AVG(total) FROM orders)",
		SubqueryCount:      1,
		FullQueryDurationS: query.DurationS,
		Timeline:           []model.Step{query, sub, join, plan, failed},
		Bottlenecks:        []model.Step{query, sub, join},
	}
}

func find(msgs []insight.Message, substr string) *insight.Message {
	for i := range msgs {
		if strings.Contains(msgs[i].Text, substr) {
			return &msgs[i]
		}
	}
	return nil
}

func TestBuildMessages(t *testing.T) {
	msgs := insight.BuildMessages(sampleReport())

	dominant := find(msgs, "Slowest step: Full query execution")
	require.NotNil(t, dominant)
	assert.Equal(t, insight.SeverityWarning, dominant.Severity, "10ms of 22ms is below the critical share")
	assert.Contains(t, dominant.Text, "10.00 ms")

	failed := find(msgs, "probe(s) failed")
	require.NotNil(t, failed)
	assert.Contains(t, failed.Text, "Table scan: ghosts")

	cross := find(msgs, "bounded cross product")
	require.NotNil(t, cross)
	assert.Equal(t, insight.SeverityInfo, cross.Severity)

	share := find(msgs, "Subquery 1 alone costs 80%")
	require.NotNil(t, share)
	assert.Equal(t, insight.SeverityWarning, share.Severity)

	assert.Nil(t, find(msgs, "nested subqueries"))
}

func TestBuildMessagesCriticalAndNested(t *testing.T) {
	report := sampleReport()
	report.Timeline = report.Timeline[:1]
	report.Bottlenecks = report.Bottlenecks[:1]
	report.SubqueryCount = 2
	report.Query = "SELECT * FROM a WHERE x IN (SELECT y FROM b WHERE z IN (SELECT z FROM c))"

	msgs := insight.BuildMessages(report)
	dominant := find(msgs, "Slowest step")
	require.NotNil(t, dominant)
	assert.Equal(t, insight.SeverityCritical, dominant.Severity)

	nested := find(msgs, "nested subqueries")
	require.NotNil(t, nested)
	assert.Contains(t, nested.Text, "2 subqueries found but only 1 probed")
	assert.Nil(t, find(msgs, "probe(s) failed"))
}

func TestBuildMessagesNil(t *testing.T) {
	assert.Nil(t, insight.BuildMessages(nil))
	assert.Empty(t, insight.BuildMessages(&model.Report{}))
}

func TestAnchorID(t *testing.T) {
	assert.Equal(t, "join-join-customers-orders", insight.AnchorID(model.Step{Name: "Join customers ⨝ orders", Type: model.StepJoin}))
	assert.Equal(t, "table_scan-table-scan-order_items", insight.AnchorID(model.Step{Name: "Table scan: order_items", Type: model.StepTable}))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "n/a", insight.FormatSeconds(nil))
	assert.Equal(t, "1.50 ms", insight.FormatSeconds(model.Float(0.0015)))
}

func TestCompactLabelKeepsRunesWhole(t *testing.T) {
	left := strings.Repeat("a", 50)
	right := strings.Repeat("b", 20)
	step := model.Step{Name: "Join " + left + " ⨝ " + right, Type: model.StepJoin}

	got := insight.CompactLabel(step)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Join "+left+" ⨝...", got)

	assert.Equal(t, "Table scan: orders", insight.CompactLabel(model.Step{Name: "Table   scan: orders"}))
}
