package estimator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/xprobe/internal/estimator"
	"github.com/mickamy/xprobe/test"
)

func shopConn() *test.FakeConn {
	return &test.FakeConn{
		Tables: map[string][]string{
			"customers": {"customer_id", "name", "city"},
			"orders":    {"order_id", "customer_id", "order_date", "total"},
			"products":  {"product_id", "name", "price"},
			"audit":     {"ts", "message"},
		},
		Errors: map[string]error{
			"SELECT COUNT(*) FROM ghosts": errors.New("no such table: ghosts"),
		},
	}
}

func TestTableCostsIsolatesFailures(t *testing.T) {
	conn := shopConn()

	costs := estimator.TableCosts(context.Background(), conn, []string{"customers", "ghosts", "orders"}, estimator.Options{})
	require.Len(t, costs, 3)

	assert.Equal(t, "customers", costs[0].Table)
	assert.NotNil(t, costs[0].Seconds)
	assert.Equal(t, "ghosts", costs[1].Table)
	assert.Nil(t, costs[1].Seconds)
	assert.Equal(t, "orders", costs[2].Table)
	assert.NotNil(t, costs[2].Seconds)
	assert.Equal(t, "SELECT COUNT(*) FROM orders", costs[2].SQL)
}

func TestEstimateJoinCostUsesSharedColumn(t *testing.T) {
	conn := shopConn()

	cost := estimator.EstimateJoinCost(context.Background(), conn, "customers", "orders", "", estimator.Options{})
	assert.Equal(t, "SELECT COUNT(*) FROM customers JOIN orders ON customers.customer_id = orders.customer_id", cost.SQL)
	assert.True(t, estimator.ConditionedJoin(cost.SQL))
	require.NotNil(t, cost.Seconds)
	assert.GreaterOrEqual(t, *cost.Seconds, 0.0)
	assert.Equal(t, "customers<>orders", cost.Key())
}

func TestEstimateJoinCostExplicitCondition(t *testing.T) {
	conn := shopConn()

	cost := estimator.EstimateJoinCost(context.Background(), conn, "customers", "audit", "customers.name = audit.message", estimator.Options{})
	assert.Equal(t, "SELECT COUNT(*) FROM customers JOIN audit ON customers.name = audit.message", cost.SQL)
}

func TestEstimateJoinCostFallsBackToBoundedCross(t *testing.T) {
	conn := shopConn()

	cost := estimator.EstimateJoinCost(context.Background(), conn, "customers", "audit", "", estimator.Options{CrossJoinLimit: 250})
	assert.Equal(t, "SELECT COUNT(*) FROM customers, audit LIMIT 250", cost.SQL)
	assert.False(t, estimator.ConditionedJoin(cost.SQL))

	missing := estimator.EstimateJoinCost(context.Background(), conn, "customers", "ghosts", "", estimator.Options{})
	assert.Equal(t, "SELECT COUNT(*) FROM customers, ghosts LIMIT 1000", missing.SQL)
}

func TestEstimateJoinCostFailureIsNil(t *testing.T) {
	conn := shopConn()
	conn.Errors["SELECT COUNT(*) FROM customers, ghosts LIMIT 1000"] = errors.New("no such table: ghosts")

	cost := estimator.EstimateJoinCost(context.Background(), conn, "customers", "ghosts", "", estimator.Options{})
	assert.Nil(t, cost.Seconds)
}

func TestPairwiseJoinCostsOrder(t *testing.T) {
	conn := shopConn()

	pairs := estimator.PairwiseJoinCosts(context.Background(), conn, []string{"customers", "orders", "products"}, estimator.Options{})
	require.Len(t, pairs, 3)
	assert.Equal(t, "customers<>orders", pairs[0].Key())
	assert.Equal(t, "customers<>products", pairs[1].Key())
	assert.Equal(t, "orders<>products", pairs[2].Key())
	assert.Equal(t, "SELECT COUNT(*) FROM customers JOIN products ON customers.name = products.name", pairs[1].SQL)
	assert.Equal(t, "SELECT COUNT(*) FROM orders, products LIMIT 1000", pairs[2].SQL)

	assert.Nil(t, estimator.PairwiseJoinCosts(context.Background(), conn, []string{"customers"}, estimator.Options{}))
}

func TestSubqueryCostsStripParens(t *testing.T) {
	conn := shopConn()
	conn.Errors["SELECT broken FROM"] = errors.New("syntax error")

	costs := estimator.SubqueryCosts(context.Background(), conn, []string{"(SELECT max(total) FROM orders)", "(SELECT broken FROM)"}, estimator.Options{})
	require.Len(t, costs, 2)
	assert.Equal(t, "subquery_1", costs[0].Key())
	assert.Equal(t, "SELECT max(total) FROM orders", costs[0].SQL)
	assert.NotNil(t, costs[0].Seconds)
	assert.Equal(t, "subquery_2", costs[1].Key())
	assert.Nil(t, costs[1].Seconds)
}

func TestConditionedJoin(t *testing.T) {
	assert.True(t, estimator.ConditionedJoin("SELECT COUNT(*) FROM a JOIN b ON a.id = b.id"))
	assert.True(t, estimator.ConditionedJoin("select count(*) from a join b on a.id = b.id"))
	assert.False(t, estimator.ConditionedJoin("SELECT COUNT(*) FROM a, b LIMIT 1000"))
	assert.False(t, estimator.ConditionedJoin(""))
}

func TestSharedColumn(t *testing.T) {
	tests := []struct {
		name  string
		left  []string
		right []string
		want  string
	}{
		{name: "id suffix preferred", left: []string{"name", "customer_id"}, right: []string{"customer_id", "name"}, want: "customer_id"},
		{name: "bare id", left: []string{"label", "ID"}, right: []string{"ID", "label"}, want: "ID"},
		{name: "left order", left: []string{"b", "a"}, right: []string{"a", "b"}, want: "b"},
		{name: "none", left: []string{"a"}, right: []string{"b"}, want: ""},
		{name: "empty", left: nil, right: []string{"b"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimator.SharedColumn(tt.left, tt.right))
			assert.Equal(t, tt.want, estimator.SharedColumn(tt.left, tt.right), "deterministic")
		})
	}
}
