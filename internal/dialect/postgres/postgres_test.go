package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/xprobe/internal/dialect/postgres"
)

func TestSplitIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		ref        string
		wantSchema string
		wantTable  string
	}{
		{name: "bare", ref: "Orders", wantSchema: "", wantTable: "orders"},
		{name: "qualified", ref: "Public.Orders", wantSchema: "public", wantTable: "orders"},
		{name: "quoted", ref: `"Sales"."OrderItems"`, wantSchema: "Sales", wantTable: "OrderItems"},
		{name: "escaped quote", ref: `"a""b"`, wantSchema: "", wantTable: `a"b`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, table := postgres.SplitIdentifier(tt.ref)
			assert.Equal(t, tt.wantSchema, schema)
			assert.Equal(t, tt.wantTable, table)
		})
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := postgres.Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestConnAgainstServer(t *testing.T) {
	dsn := os.Getenv("XPROBE_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("XPROBE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	conn, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = conn.Close(ctx) }()

	n, err := conn.Query(ctx, "SELECT generate_series(1, 3)")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cols, err := conn.Columns(ctx, "information_schema.tables")
	require.NoError(t, err)
	assert.Contains(t, cols, "table_name")

	rows, err := conn.Explain(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}
