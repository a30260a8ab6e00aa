package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mickamy/xprobe/internal/model"
)

// Name is the dialect identifier reported by Conn.
const Name = "postgres"

const columnsSQL = `SELECT column_name
FROM information_schema.columns
WHERE table_name::text = $1::text
  AND ($2::text = '' OR table_schema::text = $2::text)
ORDER BY ordinal_position`

// Conn runs probes over a single PostgreSQL connection.
type Conn struct {
	conn *pgx.Conn
}

// Open connects to the database identified by dsn.
func Open(ctx context.Context, dsn string) (*Conn, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: empty DSN")
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Conn{conn: conn}, nil
}

func (c *Conn) Dialect() string { return Name }

// Query runs sql and drains every row so the measured time covers the full result.
func (c *Conn) Query(ctx context.Context, sql string) (int, error) {
	rows, err := c.conn.Query(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("postgres: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("postgres: %w", err)
	}
	return n, nil
}

func (c *Conn) Columns(ctx context.Context, table string) ([]string, error) {
	schema, name := SplitIdentifier(table)
	rows, err := c.conn.Query(ctx, columnsSQL, name, schema)
	if err != nil {
		return nil, fmt.Errorf("postgres: columns %s: %w", table, err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: columns %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("postgres: no such table: %s", table)
	}
	return cols, nil
}

// Explain returns the text plan, one row per line.
func (c *Conn) Explain(ctx context.Context, sql string) ([]model.PlanRow, error) {
	rows, err := c.conn.Query(ctx, "EXPLAIN "+sql)
	if err != nil {
		return nil, fmt.Errorf("postgres: explain: %w", err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: explain: %w", err)
	}
	out := make([]model.PlanRow, 0, len(lines))
	for _, line := range lines {
		out = append(out, model.TextRow(line))
	}
	return out, nil
}

func (c *Conn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// SplitIdentifier splits an optionally schema-qualified table reference and folds
// unquoted parts to lower case the way the server does.
func SplitIdentifier(ref string) (schema, table string) {
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) == 2 {
		return fold(parts[0]), fold(parts[1])
	}
	return "", fold(parts[0])
}

func fold(ident string) string {
	if len(ident) >= 2 && strings.HasPrefix(ident, `"`) && strings.HasSuffix(ident, `"`) {
		return strings.ReplaceAll(ident[1:len(ident)-1], `""`, `"`)
	}
	return strings.ToLower(ident)
}
