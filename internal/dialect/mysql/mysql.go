package mysql

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/mickamy/xprobe/internal/model"
)

// Name is the dialect identifier reported by Conn.
const Name = "mysql"

const columnsSQL = `SELECT COLUMN_NAME
FROM information_schema.COLUMNS
WHERE TABLE_NAME = ? AND TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
ORDER BY ORDINAL_POSITION`

// PlanRow is one EXPLAIN row, kept in server column order.
type PlanRow struct {
	Columns []string
	Values  []string
}

func (r PlanRow) String() string {
	pairs := make([]string, 0, len(r.Columns))
	for i, col := range r.Columns {
		pairs = append(pairs, col+"="+r.Values[i])
	}
	return strings.Join(pairs, " ")
}

// Conn runs probes over a MySQL database handle pinned to one connection.
type Conn struct {
	db *sqlx.DB
}

// Open connects using a go-sql-driver DSN, e.g. user:pass@tcp(host:3306)/shop.
func Open(ctx context.Context, dsn string) (*Conn, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql: empty DSN")
	}
	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: connect: %w", err)
	}
	return New(db), nil
}

// New wraps an existing handle. Probes run sequentially, so one open connection is enough.
func New(db *sqlx.DB) *Conn {
	db.SetMaxOpenConns(1)
	return &Conn{db: db}
}

func (c *Conn) Dialect() string { return Name }

func (c *Conn) Query(ctx context.Context, sql string) (int, error) {
	rows, err := c.db.QueryxContext(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("mysql: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("mysql: %w", err)
	}
	return n, nil
}

func (c *Conn) Columns(ctx context.Context, table string) ([]string, error) {
	schema, name := "", strings.Trim(table, "`")
	if i := strings.Index(table, "."); i >= 0 {
		schema, name = strings.Trim(table[:i], "`"), strings.Trim(table[i+1:], "`")
	}

	var cols []string
	if err := c.db.SelectContext(ctx, &cols, columnsSQL, name, schema); err != nil {
		return nil, fmt.Errorf("mysql: columns %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("mysql: no such table: %s", table)
	}
	return cols, nil
}

func (c *Conn) Explain(ctx context.Context, sql string) ([]model.PlanRow, error) {
	rows, err := c.db.QueryxContext(ctx, "EXPLAIN "+sql)
	if err != nil {
		return nil, fmt.Errorf("mysql: explain: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("mysql: explain: %w", err)
	}
	var out []model.PlanRow
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("mysql: explain: %w", err)
		}
		row := PlanRow{Columns: cols, Values: make([]string, len(values))}
		for i, v := range values {
			row.Values[i] = text(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: explain: %w", err)
	}
	return out, nil
}

func (c *Conn) Close(context.Context) error {
	return c.db.Close()
}

func text(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
