package sqlite

import (
	"context"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/mickamy/xprobe/internal/model"
)

// Name is the dialect identifier reported by Conn.
const Name = "sqlite"

// PlanRow is one row of EXPLAIN QUERY PLAN output.
type PlanRow struct {
	ID      int64
	Parent  int64
	NotUsed int64
	Detail  string
}

func (r PlanRow) String() string {
	return fmt.Sprintf("[id=%d parent=%d] %s", r.ID, r.Parent, r.Detail)
}

// Conn runs probes over a single SQLite connection.
type Conn struct {
	conn *sqlite.Conn
}

// Open opens the database at path. ":memory:" and "file:" URIs are accepted.
func Open(path string) (*Conn, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty path")
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenURI)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// OpenMemory opens a private in-memory database.
func OpenMemory() (*Conn, error) {
	return Open(":memory:")
}

func (c *Conn) Dialect() string { return Name }

func (c *Conn) Query(ctx context.Context, sql string) (int, error) {
	defer c.conn.SetInterrupt(c.conn.SetInterrupt(ctx.Done()))

	rows := 0
	err := sqlitex.ExecuteTransient(c.conn, sql, &sqlitex.ExecOptions{
		ResultFunc: func(*sqlite.Stmt) error {
			rows++
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: %w", err)
	}
	return rows, nil
}

func (c *Conn) Columns(ctx context.Context, table string) ([]string, error) {
	defer c.conn.SetInterrupt(c.conn.SetInterrupt(ctx.Done()))

	var cols []string
	err := sqlitex.ExecuteTransient(c.conn, fmt.Sprintf("PRAGMA table_info(%s)", table), &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			cols = append(cols, stmt.ColumnText(1))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: table_info %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite: no such table: %s", table)
	}
	return cols, nil
}

func (c *Conn) Explain(ctx context.Context, sql string) ([]model.PlanRow, error) {
	defer c.conn.SetInterrupt(c.conn.SetInterrupt(ctx.Done()))

	var rows []model.PlanRow
	err := sqlitex.ExecuteTransient(c.conn, "EXPLAIN QUERY PLAN "+sql, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rows = append(rows, PlanRow{
				ID:      stmt.ColumnInt64(0),
				Parent:  stmt.ColumnInt64(1),
				NotUsed: stmt.ColumnInt64(2),
				Detail:  stmt.ColumnText(3),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: explain: %w", err)
	}
	return rows, nil
}

func (c *Conn) Close(context.Context) error {
	return c.conn.Close()
}
