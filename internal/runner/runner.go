package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mickamy/xprobe/internal/model"
)

// Conn is a database handle the probes run against. Implementations are not
// expected to be safe for concurrent use; one analysis owns the handle.
type Conn interface {
	// Query executes sql, drains every result row and returns how many there were.
	Query(ctx context.Context, sql string) (int, error)
	// Columns lists the column names of table in declaration order.
	Columns(ctx context.Context, table string) ([]string, error)
	// Explain returns the engine's native plan explanation for sql.
	Explain(ctx context.Context, sql string) ([]model.PlanRow, error)
	Dialect() string
	Close(ctx context.Context) error
}

// Options customises how a probe is timed.
type Options struct {
	Warmup     bool
	Iterations int
}

// Timing is the outcome of one probe. Seconds is nil when the probe failed.
type Timing struct {
	Seconds *float64
	Rows    int
}

// TimeQuery runs sql against conn and returns the mean wall-clock time per iteration.
// A warmup run, when requested, happens outside the measured window and its error is
// ignored. Any failure inside the window aborts the probe with a nil duration.
func TimeQuery(ctx context.Context, conn Conn, sql string, opts Options) (Timing, error) {
	if conn == nil {
		return Timing{}, fmt.Errorf("runner: nil connection")
	}
	statement := strings.TrimSpace(sql)
	if statement == "" {
		return Timing{}, fmt.Errorf("runner: empty sql statement")
	}
	iterations := opts.Iterations
	if iterations < 1 {
		iterations = 1
	}

	if opts.Warmup {
		_, _ = conn.Query(ctx, statement)
	}

	var rows int
	start := time.Now()
	for i := 0; i < iterations; i++ {
		n, err := conn.Query(ctx, statement)
		if err != nil {
			return Timing{}, fmt.Errorf("runner: query: %w", err)
		}
		rows = n
	}
	elapsed := time.Since(start)

	return Timing{
		Seconds: model.Float(elapsed.Seconds() / float64(iterations)),
		Rows:    rows,
	}, nil
}
