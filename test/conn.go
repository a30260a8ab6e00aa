package test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mickamy/xprobe/internal/model"
)

// FakeConn is a scripted connection for exercising probes without a database.
type FakeConn struct {
	mu sync.Mutex

	// Rows maps a statement to the row count it returns; unknown statements return 1.
	Rows map[string]int
	// Errors fails every execution of a statement.
	Errors map[string]error
	// FailOnce fails only the first execution of a statement.
	FailOnce map[string]error
	// Delays sleeps before answering a statement.
	Delays map[string]time.Duration
	// Tables maps a table name to its columns; missing tables error on Columns.
	Tables map[string][]string
	Plan    []model.PlanRow
	PlanErr error

	calls       []string
	inFlight    int
	maxInFlight int
}

func (c *FakeConn) Query(ctx context.Context, sql string) (int, error) {
	c.mu.Lock()
	c.calls = append(c.calls, sql)
	c.inFlight++
	c.maxInFlight = max(c.maxInFlight, c.inFlight)
	var err error
	if e, ok := c.FailOnce[sql]; ok {
		err = e
		delete(c.FailOnce, sql)
	} else if e, ok := c.Errors[sql]; ok {
		err = e
	}
	delay := c.Delays[sql]
	rows, ok := c.Rows[sql]
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err != nil {
		return 0, err
	}
	if !ok {
		rows = 1
	}
	return rows, nil
}

func (c *FakeConn) Columns(_ context.Context, table string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cols, ok := c.Tables[table]
	if !ok {
		return nil, fmt.Errorf("no such table: %s", table)
	}
	return cols, nil
}

func (c *FakeConn) Explain(_ context.Context, sql string) ([]model.PlanRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "EXPLAIN "+sql)
	if c.PlanErr != nil {
		return nil, c.PlanErr
	}
	return c.Plan, nil
}

func (c *FakeConn) Dialect() string { return "fake" }

func (c *FakeConn) Close(context.Context) error { return nil }

// Calls returns every statement issued so far, in order.
func (c *FakeConn) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// CountCalls returns how many times sql was issued.
func (c *FakeConn) CountCalls(sql string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call == sql {
			n++
		}
	}
	return n
}

// MaxConcurrent reports the highest number of Query calls that overlapped.
func (c *FakeConn) MaxConcurrent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxInFlight
}
