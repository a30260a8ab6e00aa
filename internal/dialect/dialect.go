// Package dialect picks a database driver from a connection URL.
package dialect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mickamy/xprobe/internal/dialect/mysql"
	"github.com/mickamy/xprobe/internal/dialect/postgres"
	"github.com/mickamy/xprobe/internal/dialect/sqlite"
	"github.com/mickamy/xprobe/internal/runner"
)

// ErrUnsupported is returned for URLs no dialect recognises.
var ErrUnsupported = errors.New("dialect: unsupported database url")

// Detect returns the dialect name for url, or "" when none matches.
func Detect(url string) string {
	url = strings.TrimSpace(url)
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return postgres.Name
	case strings.HasPrefix(lower, "mysql://"):
		return mysql.Name
	case strings.HasPrefix(lower, "sqlite://"),
		strings.HasPrefix(lower, "file:"),
		lower == ":memory:",
		strings.HasSuffix(lower, ".db"),
		strings.HasSuffix(lower, ".sqlite"),
		strings.HasSuffix(lower, ".sqlite3"):
		return sqlite.Name
	}
	return ""
}

// Open connects to url with the matching dialect.
func Open(ctx context.Context, url string) (runner.Conn, error) {
	url = strings.TrimSpace(url)
	var (
		conn runner.Conn
		err  error
	)
	switch Detect(url) {
	case postgres.Name:
		conn, err = postgres.Open(ctx, url)
	case mysql.Name:
		conn, err = mysql.Open(ctx, url[len("mysql://"):])
	case sqlite.Name:
		conn, err = sqlite.Open(url)
	default:
		if url == "" {
			return nil, fmt.Errorf("dialect: empty database url")
		}
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, url)
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
