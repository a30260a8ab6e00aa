package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/xprobe/internal/model"
	"github.com/mickamy/xprobe/test"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("XPROBE_CONFIG", "")
	t.Setenv("XPROBE_LOG_LEVEL", "ERROR")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunSampleWritesJSON(t *testing.T) {
	out, err := execute(t, "run", "--sample", "--query", "SELECT c.name FROM customers c JOIN orders o ON c.customer_id = o.customer_id;")
	require.NoError(t, err)

	assert.Contains(t, out, `"customers<>orders"`)
	var report model.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "sqlite", report.Dialect)
	assert.Equal(t, []string{"customers", "orders"}, report.Tables)
	assert.NotEmpty(t, report.ID)
}

func TestRunWritesOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	_, err := execute(t, "run", "--sample", "--query", "SELECT * FROM products", "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"id\""))
}

func TestRunFailingQuery(t *testing.T) {
	_, err := execute(t, "run", "--sample", "--query", "SELECT nope FROM customers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRunRequiresURL(t *testing.T) {
	_, err := execute(t, "run", "--query", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--url is required")

	_, err = execute(t, "run", "--sample", "--sql", "a.sql", "--query", "SELECT 1")
	require.Error(t, err)
}

func TestAnalyzeSampleDefaultQuery(t *testing.T) {
	out, err := execute(t, "analyze", "--sample", "--color=false")
	require.NoError(t, err)
	assert.Contains(t, out, "=== SQL ANALYSIS REPORT ===")
	assert.Contains(t, out, "Joins 3 | Subqueries 0")
}

func TestReportRendersHTML(t *testing.T) {
	input := filepath.Join(test.RootPath(t), "samples", "report_base.json")

	out, err := execute(t, "report", "--input", input, "--mode", "html", "--title", "nightly")
	require.NoError(t, err)
	assert.Contains(t, out, "<title>nightly</title>")

	_, err = execute(t, "report", "--input", input, "--mode", "svg")
	require.Error(t, err)
}

func TestDiffJSON(t *testing.T) {
	root := test.RootPath(t)
	out, err := execute(t, "diff",
		"--base", filepath.Join(root, "samples", "report_base.json"),
		"--target", filepath.Join(root, "samples", "report_target.json"),
		"--format", "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "regressions")
}

func TestConfigFlag(t *testing.T) {
	cfg := filepath.Join(test.RootPath(t), "samples", "config.example.yaml")
	_, err := execute(t, "--config", cfg, "version", "--short")
	require.NoError(t, err)

	_, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.json"), "version")
	require.Error(t, err)
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}
