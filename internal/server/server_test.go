package server_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/xprobe/internal/analyzer"
	"github.com/mickamy/xprobe/internal/model"
	"github.com/mickamy/xprobe/internal/server"
	"github.com/mickamy/xprobe/test"
)

func newServer(t *testing.T, conn *test.FakeConn) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(server.NewHandler(conn, analyzer.Options{}).Router())
	t.Cleanup(srv.Close)
	return srv
}

func shopConn() *test.FakeConn {
	return &test.FakeConn{
		Tables: map[string][]string{
			"customers": {"customer_id", "name"},
			"orders":    {"order_id", "customer_id", "total"},
		},
		Plan: []model.PlanRow{model.TextRow("SCAN customers")},
	}
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newServer(t, shopConn())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "ok", "dialect": "fake"}, body)
}

func TestAnalyzeReturnsReport(t *testing.T) {
	srv := newServer(t, shopConn())

	resp := post(t, srv.URL+"/analyze", `{"query": "SELECT * FROM customers c JOIN orders o ON c.customer_id = o.customer_id;"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"customers<>orders"`, "join keys are not HTML-escaped")

	var report model.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, 1, report.JoinCount)
	assert.Equal(t, []string{"customers", "orders"}, report.Tables)
	assert.Equal(t, []string{"SCAN customers"}, report.Explain.Strings())
}

func TestAnalyzeHTML(t *testing.T) {
	srv := newServer(t, shopConn())

	resp := post(t, srv.URL+"/analyze?format=html", `{"query": "SELECT * FROM customers"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestAnalyzeBadRequests(t *testing.T) {
	srv := newServer(t, shopConn())

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed", body: `{"query":`},
		{name: "empty query", body: `{"query": "   "}`},
		{name: "missing query", body: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body server.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestAnalyzeQueryFailure(t *testing.T) {
	conn := shopConn()
	conn.Errors = map[string]error{"SELECT nope FROM customers": errors.New("no such column: nope")}
	srv := newServer(t, conn)

	resp := post(t, srv.URL+"/analyze", `{"query": "SELECT nope FROM customers"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body server.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "no such column: nope")
}

func TestAnalyzeConcurrentRequestsAreSerialized(t *testing.T) {
	conn := shopConn()
	conn.Delays = map[string]time.Duration{"SELECT * FROM orders": 2 * time.Millisecond}
	srv := newServer(t, conn)

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Post(srv.URL+"/analyze", "application/json", strings.NewReader(`{"query": "SELECT * FROM orders"}`))
			if err != nil {
				return
			}
			defer func() { _ = resp.Body.Close() }()
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()
	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, 1, conn.MaxConcurrent())
}
