package test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mickamy/xprobe/internal/model"
	"github.com/mickamy/xprobe/internal/parser"
)

var (
	rootPath string
	once     sync.Once
)

// RootPath resolves a path relative to the repository rootPath (where go.mod resides).
func RootPath(t *testing.T) string {
	t.Helper()
	once.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("getwd: %v", err)
		}
		for {
			if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
				rootPath = wd
				break
			}
			next := filepath.Dir(wd)
			if next == wd {
				t.Fatalf("go.mod not found from %s", wd)
			}
			wd = next
		}
	})
	return rootPath
}

// LoadSampleReport loads a saved report relative to the repository samples directory.
func LoadSampleReport(t *testing.T, rel string) *model.Report {
	t.Helper()
	root := RootPath(t)
	f, err := os.Open(filepath.Join(root, "samples", rel))
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer func() { _ = f.Close() }()

	report, err := parser.ParseReport(f)
	if err != nil {
		t.Fatalf("parse report: %v", err)
	}
	return report
}
