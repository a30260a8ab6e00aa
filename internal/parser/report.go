package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mickamy/xprobe/internal/model"
)

// ParseReport reads a report previously written by "xprobe run".
func ParseReport(r io.Reader) (*model.Report, error) {
	decoder := json.NewDecoder(r)

	var report model.Report
	if err := decoder.Decode(&report); err != nil {
		return nil, fmt.Errorf("decode report json: %w", err)
	}
	if report.Query == "" && len(report.Timeline) == 0 {
		return nil, errors.New("report json: missing query and timeline")
	}
	for i, step := range report.Timeline {
		if step.Type == "" {
			return nil, fmt.Errorf("report json: timeline step %d has no type", i)
		}
	}
	if report.TableCosts == nil {
		report.TableCosts = map[string]*float64{}
	}
	if report.JoinCosts == nil {
		report.JoinCosts = map[string]*float64{}
	}
	if report.SubqueryCosts == nil {
		report.SubqueryCosts = map[string]*float64{}
	}
	return &report, nil
}
