package model

import (
	"encoding/json"
	"fmt"
)

// PlanRow is one row of a database's native plan explanation.
// Its shape is engine defined; callers only rely on its text form.
type PlanRow interface {
	fmt.Stringer
}

// TextRow is a plan row known only by its text, e.g. a PostgreSQL
// EXPLAIN line or a row decoded from a saved report.
type TextRow string

func (r TextRow) String() string { return string(r) }

// PlanRows serialises as a list of strings.
type PlanRows []PlanRow

// Strings returns the text form of every row.
func (rows PlanRows) Strings() []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, row.String())
	}
	return out
}

func (rows PlanRows) MarshalJSON() ([]byte, error) {
	return json.Marshal(rows.Strings())
}

func (rows *PlanRows) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("plan rows: %w", err)
	}
	out := make(PlanRows, 0, len(raw))
	for _, s := range raw {
		out = append(out, TextRow(s))
	}
	*rows = out
	return nil
}
