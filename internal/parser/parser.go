package parser

import (
	"regexp"
	"sort"
	"strings"
)

// The patterns below are a lexical pass over the query text, not a SQL grammar.
// Quoted identifiers with spaces and tables hidden behind CTEs are not resolved.
var (
	joinKeyword     = regexp.MustCompile(`(?i)\bJOIN\b`)
	subqueryOpening = regexp.MustCompile(`(?i)\(\s*SELECT\b`)
	fromTarget      = regexp.MustCompile(`(?i)\bFROM\s+([^\s,;]+)`)
	joinTarget      = regexp.MustCompile(`(?i)\bJOIN\s+([^\s,;]+)`)
	aliasSplit      = regexp.MustCompile(`(?i)\s+AS\s+|\s+`)
)

// TrimQuery strips surrounding whitespace and trailing statement terminators.
func TrimQuery(sql string) string {
	out := strings.TrimSpace(sql)
	for strings.HasSuffix(out, ";") {
		out = strings.TrimSpace(strings.TrimSuffix(out, ";"))
	}
	return out
}

// CountJoinsAndSubqueries returns the number of JOIN keywords and the raw number of
// "(SELECT" openings. Nested subqueries are counted individually.
func CountJoinsAndSubqueries(sql string) (joins, subqueries int) {
	joins = len(joinKeyword.FindAllStringIndex(sql, -1))
	subqueries = len(subqueryOpening.FindAllStringIndex(sql, -1))
	return joins, subqueries
}

// ExtractTableReferences returns the distinct table identifiers that follow FROM or
// JOIN, in order of first appearance, with aliases and punctuation removed.
func ExtractTableReferences(sql string) []string {
	type hit struct {
		pos   int
		token string
	}
	var hits []hit
	for _, re := range []*regexp.Regexp{fromTarget, joinTarget} {
		for _, m := range re.FindAllStringSubmatchIndex(sql, -1) {
			hits = append(hits, hit{pos: m[2], token: sql[m[2]:m[3]]})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := map[string]struct{}{}
	var tables []string
	for _, h := range hits {
		name := CleanTableToken(h.token)
		if name == "" || strings.EqualFold(name, "SELECT") {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tables = append(tables, name)
	}
	return tables
}

// CleanTableToken normalises a FROM/JOIN target: trailing comma, alias and
// enclosing parentheses are removed. Identifier case is preserved.
func CleanTableToken(token string) string {
	t := strings.TrimSpace(token)
	t = strings.TrimSuffix(t, ",")
	if parts := aliasSplit.Split(t, 2); len(parts) > 0 {
		t = parts[0]
	}
	return strings.Trim(t, "()")
}

// ExtractSubqueryFragments returns every top-level "(SELECT ...)" span, parentheses
// included, in discovery order. Openings inside an emitted fragment are skipped and
// unbalanced openings yield nothing.
func ExtractSubqueryFragments(sql string) []string {
	var fragments []string
	coveredUntil := -1
	for _, m := range subqueryOpening.FindAllStringIndex(sql, -1) {
		start := m[0]
		if start < coveredUntil {
			continue
		}
		end := matchingParen(sql, start)
		if end < 0 {
			continue
		}
		fragments = append(fragments, sql[start:end+1])
		coveredUntil = end + 1
	}
	return fragments
}

// StripParens removes one pair of enclosing parentheses from a fragment.
func StripParens(fragment string) string {
	s := strings.TrimSpace(fragment)
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func matchingParen(sql string, open int) int {
	depth := 0
	for i := open; i < len(sql); i++ {
		switch sql[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
