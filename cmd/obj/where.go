package obj

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/objectis/lib/query"
)

// condition is one parsed --where expression, e.g. "age<=24" or "tags contains ops"
type condition struct {
	field  string
	op     string
	values []any
}

// word operators need surrounding spaces, symbolic ones are checked longest first
var (
	wordOperators     = []string{"contains-any", "contains"}
	symbolicOperators = []string{"<=", ">=", "!=", "==", "<", ">", "="}
)

// parseCondition parses "field op value". contains-any takes a comma separated list.
func parseCondition(expr string) (condition, error) {
	for _, op := range wordOperators {
		if i := strings.Index(expr, " "+op+" "); i > 0 {
			field := strings.TrimSpace(expr[:i])
			rest := strings.TrimSpace(expr[i+len(op)+2:])
			if field == "" || rest == "" {
				break
			}
			c := condition{field: field, op: op}
			if op == "contains-any" {
				for _, part := range strings.Split(rest, ",") {
					c.values = append(c.values, parseValue(part))
				}
			} else {
				c.values = []any{parseValue(rest)}
			}
			return c, nil
		}
	}

	for _, op := range symbolicOperators {
		if i := strings.Index(expr, op); i > 0 {
			field := strings.TrimSpace(expr[:i])
			rest := strings.TrimSpace(expr[i+len(op):])
			if field == "" || rest == "" || strings.ContainsAny(field, "<>!=") {
				break
			}
			if op == "=" {
				op = "=="
			}
			return condition{field: field, op: op, values: []any{parseValue(rest)}}, nil
		}
	}

	return condition{}, fmt.Errorf("invalid condition '%s' (expected e.g. 'age<=24' or 'tags contains ops')", expr)
}

// parseValue guesses the type of a literal: null, int, float, bool or string.
// Quoted literals are always strings.
func parseValue(s string) any {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	if s == "null" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// apply adds the condition to q
func apply[T any](q *query.Filterable[T], c condition) *query.Filterable[T] {
	switch c.op {
	case "==":
		return q.WhereEqualTo(c.field, c.values[0])
	case "!=":
		return q.WhereNotEqualTo(c.field, c.values[0])
	case "<":
		return q.WhereLessThan(c.field, c.values[0])
	case "<=":
		return q.WhereLessThanOrEqualTo(c.field, c.values[0])
	case ">":
		return q.WhereGreaterThan(c.field, c.values[0])
	case ">=":
		return q.WhereGreaterThanOrEqualTo(c.field, c.values[0])
	case "contains":
		return q.WhereArrayContains(c.field, c.values[0])
	case "contains-any":
		return q.WhereArrayContainsAny(c.field, c.values...)
	default:
		return q
	}
}

// parseOrder parses "field" or "field:asc|desc"
func parseOrder(s string) (string, query.Direction, error) {
	field, dir, _ := strings.Cut(s, ":")
	if field == "" {
		return "", query.Ascending, fmt.Errorf("invalid order '%s' (expected e.g. 'name:desc')", s)
	}
	d, err := query.ParseDirection(dir)
	return field, d, err
}
