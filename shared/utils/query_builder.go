package utils

import (
	"fmt"
	"strings"
)

// Condition is one WHERE predicate.
type Condition struct {
	Field    string // Column name
	Operator string // =, !=, >, <, >=, <=, LIKE, IN, BETWEEN, IS_NULL, IS_NOT_NULL
	Value    any    // single value, []any for IN, []any{min, max} for BETWEEN
	Logic    string // AND or OR, joins this condition to the next one
}

// QueryBuilder appends a WHERE clause, ORDER BY and pagination to a template
// query. Placeholders are emitted as "?" so the result must be passed through
// sqlx's Rebind before execution; that keeps the same query valid for both
// the Postgres and the SQLite driver.
type QueryBuilder struct {
	TemplateQuery string
	Conditions    []Condition
	OrderBy       []string // e.g. []string{"activity_date DESC", "id"}
	Limit         int
	Offset        int
}

// BuildQueryDynamicFilter renders the query and its positional arguments.
func (qb *QueryBuilder) BuildQueryDynamicFilter() (string, []any, error) {
	if qb.TemplateQuery == "" {
		return "", nil, fmt.Errorf("template query is required")
	}

	var sb strings.Builder
	sb.WriteString(qb.TemplateQuery)
	args := []any{}

	if len(qb.Conditions) > 0 {
		parts := make([]string, 0, len(qb.Conditions)*2)
		for i, cond := range qb.Conditions {
			part, condArgs, err := renderCondition(cond)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, part)
			args = append(args, condArgs...)

			if i < len(qb.Conditions)-1 {
				logic := strings.ToUpper(strings.TrimSpace(cond.Logic))
				if logic == "" {
					logic = "AND"
				}
				if logic != "AND" && logic != "OR" {
					return "", nil, fmt.Errorf("invalid logic operator: %s (must be AND or OR)", cond.Logic)
				}
				parts = append(parts, logic)
			}
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " "))
	}

	if len(qb.OrderBy) > 0 {
		orders := []string{}
		for _, order := range qb.OrderBy {
			fields := strings.Fields(order)
			switch len(fields) {
			case 0:
				continue
			case 1:
				orders = append(orders, fields[0]+" ASC")
			case 2:
				dir := strings.ToUpper(fields[1])
				if dir != "ASC" && dir != "DESC" {
					return "", nil, fmt.Errorf("invalid order direction: %s (must be ASC or DESC)", fields[1])
				}
				orders = append(orders, fields[0]+" "+dir)
			default:
				return "", nil, fmt.Errorf("invalid order format: %s", order)
			}
		}
		if len(orders) > 0 {
			sb.WriteString(" ORDER BY ")
			sb.WriteString(strings.Join(orders, ", "))
		}
	}

	if qb.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, qb.Limit)
		if qb.Offset > 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, qb.Offset)
		}
	}

	return sb.String(), args, nil
}

func renderCondition(cond Condition) (string, []any, error) {
	switch op := strings.ToUpper(cond.Operator); op {
	case "=", "!=", ">", "<", ">=", "<=", "LIKE":
		return fmt.Sprintf("%s %s ?", cond.Field, op), []any{cond.Value}, nil

	case "IN":
		values, ok := cond.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("IN operator requires []any value for field %s", cond.Field)
		}
		if len(values) == 0 {
			return "", nil, fmt.Errorf("IN operator requires at least one value for field %s", cond.Field)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return fmt.Sprintf("%s IN (%s)", cond.Field, placeholders), values, nil

	case "BETWEEN":
		values, ok := cond.Value.([]any)
		if !ok || len(values) != 2 {
			return "", nil, fmt.Errorf("BETWEEN operator requires []any{min, max} for field %s", cond.Field)
		}
		return fmt.Sprintf("%s BETWEEN ? AND ?", cond.Field), values, nil

	case "IS_NULL":
		return cond.Field + " IS NULL", nil, nil

	case "IS_NOT_NULL":
		return cond.Field + " IS NOT NULL", nil, nil
	}

	return "", nil, fmt.Errorf("unsupported operator: %s", cond.Operator)
}
