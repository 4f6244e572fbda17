package reportquery

import (
	"fmt"
	"strings"
)

// allowedIdentifiers guards against anything other than the fixed set of
// registry column/table names this package knows how to compile, the same
// whitelist discipline required before interpolating an identifier into
// SQL text (table/column names can never be parameterized placeholders in
// SQL, so they must be validated instead).
var allowedIdentifiers = map[string]bool{
	"identifiers": true, "players": true,
	"match_id": true, "status": true, "first_seen_cycle": true,
	"completed_cycle": true, "last_error_category": true, "updated_at": true,
	"puuid": true, "tier": true, "division": true, "last_seen_cycle": true,
}

// Compiler compiles a reportquery.Query into parameterized SQL for SQLite.
// Every value is bound as a "?" placeholder — never interpolated — and
// every query is ordered for deterministic output: stable ordering, no
// string-built values.
type Compiler struct{}

// NewCompiler returns a ready-to-use Compiler. Stateless: no bound-value
// side table is needed here since reportquery has no when-clause scope to
// thread through, unlike the sync-rule QueryIR it's adapted from.
func NewCompiler() *Compiler { return &Compiler{} }

// Compile converts q into a SQL string and its ordered parameter list.
func (c *Compiler) Compile(q Query) (string, []any, error) {
	switch query := q.(type) {
	case Select:
		return c.compileSelect(query)
	case *Select:
		return c.compileSelect(*query)
	case GroupCount:
		return c.compileGroupCount(query)
	case *GroupCount:
		return c.compileGroupCount(*query)
	default:
		return "", nil, fmt.Errorf("reportquery: unsupported query type %T", q)
	}
}

func (c *Compiler) compileSelect(q Select) (string, []any, error) {
	if err := checkIdentifier(q.From); err != nil {
		return "", nil, err
	}
	cols := "*"
	if len(q.Bindings) > 0 {
		for _, col := range q.Bindings {
			if err := checkIdentifier(col); err != nil {
				return "", nil, err
			}
		}
		cols = strings.Join(q.Bindings, ", ")
	}

	where, params, err := c.compileFilter(q.Filter)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s", cols, q.From, where, orderKeyFor(q.From))
	return sql, params, nil
}

func (c *Compiler) compileGroupCount(q GroupCount) (string, []any, error) {
	if err := checkIdentifier(q.From); err != nil {
		return "", nil, err
	}
	if err := checkIdentifier(q.GroupBy); err != nil {
		return "", nil, err
	}
	countName := q.CountName
	if countName == "" {
		countName = "count"
	}

	where, params, err := c.compileFilter(q.Filter)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf(
		"SELECT %s, COUNT(*) AS %s FROM %s%s GROUP BY %s ORDER BY %s",
		q.GroupBy, countName, q.From, where, q.GroupBy, q.GroupBy,
	)
	return sql, params, nil
}

func (c *Compiler) compileFilter(p Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	sql, params, err := c.compilePredicate(p)
	if err != nil {
		return "", nil, err
	}
	return " WHERE " + sql, params, nil
}

func (c *Compiler) compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		if err := checkIdentifier(pred.Field); err != nil {
			return "", nil, err
		}
		return pred.Field + " = ?", []any{pred.Value}, nil
	case And:
		if len(pred.Predicates) == 0 {
			return "1=1", nil, nil
		}
		var clauses []string
		var params []any
		for _, sub := range pred.Predicates {
			clause, subParams, err := c.compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, clause)
			params = append(params, subParams...)
		}
		return "(" + strings.Join(clauses, " AND ") + ")", params, nil
	default:
		return "", nil, fmt.Errorf("reportquery: unsupported predicate type %T", p)
	}
}

func checkIdentifier(name string) error {
	if !allowedIdentifiers[name] {
		return fmt.Errorf("reportquery: identifier %q is not in the registry schema whitelist", name)
	}
	return nil
}

func orderKeyFor(table string) string {
	switch table {
	case "identifiers":
		return "match_id"
	case "players":
		return "puuid"
	default:
		return "1"
	}
}
