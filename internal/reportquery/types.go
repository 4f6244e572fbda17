// Package reportquery is a small declarative query IR compiled to
// parameterized SQL against the registry's identifiers and players tables — operational
// bookkeeping introspection rather than match content.
//
// A declarative query → SQL compile step: sealed Query/Predicate
// interfaces, a parameterized-SQL-only discipline, narrowed to the fixed
// tables this registry exposes.
package reportquery

// Query is a sealed interface over the declarative shapes this package
// can compile.
type Query interface {
	queryNode()
}

// Predicate is a sealed interface over WHERE-clause filters.
type Predicate interface {
	predicateNode()
}

// Select is a single-table query with an optional filter over this
// package's fixed registry tables.
type Select struct {
	From     string    // "identifiers" or "players"
	Filter   Predicate
	Bindings []string  // column names to select; empty means all columns
}

func (Select) queryNode() {}

// Equals is a field-equals-literal predicate.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// And is a conjunction of predicates.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// GroupCount is an aggregate query: COUNT(*) grouped by one column,
// optionally filtered — the shape cross_cycle reporting needs to compare
// per-status match counts across cycles.
type GroupCount struct {
	From      string
	GroupBy   string
	CountName string    // alias for the COUNT(*) column, default "count"
	Filter    Predicate
}

func (GroupCount) queryNode() {}
