// Package storage adapts a synchronous SQL-ish backend to the compiled
// statements produced by sqlgen and paginate. It caches the handful of
// statement shapes every table needs (insert, upsert, delete, select-by-
// primary-key) at construction, compiles UPDATE on demand since its SET
// list depends on which columns the caller actually changed, and
// implements findMany atop the pagination planner.
package storage

import (
	"github.com/bglgwyng/rx-table/expr"
)

// RunResult reports the effect of a mutation statement.
type RunResult struct {
	RowsAffected int64
}

// Statement is a backend-prepared, bind-ready handle for one compiled SQL
// string. Implementations must be safe to Get/All/Run repeatedly with
// different parameter lists.
type Statement interface {
	// Get runs the statement and returns at most one row.
	Get(params []expr.Value) (expr.Row, bool, error)
	// All runs the statement and returns every matching row.
	All(params []expr.Value) ([]expr.Row, error)
	// Run executes the statement for its side effect.
	Run(params []expr.Value) (RunResult, error)
}

// Backend is the contract required of any storage driver: synchronous
// prepare, and a transaction wrapper that commits on a nil return and
// rolls back otherwise.
type Backend interface {
	Prepare(sql string) (Statement, error)
	// Transaction runs fn against a Backend scoped to one transaction.
	// fn's backend must not be used after Transaction returns.
	Transaction(fn func(Backend) error) error
}
