// Package stmt defines the statement AST compiled by package sqlgen:
// select, count, insert (with optional on-conflict-do-update), update and
// delete. Every statement carries a reference to the schema.Table it
// operates on.
package stmt

import (
	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/rtmodel"
	"github.com/bglgwyng/rx-table/schema"
)

// Statement is the sum type over every statement AST node.
type Statement interface {
	stmtNode()
}

// ColumnValue pairs a column name with the Parameterizable expression that
// supplies its value at bind time. Column-value lists are ordered slices,
// never maps, so that parameter order is deterministic and matches the
// order the caller declared.
type ColumnValue struct {
	Column string
	Value  expr.Parameterizable
}

// OnConflict describes an INSERT's ON CONFLICT DO UPDATE clause.
type OnConflict struct {
	Columns []string
	Update  []ColumnValue
}

// Select renders `SELECT <columns> FROM (<table>) [WHERE ...] [ORDER BY ...] [LIMIT ?]`.
type Select struct {
	Table   *schema.Table
	Columns []expr.Expr
	Where   expr.Expr // nil means no filter
	OrderBy []rtmodel.Order
	Limit   expr.Parameterizable // nil means no limit clause
}

// Count renders `SELECT COUNT(*) AS count FROM (<table>) [WHERE ...]`.
type Count struct {
	Table *schema.Table
	Where expr.Expr
}

// Insert renders `INSERT INTO <table> (...) VALUES (...) [ON CONFLICT ...]`.
type Insert struct {
	Table      *schema.Table
	Values     []ColumnValue
	OnConflict *OnConflict
}

// Update renders `UPDATE <table> SET ... WHERE ...`. Set must be non-empty;
// an empty Set is the EmptyUpdate no-op handled above this layer.
type Update struct {
	Table *schema.Table
	Set   []ColumnValue
	Key   []ColumnValue // primary key columns, in schema primary-key order
}

// Delete renders `DELETE FROM <table> WHERE ...`.
type Delete struct {
	Table *schema.Table
	Key   []ColumnValue
}

func (Select) stmtNode() {}
func (Count) stmtNode()  {}
func (Insert) stmtNode() {}
func (Update) stmtNode() {}
func (Delete) stmtNode() {}
