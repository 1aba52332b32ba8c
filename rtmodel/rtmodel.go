// Package rtmodel holds the value types shared by the storage adapter, the
// pagination planner and the reactive table layer: rows, cursors, pages
// and the events a mutation publishes.
package rtmodel

import "github.com/bglgwyng/rx-table/expr"

// Row maps a column name to its scalar value.
type Row = expr.Row

// PrimaryKeyRecord is a Row restricted to primary key columns.
type PrimaryKeyRecord = Row

// Cursor is a PrimaryKeyRecord enriched with the ordering columns of the
// query that produced it. For a query Q, a Cursor's keys equal Q's orderBy
// columns, which are a superset of the primary key.
type Cursor = Row

// EventKind discriminates the three mutation event shapes.
type EventKind uint8

const (
	EventInsert EventKind = iota
	EventUpdate
	EventDelete
)

// TableEvent describes one row-level effect of a mutation.
type TableEvent struct {
	Kind EventKind

	// Row is the complete inserted row. Only set when Kind == EventInsert.
	Row Row
	// Key identifies the affected row for EventUpdate and EventDelete.
	Key PrimaryKeyRecord
	// Partial holds the changed columns for EventUpdate.
	Partial Row
}

// KeyTuple extracts the primary key values of the event's affected row, in
// schema primary-key order, for use as a partitionByKey routing key.
func (e TableEvent) KeyTuple(primaryKey []string) []expr.Value {
	var src Row
	switch e.Kind {
	case EventInsert:
		src = e.Row
	default:
		src = e.Key
	}
	out := make([]expr.Value, len(primaryKey))
	for i, k := range primaryKey {
		out[i] = src[k]
	}
	return out
}

// Order describes one ordering column and its direction.
type Order struct {
	Column string
	Desc   bool
}

// ForwardPageInit requests a page moving forward from an optional cursor.
// After == nil means "from the start".
type ForwardPageInit struct {
	After   Cursor
	First   int
	OrderBy []Order
	Filter  expr.Expr // nil means no filter
}

// BackwardPageInit requests a page moving backward from an optional cursor.
// Before == nil means "from the end".
type BackwardPageInit struct {
	Before  Cursor
	Last    int
	OrderBy []Order
	Filter  expr.Expr
}

// PageInit is the union of ForwardPageInit and BackwardPageInit.
type PageInit interface {
	orderBy() []Order
	filter() expr.Expr
}

func (p ForwardPageInit) orderBy() []Order   { return p.OrderBy }
func (p ForwardPageInit) filter() expr.Expr  { return p.Filter }
func (p BackwardPageInit) orderBy() []Order  { return p.OrderBy }
func (p BackwardPageInit) filter() expr.Expr { return p.Filter }

// OrderByOf returns the ordering columns of a PageInit.
func OrderByOf(p PageInit) []Order { return p.orderBy() }

// FilterOf returns the filter expression of a PageInit, or nil.
func FilterOf(p PageInit) expr.Expr { return p.filter() }

// Page is the result of findMany: a window of rows plus counts needed to
// render pagination controls.
type Page struct {
	Rows            []Cursor
	RowCount        int
	StartCursor     Cursor
	EndCursor       Cursor
	ItemBeforeCount int
	ItemAfterCount  int
}

// DeltaOp discriminates the two PageDelta entry shapes.
type DeltaOp uint8

const (
	DeltaAdd DeltaOp = iota
	DeltaRemove
)

// PageDelta is one add/remove entry applied to a Page to keep it live.
type PageDelta struct {
	Op  DeltaOp
	Row Cursor           // set for DeltaAdd
	Key PrimaryKeyRecord // set for DeltaRemove
}
