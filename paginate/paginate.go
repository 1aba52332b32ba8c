// Package paginate implements seek pagination: given an ordering that
// covers a table's primary key and an optional filter, it produces the
// seven prepared queries a storage adapter needs to serve forward,
// backward and seek-from-cursor reads plus their boundary counts.
package paginate

import (
	"fmt"

	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/rterr"
	"github.com/bglgwyng/rx-table/rtmodel"
	"github.com/bglgwyng/rx-table/schema"
	"github.com/bglgwyng/rx-table/sqlgen"
	"github.com/bglgwyng/rx-table/stmt"
)

// Ctx is the bind-time context threaded through every query in a Bundle.
// The bundle's own Parameters read Cursor and Limit. Every Parameter,
// including any the caller's filter expression embeds, receives the whole
// *Ctx; Extra is never read by the bundle itself and is left for those
// filter Parameters to read.
type Ctx struct {
	Cursor rtmodel.Cursor
	Limit  int
	Extra  expr.Ctx
}

// Bundle holds the seven compiled queries produced by Plan, plus the
// orderBy it was built from (the direction the caller should always return
// rows in, regardless of which query populated them).
type Bundle struct {
	LoadFirst   *sqlgen.Compiled
	LoadLast    *sqlgen.Compiled
	LoadNext    *sqlgen.Compiled
	LoadPrev    *sqlgen.Compiled
	CountTotal  *sqlgen.Compiled
	CountAfter  *sqlgen.Compiled
	CountBefore *sqlgen.Compiled
	OrderBy     []rtmodel.Order
}

// Plan builds a Bundle for table, ordered by orderBy and restricted by the
// optional filter (nil means no filter).
//
// Plan raises rterr.PaginationMisordered if orderBy does not cover every
// primary key column (PrimaryKeyMustBeOrdered) or mixes ascending and
// descending directions (DirectionsMustAgree). Both are required for the
// single row-value comparison predicate used by loadNext/loadPrev to be a
// correct, total seek predicate.
func Plan(table *schema.Table, orderBy []rtmodel.Order, filter expr.Expr) (*Bundle, error) {
	if err := checkPrimaryKeyOrdered(table, orderBy); err != nil {
		return nil, err
	}
	if err := checkDirectionsAgree(orderBy); err != nil {
		return nil, err
	}

	cursorTuple := cursorColumnTuple(orderBy)
	cursorParams := cursorParamTuple(orderBy)
	inverted := invert(orderBy)
	limit := limitParam()

	afterPred := expr.And(filter, expr.BinOp{Op: expr.OpGt, L: cursorTuple, R: cursorParams})
	beforePred := expr.And(filter, expr.BinOp{Op: expr.OpLt, L: cursorTuple, R: cursorParams})

	loadFirst, err := sqlgen.Compile(stmt.Select{
		Table: table, Columns: []expr.Expr{expr.Asterisk{}},
		Where: filter, OrderBy: orderBy, Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	loadLast, err := sqlgen.Compile(stmt.Select{
		Table: table, Columns: []expr.Expr{expr.Asterisk{}},
		Where: filter, OrderBy: inverted, Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	loadNext, err := sqlgen.Compile(stmt.Select{
		Table: table, Columns: []expr.Expr{expr.Asterisk{}},
		Where: afterPred, OrderBy: orderBy, Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	loadPrev, err := sqlgen.Compile(stmt.Select{
		Table: table, Columns: []expr.Expr{expr.Asterisk{}},
		Where: beforePred, OrderBy: inverted, Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	countTotal, err := sqlgen.Compile(stmt.Count{Table: table, Where: filter})
	if err != nil {
		return nil, err
	}
	countAfter, err := sqlgen.Compile(stmt.Count{Table: table, Where: afterPred})
	if err != nil {
		return nil, err
	}
	countBefore, err := sqlgen.Compile(stmt.Count{Table: table, Where: beforePred})
	if err != nil {
		return nil, err
	}

	return &Bundle{
		LoadFirst:   loadFirst,
		LoadLast:    loadLast,
		LoadNext:    loadNext,
		LoadPrev:    loadPrev,
		CountTotal:  countTotal,
		CountAfter:  countAfter,
		CountBefore: countBefore,
		OrderBy:     orderBy,
	}, nil
}

func checkPrimaryKeyOrdered(table *schema.Table, orderBy []rtmodel.Order) error {
	have := make(map[string]struct{}, len(orderBy))
	for _, o := range orderBy {
		have[o.Column] = struct{}{}
	}
	for _, pk := range table.PrimaryKey {
		if _, ok := have[pk]; !ok {
			return rterr.NewPaginationMisordered(fmt.Sprintf(
				"orderBy must cover primary key column %q of table %q", pk, table.Name))
		}
	}
	return nil
}

func checkDirectionsAgree(orderBy []rtmodel.Order) error {
	if len(orderBy) == 0 {
		return rterr.NewPaginationMisordered("orderBy must not be empty")
	}
	desc := orderBy[0].Desc
	for _, o := range orderBy[1:] {
		if o.Desc != desc {
			return rterr.NewPaginationMisordered("orderBy directions must be uniformly ascending or descending")
		}
	}
	return nil
}

func invert(orderBy []rtmodel.Order) []rtmodel.Order {
	out := make([]rtmodel.Order, len(orderBy))
	for i, o := range orderBy {
		out[i] = rtmodel.Order{Column: o.Column, Desc: !o.Desc}
	}
	return out
}

func cursorColumnTuple(orderBy []rtmodel.Order) expr.Expr {
	elems := make([]expr.Expr, len(orderBy))
	for i, o := range orderBy {
		elems[i] = expr.Column{Name: o.Column}
	}
	return expr.Tuple{Elems: elems}
}

func cursorParamTuple(orderBy []rtmodel.Order) expr.Expr {
	elems := make([]expr.Expr, len(orderBy))
	for i, o := range orderBy {
		col := o.Column
		elems[i] = expr.Parameter{
			Name: "cursor." + col,
			Extract: func(ctx expr.Ctx) expr.Value {
				return ctx.(*Ctx).Cursor[col]
			},
		}
	}
	return expr.Tuple{Elems: elems}
}

func limitParam() expr.Parameterizable {
	return expr.Parameter{
		Name: "limit",
		Extract: func(ctx expr.Ctx) expr.Value {
			return ctx.(*Ctx).Limit
		},
	}
}
