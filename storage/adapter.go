package storage

import (
	"sort"
	"strings"

	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/paginate"
	"github.com/bglgwyng/rx-table/rterr"
	"github.com/bglgwyng/rx-table/rtmodel"
	"github.com/bglgwyng/rx-table/schema"
	"github.com/bglgwyng/rx-table/sqlgen"
	"github.com/bglgwyng/rx-table/stmt"
)

// PreparedOne is a callable select statement expected to return at most one row.
type PreparedOne func(ctx expr.Ctx) (expr.Row, bool, error)

// PreparedAll is a callable select statement returning every matching row.
type PreparedAll func(ctx expr.Ctx) ([]expr.Row, error)

// PreparedCount is a callable count statement.
type PreparedCount func(ctx expr.Ctx) (int, error)

// PreparedMutation is a callable insert/update/delete statement.
type PreparedMutation func(ctx expr.Ctx) (RunResult, error)

type preparedStmt struct {
	st      Statement
	extract sqlgen.ParamExtractor
}

func (p preparedStmt) run(ctx expr.Ctx) (RunResult, error) {
	return p.st.Run(p.extract(ctx))
}

func (p preparedStmt) get(ctx expr.Ctx) (expr.Row, bool, error) {
	return p.st.Get(p.extract(ctx))
}

// Adapter wraps a Backend with the prepared statements one table needs.
// It exclusively owns its compiled-statement cache and the backend handle.
type Adapter struct {
	backend Backend
	table   *schema.Table

	insert     preparedStmt
	upsert     preparedStmt
	deleteStmt preparedStmt
	selectByPK preparedStmt

	updateCache map[string]preparedStmt
}

// updateCtx is the bind-time context for Update: Set reads from Partial,
// the WHERE clause reads from Key.
type updateCtx struct {
	Partial rtmodel.Row
	Key     rtmodel.PrimaryKeyRecord
}

// New builds an Adapter for table against backend, eagerly preparing
// insert, upsert, delete and select-by-primary-key.
func New(backend Backend, table *schema.Table) (*Adapter, error) {
	a := &Adapter{
		backend:     backend,
		table:       table,
		updateCache: make(map[string]preparedStmt),
	}
	if err := a.prepareFixed(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) prepareFixed() error {
	insertCV := columnValuesFromRow(a.table.ColumnNames())
	var err error
	a.insert, err = a.compile(stmt.Insert{Table: a.table, Values: insertCV})
	if err != nil {
		return err
	}

	nonKey := a.table.NonKeyColumnNames()
	a.upsert, err = a.compile(stmt.Insert{
		Table:  a.table,
		Values: insertCV,
		OnConflict: &stmt.OnConflict{
			Columns: a.table.PrimaryKey,
			Update:  columnValuesFromRow(nonKey),
		},
	})
	if err != nil {
		return err
	}

	a.deleteStmt, err = a.compile(stmt.Delete{Table: a.table, Key: keyColumnValuesDirect(a.table.PrimaryKey)})
	if err != nil {
		return err
	}

	a.selectByPK, err = a.compile(stmt.Select{
		Table:   a.table,
		Columns: []expr.Expr{expr.Asterisk{}},
		Where:   keyEquality(a.table.PrimaryKey),
	})
	if err != nil {
		return err
	}
	return nil
}

func (a *Adapter) compile(s stmt.Statement) (preparedStmt, error) {
	c, err := sqlgen.Compile(s)
	if err != nil {
		return preparedStmt{}, err
	}
	prepared, err := a.backend.Prepare(c.SQL)
	if err != nil {
		return preparedStmt{}, rterr.NewBackendError("prepare", err)
	}
	return preparedStmt{st: prepared, extract: c.Extract}, nil
}

// columnValuesFromRow builds an ordered ColumnValue list where each value is
// a Parameter reading columns[i] from a rtmodel.Row bind-time context.
func columnValuesFromRow(columns []string) []stmt.ColumnValue {
	out := make([]stmt.ColumnValue, len(columns))
	for i, col := range columns {
		c := col
		out[i] = stmt.ColumnValue{
			Column: c,
			Value: expr.Parameter{
				Name: c,
				Extract: func(ctx expr.Ctx) expr.Value {
					return ctx.(rtmodel.Row)[c]
				},
			},
		}
	}
	return out
}

// keyColumnValuesDirect builds an ordered ColumnValue list reading each
// primary key column straight from a rtmodel.PrimaryKeyRecord bind-time
// context (used where the whole ctx IS the key: delete, select-by-PK).
func keyColumnValuesDirect(pk []string) []stmt.ColumnValue {
	out := make([]stmt.ColumnValue, len(pk))
	for i, col := range pk {
		c := col
		out[i] = stmt.ColumnValue{
			Column: c,
			Value: expr.Parameter{
				Name: "key." + c,
				Extract: func(ctx expr.Ctx) expr.Value {
					return ctx.(rtmodel.PrimaryKeyRecord)[c]
				},
			},
		}
	}
	return out
}

// keyColumnValuesFromUpdateCtx is keyColumnValuesDirect's counterpart for
// Update, whose ctx additionally carries the changed columns in Partial.
func keyColumnValuesFromUpdateCtx(pk []string) []stmt.ColumnValue {
	out := make([]stmt.ColumnValue, len(pk))
	for i, col := range pk {
		c := col
		out[i] = stmt.ColumnValue{
			Column: c,
			Value: expr.Parameter{
				Name: "key." + c,
				Extract: func(ctx expr.Ctx) expr.Value {
					return ctx.(*updateCtx).Key[c]
				},
			},
		}
	}
	return out
}

func keyEquality(pk []string) expr.Expr {
	var operands []expr.Expr
	for _, col := range pk {
		c := col
		operands = append(operands, expr.BinOp{
			Op: expr.OpEq,
			L:  expr.Column{Name: c},
			R: expr.Parameter{
				Name: "key." + c,
				Extract: func(ctx expr.Ctx) expr.Value {
					return ctx.(rtmodel.PrimaryKeyRecord)[c]
				},
			},
		})
	}
	return expr.And(operands...)
}

// Insert writes a complete row. row must supply every declared column.
func (a *Adapter) Insert(row rtmodel.Row) error {
	_, err := a.insert.run(row)
	return rterr.NewBackendError("insert", err)
}

// Upsert writes row, updating the non-primary-key columns in place on a
// primary key conflict.
func (a *Adapter) Upsert(row rtmodel.Row) error {
	_, err := a.upsert.run(row)
	return rterr.NewBackendError("upsert", err)
}

// Update changes the columns named in partial for the row identified by
// key. An empty partial is the EmptyUpdate no-op: it returns immediately
// without touching the backend. A missing row is not distinguished from a
// successful no-op update.
func (a *Adapter) Update(key rtmodel.PrimaryKeyRecord, partial rtmodel.Row) error {
	if len(partial) == 0 {
		return nil
	}
	cols := make([]string, 0, len(partial))
	for c := range partial {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	cacheKey := strings.Join(cols, ",")

	up, ok := a.updateCache[cacheKey]
	if !ok {
		set := make([]stmt.ColumnValue, len(cols))
		for i, c := range cols {
			col := c
			set[i] = stmt.ColumnValue{
				Column: col,
				Value: expr.Parameter{
					Name: col,
					Extract: func(ctx expr.Ctx) expr.Value {
						return ctx.(*updateCtx).Partial[col]
					},
				},
			}
		}
		var err error
		up, err = a.compile(stmt.Update{
			Table: a.table,
			Set:   set,
			Key:   keyColumnValuesFromUpdateCtx(a.table.PrimaryKey),
		})
		if err != nil {
			return err
		}
		a.updateCache[cacheKey] = up
	}
	_, err := up.run(&updateCtx{Partial: partial, Key: key})
	return rterr.NewBackendError("update", err)
}

// Delete removes the row identified by key. A missing row is not
// distinguished from a successful no-op delete.
func (a *Adapter) Delete(key rtmodel.PrimaryKeyRecord) error {
	_, err := a.deleteStmt.run(key)
	return rterr.NewBackendError("delete", err)
}

// FindUnique returns the row identified by key, or ok == false if none exists.
func (a *Adapter) FindUnique(key rtmodel.PrimaryKeyRecord) (expr.Row, bool, error) {
	row, ok, err := a.selectByPK.get(key)
	if err != nil {
		return nil, false, rterr.NewBackendError("findUnique", err)
	}
	return row, ok, nil
}

// PrepareQueryOne compiles s and returns a callable expected to return at
// most one row.
func (a *Adapter) PrepareQueryOne(s stmt.Statement) (PreparedOne, error) {
	p, err := a.compile(s)
	if err != nil {
		return nil, err
	}
	return func(ctx expr.Ctx) (expr.Row, bool, error) {
		row, ok, err := p.get(ctx)
		return row, ok, rterr.NewBackendError("query one", err)
	}, nil
}

// PrepareQueryAll compiles s and returns a callable returning every
// matching row.
func (a *Adapter) PrepareQueryAll(s stmt.Statement) (PreparedAll, error) {
	p, err := a.compile(s)
	if err != nil {
		return nil, err
	}
	return func(ctx expr.Ctx) ([]expr.Row, error) {
		rows, err := p.st.All(p.extract(ctx))
		return rows, rterr.NewBackendError("query all", err)
	}, nil
}

// PrepareCount compiles s (a stmt.Count) and returns a callable count.
func (a *Adapter) PrepareCount(s stmt.Statement) (PreparedCount, error) {
	p, err := a.compile(s)
	if err != nil {
		return nil, err
	}
	return func(ctx expr.Ctx) (int, error) {
		row, ok, err := p.get(ctx)
		if err != nil {
			return 0, rterr.NewBackendError("count", err)
		}
		if !ok {
			return 0, nil
		}
		return toInt(row["count"]), nil
	}, nil
}

// PrepareMutation compiles s and returns a callable mutation.
func (a *Adapter) PrepareMutation(s stmt.Statement) (PreparedMutation, error) {
	p, err := a.compile(s)
	if err != nil {
		return nil, err
	}
	return func(ctx expr.Ctx) (RunResult, error) {
		res, err := p.run(ctx)
		return res, rterr.NewBackendError("mutation", err)
	}, nil
}

func toInt(v expr.Value) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// FindMany serves a cursor-paginated read via the seven-query bundle built
// by package paginate.
//
// Accounting: RowCount is always the total under the filter, independent of
// the window. When the caller seeks from a cursor (After/Before set) but
// the resulting window is empty, the "before"/"after" count on that side
// collapses to RowCount, since an empty window past the cursor means every
// matching row lies on the other side of it.
func (a *Adapter) FindMany(init rtmodel.PageInit) (*rtmodel.Page, error) {
	orderBy := rtmodel.OrderByOf(init)
	filter := rtmodel.FilterOf(init)
	bundle, err := paginate.Plan(a.table, orderBy, filter)
	if err != nil {
		return nil, err
	}

	bound, err := a.prepareFrom(bundle)
	if err != nil {
		return nil, err
	}

	var rows []expr.Row
	switch p := init.(type) {
	case rtmodel.ForwardPageInit:
		rows, err = loadForward(bound, p)
	case rtmodel.BackwardPageInit:
		rows, err = loadBackward(bound, p)
	default:
		return nil, rterr.NewPaginationMisordered("unknown PageInit variant")
	}
	if err != nil {
		return nil, err
	}

	cursors := toCursors(rows)
	page := &rtmodel.Page{Rows: cursors}

	page.RowCount, err = bound.countTotal(&paginate.Ctx{})
	if err != nil {
		return nil, err
	}
	if len(cursors) > 0 {
		page.StartCursor = cursors[0]
		page.EndCursor = cursors[len(cursors)-1]
	}

	switch p := init.(type) {
	case rtmodel.ForwardPageInit:
		if p.After == nil {
			page.ItemBeforeCount = 0
		} else if len(cursors) > 0 {
			page.ItemBeforeCount, err = bound.countBefore(&paginate.Ctx{Cursor: page.StartCursor})
		} else {
			page.ItemBeforeCount = page.RowCount
		}
		if err == nil && len(cursors) > 0 {
			page.ItemAfterCount, err = bound.countAfter(&paginate.Ctx{Cursor: page.EndCursor})
		}
	case rtmodel.BackwardPageInit:
		if p.Before == nil {
			page.ItemAfterCount = 0
		} else if len(cursors) > 0 {
			page.ItemAfterCount, err = bound.countAfter(&paginate.Ctx{Cursor: page.EndCursor})
		} else {
			page.ItemAfterCount = page.RowCount
		}
		if err == nil && len(cursors) > 0 {
			page.ItemBeforeCount, err = bound.countBefore(&paginate.Ctx{Cursor: page.StartCursor})
		}
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

func loadForward(bound *boundStatements, p rtmodel.ForwardPageInit) ([]expr.Row, error) {
	if p.After == nil {
		return bound.loadFirst(&paginate.Ctx{Limit: p.First})
	}
	return bound.loadNext(&paginate.Ctx{Cursor: p.After, Limit: p.First})
}

func loadBackward(bound *boundStatements, p rtmodel.BackwardPageInit) ([]expr.Row, error) {
	var (
		rows []expr.Row
		err  error
	)
	if p.Before == nil {
		rows, err = bound.loadLast(&paginate.Ctx{Limit: p.Last})
	} else {
		rows, err = bound.loadPrev(&paginate.Ctx{Cursor: p.Before, Limit: p.Last})
	}
	if err != nil {
		return nil, err
	}
	reverse(rows)
	return rows, nil
}

func reverse(rows []expr.Row) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// boundStatements are the seven queries of a Bundle, each prepared against
// the adapter's backend and bound to its own extractor.
type boundStatements struct {
	loadFirst   func(*paginate.Ctx) ([]expr.Row, error)
	loadLast    func(*paginate.Ctx) ([]expr.Row, error)
	loadNext    func(*paginate.Ctx) ([]expr.Row, error)
	loadPrev    func(*paginate.Ctx) ([]expr.Row, error)
	countTotal  func(*paginate.Ctx) (int, error)
	countAfter  func(*paginate.Ctx) (int, error)
	countBefore func(*paginate.Ctx) (int, error)
}

func (a *Adapter) prepareFrom(bundle *paginate.Bundle) (*boundStatements, error) {
	first, err := a.backend.Prepare(bundle.LoadFirst.SQL)
	if err != nil {
		return nil, rterr.NewBackendError("prepare loadFirst", err)
	}
	last, err := a.backend.Prepare(bundle.LoadLast.SQL)
	if err != nil {
		return nil, rterr.NewBackendError("prepare loadLast", err)
	}
	next, err := a.backend.Prepare(bundle.LoadNext.SQL)
	if err != nil {
		return nil, rterr.NewBackendError("prepare loadNext", err)
	}
	prev, err := a.backend.Prepare(bundle.LoadPrev.SQL)
	if err != nil {
		return nil, rterr.NewBackendError("prepare loadPrev", err)
	}
	total, err := a.backend.Prepare(bundle.CountTotal.SQL)
	if err != nil {
		return nil, rterr.NewBackendError("prepare countTotal", err)
	}
	after, err := a.backend.Prepare(bundle.CountAfter.SQL)
	if err != nil {
		return nil, rterr.NewBackendError("prepare countAfter", err)
	}
	before, err := a.backend.Prepare(bundle.CountBefore.SQL)
	if err != nil {
		return nil, rterr.NewBackendError("prepare countBefore", err)
	}
	return &boundStatements{
		loadFirst: func(ctx *paginate.Ctx) ([]expr.Row, error) { return first.All(bundle.LoadFirst.Extract(ctx)) },
		loadLast:  func(ctx *paginate.Ctx) ([]expr.Row, error) { return last.All(bundle.LoadLast.Extract(ctx)) },
		loadNext:  func(ctx *paginate.Ctx) ([]expr.Row, error) { return next.All(bundle.LoadNext.Extract(ctx)) },
		loadPrev:  func(ctx *paginate.Ctx) ([]expr.Row, error) { return prev.All(bundle.LoadPrev.Extract(ctx)) },
		countTotal: func(ctx *paginate.Ctx) (int, error) {
			return countFrom(total, bundle.CountTotal.Extract(ctx))
		},
		countAfter: func(ctx *paginate.Ctx) (int, error) {
			return countFrom(after, bundle.CountAfter.Extract(ctx))
		},
		countBefore: func(ctx *paginate.Ctx) (int, error) {
			return countFrom(before, bundle.CountBefore.Extract(ctx))
		},
	}, nil
}

func countFrom(st Statement, params []expr.Value) (int, error) {
	row, ok, err := st.Get(params)
	if err != nil {
		return 0, rterr.NewBackendError("count", err)
	}
	if !ok {
		return 0, nil
	}
	return toInt(row["count"]), nil
}

func toCursors(rows []expr.Row) []rtmodel.Cursor {
	out := make([]rtmodel.Cursor, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
