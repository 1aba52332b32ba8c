// Package sqlgen compiles the stmt/expr AST into a parameterized SQL string
// plus a parameter extractor: a pure function from a bind-time context to
// an ordered parameter list. Every `?` placeholder corresponds, in strict
// left-to-right order of appearance, to one entry appended to the
// compiled statement's parameter schedule.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/rterr"
	"github.com/bglgwyng/rx-table/stmt"
)

// ParamExtractor maps a bind-time context to the concrete ordered parameter
// list for one compiled statement.
type ParamExtractor func(ctx expr.Ctx) []expr.Value

// Compiled is the result of compiling a Statement: ready-to-prepare SQL text
// plus its parameter extractor.
type Compiled struct {
	SQL     string
	Extract ParamExtractor
}

type builder struct {
	b        strings.Builder
	schedule []expr.Parameterizable
}

func (bd *builder) param(p expr.Parameterizable) {
	bd.schedule = append(bd.schedule, p)
	bd.b.WriteByte('?')
}

// Compile renders s to SQL and its parameter extractor, or returns
// rterr.CompileUnsupported if s (or an expression it contains) is of an
// unsupported kind.
func Compile(s stmt.Statement) (*Compiled, error) {
	bd := &builder{}
	switch n := s.(type) {
	case stmt.Select:
		if err := renderSelect(bd, n); err != nil {
			return nil, err
		}
	case stmt.Count:
		if err := renderCount(bd, n); err != nil {
			return nil, err
		}
	case stmt.Insert:
		if err := renderInsert(bd, n); err != nil {
			return nil, err
		}
	case stmt.Update:
		if err := renderUpdate(bd, n); err != nil {
			return nil, err
		}
	case stmt.Delete:
		if err := renderDelete(bd, n); err != nil {
			return nil, err
		}
	default:
		return nil, rterr.NewCompileUnsupported(fmt.Sprintf("%T", s))
	}
	schedule := bd.schedule
	return &Compiled{
		SQL: bd.b.String(),
		Extract: func(ctx expr.Ctx) []expr.Value {
			out := make([]expr.Value, len(schedule))
			for i, p := range schedule {
				out[i] = extractOne(p, ctx)
			}
			return out
		},
	}, nil
}

func extractOne(p expr.Parameterizable, ctx expr.Ctx) expr.Value {
	switch v := p.(type) {
	case expr.Constant:
		return v.Value
	case expr.Parameter:
		return v.Extract(ctx)
	default:
		return nil
	}
}

func renderSelect(bd *builder, s stmt.Select) error {
	bd.b.WriteString("SELECT ")
	for i, c := range s.Columns {
		if i > 0 {
			bd.b.WriteString(", ")
		}
		if err := renderExpr(bd, c); err != nil {
			return err
		}
	}
	bd.b.WriteString(" FROM (")
	bd.b.WriteString(s.Table.Name)
	bd.b.WriteByte(')')
	if s.Where != nil {
		bd.b.WriteString(" WHERE ")
		if err := renderExpr(bd, s.Where); err != nil {
			return err
		}
	}
	if len(s.OrderBy) > 0 {
		bd.b.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				bd.b.WriteString(", ")
			}
			bd.b.WriteString(o.Column)
			if o.Desc {
				bd.b.WriteString(" DESC")
			} else {
				bd.b.WriteString(" ASC")
			}
		}
	}
	if s.Limit != nil {
		bd.b.WriteString(" LIMIT ")
		bd.param(s.Limit)
	}
	return nil
}

func renderCount(bd *builder, s stmt.Count) error {
	bd.b.WriteString("SELECT COUNT(*) AS count FROM (")
	bd.b.WriteString(s.Table.Name)
	bd.b.WriteByte(')')
	if s.Where != nil {
		bd.b.WriteString(" WHERE ")
		return renderExpr(bd, s.Where)
	}
	return nil
}

func renderInsert(bd *builder, s stmt.Insert) error {
	bd.b.WriteString("INSERT INTO ")
	bd.b.WriteString(s.Table.Name)
	bd.b.WriteString(" (")
	for i, cv := range s.Values {
		if i > 0 {
			bd.b.WriteString(", ")
		}
		bd.b.WriteString(cv.Column)
	}
	bd.b.WriteString(") VALUES (")
	for i, cv := range s.Values {
		if i > 0 {
			bd.b.WriteString(", ")
		}
		bd.param(cv.Value)
	}
	bd.b.WriteByte(')')
	if s.OnConflict != nil {
		bd.b.WriteString(" ON CONFLICT (")
		bd.b.WriteString(strings.Join(s.OnConflict.Columns, ", "))
		bd.b.WriteString(") DO UPDATE SET ")
		for i, cv := range s.OnConflict.Update {
			if i > 0 {
				bd.b.WriteString(", ")
			}
			bd.b.WriteString(cv.Column)
			bd.b.WriteString(" = ")
			bd.param(cv.Value)
		}
	}
	return nil
}

func renderUpdate(bd *builder, s stmt.Update) error {
	bd.b.WriteString("UPDATE ")
	bd.b.WriteString(s.Table.Name)
	bd.b.WriteString(" SET ")
	for i, cv := range s.Set {
		if i > 0 {
			bd.b.WriteString(", ")
		}
		bd.b.WriteString(cv.Column)
		bd.b.WriteString(" = ")
		bd.param(cv.Value)
	}
	bd.b.WriteString(" WHERE ")
	for i, cv := range s.Key {
		if i > 0 {
			bd.b.WriteString(" AND ")
		}
		bd.b.WriteString(cv.Column)
		bd.b.WriteString(" = ")
		bd.param(cv.Value)
	}
	return nil
}

func renderDelete(bd *builder, s stmt.Delete) error {
	bd.b.WriteString("DELETE FROM ")
	bd.b.WriteString(s.Table.Name)
	bd.b.WriteString(" WHERE ")
	for i, cv := range s.Key {
		if i > 0 {
			bd.b.WriteString(" AND ")
		}
		bd.b.WriteString(cv.Column)
		bd.b.WriteString(" = ")
		bd.param(cv.Value)
	}
	return nil
}

// renderExpr renders e per the compiler's rendering contract:
//   - Column and Asterisk are bare identifiers (or `*`).
//   - every BinOp is wrapped in parens, regardless of operator, so
//     associativity never needs to be reasoned about at render time.
//   - unary NOT/+/- are wrapped in parens too.
//   - Fn renders as name(args...), Tuple as (elems...).
//   - Constant and Parameter render as `?` and append to the schedule in
//     strict left-to-right order of appearance.
func renderExpr(bd *builder, e expr.Expr) error {
	switch n := e.(type) {
	case expr.Column:
		bd.b.WriteString(n.Name)
		return nil
	case expr.Asterisk:
		bd.b.WriteByte('*')
		return nil
	case expr.Constant:
		bd.param(n)
		return nil
	case expr.Parameter:
		bd.param(n)
		return nil
	case expr.BinOp:
		bd.b.WriteByte('(')
		if err := renderExpr(bd, n.L); err != nil {
			return err
		}
		bd.b.WriteByte(' ')
		bd.b.WriteString(n.Op.String())
		bd.b.WriteByte(' ')
		if err := renderExpr(bd, n.R); err != nil {
			return err
		}
		bd.b.WriteByte(')')
		return nil
	case expr.UnOp:
		bd.b.WriteByte('(')
		switch n.Op {
		case expr.OpNot:
			bd.b.WriteString("NOT ")
		case expr.OpNeg:
			bd.b.WriteByte('-')
		case expr.OpPos:
			bd.b.WriteByte('+')
		default:
			return rterr.NewCompileUnsupported("unop")
		}
		if err := renderExpr(bd, n.E); err != nil {
			return err
		}
		bd.b.WriteByte(')')
		return nil
	case expr.Fn:
		bd.b.WriteString(n.Name)
		bd.b.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				bd.b.WriteString(", ")
			}
			if err := renderExpr(bd, a); err != nil {
				return err
			}
		}
		bd.b.WriteByte(')')
		return nil
	case expr.Tuple:
		bd.b.WriteByte('(')
		for i, el := range n.Elems {
			if i > 0 {
				bd.b.WriteString(", ")
			}
			if err := renderExpr(bd, el); err != nil {
				return err
			}
		}
		bd.b.WriteByte(')')
		return nil
	default:
		return rterr.NewCompileUnsupported(fmt.Sprintf("%T", e))
	}
}
