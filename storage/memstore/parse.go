// Package memstore is an in-memory storage.Backend used by tests: it parses
// the small, fully-parenthesized SQL dialect package sqlgen emits and
// executes it against plain Go slices, the way qrymem executes queries
// directly against in-memory lit.List values rather than a real engine.
package memstore

import (
	"strings"
	"unicode"

	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/rterr"
	"github.com/bglgwyng/rx-table/rtmodel"
)

func tokenize(sql string) []string {
	var toks []string
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(sql) && isIdentPart(sql[j]) {
				j++
			}
			toks = append(toks, sql[i:j])
			i = j
		case strings.HasPrefix(sql[i:], "<="), strings.HasPrefix(sql[i:], ">="), strings.HasPrefix(sql[i:], "<>"):
			toks = append(toks, sql[i:i+2])
			i += 2
		default:
			toks = append(toks, string(c))
			i++
		}
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

type parser struct {
	toks     []string
	pos      int
	paramSeq int
}

func (p *parser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(tok string) error {
	if p.next() != tok {
		return rterr.NewCompileUnsupported("memstore: expected " + tok)
	}
	return nil
}

func (p *parser) nextParamIdx() int {
	idx := p.paramSeq
	p.paramSeq++
	return idx
}

func paramAt(idx int) expr.Parameter {
	return expr.Parameter{
		Name: "p",
		Extract: func(ctx expr.Ctx) expr.Value {
			return ctx.([]expr.Value)[idx]
		},
	}
}

func binOpFromToken(tok string) (expr.BinOpKind, bool) {
	switch tok {
	case "=":
		return expr.OpEq, true
	case "<":
		return expr.OpLt, true
	case ">":
		return expr.OpGt, true
	case "<=":
		return expr.OpLe, true
	case ">=":
		return expr.OpGe, true
	case "<>":
		return expr.OpNe, true
	case "+":
		return expr.OpAdd, true
	case "-":
		return expr.OpSub, true
	case "*":
		return expr.OpMul, true
	case "/":
		return expr.OpDiv, true
	case "^":
		return expr.OpPow, true
	case "AND":
		return expr.OpAnd, true
	case "OR":
		return expr.OpOr, true
	}
	return 0, false
}

func (p *parser) parseExpr() (expr.Expr, error) {
	switch tok := p.peek(); {
	case tok == "*":
		p.next()
		return expr.Asterisk{}, nil
	case tok == "?":
		p.next()
		return paramAt(p.nextParamIdx()), nil
	case tok == "(":
		return p.parseParen()
	case tok != "" && isIdentStart(tok[0]):
		p.next()
		if p.peek() == "(" {
			p.next()
			args, err := p.parseExprList(")")
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return expr.Fn{Name: tok, Args: args}, nil
		}
		return expr.Column{Name: tok}, nil
	default:
		return nil, rterr.NewCompileUnsupported("memstore: unexpected token " + tok)
	}
}

func (p *parser) parseExprList(end string) ([]expr.Expr, error) {
	var out []expr.Expr
	if p.peek() == end {
		return out, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.peek() == "," {
			p.next()
			continue
		}
		break
	}
	return out, nil
}

func (p *parser) parseParen() (expr.Expr, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	switch p.peek() {
	case "NOT":
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return expr.UnOp{Op: expr.OpNot, E: e}, p.expect(")")
	case "-":
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return expr.UnOp{Op: expr.OpNeg, E: e}, p.expect(")")
	case "+":
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return expr.UnOp{Op: expr.OpPos, E: e}, p.expect(")")
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	elems := []expr.Expr{first}
	for p.peek() == "," {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if len(elems) > 1 {
		return expr.Tuple{Elems: elems}, p.expect(")")
	}
	if op, ok := binOpFromToken(p.peek()); ok {
		p.next()
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return expr.BinOp{Op: op, L: first, R: right}, p.expect(")")
	}
	return expr.Tuple{Elems: elems}, p.expect(")")
}

// --- statement-level plans ---

type selectPlan struct {
	Table   string
	Columns []expr.Expr
	Where   expr.Expr
	OrderBy []rtmodel.Order
	HasLim  bool
}

type countPlan struct {
	Table string
	Where expr.Expr
}

type onConflictPlan struct {
	Columns []string
	SetCols []string
	SetIdx  []int
}

type insertPlan struct {
	Table      string
	Cols       []string
	ValIdx     []int
	OnConflict *onConflictPlan
}

type updatePlan struct {
	Table     string
	SetCols   []string
	SetIdx    []int
	WhereCols []string
	WhereIdx  []int
}

type deletePlan struct {
	Table     string
	WhereCols []string
	WhereIdx  []int
}

func parseStatement(sql string) (interface{}, error) {
	p := &parser{toks: tokenize(sql)}
	switch p.peek() {
	case "SELECT":
		if p.toks[1] == "COUNT" {
			return parseCount(p)
		}
		return parseSelect(p)
	case "INSERT":
		return parseInsert(p)
	case "UPDATE":
		return parseUpdate(p)
	case "DELETE":
		return parseDelete(p)
	default:
		return nil, rterr.NewCompileUnsupported("memstore: unrecognized statement")
	}
}

func parseSelect(p *parser) (*selectPlan, error) {
	if err := p.expect("SELECT"); err != nil {
		return nil, err
	}
	cols, err := parseSelectColumns(p)
	if err != nil {
		return nil, err
	}
	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	table := p.next()
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	plan := &selectPlan{Table: table, Columns: cols}
	if p.peek() == "WHERE" {
		p.next()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		plan.Where = w
	}
	if p.peek() == "ORDER" {
		p.next()
		if err := p.expect("BY"); err != nil {
			return nil, err
		}
		for {
			col := p.next()
			desc := false
			switch p.peek() {
			case "DESC":
				desc = true
				p.next()
			case "ASC":
				p.next()
			}
			plan.OrderBy = append(plan.OrderBy, rtmodel.Order{Column: col, Desc: desc})
			if p.peek() == "," {
				p.next()
				continue
			}
			break
		}
	}
	if p.peek() == "LIMIT" {
		p.next()
		if err := p.expect("?"); err != nil {
			return nil, err
		}
		p.nextParamIdx()
		plan.HasLim = true
	}
	return plan, nil
}

func parseSelectColumns(p *parser) ([]expr.Expr, error) {
	var cols []expr.Expr
	for {
		c, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if p.peek() == "," {
			p.next()
			continue
		}
		break
	}
	return cols, nil
}

func parseCount(p *parser) (*countPlan, error) {
	for _, kw := range []string{"SELECT", "COUNT", "(", "*", ")", "AS", "count", "FROM", "("} {
		if err := p.expect(kw); err != nil {
			return nil, err
		}
	}
	table := p.next()
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	plan := &countPlan{Table: table}
	if p.peek() == "WHERE" {
		p.next()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		plan.Where = w
	}
	return plan, nil
}

func parseIdentList(p *parser, end string) ([]string, error) {
	var out []string
	if p.peek() == end {
		return out, nil
	}
	for {
		out = append(out, p.next())
		if p.peek() == "," {
			p.next()
			continue
		}
		break
	}
	return out, nil
}

func parseInsert(p *parser) (*insertPlan, error) {
	if err := p.expect("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expect("INTO"); err != nil {
		return nil, err
	}
	table := p.next()
	if err := p.expect("("); err != nil {
		return nil, err
	}
	cols, err := parseIdentList(p, ")")
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if err := p.expect("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	valIdx := make([]int, len(cols))
	for i := range cols {
		if err := p.expect("?"); err != nil {
			return nil, err
		}
		valIdx[i] = p.nextParamIdx()
		if i < len(cols)-1 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	plan := &insertPlan{Table: table, Cols: cols, ValIdx: valIdx}
	if p.peek() == "ON" {
		p.next()
		if err := p.expect("CONFLICT"); err != nil {
			return nil, err
		}
		if err := p.expect("("); err != nil {
			return nil, err
		}
		conflictCols, err := parseIdentList(p, ")")
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if err := p.expect("DO"); err != nil {
			return nil, err
		}
		if err := p.expect("UPDATE"); err != nil {
			return nil, err
		}
		if err := p.expect("SET"); err != nil {
			return nil, err
		}
		oc := &onConflictPlan{Columns: conflictCols}
		for {
			col := p.next()
			if err := p.expect("="); err != nil {
				return nil, err
			}
			if err := p.expect("?"); err != nil {
				return nil, err
			}
			oc.SetCols = append(oc.SetCols, col)
			oc.SetIdx = append(oc.SetIdx, p.nextParamIdx())
			if p.peek() == "," {
				p.next()
				continue
			}
			break
		}
		plan.OnConflict = oc
	}
	return plan, nil
}

func parseUpdate(p *parser) (*updatePlan, error) {
	if err := p.expect("UPDATE"); err != nil {
		return nil, err
	}
	table := p.next()
	if err := p.expect("SET"); err != nil {
		return nil, err
	}
	plan := &updatePlan{Table: table}
	for {
		col := p.next()
		if err := p.expect("="); err != nil {
			return nil, err
		}
		if err := p.expect("?"); err != nil {
			return nil, err
		}
		plan.SetCols = append(plan.SetCols, col)
		plan.SetIdx = append(plan.SetIdx, p.nextParamIdx())
		if p.peek() == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expect("WHERE"); err != nil {
		return nil, err
	}
	for {
		col := p.next()
		if err := p.expect("="); err != nil {
			return nil, err
		}
		if err := p.expect("?"); err != nil {
			return nil, err
		}
		plan.WhereCols = append(plan.WhereCols, col)
		plan.WhereIdx = append(plan.WhereIdx, p.nextParamIdx())
		if p.peek() == "AND" {
			p.next()
			continue
		}
		break
	}
	return plan, nil
}

func parseDelete(p *parser) (*deletePlan, error) {
	if err := p.expect("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	table := p.next()
	if err := p.expect("WHERE"); err != nil {
		return nil, err
	}
	plan := &deletePlan{Table: table}
	for {
		col := p.next()
		if err := p.expect("="); err != nil {
			return nil, err
		}
		if err := p.expect("?"); err != nil {
			return nil, err
		}
		plan.WhereCols = append(plan.WhereCols, col)
		plan.WhereIdx = append(plan.WhereIdx, p.nextParamIdx())
		if p.peek() == "AND" {
			p.next()
			continue
		}
		break
	}
	return plan, nil
}
