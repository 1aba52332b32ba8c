package expr

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/bglgwyng/rx-table/rterr"
)

// Row is the input to Eval: a mapping of column name to scalar value.
type Row map[string]Value

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a new row that is r overlaid with partial's entries.
func (r Row) Merge(partial Row) Row {
	out := r.Clone()
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Eval evaluates e against row, resolving Parameter nodes from ctx.
// Coercion mirrors the backend's semantics: numeric arithmetic on numbers,
// strict equality on everything else, ^ is exponentiation, / is floating
// division. Eval raises rterr.InterpUnsupported for AST kinds it does not
// recognize (currently none — every Expr kind is interpretable, but Fn calls
// an unknown name).
func Eval(e Expr, row Row, ctx Ctx) (Value, error) {
	switch n := e.(type) {
	case Column:
		return row[n.Name], nil
	case Constant:
		return n.Value, nil
	case Parameter:
		return n.Extract(ctx), nil
	case BinOp:
		return evalBinOp(n, row, ctx)
	case UnOp:
		return evalUnOp(n, row, ctx)
	case Fn:
		return evalFn(n, row, ctx)
	case Tuple:
		vals := make([]Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := Eval(el, row, ctx)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return vals, nil
	case Asterisk:
		return row, nil
	default:
		return nil, rterr.NewInterpUnsupported(fmt.Sprintf("%T", e))
	}
}

// EvalBool evaluates e and coerces the result to a boolean.
func EvalBool(e Expr, row Row, ctx Ctx) (bool, error) {
	v, err := Eval(e, row, ctx)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func truthy(v Value) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return !isZero(v)
}

func evalUnOp(n UnOp, row Row, ctx Ctx) (Value, error) {
	v, err := Eval(n.E, row, ctx)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpNot:
		return !truthy(v), nil
	case OpNeg:
		return negate(v)
	case OpPos:
		return v, nil
	default:
		return nil, rterr.NewInterpUnsupported("unop")
	}
}

func evalBinOp(n BinOp, row Row, ctx Ctx) (Value, error) {
	if n.Op == OpAnd || n.Op == OpOr {
		l, err := EvalBool(n.L, row, ctx)
		if err != nil {
			return nil, err
		}
		if n.Op == OpAnd && !l {
			return false, nil
		}
		if n.Op == OpOr && l {
			return true, nil
		}
		return EvalBool(n.R, row, ctx)
	}
	l, err := Eval(n.L, row, ctx)
	if err != nil {
		return nil, err
	}
	r, err := Eval(n.R, row, ctx)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpEq:
		return equal(l, r), nil
	case OpNe:
		return !equal(l, r), nil
	case OpLt, OpGt, OpLe, OpGe:
		return compareOp(n.Op, l, r)
	case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		return arith(n.Op, l, r)
	default:
		return nil, rterr.NewInterpUnsupported("binop")
	}
}

func evalFn(n Fn, row Row, ctx Ctx) (Value, error) {
	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, row, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	fn, ok := builtinFns[n.Name]
	if !ok {
		return nil, rterr.NewInterpUnsupported("fn:" + n.Name)
	}
	return fn(args)
}

var builtinFns = map[string]func([]Value) (Value, error){
	"lower": func(a []Value) (Value, error) { return strings.ToLower(fmt.Sprint(a[0])), nil },
	"coalesce": func(a []Value) (Value, error) {
		for _, v := range a {
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	},
}

func equal(l, r Value) bool {
	if isNumeric(l) && isNumeric(r) {
		return toFloat(l) == toFloat(r)
	}
	return reflect.DeepEqual(l, r)
}

func compareOp(op BinOpKind, l, r Value) (Value, error) {
	cmp, err := Compare(l, r)
	if err != nil {
		return nil, err
	}
	switch op {
	case OpLt:
		return cmp < 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGe:
		return cmp >= 0, nil
	}
	return nil, rterr.NewInterpUnsupported("cmp")
}

// Compare orders two scalar values: numerically for numbers, lexically for
// strings, chronologically for times, and false < true for booleans.
func Compare(l, r Value) (int, error) {
	switch lv := l.(type) {
	case []Value:
		rv, ok := r.([]Value)
		if !ok {
			return 0, rterr.NewInterpUnsupported("compare tuple to non-tuple")
		}
		return compareTuples(lv, rv)
	case string:
		rv, ok := r.(string)
		if !ok {
			return 0, rterr.NewInterpUnsupported("compare string to non-string")
		}
		switch {
		case lv < rv:
			return -1, nil
		case lv > rv:
			return 1, nil
		default:
			return 0, nil
		}
	case bool:
		rv, ok := r.(bool)
		if !ok {
			return 0, rterr.NewInterpUnsupported("compare bool to non-bool")
		}
		if lv == rv {
			return 0, nil
		}
		if !lv {
			return -1, nil
		}
		return 1, nil
	case time.Time:
		rv, ok := r.(time.Time)
		if !ok {
			return 0, rterr.NewInterpUnsupported("compare time to non-time")
		}
		switch {
		case lv.Before(rv):
			return -1, nil
		case lv.After(rv):
			return 1, nil
		default:
			return 0, nil
		}
	default:
		if isNumeric(l) && isNumeric(r) {
			lf, rf := toFloat(l), toFloat(r)
			switch {
			case lf < rf:
				return -1, nil
			case lf > rf:
				return 1, nil
			default:
				return 0, nil
			}
		}
		return 0, rterr.NewInterpUnsupported(fmt.Sprintf("compare %T", l))
	}
}

// compareTuples compares two row-value tuples lexicographically, the way a
// SQL engine compares (a, b) > (x, y): element by element, left to right,
// stopping at the first non-equal pair; a shorter tuple that is an exact
// prefix of the other is less than it.
func compareTuples(l, r []Value) (int, error) {
	for i := 0; i < len(l) && i < len(r); i++ {
		c, err := Compare(l[i], r[i])
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	switch {
	case len(l) < len(r):
		return -1, nil
	case len(l) > len(r):
		return 1, nil
	default:
		return 0, nil
	}
}

func arith(op BinOpKind, l, r Value) (Value, error) {
	if !isNumeric(l) || !isNumeric(r) {
		return nil, rterr.NewInterpUnsupported("arithmetic on non-numeric operand")
	}
	lf, rf := toFloat(l), toFloat(r)
	switch op {
	case OpAdd:
		return lf + rf, nil
	case OpSub:
		return lf - rf, nil
	case OpMul:
		return lf * rf, nil
	case OpDiv:
		return lf / rf, nil
	case OpPow:
		return math.Pow(lf, rf), nil
	}
	return nil, rterr.NewInterpUnsupported("arith")
}

func negate(v Value) (Value, error) {
	if !isNumeric(v) {
		return nil, rterr.NewInterpUnsupported("negate non-numeric operand")
	}
	return -toFloat(v), nil
}

func isZero(v Value) bool {
	if isNumeric(v) {
		return toFloat(v) == 0
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func isNumeric(v Value) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func toFloat(v Value) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

