package expr_test

import (
	"testing"

	. "github.com/bglgwyng/rx-table/expr"
)

func TestEvalArithmeticAndComparison(t *testing.T) {
	row := Row{"a": 3, "b": 5}
	tests := []struct {
		Expr Expr
		Want Value
	}{
		{BinOp{Op: OpAdd, L: Column{Name: "a"}, R: Column{Name: "b"}}, 8.0},
		{BinOp{Op: OpSub, L: Column{Name: "b"}, R: Column{Name: "a"}}, 2.0},
		{BinOp{Op: OpMul, L: Column{Name: "a"}, R: Constant{Value: 2}}, 6.0},
		{BinOp{Op: OpLt, L: Column{Name: "a"}, R: Column{Name: "b"}}, true},
		{BinOp{Op: OpGe, L: Column{Name: "a"}, R: Constant{Value: 3}}, true},
		{UnOp{Op: OpNeg, E: Column{Name: "a"}}, -3.0},
		{BinOp{Op: OpEq, L: Column{Name: "a"}, R: Constant{Value: 3}}, true},
	}
	for _, test := range tests {
		got, err := Eval(test.Expr, row, nil)
		if err != nil {
			t.Errorf("eval %+v: %v", test.Expr, err)
			continue
		}
		if got != test.Want {
			t.Errorf("eval %+v: want %v got %v", test.Expr, test.Want, got)
		}
	}
}

func TestEvalLogicalShortCircuit(t *testing.T) {
	row := Row{"a": 1}
	// the right operand would raise InterpUnsupported if evaluated; AND with
	// a false left operand must never reach it.
	bomb := Fn{Name: "detonate", Args: nil}
	e := BinOp{Op: OpAnd, L: Constant{Value: false}, R: bomb}
	got, err := EvalBool(e, row, nil)
	if err != nil {
		t.Fatalf("short-circuit AND: %v", err)
	}
	if got {
		t.Fatalf("short-circuit AND: want false")
	}

	e = BinOp{Op: OpOr, L: Constant{Value: true}, R: bomb}
	got, err = EvalBool(e, row, nil)
	if err != nil {
		t.Fatalf("short-circuit OR: %v", err)
	}
	if !got {
		t.Fatalf("short-circuit OR: want true")
	}
}

func TestCompareTuples(t *testing.T) {
	tests := []struct {
		L, R []Value
		Want int
	}{
		{[]Value{1, "a"}, []Value{1, "b"}, -1},
		{[]Value{2, "a"}, []Value{1, "z"}, 1},
		{[]Value{1, "a"}, []Value{1, "a"}, 0},
		{[]Value{1}, []Value{1, "a"}, -1},
	}
	for _, test := range tests {
		got, err := Compare(test.L, test.R)
		if err != nil {
			t.Errorf("compare %v vs %v: %v", test.L, test.R, err)
			continue
		}
		if sign(got) != sign(test.Want) {
			t.Errorf("compare %v vs %v: want sign %d got %d", test.L, test.R, test.Want, got)
		}
	}
}

func TestEvalParameterAndTupleSeekPredicate(t *testing.T) {
	// mirrors the seek predicate paginate builds: (a, b) > (?, ?)
	row := Row{"a": 2, "b": 5}
	pred := BinOp{
		Op: OpGt,
		L:  Tuple{Elems: []Expr{Column{Name: "a"}, Column{Name: "b"}}},
		R: Tuple{Elems: []Expr{
			Parameter{Name: "a", Extract: func(ctx Ctx) Value { return ctx.([]Value)[0] }},
			Parameter{Name: "b", Extract: func(ctx Ctx) Value { return ctx.([]Value)[1] }},
		}},
	}
	ok, err := EvalBool(pred, row, []Value{2, 3})
	if err != nil {
		t.Fatalf("eval seek predicate: %v", err)
	}
	if !ok {
		t.Fatalf("want (2,5) > (2,3)")
	}
	ok, err = EvalBool(pred, row, []Value{2, 5})
	if err != nil {
		t.Fatalf("eval seek predicate: %v", err)
	}
	if ok {
		t.Fatalf("want (2,5) not > (2,5)")
	}
}

func TestRowMergeAndClone(t *testing.T) {
	r := Row{"a": 1, "b": 2}
	merged := r.Merge(Row{"b": 9, "c": 3})
	if merged["a"] != 1 || merged["b"] != 9 || merged["c"] != 3 {
		t.Fatalf("merge: got %v", merged)
	}
	if r["b"] != 2 {
		t.Fatalf("merge must not mutate receiver: got %v", r)
	}
	clone := r.Clone()
	clone["a"] = 100
	if r["a"] != 1 {
		t.Fatalf("clone must not alias receiver: got %v", r)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
