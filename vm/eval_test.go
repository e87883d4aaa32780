// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package vm

import (
	"strings"
	"testing"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/compr"
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

func TestConst(t *testing.T) {
	cat := catalog.NewMemory()
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkInt(t, evalNode(t, expr.Int4(7), p, nil), 7)
		checkNull(t, evalNode(t, int4Null(), p, nil))

		st, err := Compile(expr.Int4(7), p)
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.Join(opNames(st), " "); got != "const done" {
			t.Errorf("program %q", got)
		}
	})
}

func TestCompileNil(t *testing.T) {
	st, err := Compile(nil, NewParent(catalog.NewMemory()))
	if err != nil || st != nil {
		t.Fatalf("Compile(nil) = %v, %v", st, err)
	}
	if _, err := Compile(expr.Int4(1), nil); !pgerr.IsInvariant(err) {
		t.Fatalf("compile without a catalog: %v", err)
	}
}

func TestBoolExpr(t *testing.T) {
	cat := catalog.NewMemory()
	divzero := int4eq(op(catalog.FnInt4Div, "/", oid.T_int4, expr.Int4(1), expr.Int4(0)), expr.Int4(1))
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkNull(t, evalNode(t, expr.And(expr.Bool(true), boolNull()), p, nil))
		checkBool(t, evalNode(t, expr.And(expr.Bool(true), expr.Bool(false)), p, nil), false)
		checkBool(t, evalNode(t, expr.Or(boolNull(), expr.Bool(true)), p, nil), true)
		checkNull(t, evalNode(t, expr.Or(boolNull(), expr.Bool(false)), p, nil))
		checkBool(t, evalNode(t, expr.And(boolNull(), expr.Bool(false)), p, nil), false)
		checkBool(t, evalNode(t, expr.And(expr.Bool(true), expr.Bool(true), expr.Bool(true)), p, nil), true)
		checkNull(t, evalNode(t, expr.Not(boolNull()), p, nil))
		checkBool(t, evalNode(t, expr.Not(expr.Bool(true)), p, nil), false)

		// the failing operand is never reached
		checkBool(t, evalNode(t, expr.And(expr.Bool(false), divzero), p, nil), false)
		checkBool(t, evalNode(t, expr.Or(expr.Bool(true), divzero), p, nil), true)

		st, err := Compile(expr.And(expr.Bool(true), divzero), p)
		if err != nil {
			t.Fatal(err)
		}
		if _, _, err := st.Eval(nil); pgerr.GetCode(err) != pgerr.CodeDivisionByZero {
			t.Fatalf("got error %v", err)
		}
	})
}

func TestQual(t *testing.T) {
	cat := catalog.NewMemory()
	desc := int4Desc(cat, "x")
	x := scanVar(1, oid.T_int4)
	quals := []expr.Node{int4gt(x, expr.Int4(0)), int4lt(x, expr.Int4(10))}
	eachMode(t, func(t *testing.T, m evalMode) {
		st, err := CompileQual(quals, m.parent(cat, WithSlot(expr.SourceScan, desc, tuple.Virtual, true)))
		if err != nil {
			t.Fatal(err)
		}
		checkProgram(t, st)
		for _, tc := range []struct {
			x    cell
			want bool
		}{
			{5, true},
			{nil, false},
			{10, false},
			{0, false},
			{9, true},
		} {
			ec := &ExprContext{Scan: virtualSlot(desc, tc.x)}
			got, err := EvalQual(st, ec)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("x=%v: got %v", tc.x, got)
			}
		}
	})
}

func TestEmptyQualAndCheck(t *testing.T) {
	p := NewParent(catalog.NewMemory())
	q, err := CompileQual(nil, p)
	if err != nil || q != nil {
		t.Fatalf("CompileQual(nil) = %v, %v", q, err)
	}
	if ok, err := EvalQual(q, nil); !ok || err != nil {
		t.Fatalf("empty qual: %v, %v", ok, err)
	}
	c, err := CompileCheck(nil, p)
	if err != nil || c != nil {
		t.Fatalf("CompileCheck(nil) = %v, %v", c, err)
	}
	if ok, err := EvalCheck(c, nil); !ok || err != nil {
		t.Fatalf("empty check: %v, %v", ok, err)
	}
}

func TestCheck(t *testing.T) {
	cat := catalog.NewMemory()
	desc := int4Desc(cat, "x")
	x := scanVar(1, oid.T_int4)
	eachMode(t, func(t *testing.T, m evalMode) {
		st, err := CompileCheck([]expr.Node{int4gt(x, expr.Int4(0))}, m.parent(cat))
		if err != nil {
			t.Fatal(err)
		}
		for _, tc := range []struct {
			x    cell
			want bool
		}{
			{1, true},
			{nil, true},
			{-1, false},
		} {
			got, err := EvalCheck(st, &ExprContext{Scan: virtualSlot(desc, tc.x)})
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("x=%v: got %v", tc.x, got)
			}
		}
	})
}

func TestCase(t *testing.T) {
	cat := catalog.NewMemory()
	desc := int4Desc(cat, "x")
	x := scanVar(1, oid.T_int4)
	test := &expr.CaseTestExpr{TypeID: oid.T_int4, TypMod: -1}
	simple := &expr.CaseExpr{
		CaseType: oid.T_int4,
		Arg:      x,
		Whens: []expr.CaseWhen{
			{Expr: int4eq(test, expr.Int4(1)), Result: expr.Int4(10)},
			{Expr: int4eq(test, expr.Int4(2)), Result: expr.Int4(20)},
		},
		Default: expr.Int4(0),
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		single := &expr.CaseExpr{CaseType: oid.T_int4, Whens: []expr.CaseWhen{{Expr: expr.Bool(true), Result: expr.Int4(42)}}}
		checkInt(t, evalNode(t, single, p, nil), 42)
		none := &expr.CaseExpr{CaseType: oid.T_int4, Whens: []expr.CaseWhen{{Expr: boolNull(), Result: expr.Int4(42)}}}
		checkNull(t, evalNode(t, none, p, nil))

		st, err := Compile(simple, p)
		if err != nil {
			t.Fatal(err)
		}
		checkProgram(t, st)
		for _, tc := range []struct {
			x    cell
			want int64
		}{
			{1, 10}, {2, 20}, {3, 0}, {nil, 0},
		} {
			v, isnull, err := st.Eval(&ExprContext{Scan: virtualSlot(desc, tc.x)})
			if err != nil {
				t.Fatal(err)
			}
			checkInt(t, result{v, isnull}, tc.want)
		}
	})
}

func TestCoalesceMinMax(t *testing.T) {
	cat := catalog.NewMemory()
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		co := &expr.CoalesceExpr{CoalesceType: oid.T_int4, Args: []expr.Node{int4Null(), int4Null(), expr.Int4(3)}}
		checkInt(t, evalNode(t, co, p, nil), 3)
		co = &expr.CoalesceExpr{CoalesceType: oid.T_int4, Args: []expr.Node{int4Null(), int4Null()}}
		checkNull(t, evalNode(t, co, p, nil))

		args := []expr.Node{expr.Int4(1), int4Null(), expr.Int4(3), expr.Int4(2)}
		checkInt(t, evalNode(t, &expr.MinMaxExpr{MinMaxType: oid.T_int4, Op: expr.IsGreatest, Args: args}, p, nil), 3)
		checkInt(t, evalNode(t, &expr.MinMaxExpr{MinMaxType: oid.T_int4, Op: expr.IsLeast, Args: args}, p, nil), 1)
		nulls := []expr.Node{int4Null(), int4Null()}
		checkNull(t, evalNode(t, &expr.MinMaxExpr{MinMaxType: oid.T_int4, Op: expr.IsLeast, Args: nulls}, p, nil))
	})
}

func TestNullAndBooleanTests(t *testing.T) {
	cat := catalog.NewMemory()
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkBool(t, evalNode(t, &expr.NullTest{Arg: int4Null(), Kind: expr.IsNull}, p, nil), true)
		checkBool(t, evalNode(t, &expr.NullTest{Arg: expr.Int4(1), Kind: expr.IsNull}, p, nil), false)
		checkBool(t, evalNode(t, &expr.NullTest{Arg: int4Null(), Kind: expr.IsNotNull}, p, nil), false)

		for _, tc := range []struct {
			arg  expr.Node
			kind expr.BoolTestKind
			want bool
		}{
			{expr.Bool(true), expr.IsTrue, true},
			{boolNull(), expr.IsTrue, false},
			{boolNull(), expr.IsNotTrue, true},
			{expr.Bool(false), expr.IsFalse, true},
			{boolNull(), expr.IsNotFalse, true},
			{boolNull(), expr.IsUnknown, true},
			{expr.Bool(false), expr.IsNotUnknown, true},
		} {
			checkBool(t, evalNode(t, &expr.BooleanTest{Arg: tc.arg, Kind: tc.kind}, p, nil), tc.want)
		}
	})
}

func TestStrictFunction(t *testing.T) {
	cat := catalog.NewMemory()
	desc := int4Desc(cat, "a", "b")
	sum := int4pl(scanVar(1, oid.T_int4), scanVar(2, oid.T_int4))
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat, WithSlot(expr.SourceScan, desc, tuple.Virtual, true))
		checkInt(t, evalNode(t, sum, p, &ExprContext{Scan: virtualSlot(desc, 2, 3)}), 5)
		checkNull(t, evalNode(t, sum, p, &ExprContext{Scan: virtualSlot(desc, nil, 3)}))
		checkNull(t, evalNode(t, sum, p, &ExprContext{Scan: virtualSlot(desc, 2, nil)}))
		// null arguments are never passed to the function
		big := int4pl(expr.Int4(1<<31-1), int4Null())
		checkNull(t, evalNode(t, big, p, nil))
	})
}

func TestDistinctNullIf(t *testing.T) {
	cat := catalog.NewMemory()
	distinct := func(a, b expr.Node) expr.Node {
		return &expr.DistinctExpr{OpExpr: *int4eq(a, b)}
	}
	nullif := func(a, b expr.Node) expr.Node {
		return &expr.NullIfExpr{OpExpr: *op(catalog.FnInt4Eq, "=", oid.T_int4, a, b)}
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkBool(t, evalNode(t, distinct(int4Null(), int4Null()), p, nil), false)
		checkBool(t, evalNode(t, distinct(expr.Int4(1), int4Null()), p, nil), true)
		checkBool(t, evalNode(t, distinct(expr.Int4(1), expr.Int4(1)), p, nil), false)
		checkBool(t, evalNode(t, distinct(expr.Int4(1), expr.Int4(2)), p, nil), true)

		checkNull(t, evalNode(t, nullif(expr.Int4(1), expr.Int4(1)), p, nil))
		checkInt(t, evalNode(t, nullif(expr.Int4(1), expr.Int4(2)), p, nil), 1)
		checkNull(t, evalNode(t, nullif(int4Null(), expr.Int4(2)), p, nil))
	})
}

func TestDistinctNullEquality(t *testing.T) {
	const fnUnknownEq oid.Oid = 90101
	cat := catalog.NewMemory()
	cat.AddFunc(&fmgr.Info{OID: fnUnknownEq, Name: "unknown_eq", NArgs: 2,
		Addr: func(fc *fmgr.CallInfo) (datum.Datum, error) { return fc.ReturnNull() }})
	eq := func(a, b expr.Node) *expr.OpExpr { return op(fnUnknownEq, "=", oid.T_bool, a, b) }
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkNull(t, evalNode(t, &expr.DistinctExpr{OpExpr: *eq(expr.Int4(1), expr.Int4(2))}, p, nil))
		// the function is not called for null inputs
		checkBool(t, evalNode(t, &expr.DistinctExpr{OpExpr: *eq(expr.Int4(1), int4Null())}, p, nil), true)
		checkInt(t, evalNode(t, &expr.NullIfExpr{OpExpr: *op(fnUnknownEq, "=", oid.T_int4, expr.Int4(1), expr.Int4(2))}, p, nil), 1)
	})
}

// TestCompressedColumn reads a text column stored
// compressed, as storage hands out large values.
func TestCompressedColumn(t *testing.T) {
	cat := catalog.NewMemory()
	desc := tuple.NewDesc(oid.T_record, cat.Attr("s", oid.T_text))
	long := strings.Repeat("abcd", 512)
	stored := datum.Compress(datum.FromText(long), compr.MethodZstd)
	if !datum.IsCompressed(stored) {
		t.Fatal("value not compressed")
	}
	s := scanVar(1, oid.T_text)
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat, WithSlot(expr.SourceScan, desc, tuple.Heap, false))
		ec := &ExprContext{Scan: heapSlot(desc, stored)}
		checkInt(t, evalNode(t, op(catalog.FnTextLen, "length", oid.T_int4, s), p, ec), int64(len(long)))
		got := evalNode(t, op(catalog.FnTextCat, "||", oid.T_text, s, expr.Text("!")), p, ec)
		checkText(t, got, long+"!")
	})
}

func TestRowCompare(t *testing.T) {
	cat := catalog.NewMemory()
	rc := func(cmp expr.RowCompareType, l, r []expr.Node) *expr.RowCompareExpr {
		fns := make([]oid.Oid, len(l))
		for i := range fns {
			fns[i] = catalog.FnBtInt4Cmp
		}
		return &expr.RowCompareExpr{Cmp: cmp, CmpFuncs: fns, LArgs: l, RArgs: r}
	}
	row := func(args ...expr.Node) []expr.Node { return args }
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		// zero columns compare equal
		checkBool(t, evalNode(t, rc(expr.RowCompareEQ, nil, nil), p, nil), true)
		checkBool(t, evalNode(t, rc(expr.RowCompareLE, nil, nil), p, nil), true)
		checkBool(t, evalNode(t, rc(expr.RowCompareLT, nil, nil), p, nil), false)

		one, two, three := expr.Int4(1), expr.Int4(2), expr.Int4(3)
		checkBool(t, evalNode(t, rc(expr.RowCompareLT, row(one, two), row(one, three)), p, nil), true)
		checkBool(t, evalNode(t, rc(expr.RowCompareGT, row(one, two), row(one, three)), p, nil), false)
		checkBool(t, evalNode(t, rc(expr.RowCompareEQ, row(one, two), row(one, two)), p, nil), true)
		// an earlier column decides before a null is seen
		checkBool(t, evalNode(t, rc(expr.RowCompareLT, row(one, int4Null()), row(two, one)), p, nil), true)
		checkNull(t, evalNode(t, rc(expr.RowCompareLT, row(one, int4Null()), row(one, two)), p, nil))
	})
}

func TestCompileTwice(t *testing.T) {
	cat := catalog.NewMemory()
	desc := int4Desc(cat, "a", "b")
	a, b := scanVar(1, oid.T_int4), scanVar(2, oid.T_int4)
	tree := &expr.CaseExpr{
		CaseType: oid.T_int4,
		Whens: []expr.CaseWhen{
			{Expr: expr.And(int4gt(a, b), int4gt(a, expr.Int4(0))), Result: int4mul(a, b)},
			{Expr: &expr.NullTest{Arg: b, Kind: expr.IsNull}, Result: a},
		},
		Default: &expr.CoalesceExpr{CoalesceType: oid.T_int4, Args: []expr.Node{b, expr.Int4(-1)}},
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		st1, err := Compile(tree, p)
		if err != nil {
			t.Fatal(err)
		}
		st2, err := Compile(tree, p)
		if err != nil {
			t.Fatal(err)
		}
		checkProgram(t, st1)
		vals := []cell{nil, -3, 0, 1, 7}
		for _, x := range vals {
			for _, y := range vals {
				ec := &ExprContext{Scan: virtualSlot(desc, x, y)}
				v1, n1, err1 := st1.Eval(ec)
				v2, n2, err2 := st2.Eval(ec)
				if err1 != nil || err2 != nil {
					t.Fatalf("(%v, %v): %v / %v", x, y, err1, err2)
				}
				if n1 != n2 || (!n1 && v1.Int32() != v2.Int32()) {
					t.Errorf("(%v, %v): %v/%v vs %v/%v", x, y, v1, n1, v2, n2)
				}
			}
		}
	})
}

func TestProgramInvariants(t *testing.T) {
	cat := catalog.NewMemory()
	a, b := scanVar(1, oid.T_int4), scanVar(2, oid.T_int4)
	nodes := []expr.Node{
		expr.Int4(1),
		a,
		int4pl(a, b),
		expr.And(int4gt(a, b), expr.Or(int4lt(a, b), boolNull()), expr.Not(int4eq(a, b))),
		&expr.CaseExpr{CaseType: oid.T_int4, Whens: []expr.CaseWhen{{Expr: int4gt(a, b), Result: a}}},
		&expr.CoalesceExpr{CoalesceType: oid.T_int4, Args: []expr.Node{a, b, expr.Int4(0)}},
		&expr.BooleanTest{Arg: int4gt(a, b), Kind: expr.IsNotUnknown},
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		for _, n := range nodes {
			st, err := Compile(n, m.parent(cat))
			if err != nil {
				t.Fatal(err)
			}
			checkProgram(t, st)
			if err := st.Validate(); err != nil {
				t.Errorf("%s: %s", expr.ToString(n), err)
			}
		}
	})
}

func TestExternParams(t *testing.T) {
	cat := catalog.NewMemory()
	params := &ParamListInfo{Params: []ParamExternData{
		{Value: datum.FromInt32(40), Type: oid.T_int4},
		{IsNull: true, Type: oid.T_int4},
	}}
	p1 := &expr.Param{Kind: expr.ParamExtern, ID: 1, ParamType: oid.T_int4, TypMod: -1}
	p2 := &expr.Param{Kind: expr.ParamExtern, ID: 2, ParamType: oid.T_int4, TypMod: -1}
	st, err := CompileWithParams(int4pl(p1, expr.Int4(2)), cat, params)
	if err != nil {
		t.Fatal(err)
	}
	v, isnull, err := st.Eval(nil)
	if err != nil {
		t.Fatal(err)
	}
	checkInt(t, result{v, isnull}, 42)

	st, err = CompileWithParams(int4pl(p1, p2), cat, params)
	if err != nil {
		t.Fatal(err)
	}
	v, isnull, err = st.Eval(nil)
	if err != nil {
		t.Fatal(err)
	}
	checkNull(t, result{v, isnull})
}

func TestExecParams(t *testing.T) {
	cat := catalog.NewMemory()
	pe := &expr.Param{Kind: expr.ParamExec, ID: 0, ParamType: oid.T_int4, TypMod: -1}
	eachMode(t, func(t *testing.T, m evalMode) {
		ec := &ExprContext{ParamExec: []ParamExecData{{Value: datum.FromInt32(9)}}}
		checkInt(t, evalNode(t, int4mul(pe, pe), m.parent(cat), ec), 81)
	})
}

func TestSlotTypeMismatch(t *testing.T) {
	cat := catalog.NewMemory()
	textDesc := tuple.NewDesc(oid.T_record, cat.Attr("x", oid.T_text))
	st, err := Compile(int4pl(scanVar(1, oid.T_int4), expr.Int4(1)), NewParent(cat))
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = st.Eval(&ExprContext{Scan: virtualSlot(textDesc, "abc")})
	if pgerr.GetCode(err) != pgerr.CodeDatatypeMismatch {
		t.Fatalf("got %v", err)
	}
}

func TestHeapSlotDeform(t *testing.T) {
	cat := catalog.NewMemory()
	desc := int4Desc(cat, "a", "b", "c")
	n := int4pl(scanVar(1, oid.T_int4), scanVar(2, oid.T_int4))
	eachMode(t, func(t *testing.T, m evalMode) {
		st, err := Compile(n, m.parent(cat))
		if err != nil {
			t.Fatal(err)
		}
		if st.Step(0).Op != OpScanFetchSome {
			t.Fatalf("program starts with %s", st.Step(0).Op)
		}
		slot := heapSlot(desc, 4, 5, 6)
		v, isnull, err := st.Eval(&ExprContext{Scan: slot})
		if err != nil {
			t.Fatal(err)
		}
		checkInt(t, result{v, isnull}, 9)
		if slot.NValid < 2 {
			t.Errorf("only %d columns deformed", slot.NValid)
		}
	})
}

func TestRevokedFunction(t *testing.T) {
	cat := catalog.NewMemory()
	cat.Revoke(catalog.FnInt4Pl)
	_, err := Compile(int4pl(expr.Int4(1), expr.Int4(2)), NewParent(cat))
	if pgerr.GetCode(err) != pgerr.CodeInsufficientPriv {
		t.Fatalf("got %v", err)
	}
}

func TestInterrupt(t *testing.T) {
	cat := catalog.NewMemory()
	n := int4pl(expr.Int4(1), expr.Int4(2))
	eachMode(t, func(t *testing.T, m evalMode) {
		st, err := Compile(n, m.parent(cat))
		if err != nil {
			t.Fatal(err)
		}
		Interrupt()
		_, _, err = st.Eval(nil)
		if pgerr.GetCode(err) != pgerr.CodeQueryCanceled {
			ClearInterrupt()
			t.Fatalf("got %v", err)
		}
		// the interrupt is consumed
		v, isnull, err := st.Eval(nil)
		if err != nil {
			t.Fatal(err)
		}
		checkInt(t, result{v, isnull}, 3)
	})
}

func TestRedacted(t *testing.T) {
	cat := catalog.NewMemory()
	st, err := Compile(&expr.CoalesceExpr{CoalesceType: oid.T_int4, Args: []expr.Node{scanVar(1, oid.T_int4), expr.Int4(12345)}}, NewParent(cat))
	if err != nil {
		t.Fatal(err)
	}
	plain := st.String()
	if !strings.Contains(plain, "12345") {
		t.Errorf("disassembly lacks the constant:\n%s", plain)
	}
	red := string(st.Redacted())
	if strings.Contains(red, "12345") {
		t.Errorf("redacted disassembly shows the constant:\n%s", red)
	}
	if !strings.Contains(red, "const") {
		t.Errorf("redacted disassembly lacks opcodes:\n%s", red)
	}
}
