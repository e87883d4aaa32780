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
	"testing"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

// evalErr compiles and evaluates n and returns
// the evaluation error.
func evalErr(t *testing.T, n expr.Node, p *Parent, ec *ExprContext) error {
	t.Helper()
	st, err := Compile(n, p)
	if err != nil {
		t.Fatalf("compiling %s: %s", expr.ToString(n), err)
	}
	_, _, err = st.Eval(ec)
	return err
}

func checkCode(t *testing.T, err error, want pgerr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("no error, want %s", want)
	}
	if got := pgerr.GetCode(err); got != want {
		t.Fatalf("got %s (%s), want %s", got, err, want)
	}
}

// posint is a domain over int4 that is NOT NULL
// and CHECK (VALUE > 0).
func posint(t *testing.T, cat *catalog.Memory) oid.Oid {
	typ := cat.NewOid()
	err := cat.AddDomain(typ, "posint", oid.T_int4,
		catalog.DomainConstraint{
			Name:  "positive",
			Kind:  catalog.ConstraintCheck,
			Check: int4gt(&expr.CoerceToDomainValue{TypeID: oid.T_int4, TypMod: -1}, expr.Int4(0)),
		},
		catalog.DomainConstraint{Name: "nn", Kind: catalog.ConstraintNotNull},
	)
	if err != nil {
		t.Fatal(err)
	}
	return typ
}

func TestDomain(t *testing.T) {
	cat := catalog.NewMemory()
	typ := posint(t, cat)
	desc := int4Desc(cat, "a")
	coerce := &expr.CoerceToDomain{Arg: scanVar(1, oid.T_int4), ResultType: typ, TypMod: -1}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat, WithSlot(expr.SourceScan, desc, tuple.Virtual, true))
		checkInt(t, evalNode(t, coerce, p, &ExprContext{Scan: virtualSlot(desc, 5)}), 5)
		checkCode(t, evalErr(t, coerce, p, &ExprContext{Scan: virtualSlot(desc, 0)}), pgerr.CodeCheckViolation)
		checkCode(t, evalErr(t, coerce, p, &ExprContext{Scan: virtualSlot(desc, nil)}), pgerr.CodeNotNullViolation)
	})
}

func TestDomainSoft(t *testing.T) {
	cat := catalog.NewMemory()
	typ := posint(t, cat)
	desc := int4Desc(cat, "a")
	coerce := &expr.CoerceToDomain{Arg: scanVar(1, oid.T_int4), ResultType: typ, TypMod: -1}
	eachMode(t, func(t *testing.T, m evalMode) {
		for _, tc := range []struct {
			in   cell
			code pgerr.Code
		}{
			{-3, pgerr.CodeCheckViolation},
			{nil, pgerr.CodeNotNullViolation},
		} {
			es := &pgerr.ErrorSaveContext{}
			st, err := CompileSoft(coerce, m.parent(cat, WithSlot(expr.SourceScan, desc, tuple.Virtual, true)), es)
			if err != nil {
				t.Fatal(err)
			}
			v, isnull, err := st.Eval(&ExprContext{Scan: virtualSlot(desc, tc.in)})
			if err != nil {
				t.Fatalf("%v: soft evaluation raised %s", tc.in, err)
			}
			checkNull(t, result{v, isnull})
			if !es.HasError() {
				t.Fatalf("%v: no error saved", tc.in)
			}
			if got := pgerr.GetCode(es.Err()); got != tc.code {
				t.Errorf("%v: saved %s, want %s", tc.in, got, tc.code)
			}
		}
	})
}

func TestCoerceViaIO(t *testing.T) {
	cat := catalog.NewMemory()
	toText := &expr.CoerceViaIO{Arg: expr.Int4(42), ResultType: oid.T_text}
	bad := &expr.CoerceViaIO{Arg: expr.Text("abc"), ResultType: oid.T_int4}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkText(t, evalNode(t, toText, p, nil), "42")
		checkInt(t, evalNode(t, &expr.CoerceViaIO{Arg: expr.Text(" 17"), ResultType: oid.T_int4}, p, nil), 17)
		checkNull(t, evalNode(t, &expr.CoerceViaIO{Arg: expr.NullConst(oid.T_text), ResultType: oid.T_int4}, p, nil))
		checkCode(t, evalErr(t, bad, p, nil), pgerr.CodeInvalidTextRep)

		es := &pgerr.ErrorSaveContext{}
		st, err := CompileSoft(bad, m.parent(cat), es)
		if err != nil {
			t.Fatal(err)
		}
		v, isnull, err := st.Eval(nil)
		if err != nil {
			t.Fatal(err)
		}
		checkNull(t, result{v, isnull})
		if pgerr.GetCode(es.Err()) != pgerr.CodeInvalidTextRep {
			t.Errorf("saved %v", es.Err())
		}
	})
}

// int4ArrayNulls is an int4[] constant; nil
// entries are null elements.
func int4ArrayNulls(vals ...*int32) *expr.Const {
	ds := make([]datum.Datum, len(vals))
	nulls := make([]bool, len(vals))
	for i, v := range vals {
		if v == nil {
			nulls[i] = true
			continue
		}
		ds[i] = datum.FromInt32(*v)
	}
	return expr.NewConst(oid.T__int4, datum.FromRef(datum.NewArray(oid.T_int4, ds, nulls)))
}

func i32(v int32) *int32 { return &v }

func TestScalarArrayOp(t *testing.T) {
	cat := catalog.NewMemory()
	desc := int4Desc(cat, "a")
	a := scanVar(1, oid.T_int4)
	anyEq := func(arr expr.Node) *expr.ScalarArrayOpExpr {
		return &expr.ScalarArrayOpExpr{FuncID: catalog.FnInt4Eq, Name: "=", UseOr: true, Args: []expr.Node{a, arr}}
	}
	allNe := func(arr expr.Node) *expr.ScalarArrayOpExpr {
		return &expr.ScalarArrayOpExpr{FuncID: catalog.FnInt4Ne, Name: "<>", Args: []expr.Node{a, arr}}
	}
	empty := expr.NewConst(oid.T__int4, datum.FromRef(datum.EmptyArray(oid.T_int4)))
	withNull := int4ArrayNulls(i32(1), nil)
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat, WithSlot(expr.SourceScan, desc, tuple.Virtual, true))
		row := func(v cell) *ExprContext { return &ExprContext{Scan: virtualSlot(desc, v)} }

		checkBool(t, evalNode(t, anyEq(int4Array(1, 2, 3)), p, row(2)), true)
		checkBool(t, evalNode(t, anyEq(int4Array(1, 2, 3)), p, row(5)), false)
		checkNull(t, evalNode(t, anyEq(int4Array(1, 2, 3)), p, row(nil)))
		checkBool(t, evalNode(t, allNe(int4Array(1, 2, 3)), p, row(5)), true)
		checkBool(t, evalNode(t, allNe(int4Array(1, 2, 3)), p, row(2)), false)

		// a match wins over a null element
		checkBool(t, evalNode(t, anyEq(withNull), p, row(1)), true)
		checkNull(t, evalNode(t, anyEq(withNull), p, row(5)))
		checkBool(t, evalNode(t, allNe(withNull), p, row(1)), false)
		checkNull(t, evalNode(t, allNe(withNull), p, row(5)))

		// the empty array decides before the scalar
		checkBool(t, evalNode(t, anyEq(empty), p, row(nil)), false)
		checkBool(t, evalNode(t, allNe(empty), p, row(nil)), true)
		checkNull(t, evalNode(t, anyEq(expr.NullConst(oid.T__int4)), p, row(1)))
	})
}

func TestHashedScalarArrayOp(t *testing.T) {
	cat := catalog.NewMemory()
	desc := int4Desc(cat, "a")
	a := scanVar(1, oid.T_int4)
	in := func(arr expr.Node) *expr.ScalarArrayOpExpr {
		return &expr.ScalarArrayOpExpr{
			FuncID:     catalog.FnInt4Eq,
			HashFuncID: catalog.FnHashInt4,
			Name:       "=",
			UseOr:      true,
			Args:       []expr.Node{a, arr},
		}
	}
	notIn := func(arr expr.Node) *expr.ScalarArrayOpExpr {
		return &expr.ScalarArrayOpExpr{
			FuncID:     catalog.FnInt4Ne,
			HashFuncID: catalog.FnHashInt4,
			NegFuncID:  catalog.FnInt4Eq,
			Name:       "<>",
			Args:       []expr.Node{a, arr},
		}
	}
	list := int4Array(3, 1, 4, 1, 5, 9, 2, 6)
	withNull := int4ArrayNulls(i32(1), nil, i32(2))
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat, WithSlot(expr.SourceScan, desc, tuple.Virtual, true))
		st, err := Compile(in(list), p)
		if err != nil {
			t.Fatal(err)
		}
		// the table is built once and consulted per row
		for v := int32(0); v < 12; v++ {
			want := v != 0 && v != 7 && v != 8 && v < 10
			got := evalWith(t, st, &ExprContext{Scan: virtualSlot(desc, v)})
			checkBool(t, got, want)
		}
		checkNull(t, evalWith(t, st, &ExprContext{Scan: virtualSlot(desc, nil)}))

		row := func(v cell) *ExprContext { return &ExprContext{Scan: virtualSlot(desc, v)} }
		checkBool(t, evalNode(t, notIn(list), p, row(7)), true)
		checkBool(t, evalNode(t, notIn(list), p, row(9)), false)
		checkBool(t, evalNode(t, in(withNull), p, row(2)), true)
		checkNull(t, evalNode(t, in(withNull), p, row(3)))
		checkBool(t, evalNode(t, notIn(withNull), p, row(1)), false)
		checkNull(t, evalNode(t, notIn(withNull), p, row(3)))
	})
}

func TestHashedScalarArrayOpColumnArray(t *testing.T) {
	cat := catalog.NewMemory()
	desc := tuple.NewDesc(oid.T_record, cat.Attr("a", oid.T_int4), cat.Attr("arr", oid.T__int4))
	n := &expr.ScalarArrayOpExpr{
		FuncID:     catalog.FnInt4Eq,
		HashFuncID: catalog.FnHashInt4,
		Name:       "=",
		UseOr:      true,
		Args:       []expr.Node{scanVar(1, oid.T_int4), scanVar(2, oid.T__int4)},
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat, WithSlot(expr.SourceScan, desc, tuple.Virtual, true))
		st, err := Compile(n, p)
		if err != nil {
			t.Fatal(err)
		}
		for _, op := range opNames(st) {
			if op == "scalararrayop.hashed" {
				t.Fatalf("array column hashed: %v", opNames(st))
			}
		}
		row := func(v int32, arr *expr.Const) *ExprContext {
			var c cell
			if arr != nil {
				c = arr.Value
			}
			return &ExprContext{Scan: virtualSlot(desc, v, c)}
		}
		// each row sees its own array
		checkBool(t, evalWith(t, st, row(1, int4Array(1, 2))), true)
		checkBool(t, evalWith(t, st, row(1, int4Array(3, 4))), false)
		checkNull(t, evalWith(t, st, row(1, nil)))
		checkBool(t, evalWith(t, st, row(4, int4Array(3, 4))), true)
	})
}

func TestHashedScalarArrayOpNullArray(t *testing.T) {
	cat := catalog.NewMemory()
	desc := int4Desc(cat, "a")
	n := &expr.ScalarArrayOpExpr{
		FuncID:     catalog.FnInt4Eq,
		HashFuncID: catalog.FnHashInt4,
		Name:       "=",
		UseOr:      true,
		Args:       []expr.Node{scanVar(1, oid.T_int4), expr.NullConst(oid.T__int4)},
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat, WithSlot(expr.SourceScan, desc, tuple.Virtual, true))
		st, err := Compile(n, p)
		if err != nil {
			t.Fatal(err)
		}
		for v := int32(0); v < 3; v++ {
			checkNull(t, evalWith(t, st, &ExprContext{Scan: virtualSlot(desc, v)}))
		}
	})
}

func TestArrayExpr(t *testing.T) {
	cat := catalog.NewMemory()
	flat := &expr.ArrayExpr{
		ArrayType: oid.T__int4,
		ElemType:  oid.T_int4,
		Elements:  []expr.Node{expr.Int4(1), int4Null(), int4pl(expr.Int4(1), expr.Int4(2))},
	}
	multi := func(elems ...expr.Node) *expr.ArrayExpr {
		return &expr.ArrayExpr{ArrayType: oid.T__int4, ElemType: oid.T_int4, Elements: elems, MultiDims: true}
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		got := evalNode(t, flat, p, nil)
		a, err := datum.ArrayOf(got.v)
		if err != nil {
			t.Fatal(err)
		}
		if a.Len() != 3 || a.Elems[0].Int32() != 1 || !a.IsNull(1) || a.Elems[2].Int32() != 3 {
			t.Errorf("got %s", a)
		}

		got = evalNode(t, multi(int4Array(1, 2), int4Array(3, 4)), p, nil)
		a, err = datum.ArrayOf(got.v)
		if err != nil {
			t.Fatal(err)
		}
		if a.NDim() != 2 || a.Dims[0] != 2 || a.Dims[1] != 2 || a.Len() != 4 || a.Elems[3].Int32() != 4 {
			t.Errorf("got %s", a)
		}
		checkCode(t, evalErr(t, multi(int4Array(1, 2), int4Array(3)), p, nil), pgerr.CodeArraySubscript)
		checkCode(t, evalErr(t, multi(int4Array(1, 2), expr.NullConst(oid.T__int4)), p, nil), pgerr.CodeArraySubscript)
	})
}

func TestArrayCoerce(t *testing.T) {
	cat := catalog.NewMemory()
	elem := &expr.CaseTestExpr{TypeID: oid.T_int4, TypMod: -1}
	inc := &expr.ArrayCoerceExpr{
		Arg:        int4ArrayNulls(i32(1), nil, i32(3)),
		ElemExpr:   int4pl(elem, expr.Int4(10)),
		ResultType: oid.T__int4,
	}
	toText := &expr.ArrayCoerceExpr{
		Arg:        int4Array(7, 8),
		ElemExpr:   &expr.CoerceViaIO{Arg: elem, ResultType: oid.T_text},
		ResultType: oid.T__text,
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		got := evalNode(t, inc, p, nil)
		a, err := datum.ArrayOf(got.v)
		if err != nil {
			t.Fatal(err)
		}
		if a.Len() != 3 || a.Elems[0].Int32() != 11 || !a.IsNull(1) || a.Elems[2].Int32() != 13 {
			t.Errorf("got %s", a)
		}

		got = evalNode(t, toText, p, nil)
		a, err = datum.ArrayOf(got.v)
		if err != nil {
			t.Fatal(err)
		}
		if a.ElemType != oid.T_text || a.Len() != 2 {
			t.Fatalf("got %s", a)
		}
		checkText(t, result{a.Elems[1], false}, "8")

		checkNull(t, evalNode(t, &expr.ArrayCoerceExpr{
			Arg:        expr.NullConst(oid.T__int4),
			ElemExpr:   elem,
			ResultType: oid.T__int4,
		}, p, nil))
	})
}

// pairType registers "pair" as (a int4, b text).
func pairType(cat *catalog.Memory) oid.Oid {
	typ := cat.NewOid()
	cat.AddRowType(typ, "pair", cat.Attr("a", oid.T_int4), cat.Attr("b", oid.T_text))
	return typ
}

func checkRecord(t *testing.T, got result, want ...cell) {
	t.Helper()
	if got.isnull {
		t.Fatal("got null record")
	}
	rec, err := datum.RecordOf(got.v)
	if err != nil {
		t.Fatal(err)
	}
	if rec.NumFields() != len(want) {
		t.Fatalf("got %s, want %d fields", rec, len(want))
	}
	for i, w := range want {
		v, isnull := rec.Field(i)
		switch w := w.(type) {
		case nil:
			if !isnull {
				t.Errorf("field %d: got %s, want null", i+1, v)
			}
		case int:
			if isnull || v.Int64() != int64(w) {
				t.Errorf("field %d: got %s, want %d", i+1, v, w)
			}
		case string:
			checkText(t, result{v, isnull}, w)
		}
	}
}

func TestRowExpr(t *testing.T) {
	cat := catalog.NewMemory()
	pair := pairType(cat)
	named := &expr.RowExpr{Args: []expr.Node{expr.Int4(7), expr.Text("x")}, RowType: pair}
	anon := &expr.RowExpr{
		Args:     []expr.Node{expr.Int4(1), int4pl(expr.Int4(1), expr.Int4(1))},
		RowType:  oid.T_record,
		ColNames: []string{"x"},
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkRecord(t, evalNode(t, named, p, nil), 7, "x")
		checkRecord(t, evalNode(t, anon, p, nil), 1, 2)
		// missing trailing columns are null
		checkRecord(t, evalNode(t, &expr.RowExpr{Args: []expr.Node{expr.Int4(7)}, RowType: pair}, p, nil), 7, nil)

		sel := &expr.FieldSelect{Arg: anon, FieldNum: 2, ResultType: oid.T_int4, TypMod: -1}
		checkInt(t, evalNode(t, sel, p, nil), 2)
	})

	bad := &expr.RowExpr{Args: []expr.Node{expr.Text("x"), expr.Text("y")}, RowType: pair}
	_, err := Compile(bad, NewParent(cat))
	checkCode(t, err, pgerr.CodeDatatypeMismatch)
}

func TestFieldSelect(t *testing.T) {
	cat := catalog.NewMemory()
	pair := pairType(cat)
	row := &expr.RowExpr{Args: []expr.Node{expr.Int4(7), expr.Text("x")}, RowType: pair}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkInt(t, evalNode(t, &expr.FieldSelect{Arg: row, FieldNum: 1, ResultType: oid.T_int4, TypMod: -1}, p, nil), 7)
		checkText(t, evalNode(t, &expr.FieldSelect{Arg: row, FieldNum: 2, ResultType: oid.T_text, TypMod: -1}, p, nil), "x")
		checkNull(t, evalNode(t, &expr.FieldSelect{Arg: expr.NullConst(pair), FieldNum: 1, ResultType: oid.T_int4, TypMod: -1}, p, nil))

		wrong := &expr.FieldSelect{Arg: row, FieldNum: 2, ResultType: oid.T_int4, TypMod: -1}
		checkCode(t, evalErr(t, wrong, p, nil), pgerr.CodeDatatypeMismatch)
	})
}

func TestFieldStore(t *testing.T) {
	cat := catalog.NewMemory()
	pair := pairType(cat)
	row := &expr.RowExpr{Args: []expr.Node{expr.Int4(7), expr.Text("x")}, RowType: pair}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		store := &expr.FieldStore{
			Arg:        row,
			NewVals:    []expr.Node{expr.Text("y")},
			FieldNums:  []int{2},
			ResultType: pair,
		}
		checkRecord(t, evalNode(t, store, p, nil), 7, "y")

		// a null input is a row of nulls
		fromNull := &expr.FieldStore{
			Arg:        expr.NullConst(pair),
			NewVals:    []expr.Node{expr.Int4(1)},
			FieldNums:  []int{1},
			ResultType: pair,
		}
		checkRecord(t, evalNode(t, fromNull, p, nil), 1, nil)

		// the new value sees the old field
		bump := &expr.FieldStore{
			Arg:        row,
			NewVals:    []expr.Node{int4pl(&expr.CaseTestExpr{TypeID: oid.T_int4, TypMod: -1}, expr.Int4(1))},
			FieldNums:  []int{1},
			ResultType: pair,
		}
		checkRecord(t, evalNode(t, bump, p, nil), 8, "x")
	})
}

func TestConvertRowtype(t *testing.T) {
	cat := catalog.NewMemory()
	pair := pairType(cat)
	swapped := cat.NewOid()
	cat.AddRowType(swapped, "swapped", cat.Attr("b", oid.T_text), cat.Attr("a", oid.T_int4))
	other := cat.NewOid()
	cat.AddRowType(other, "other", cat.Attr("a", oid.T_int4), cat.Attr("c", oid.T_int4))
	row := &expr.RowExpr{Args: []expr.Node{expr.Int4(7), expr.Text("x")}, RowType: pair}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkRecord(t, evalNode(t, &expr.ConvertRowtypeExpr{Arg: row, ResultType: swapped}, p, nil), "x", 7)
		checkNull(t, evalNode(t, &expr.ConvertRowtypeExpr{Arg: expr.NullConst(pair), ResultType: swapped}, p, nil))
		checkCode(t, evalErr(t, &expr.ConvertRowtypeExpr{Arg: row, ResultType: other}, p, nil), pgerr.CodeDatatypeMismatch)
	})
}

// tenTimes answers every subplan with ten times
// its first parameter, or with whether it is set
// for EXISTS.
type tenTimes struct {
	calls int
}

func (r *tenTimes) RunSubPlan(sp *expr.SubPlan, ec *ExprContext) (datum.Datum, bool, error) {
	r.calls++
	p := ec.ParamExec[sp.ParParams[0]]
	if sp.Kind == expr.ExistsSubLink {
		return datum.FromBool(!p.IsNull), false, nil
	}
	if p.IsNull {
		return datum.Null, true, nil
	}
	return datum.FromInt32(p.Value.Int32() * 10), false, nil
}

func TestSubPlan(t *testing.T) {
	cat := catalog.NewMemory()
	desc := int4Desc(cat, "a")
	scalar := &expr.SubPlan{
		PlanID:     1,
		Kind:       expr.ExprSubLink,
		ParParams:  []int{0},
		Args:       []expr.Node{int4pl(scanVar(1, oid.T_int4), expr.Int4(1))},
		ResultType: oid.T_int4,
	}
	exists := &expr.SubPlan{
		PlanID:     2,
		Kind:       expr.ExistsSubLink,
		ParParams:  []int{1},
		Args:       []expr.Node{scanVar(1, oid.T_int4)},
		ResultType: oid.T_bool,
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		r := &tenTimes{}
		p := m.parent(cat, WithSlot(expr.SourceScan, desc, tuple.Virtual, true), WithSubPlans(r))
		ec := &ExprContext{Scan: virtualSlot(desc, 4)}
		checkInt(t, evalNode(t, scalar, p, ec), 50)
		if ec.ParamExec[0].IsNull || ec.ParamExec[0].Value.Int32() != 5 {
			t.Errorf("parameter 0 is %+v", ec.ParamExec[0])
		}
		checkNull(t, evalNode(t, scalar, p, &ExprContext{Scan: virtualSlot(desc, nil)}))
		checkBool(t, evalNode(t, exists, p, &ExprContext{Scan: virtualSlot(desc, nil)}), false)
		checkBool(t, evalNode(t, exists, p, &ExprContext{Scan: virtualSlot(desc, 1)}), true)
		if r.calls != 4 {
			t.Errorf("%d subplan calls", r.calls)
		}
	})

	_, err := Compile(scalar, NewParent(cat, WithSlot(expr.SourceScan, desc, tuple.Virtual, true)))
	if !pgerr.IsInvariant(err) {
		t.Errorf("compiled a subplan without a runner: %v", err)
	}
}

func TestGroupingFunc(t *testing.T) {
	cat := catalog.NewMemory()
	g := &expr.GroupingFunc{Refs: []int{1, 2, 3}}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat, WithAgg(NewAggState(nil)))
		for _, tc := range []struct {
			grouped []int
			want    int64
		}{
			{[]int{1, 2, 3}, 0},
			{[]int{1, 2}, 1},
			{[]int{2}, 5},
			{nil, 7},
		} {
			checkInt(t, evalNode(t, g, p, &ExprContext{GroupedCols: tc.grouped}), tc.want)
		}
	})
	_, err := Compile(g, NewParent(cat))
	if !pgerr.IsInvariant(err) {
		t.Errorf("GROUPING outside an aggregation: %v", err)
	}
}

func TestWindowFunc(t *testing.T) {
	cat := catalog.NewMemory()
	w := &expr.WindowFunc{Name: "rank", WinType: oid.T_int4, WFuncNo: 1}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat, WithWindow())
		ec := &ExprContext{
			AggValues: []datum.Datum{datum.FromInt32(9), datum.FromInt32(3)},
			AggNulls:  []bool{false, false},
		}
		checkInt(t, evalNode(t, w, p, ec), 3)
		ec.AggNulls[1] = true
		checkNull(t, evalNode(t, w, p, ec))
	})
	_, err := Compile(w, NewParent(cat))
	if !pgerr.IsInvariant(err) {
		t.Errorf("window function outside a window node: %v", err)
	}
}
