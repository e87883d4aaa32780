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

package catalog

import (
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/mcxt"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

// arg is a nullable call argument; nil is null.
func arg(v any) datum.NullableDatum {
	switch x := v.(type) {
	case nil:
		return datum.NullableDatum{IsNull: true}
	case datum.Datum:
		return datum.NullableDatum{Value: x}
	case int:
		return datum.NullableDatum{Value: datum.FromInt32(int32(x))}
	case string:
		return datum.NullableDatum{Value: datum.FromText(x)}
	}
	panic("bad argument")
}

func invoke(t *testing.T, m *Memory, fn oid.Oid, ctx any, args ...any) (datum.Datum, bool, error) {
	t.Helper()
	fi, err := m.Func(fn)
	require.NoError(t, err)
	fc := fmgr.NewCallInfo(fi, len(args), 0, ctx)
	for i := range args {
		fc.Args[i] = arg(args[i])
	}
	v, err := fc.Invoke()
	return v, fc.IsNull, err
}

func text(t *testing.T, d datum.Datum) string {
	t.Helper()
	s, err := datum.TextOf(d)
	require.NoError(t, err)
	return s
}

func TestIntegerArithmetic(t *testing.T) {
	m := NewMemory()
	v, _, err := invoke(t, m, FnInt4Pl, nil, 2, 40)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v.Int32())

	_, _, err = invoke(t, m, FnInt4Pl, nil, 2147483647, 1)
	assert.Equal(t, pgerr.CodeNumericOutOfRange, pgerr.GetCode(err))

	_, _, err = invoke(t, m, FnInt4Div, nil, 1, 0)
	assert.Equal(t, pgerr.CodeDivisionByZero, pgerr.GetCode(err))
}

func TestInputSoftError(t *testing.T) {
	m := NewMemory()
	typ := datum.FromOid(oid.T_int4)
	mod := datum.FromInt32(-1)

	es := &pgerr.ErrorSaveContext{}
	_, isnull, err := invoke(t, m, FnInt4In, es, "abc", typ, mod)
	require.NoError(t, err)
	assert.True(t, isnull)
	require.True(t, es.HasError())
	assert.Equal(t, pgerr.CodeInvalidTextRep, pgerr.GetCode(es.Err()))

	_, _, err = invoke(t, m, FnInt4In, nil, "abc", typ, mod)
	assert.Equal(t, pgerr.CodeInvalidTextRep, pgerr.GetCode(err))

	v, _, err := invoke(t, m, FnInt4In, nil, " 17", typ, mod)
	require.NoError(t, err)
	assert.Equal(t, int32(17), v.Int32())
}

func TestFuncIsCopied(t *testing.T) {
	m := NewMemory()
	a, err := m.Func(FnInt4Pl)
	require.NoError(t, err)
	a.Extra = "scribbled"
	b, err := m.Func(FnInt4Pl)
	require.NoError(t, err)
	assert.Nil(t, b.Extra)
	assert.NotSame(t, a, b)

	_, err = m.Func(1)
	assert.Equal(t, pgerr.CodeUndefinedFunction, pgerr.GetCode(err))
}

func TestDomainConstraintOrder(t *testing.T) {
	m := NewMemory()
	dom := m.NewOid()
	require.NoError(t, m.AddDomain(dom, "posint", oid.T_int4,
		DomainConstraint{Name: "b_check", Kind: ConstraintCheck, Check: expr.Bool(true)},
		DomainConstraint{Name: "a_check", Kind: ConstraintCheck, Check: expr.Bool(true)},
		DomainConstraint{Name: "z_nn", Kind: ConstraintNotNull},
	))
	cons, err := m.DomainConstraints(dom)
	require.NoError(t, err)
	var names []string
	for i := range cons {
		names = append(names, cons[i].Name)
	}
	assert.Equal(t, []string{"z_nn", "a_check", "b_check"}, names)

	ti, err := m.Type(dom)
	require.NoError(t, err)
	assert.True(t, ti.IsDomain())
	assert.Equal(t, oid.T_int4, ti.BaseType)

	_, err = m.DomainConstraints(oid.T_int4)
	assert.Error(t, err)
}

func TestBlessAndAlter(t *testing.T) {
	m := NewMemory()
	d1 := m.Bless(tuple.NewDesc(oid.T_record, m.Attr("a", oid.T_int4), m.Attr("b", oid.T_text)))
	d2 := m.Bless(tuple.NewDesc(oid.T_record, m.Attr("a", oid.T_int4), m.Attr("b", oid.T_text)))
	d3 := m.Bless(tuple.NewDesc(oid.T_record, m.Attr("x", oid.T_int4)))
	assert.Same(t, d1, d2)
	assert.NotEqual(t, d1.TypMod, d3.TypMod)
	got, err := m.RowDesc(oid.T_record, d3.TypMod)
	require.NoError(t, err)
	assert.Same(t, d3, got)

	typ := m.NewOid()
	old := m.AddRowType(typ, "pair", m.Attr("a", oid.T_int4))
	nd, err := m.AlterRowType(typ, m.Attr("a", oid.T_int4), m.Attr("b", oid.T_int4))
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, nd.ID)
	cur, err := m.RowDesc(typ, -1)
	require.NoError(t, err)
	assert.Equal(t, 2, cur.NumAttrs())
}

func TestRevoke(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.CheckExecute(FnInt4Pl))
	m.Revoke(FnInt4Pl)
	err := m.CheckExecute(FnInt4Pl)
	assert.Equal(t, pgerr.CodeInsufficientPriv, pgerr.GetCode(err))
	assert.Contains(t, err.Error(), "int4pl")
	m.Grant(FnInt4Pl)
	assert.NoError(t, m.CheckExecute(FnInt4Pl))
}

func TestArrayLiteral(t *testing.T) {
	dims, elems, nulls, err := ParseArrayLiteral(`{{1,2,3},{4,"x,y",NULL}}`)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, dims)
	assert.Equal(t, []string{"1", "2", "3", "4", "x,y", "NULL"}, elems)
	assert.Equal(t, []bool{false, false, false, false, false, true}, nulls)

	for _, bad := range []string{"1,2", "{1,{2}}", "{{1},{2,3}}", "{1,2"} {
		_, _, _, err := ParseArrayLiteral(bad)
		assert.Equal(t, pgerr.CodeInvalidTextRep, pgerr.GetCode(err), bad)
	}
}

func TestArrayInOut(t *testing.T) {
	m := NewMemory()
	v, _, err := invoke(t, m, FnArrayIn, nil, "{1,NULL,3}", datum.FromOid(oid.T_int4), datum.FromInt32(-1))
	require.NoError(t, err)
	a, err := datum.ArrayOf(v)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Len())
	assert.True(t, a.IsNull(1))

	out, _, err := invoke(t, m, FnArrayOut, nil, v)
	require.NoError(t, err)
	assert.Equal(t, "{1,NULL,3}", text(t, out))

	es := &pgerr.ErrorSaveContext{}
	_, isnull, err := invoke(t, m, FnArrayIn, es, "{1,x}", datum.FromOid(oid.T_int4), datum.FromInt32(-1))
	require.NoError(t, err)
	assert.True(t, isnull)
	assert.True(t, es.HasError())
}

func TestRecordInOut(t *testing.T) {
	m := NewMemory()
	typ := m.NewOid()
	m.AddRowType(typ, "pair", m.Attr("a", oid.T_int4), m.Attr("b", oid.T_text))
	v, _, err := invoke(t, m, FnRecordIn, nil, `(1,"x y")`, datum.FromOid(typ), datum.FromInt32(-1))
	require.NoError(t, err)
	r, err := datum.RecordOf(v)
	require.NoError(t, err)
	f, isnull := r.Field(0)
	require.False(t, isnull)
	assert.Equal(t, int32(1), f.Int32())

	out, _, err := invoke(t, m, FnRecordOut, nil, v)
	require.NoError(t, err)
	assert.Equal(t, `(1,"x y")`, text(t, out))

	_, _, err = invoke(t, m, FnRecordIn, nil, `(1,2,3)`, datum.FromOid(typ), datum.FromInt32(-1))
	assert.Equal(t, pgerr.CodeInvalidTextRep, pgerr.GetCode(err))
}

func TestNumeric(t *testing.T) {
	m := NewMemory()
	a, err := Numeric("1.50")
	require.NoError(t, err)
	b, err := Numeric("2.25")
	require.NoError(t, err)
	sum, _, err := invoke(t, m, FnNumericAdd, nil, a, b)
	require.NoError(t, err)
	out, _, err := invoke(t, m, FnNumericOut, nil, sum)
	require.NoError(t, err)
	assert.Equal(t, "3.75", text(t, out))

	one, err := Numeric("1.0")
	require.NoError(t, err)
	ones, err := Numeric("1.000")
	require.NoError(t, err)
	h1, _, err := invoke(t, m, FnHashNumeric, nil, one)
	require.NoError(t, err)
	h2, _, err := invoke(t, m, FnHashNumeric, nil, ones)
	require.NoError(t, err)
	assert.Equal(t, h1.Int32(), h2.Int32())
}

func TestHashes(t *testing.T) {
	assert.Equal(t, Hash32([]byte("abc")), Hash32([]byte("abc")))
	assert.NotEqual(t, Hash32([]byte("abc")), Hash32([]byte("abd")))
	assert.NotEqual(t, Hash64([]byte("abc"), 0), Hash64([]byte("abc"), 1))
}

func subscriptRef(container, elem oid.Oid, upper []expr.Node, lower []expr.Node, assign expr.Node) *expr.SubscriptingRef {
	return &expr.SubscriptingRef{
		ContainerType: container,
		ElemType:      elem,
		RefType:       elem,
		TypMod:        -1,
		Upper:         upper,
		Lower:         lower,
		Expr:          expr.NullConst(container),
		Assign:        assign,
	}
}

// setupSubscripts runs ExecSetup and loads the
// subscript values the way the evaluator would.
func setupSubscripts(t *testing.T, r *SubscriptRoutines, ref *expr.SubscriptingRef, upper ...any) (*SubscriptState, *SubscriptExecSteps) {
	t.Helper()
	st := NewSubscriptState(ref)
	var m SubscriptExecSteps
	require.NoError(t, r.ExecSetup(ref, st, &m))
	for i := range upper {
		st.UpperProvided[i] = true
		a := arg(upper[i])
		st.UpperIndex[i], st.UpperNull[i] = a.Value, a.IsNull
	}
	return st, &m
}

func TestArraySubscriptFetch(t *testing.T) {
	arr := datum.FromRef(datum.NewArray(oid.T_int4, []datum.Datum{datum.FromInt32(10), datum.FromInt32(20)}, nil))
	ref := subscriptRef(oid.T__int4, oid.T_int4, []expr.Node{expr.Int4(0)}, nil, nil)

	st, m := setupSubscripts(t, arraySubscript, ref, 2)
	res, isnull := arr, false
	ok, err := m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, m.Fetch(st, &res, &isnull))
	assert.False(t, isnull)
	assert.Equal(t, int32(20), res.Int32())

	st, m = setupSubscripts(t, arraySubscript, ref, 7)
	res, isnull = arr, false
	_, err = m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.NoError(t, m.Fetch(st, &res, &isnull))
	assert.True(t, isnull)

	st, m = setupSubscripts(t, arraySubscript, ref, nil)
	res, isnull = arr, false
	ok, err = m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, isnull)
}

func TestArraySubscriptAssign(t *testing.T) {
	ref := subscriptRef(oid.T__int4, oid.T_int4, []expr.Node{expr.Int4(0)}, nil, expr.Int4(0))

	// null container starts from an empty array
	st, m := setupSubscripts(t, arraySubscript, ref, 3)
	st.ReplaceValue = datum.FromInt32(5)
	res, isnull := datum.Null, true
	ok, err := m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, m.Assign(st, &res, &isnull))
	a, err := datum.ArrayOf(res)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, a.LBound)
	assert.Equal(t, int32(5), a.Elems[0].Int32())

	// flat input is not modified
	orig := datum.NewArray(oid.T_int4, []datum.Datum{datum.FromInt32(1)}, nil)
	st, m = setupSubscripts(t, arraySubscript, ref, 1)
	st.ReplaceValue = datum.FromInt32(9)
	res, isnull = datum.FromRef(orig), false
	_, err = m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.NoError(t, m.Assign(st, &res, &isnull))
	assert.Equal(t, int32(1), orig.Elems[0].Int32())

	// read-write expanded input is modified in place
	ctx := mcxt.New(nil, "test")
	rw := datum.Expand(ctx, orig)
	st, m = setupSubscripts(t, arraySubscript, ref, 1)
	st.ReplaceValue = datum.FromInt32(9)
	res, isnull = rw, false
	_, err = m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.NoError(t, m.Assign(st, &res, &isnull))
	assert.True(t, datum.Same(rw, res))
	ea, err := datum.ArrayOf(rw)
	require.NoError(t, err)
	assert.Equal(t, int32(9), ea.Elems[0].Int32())

	// null subscript: hard and soft
	st, m = setupSubscripts(t, arraySubscript, ref, nil)
	res, isnull = datum.FromRef(orig), false
	_, err = m.CheckSubscripts(st, &res, &isnull)
	assert.Equal(t, pgerr.CodeNullValueNotAllowed, pgerr.GetCode(err))

	st, m = setupSubscripts(t, arraySubscript, ref, nil)
	st.ErrorSave = &pgerr.ErrorSaveContext{}
	res, isnull = datum.FromRef(orig), false
	ok, err = m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, isnull)
	assert.True(t, st.ErrorSave.HasError())
}

func TestArraySubscriptLimits(t *testing.T) {
	var upper []expr.Node
	for i := 0; i <= datum.MaxDims; i++ {
		upper = append(upper, expr.Int4(1))
	}
	ref := subscriptRef(oid.T__int4, oid.T_int4, upper, nil, nil)
	var m SubscriptExecSteps
	err := arraySubscript.ExecSetup(ref, NewSubscriptState(ref), &m)
	assert.Equal(t, pgerr.CodeProgramLimitExceeded, pgerr.GetCode(err))
}

func TestArraySlice(t *testing.T) {
	var vals []datum.Datum
	for i := 1; i <= 5; i++ {
		vals = append(vals, datum.FromInt32(int32(i)))
	}
	arr := datum.FromRef(datum.NewArray(oid.T_int4, vals, nil))
	// a[2:]
	ref := subscriptRef(oid.T__int4, oid.T__int4, []expr.Node{nil}, []expr.Node{expr.Int4(2)}, nil)
	st := NewSubscriptState(ref)
	var m SubscriptExecSteps
	require.NoError(t, arraySubscript.ExecSetup(ref, st, &m))
	st.UpperNull[0] = true
	st.LowerProvided[0] = true
	st.LowerIndex[0] = datum.FromInt32(2)
	res, isnull := arr, false
	ok, err := m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, m.Fetch(st, &res, &isnull))
	a, err := datum.ArrayOf(res)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Len())
	assert.Equal(t, int32(2), a.Elems[0].Int32())
}

func TestPointSubscript(t *testing.T) {
	pt := datum.FromRef(&datum.Point{X: 1.5, Y: -2})
	ref := subscriptRef(oid.T_point, oid.T_float8, []expr.Node{expr.Int4(0)}, nil, nil)
	st, m := setupSubscripts(t, pointSubscript, ref, 1)
	res, isnull := pt, false
	_, err := m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.NoError(t, m.Fetch(st, &res, &isnull))
	assert.Equal(t, -2.0, res.Float64())

	ref.Lower = []expr.Node{expr.Int4(0)}
	var steps SubscriptExecSteps
	err = pointSubscript.ExecSetup(ref, NewSubscriptState(ref), &steps)
	assert.Equal(t, pgerr.CodeFeatureNotSupported, pgerr.GetCode(err))

	ref = subscriptRef(oid.T_point, oid.T_float8, []expr.Node{expr.Int4(0)}, nil, expr.NullConst(oid.T_float8))
	st, m = setupSubscripts(t, pointSubscript, ref, 0)
	st.ReplaceNull = true
	res, isnull = pt, false
	_, err = m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.NoError(t, m.Assign(st, &res, &isnull))
	assert.True(t, datum.Same(pt, res))
}

func jsonb(t *testing.T, s string) datum.Datum {
	t.Helper()
	j, err := datum.ParseJSON(s, false)
	require.NoError(t, err)
	return datum.FromRef(j)
}

func assertJSON(t *testing.T, want string, got datum.Datum) {
	t.Helper()
	g, err := JSONBOf(got)
	require.NoError(t, err)
	w, err := datum.ParseJSON(want, false)
	require.NoError(t, err)
	assert.True(t, datum.JSONEqual(w.V, g.V), "want %s got %s", want, g.String())
}

func TestJSONBSubscript(t *testing.T) {
	doc := jsonb(t, `{"a": [1, 2, {"b": "x"}]}`)
	ref := subscriptRef(oid.T_jsonb, oid.T_jsonb, []expr.Node{expr.Text(""), expr.Int4(0), expr.Text("")}, nil, nil)
	st, m := setupSubscripts(t, jsonbSubscript, ref, "a", -1, "b")
	res, isnull := doc, false
	ok, err := m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, m.Fetch(st, &res, &isnull))
	assertJSON(t, `"x"`, res)

	st, m = setupSubscripts(t, jsonbSubscript, ref, "a", 9, "b")
	res, isnull = doc, false
	_, err = m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.NoError(t, m.Fetch(st, &res, &isnull))
	assert.True(t, isnull)

	bad := subscriptRef(oid.T_jsonb, oid.T_jsonb, []expr.Node{expr.Bool(true)}, nil, nil)
	var steps SubscriptExecSteps
	err = jsonbSubscript.ExecSetup(bad, NewSubscriptState(bad), &steps)
	assert.Equal(t, pgerr.CodeDatatypeMismatch, pgerr.GetCode(err))
}

func TestJSONBSubscriptAssign(t *testing.T) {
	ref := subscriptRef(oid.T_jsonb, oid.T_jsonb, []expr.Node{expr.Text(""), expr.Int4(0)}, nil, expr.NullConst(oid.T_jsonb))

	doc := jsonb(t, `{"a": 1}`)
	st, m := setupSubscripts(t, jsonbSubscript, ref, "b", 2)
	st.ReplaceValue = jsonb(t, `true`)
	res, isnull := doc, false
	_, err := m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.NoError(t, m.Assign(st, &res, &isnull))
	assertJSON(t, `{"a": 1, "b": [null, null, true]}`, res)
	// the input document is unchanged
	assertJSON(t, `{"a": 1}`, doc)

	ints := subscriptRef(oid.T_jsonb, oid.T_jsonb, []expr.Node{expr.Int4(0)}, nil, expr.NullConst(oid.T_jsonb))
	st, m = setupSubscripts(t, jsonbSubscript, ints, 1)
	st.ReplaceNull = true
	res, isnull = datum.Null, true
	_, err = m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	require.NoError(t, m.Assign(st, &res, &isnull))
	assertJSON(t, `[null, null]`, res)

	st, m = setupSubscripts(t, jsonbSubscript, ints, -5)
	st.ReplaceValue = jsonb(t, `1`)
	res, isnull = jsonb(t, `[1]`), false
	_, err = m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	assert.Equal(t, pgerr.CodeInvalidParameter, pgerr.GetCode(m.Assign(st, &res, &isnull)))

	st, m = setupSubscripts(t, jsonbSubscript, ints, 0)
	st.ReplaceValue = jsonb(t, `1`)
	res, isnull = jsonb(t, `"scalar"`), false
	_, err = m.CheckSubscripts(st, &res, &isnull)
	require.NoError(t, err)
	assert.Equal(t, pgerr.CodeInvalidParameter, pgerr.GetCode(m.Assign(st, &res, &isnull)))
}

type aggContext struct{ ctx *mcxt.Context }

func (a aggContext) AggMemoryContext() *mcxt.Context { return a.ctx }

func TestArrayAgg(t *testing.T) {
	m := NewMemory()
	ac := aggContext{mcxt.New(nil, "agg")}
	fi, err := m.Func(FnArrayAggTran)
	require.NoError(t, err)
	fi.Expr = &expr.Aggref{FnOid: AggArrayAgg, ArgTypes: []oid.Oid{oid.T_int4}}

	state := arg(nil)
	for _, v := range []any{1, nil, 3} {
		fc := fmgr.NewCallInfo(fi, 2, 0, ac)
		fc.Args[0] = state
		fc.Args[1] = arg(v)
		next, err := fc.Invoke()
		require.NoError(t, err)
		state = datum.NullableDatum{Value: next, IsNull: fc.IsNull}
	}
	require.True(t, datum.IsExpandedRW(state.Value))
	e, _ := datum.ExpandedOf(state.Value)
	assert.Same(t, ac.ctx, e.Owner())

	out, isnull, err := invoke(t, m, FnArrayAggFin, ac, state.Value)
	require.NoError(t, err)
	require.False(t, isnull)
	assert.False(t, datum.IsExpandedRW(out))
	a, err := datum.ArrayOf(out)
	require.NoError(t, err)
	assert.Equal(t, oid.T_int4, a.ElemType)
	assert.Equal(t, 3, a.Len())
	assert.True(t, a.IsNull(1))

	_, _, err = invoke(t, m, FnArrayAggTran, nil, nil, 1)
	assert.Equal(t, pgerr.CodeInternal, pgerr.GetCode(err))
}

func TestStringAgg(t *testing.T) {
	m := NewMemory()
	ac := aggContext{mcxt.New(nil, "agg")}
	agg := func(state datum.NullableDatum, vals ...any) datum.NullableDatum {
		for _, v := range vals {
			next, isnull, err := invoke(t, m, FnStringAggTrans, ac, nullable(state), v, ",")
			require.NoError(t, err)
			state = datum.NullableDatum{Value: next, IsNull: isnull}
		}
		return state
	}
	s1 := agg(arg(nil), "a", nil, "b")
	s2 := agg(arg(nil), "c")

	// partial states survive serialization
	ser, _, err := invoke(t, m, FnStringAggSerial, ac, s2.Value)
	require.NoError(t, err)
	de, _, err := invoke(t, m, FnStringAggDeser, ac, ser, nil)
	require.NoError(t, err)

	comb, isnull, err := invoke(t, m, FnStringAggCombine, ac, s1.Value, de)
	require.NoError(t, err)
	require.False(t, isnull)
	out, _, err := invoke(t, m, FnStringAggFinal, ac, comb)
	require.NoError(t, err)
	assert.Equal(t, "a,b,c", text(t, out))

	_, isnull, err = invoke(t, m, FnStringAggFinal, ac, nil)
	require.NoError(t, err)
	assert.True(t, isnull)
}

// nullable converts a call state back into an
// invoke argument.
func nullable(d datum.NullableDatum) any {
	if d.IsNull {
		return nil
	}
	return d.Value
}

func TestAggregateCatalog(t *testing.T) {
	m := NewMemory()
	a, err := m.Aggregate(AggCountStar)
	require.NoError(t, err)
	assert.True(t, a.HasInit)
	assert.Equal(t, FnInt8Inc, a.TransFn)

	s, err := m.Aggregate(AggSumInt4)
	require.NoError(t, err)
	assert.False(t, s.HasInit)
	fi, err := m.Func(s.TransFn)
	require.NoError(t, err)
	assert.False(t, fi.Strict)

	v, _, err := invoke(t, m, FnInt4Sum, nil, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int64())
}

func TestExprFunc(t *testing.T) {
	m := NewMemory()
	double := m.NewOid()
	require.NoError(t, m.AddExprFunc("double_it", double, []oid.Oid{oid.T_int4}, oid.T_int4, "arg1 * 2", true))
	v, _, err := invoke(t, m, double, nil, 21)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v.Int32())

	fi, err := m.Func(double)
	require.NoError(t, err)
	assert.Equal(t, "expr", fi.Language)
	assert.True(t, fi.Track)

	shout := m.NewOid()
	require.NoError(t, m.AddExprFunc("shout", shout, []oid.Oid{oid.T_text}, oid.T_text, `upper(arg1) + "!"`, true))
	v, _, err = invoke(t, m, shout, nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "HI!", text(t, v))

	orZero := m.NewOid()
	require.NoError(t, m.AddExprFunc("or_zero", orZero, []oid.Oid{oid.T_int4}, oid.T_int4, "arg1 ?? 0", false))
	v, isnull, err := invoke(t, m, orZero, nil, nil)
	require.NoError(t, err)
	assert.False(t, isnull)
	assert.Equal(t, int32(0), v.Int32())

	err = m.AddExprFunc("broken", m.NewOid(), nil, oid.T_int4, "1 +", true)
	assert.Equal(t, pgerr.CodeSyntaxError, pgerr.GetCode(err))
}
