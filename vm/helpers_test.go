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
	"github.com/postgres/postgres-sub049/tuple"
)

// evalMode is one way of running a program.
type evalMode struct {
	name     string
	dispatch string
	cost     float64
}

var evalModes = []evalMode{
	{name: "table", dispatch: "table"},
	{name: "threaded", dispatch: "threaded"},
	{name: "jit", dispatch: "jit", cost: 200000},
	{name: "jit-inline", dispatch: "jit", cost: 1e6},
}

func (m evalMode) config() *Config {
	c := DefaultConfig()
	c.Dispatch = m.dispatch
	return c
}

func (m evalMode) parent(cat catalog.Catalog, opts ...Option) *Parent {
	all := []Option{WithConfig(m.config()), WithCost(m.cost)}
	return NewParent(cat, append(all, opts...)...)
}

func eachMode(t *testing.T, fn func(t *testing.T, m evalMode)) {
	for _, m := range evalModes {
		m := m
		t.Run(m.name, func(t *testing.T) { fn(t, m) })
	}
}

// result is a (value, isnull) pair.
type result struct {
	v      datum.Datum
	isnull bool
}

func (r result) String() string {
	if r.isnull {
		return "null"
	}
	return r.v.String()
}

func evalNode(t *testing.T, n expr.Node, p *Parent, ec *ExprContext) result {
	t.Helper()
	st, err := Compile(n, p)
	if err != nil {
		t.Fatalf("compiling %s: %s", expr.ToString(n), err)
	}
	v, isnull, err := st.Eval(ec)
	if err != nil {
		t.Fatalf("evaluating %s: %s", expr.ToString(n), err)
	}
	return result{v, isnull}
}

func checkBool(t *testing.T, got result, want bool) {
	t.Helper()
	if got.isnull {
		t.Fatalf("got null, want %v", want)
	}
	if got.v.Bool() != want {
		t.Fatalf("got %v, want %v", got.v.Bool(), want)
	}
}

func checkInt(t *testing.T, got result, want int64) {
	t.Helper()
	if got.isnull {
		t.Fatalf("got null, want %d", want)
	}
	if got.v.Int64() != want {
		t.Fatalf("got %d, want %d", got.v.Int64(), want)
	}
}

func checkNull(t *testing.T, got result) {
	t.Helper()
	if !got.isnull {
		t.Fatalf("got %s, want null", got)
	}
}

func boolNull() *expr.Const { return expr.NullConst(oid.T_bool) }
func int4Null() *expr.Const { return expr.NullConst(oid.T_int4) }

func op(fn oid.Oid, name string, rtype oid.Oid, args ...expr.Node) *expr.OpExpr {
	return &expr.OpExpr{FuncID: fn, Name: name, ResultType: rtype, Args: args}
}

func int4gt(a, b expr.Node) *expr.OpExpr { return op(catalog.FnInt4Gt, ">", oid.T_bool, a, b) }
func int4lt(a, b expr.Node) *expr.OpExpr { return op(catalog.FnInt4Lt, "<", oid.T_bool, a, b) }
func int4eq(a, b expr.Node) *expr.OpExpr { return op(catalog.FnInt4Eq, "=", oid.T_bool, a, b) }
func int4pl(a, b expr.Node) *expr.OpExpr { return op(catalog.FnInt4Pl, "+", oid.T_int4, a, b) }
func int4mul(a, b expr.Node) *expr.OpExpr {
	return op(catalog.FnInt4Mul, "*", oid.T_int4, a, b)
}

func scanVar(attno int, typ oid.Oid) *expr.Var {
	return &expr.Var{Source: expr.SourceScan, AttNo: attno, VarType: typ, TypMod: -1}
}

func innerVar(attno int, typ oid.Oid) *expr.Var {
	return &expr.Var{Source: expr.SourceInner, AttNo: attno, VarType: typ, TypMod: -1}
}

func outerVar(attno int, typ oid.Oid) *expr.Var {
	return &expr.Var{Source: expr.SourceOuter, AttNo: attno, VarType: typ, TypMod: -1}
}

// cell is one column of a test row;
// a nil cell is null.
type cell = any

func toDatum(c cell) (datum.Datum, bool) {
	switch v := c.(type) {
	case nil:
		return datum.Null, true
	case int:
		return datum.FromInt32(int32(v)), false
	case int32:
		return datum.FromInt32(v), false
	case int64:
		return datum.FromInt64(v), false
	case bool:
		return datum.FromBool(v), false
	case string:
		return datum.FromText(v), false
	case datum.Datum:
		return v, false
	}
	panic("unsupported test cell")
}

// virtualSlot returns a virtual slot of desc
// holding row.
func virtualSlot(desc *tuple.Desc, row ...cell) *tuple.Slot {
	s := tuple.NewSlot(desc, tuple.Virtual)
	vals := make([]datum.Datum, len(row))
	nulls := make([]bool, len(row))
	for i, c := range row {
		vals[i], nulls[i] = toDatum(c)
	}
	s.StoreVirtual(vals, nulls)
	return s
}

// heapSlot returns a slot of desc holding row
// as a stored tuple that deforms lazily.
func heapSlot(desc *tuple.Desc, row ...cell) *tuple.Slot {
	s := tuple.NewSlot(desc, tuple.Heap)
	stored := make([]datum.NullableDatum, len(row))
	for i, c := range row {
		stored[i].Value, stored[i].IsNull = toDatum(c)
	}
	s.StoreTuple(stored, tuple.SysAttrs{})
	return s
}

func int4Desc(cat *catalog.Memory, names ...string) *tuple.Desc {
	attrs := make([]tuple.Attr, len(names))
	for i, n := range names {
		attrs[i] = cat.Attr(n, oid.T_int4)
	}
	return tuple.NewDesc(oid.T_record, attrs...)
}

func opNames(st *ExprState) []string {
	ops := st.Ops()
	out := make([]string, len(ops))
	for i := range ops {
		out[i] = ops[i].String()
	}
	return out
}

// checkProgram verifies the structural
// invariants every ready program satisfies.
func checkProgram(t *testing.T, st *ExprState) {
	t.Helper()
	if st.Flags&FlagInitialized == 0 {
		t.Fatal("program not ready")
	}
	n := st.Len()
	if n == 0 {
		t.Fatal("empty program")
	}
	for i := 0; i < n; i++ {
		s := st.Step(i)
		if s.ResValue == nil || s.ResNull == nil {
			t.Errorf("step %d (%s) has no result location", i, s.Op)
		}
		if j, ok := s.D.(jumper); ok {
			for _, target := range j.targets() {
				if *target == noJump {
					continue
				}
				if *target < 0 || *target >= n {
					t.Errorf("step %d (%s) jumps to %d", i, s.Op, *target)
				}
			}
		}
	}
	switch last := st.Step(n - 1).Op; last {
	case OpDone, OpDoneNoReturn:
	default:
		t.Errorf("program ends with %s", last)
	}
}
