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
	"golang.org/x/exp/slices"

	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
)

func int4Array(vals ...int32) *expr.Const {
	ds := make([]datum.Datum, len(vals))
	for i, v := range vals {
		ds[i] = datum.FromInt32(v)
	}
	return expr.NewConst(oid.T__int4, datum.FromRef(datum.NewArray(oid.T_int4, ds, nil)))
}

func elemRef(container expr.Node, sub expr.Node) *expr.SubscriptingRef {
	return &expr.SubscriptingRef{
		ContainerType: oid.T__int4,
		ElemType:      oid.T_int4,
		RefType:       oid.T_int4,
		TypMod:        -1,
		Upper:         []expr.Node{sub},
		Expr:          container,
	}
}

func TestSubscriptFetch(t *testing.T) {
	cat := catalog.NewMemory()
	arr := int4Array(10, 20, 30)
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkInt(t, evalNode(t, elemRef(arr, expr.Int4(2)), p, nil), 20)
		checkInt(t, evalNode(t, elemRef(arr, expr.Int4(1)), p, nil), 10)
		checkNull(t, evalNode(t, elemRef(arr, expr.Int4(4)), p, nil))
		checkNull(t, evalNode(t, elemRef(arr, expr.Int4(0)), p, nil))
		checkNull(t, evalNode(t, elemRef(arr, int4Null()), p, nil))

		null := elemRef(expr.NullConst(oid.T__int4), expr.Int4(1))
		checkNull(t, evalNode(t, null, p, nil))
		st, err := Compile(null, p)
		if err != nil {
			t.Fatal(err)
		}
		checkProgram(t, st)
		ops := opNames(st)
		jn := slices.Index(ops, "jump.null")
		fetch := slices.Index(ops, "sbsref.fetch")
		if jn < 0 || fetch < 0 || jn > fetch {
			t.Errorf("program %v", ops)
		}
	})
}

func TestSubscriptAssign(t *testing.T) {
	cat := catalog.NewMemory()
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		src := int4Array(10, 20, 30)
		ref := elemRef(src, expr.Int4(2))
		ref.RefType = oid.T__int4
		ref.Assign = expr.Int4(99)
		got := evalNode(t, ref, p, nil)
		if got.isnull {
			t.Fatal("assignment returned null")
		}
		a, err := datum.ArrayOf(got.v)
		if err != nil {
			t.Fatal(err)
		}
		want := []int32{10, 99, 30}
		for i, w := range want {
			if v := a.Elems[i].Int32(); v != w {
				t.Errorf("element %d: got %d, want %d", i+1, v, w)
			}
		}
		// the constant itself is left alone
		orig, err := datum.ArrayOf(src.Value)
		if err != nil {
			t.Fatal(err)
		}
		if v := orig.Elems[1].Int32(); v != 20 {
			t.Errorf("constant modified: %d", v)
		}

		// assigning into null starts a new array
		ref = elemRef(expr.NullConst(oid.T__int4), expr.Int4(3))
		ref.RefType = oid.T__int4
		ref.Assign = expr.Int4(5)
		got = evalNode(t, ref, p, nil)
		if got.isnull {
			t.Fatal("assignment into null returned null")
		}
		a, err = datum.ArrayOf(got.v)
		if err != nil {
			t.Fatal(err)
		}
		if len(a.Elems) != 1 || a.Elems[0].Int32() != 5 || a.LBound[0] != 3 {
			t.Errorf("got %s", a)
		}
	})
}

func TestSubscriptUnsupported(t *testing.T) {
	cat := catalog.NewMemory()
	ref := &expr.SubscriptingRef{
		ContainerType: oid.T_int4,
		ElemType:      oid.T_int4,
		RefType:       oid.T_int4,
		TypMod:        -1,
		Upper:         []expr.Node{expr.Int4(1)},
		Expr:          expr.Int4(1),
	}
	if _, err := Compile(ref, NewParent(cat)); err == nil {
		t.Fatal("subscripting int4 compiled")
	}
}
