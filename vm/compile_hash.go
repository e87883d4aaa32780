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
	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

// withOuter returns a copy of parent whose
// outer slot is described by desc and ops.
func withOuter(parent *Parent, desc *tuple.Desc, ops tuple.SlotOps) *Parent {
	p := *parent
	if desc != nil || ops != nil {
		p.Outer = SlotInfo{Desc: desc, Ops: ops, Fixed: desc != nil && ops != nil}
	}
	return &p
}

// CompileHash32 compiles a program computing a
// 32-bit hash over exprs, evaluated against the
// outer slot. The running hash is rotated left
// by one bit before each further key is mixed in.
//
// With keepNulls set, a null key whose opStrict
// entry is set makes the whole result null.
// Otherwise a null key contributes nothing and
// the running hash is still rotated.
func CompileHash32(desc *tuple.Desc, ops tuple.SlotOps, hashFuncs []oid.Oid, collations []oid.Oid,
	exprs []expr.Node, opStrict []bool, parent *Parent, initValue uint32, keepNulls bool) (*ExprState, error) {
	if len(hashFuncs) != len(exprs) || len(opStrict) != len(exprs) {
		return nil, pgerr.Invariant("hash program with %d functions for %d keys", len(hashFuncs), len(exprs))
	}
	if parent == nil || parent.Catalog == nil {
		return nil, pgerr.Invariant("expression compiled without a catalog")
	}
	st := newState(nil, withOuter(parent, desc, ops))
	if err := st.setup(exprs); err != nil {
		return nil, err
	}
	iresult := new(datum.NullableDatum)
	if len(exprs) == 0 || initValue != 0 {
		s := Step{Op: OpHashDatumSetInitVal, D: &hashInitOp{init: initValue}}
		if len(exprs) > 0 {
			s.ResValue, s.ResNull = &iresult.Value, &iresult.IsNull
		}
		st.push(s)
	}
	var adjust []int
	for i, e := range exprs {
		fi, err := st.cat.Func(hashFuncs[i])
		if err != nil {
			return nil, err
		}
		fi.Expr = e
		var coll oid.Oid
		if i < len(collations) {
			coll = collations[i]
		}
		d := &hashOp{
			fc:       fmgr.NewCallInfo(fi, 1, coll, nil),
			fn:       fi.Addr,
			iresult:  iresult,
			jumpdone: noJump,
		}
		if err := st.compile(e, &d.fc.Args[0].Value, &d.fc.Args[0].IsNull); err != nil {
			return nil, err
		}
		strict := opStrict[i] && keepNulls
		first := i == 0 && initValue == 0
		s := Step{D: d}
		switch {
		case first && strict:
			s.Op = OpHashDatumFirstStrict
		case first:
			s.Op = OpHashDatumFirst
		case strict:
			s.Op = OpHashDatumNext32Strict
		default:
			s.Op = OpHashDatumNext32
		}
		if i < len(exprs)-1 {
			s.ResValue, s.ResNull = &iresult.Value, &iresult.IsNull
		}
		if strict {
			d.jumpdone = unpatched
			adjust = append(adjust, st.push(s))
		} else {
			st.push(s)
		}
	}
	st.patch(adjust)
	st.push(Step{Op: OpDone})
	return st, st.Ready()
}

// CompileGroupingEqual compiles a qual that is
// true when the inner and outer tuples agree on
// the 1-based keyCols, with nulls comparing equal.
// Columns are compared last to first.
// No key columns compile to a nil program.
func CompileGroupingEqual(ldesc, rdesc *tuple.Desc, lops, rops tuple.SlotOps, keyCols []int,
	eqFuncs []oid.Oid, collations []oid.Oid, parent *Parent) (*ExprState, error) {
	if len(keyCols) == 0 {
		return nil, nil
	}
	order := make([]int, len(keyCols))
	for i := range order {
		order[i] = len(keyCols) - 1 - i
	}
	return compileKeyEqual(ldesc, rdesc, lops, rops, keyCols, order, eqFuncs, collations, parent)
}

// CompileParamSetEqual compiles a qual that
// compares the inner and outer tuples holding
// the values of paramExprs, column by column
// in order.
func CompileParamSetEqual(desc *tuple.Desc, lops, rops tuple.SlotOps, eqFuncs []oid.Oid,
	collations []oid.Oid, paramExprs []expr.Node, parent *Parent) (*ExprState, error) {
	if len(paramExprs) == 0 {
		return nil, nil
	}
	cols := make([]int, len(paramExprs))
	order := make([]int, len(paramExprs))
	for i := range cols {
		cols[i], order[i] = i+1, i
	}
	return compileKeyEqual(desc, desc, lops, rops, cols, order, eqFuncs, collations, parent)
}

func compileKeyEqual(ldesc, rdesc *tuple.Desc, lops, rops tuple.SlotOps, keyCols, order []int,
	eqFuncs []oid.Oid, collations []oid.Oid, parent *Parent) (*ExprState, error) {
	if len(eqFuncs) != len(keyCols) {
		return nil, pgerr.Invariant("equality program with %d functions for %d keys", len(eqFuncs), len(keyCols))
	}
	if parent == nil || parent.Catalog == nil {
		return nil, pgerr.Invariant("expression compiled without a catalog")
	}
	st := newState(nil, parent)
	st.Flags |= FlagIsQual
	last := 0
	for _, c := range keyCols {
		if c <= 0 {
			return nil, pgerr.Invariant("invalid key column %d", c)
		}
		last = max(last, c)
	}
	st.pushFetch(expr.SourceInner, last, ldesc, lops)
	st.pushFetch(expr.SourceOuter, last, rdesc, rops)

	var adjust []int
	for _, i := range order {
		col := keyCols[i]
		fi, err := st.cat.Func(eqFuncs[i])
		if err != nil {
			return nil, err
		}
		var coll oid.Oid
		if i < len(collations) {
			coll = collations[i]
		}
		d := &funcOp{fi: fi, fc: fmgr.NewCallInfo(fi, 2, coll, nil), fn: fi.Addr, nargs: 2}
		var typ oid.Oid
		if ldesc != nil && col <= ldesc.NumAttrs() {
			typ = ldesc.Attr(col).Type
		}
		st.push(Step{Op: OpInnerVar, ResValue: &d.fc.Args[0].Value, ResNull: &d.fc.Args[0].IsNull,
			D: &varOp{attnum: col - 1, vartype: typ}})
		st.push(Step{Op: OpOuterVar, ResValue: &d.fc.Args[1].Value, ResNull: &d.fc.Args[1].IsNull,
			D: &varOp{attnum: col - 1, vartype: typ}})
		st.push(Step{Op: OpNotDistinct, D: d})
		adjust = append(adjust, st.push(Step{Op: OpQual, D: &qualOp{jumpdone: unpatched}}))
	}
	st.patch(adjust)
	st.push(Step{Op: OpDone})
	return st, st.Ready()
}
