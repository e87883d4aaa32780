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
	"fmt"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

// attrFor describes a column of type typ.
func (st *ExprState) attrFor(name string, typ oid.Oid) tuple.Attr {
	a := tuple.Attr{Name: name, Type: typ, TypMod: -1, Len: -1, Align: 'i'}
	if ti, err := st.cat.Type(typ); err == nil {
		a.Len, a.ByVal, a.Align = ti.Len, ti.ByVal, ti.Align
	}
	return a
}

func (st *ExprState) compileRow(n *expr.RowExpr, res Step) error {
	var desc *tuple.Desc
	if n.RowType == oid.T_record {
		attrs := make([]tuple.Attr, len(n.Args))
		for i, a := range n.Args {
			name := fmt.Sprintf("f%d", i+1)
			if i < len(n.ColNames) && n.ColNames[i] != "" {
				name = n.ColNames[i]
			}
			attrs[i] = st.attrFor(name, a.Type())
		}
		desc = st.cat.Bless(tuple.NewDesc(oid.T_record, attrs...))
	} else {
		var err error
		desc, err = st.cat.RowDesc(n.RowType, -1)
		if err != nil {
			return err
		}
	}
	if len(n.Args) > desc.NumAttrs() {
		return pgerr.Invariant("ROW() has %d columns, type %s has %d",
			len(n.Args), expr.TypeName(n.RowType), desc.NumAttrs())
	}
	d := &rowOp{
		desc:   desc,
		values: make([]datum.Datum, desc.NumAttrs()),
		nulls:  make([]bool, desc.NumAttrs()),
	}
	// columns without an argument, and dropped
	// columns, stay null
	for i := range d.nulls {
		d.nulls[i] = true
	}
	for i, a := range n.Args {
		att := desc.Attr(i + 1)
		if att.Dropped {
			continue
		}
		if a.Type() != att.Type && n.RowType != oid.T_record {
			return pgerr.Newf(pgerr.CodeDatatypeMismatch, "ROW() column has type %s instead of type %s",
				expr.TypeName(a.Type()), expr.TypeName(att.Type))
		}
		if err := st.compile(a, &d.values[i], &d.nulls[i]); err != nil {
			return err
		}
	}
	res.Op = OpRow
	res.D = d
	st.push(res)
	return nil
}

// compileRowCompare emits one comparison step per
// column; the first unequal column decides the
// result, and a null comparison makes it null.
func (st *ExprState) compileRowCompare(n *expr.RowCompareExpr, res Step) error {
	ncols := len(n.LArgs)
	if len(n.RArgs) != ncols || len(n.CmpFuncs) != ncols {
		return pgerr.Invariant("row comparison with mismatched column counts")
	}
	var cols []*rowCompareStepOp
	for i := 0; i < ncols; i++ {
		if err := st.cat.CheckExecute(n.CmpFuncs[i]); err != nil {
			return err
		}
		fi, err := st.cat.Func(n.CmpFuncs[i])
		if err != nil {
			return err
		}
		fi.Expr = n
		var coll oid.Oid
		if i < len(n.Collations) {
			coll = n.Collations[i]
		}
		fc := fmgr.NewCallInfo(fi, 2, coll, nil)
		if err := st.compile(n.LArgs[i], &fc.Args[0].Value, &fc.Args[0].IsNull); err != nil {
			return err
		}
		if err := st.compile(n.RArgs[i], &fc.Args[1].Value, &fc.Args[1].IsNull); err != nil {
			return err
		}
		d := &rowCompareStepOp{fc: fc, fn: fi.Addr, jumpnull: unpatched, jumpdone: unpatched}
		s := res
		s.Op = OpRowCompareStep
		s.D = d
		st.push(s)
		cols = append(cols, d)
	}
	if ncols == 0 {
		s := res
		s.Op = OpConst
		s.D = &constOp{value: datum.FromInt32(0)}
		st.push(s)
	}
	final := res
	final.Op = OpRowCompareFinal
	final.D = &rowCompareFinalOp{cmp: n.Cmp}
	fpc := st.push(final)
	for _, d := range cols {
		d.jumpdone = fpc
		d.jumpnull = fpc + 1
	}
	return nil
}

func (st *ExprState) compileFieldStore(n *expr.FieldStore, res Step) error {
	if len(n.NewVals) != len(n.FieldNums) {
		return pgerr.Invariant("FieldStore with %d values for %d fields", len(n.NewVals), len(n.FieldNums))
	}
	desc, err := st.cat.RowDesc(n.ResultType, -1)
	if err != nil {
		return err
	}
	d := &fieldStoreOp{
		node:   n,
		cache:  new(rowTypeCache),
		values: make([]datum.Datum, desc.NumAttrs()),
		nulls:  make([]bool, desc.NumAttrs()),
	}
	if err := st.compile(n.Arg, res.ResValue, res.ResNull); err != nil {
		return err
	}
	deform := res
	deform.Op = OpFieldStoreDeform
	deform.D = d
	st.push(deform)

	savedValue, savedNull := st.caseValue, st.caseNull
	defer func() { st.caseValue, st.caseNull = savedValue, savedNull }()
	for i, nv := range n.NewVals {
		fn := n.FieldNums[i]
		if fn <= 0 || fn > len(d.values) {
			return pgerr.Invariant("field number %d is out of range in FieldStore", fn)
		}
		// nested assignments read the old field
		// value through a CaseTestExpr
		st.caseValue, st.caseNull = &d.values[fn-1], &d.nulls[fn-1]
		if err := st.compile(nv, &d.values[fn-1], &d.nulls[fn-1]); err != nil {
			return err
		}
	}
	form := res
	form.Op = OpFieldStoreForm
	form.D = d
	st.push(form)
	return nil
}
