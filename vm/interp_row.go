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
	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"
	"golang.org/x/exp/slices"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

func errRowTypeMismatch() error {
	return pgerr.Newf(pgerr.CodeDatatypeMismatch, "table row type and query-specified row type do not match")
}

func execWholeRow(st *ExprState, s *Step, pc int) int {
	d := s.D.(*wholeRowOp)
	slot := st.slot(d.v.Source)
	if slot == nil {
		return st.fail(errNoSlot(d.v.Source))
	}
	if d.first {
		if err := st.initWholeRow(d, slot); err != nil {
			return st.fail(err)
		}
		d.first = false
	}
	if err := slot.GetAllAttrs(); err != nil {
		return st.fail(err)
	}
	values, nulls := slot.Values, slot.IsNull
	if d.keep != nil {
		values = make([]datum.Datum, 0, len(values))
		nulls = make([]bool, 0, len(nulls))
		for i, k := range d.keep {
			if k {
				values = append(values, slot.Values[i])
				nulls = append(nulls, slot.IsNull[i])
			}
		}
	}
	if d.dropped != nil {
		nulls = slices.Clone(nulls)
		for i, dropped := range d.dropped {
			if dropped && i < len(nulls) {
				nulls[i] = true
			}
		}
	}
	rec := datum.NewRecord(d.desc.TypeID, d.desc.TypMod, values, nulls)
	setResult(s, datum.FromRef(rec), false)
	return pc + 1
}

// initWholeRow resolves the output row type of
// a whole-row reference on its first use, when
// the slot descriptor is known.
func (st *ExprState) initWholeRow(d *wholeRowOp, slot *tuple.Slot) error {
	sd := slot.Desc
	if sd == nil {
		return pgerr.Invariant("whole-row reference to a slot without descriptor")
	}
	var attrs []tuple.Attr
	if d.junk != nil {
		d.keep = make([]bool, sd.NumAttrs())
		for i := range d.keep {
			d.keep[i] = i >= len(d.junk) || !d.junk[i].Junk
		}
	}
	for i := range sd.Attrs {
		if d.keep == nil || d.keep[i] {
			attrs = append(attrs, sd.Attrs[i])
		}
	}
	if d.v.VarType != oid.T_record {
		desc, err := st.cat.RowDesc(d.v.VarType, -1)
		if err != nil {
			return err
		}
		if desc.NumAttrs() != len(attrs) {
			return errors.WithDetailf(errRowTypeMismatch(),
				"Table row contains %d attributes, but query expects %d.", len(attrs), desc.NumAttrs())
		}
		d.dropped = make([]bool, len(attrs))
		for i := range attrs {
			want := desc.Attr(i + 1)
			if want.Dropped {
				d.dropped[i] = true
				continue
			}
			if attrs[i].Type != want.Type {
				return errors.WithDetailf(errRowTypeMismatch(),
					"Table has type %s at ordinal position %d, but query expects %s.",
					expr.TypeName(attrs[i].Type), i+1, expr.TypeName(want.Type))
			}
		}
		d.desc = desc
		return nil
	}
	for i := range attrs {
		if attrs[i].Dropped {
			if d.dropped == nil {
				d.dropped = make([]bool, len(attrs))
			}
			d.dropped[i] = true
		}
	}
	d.desc = st.cat.Bless(tuple.NewDesc(oid.T_record, attrs...))
	return nil
}

func execRow(st *ExprState, s *Step, pc int) int {
	d := s.D.(*rowOp)
	rec := datum.NewRecord(d.desc.TypeID, d.desc.TypMod, d.values, d.nulls)
	setResult(s, datum.FromRef(rec), false)
	return pc + 1
}

func execRowCompareStep(st *ExprState, s *Step, pc int) int {
	d := s.D.(*rowCompareStepOp)
	fc := d.fc
	if fc.Flinfo.Strict && (fc.Args[0].IsNull || fc.Args[1].IsNull) {
		setNull(s)
		return d.jumpnull
	}
	fc.IsNull = false
	v, err := d.fn(fc)
	if err != nil {
		return st.fail(err)
	}
	if fc.IsNull {
		setNull(s)
		return d.jumpnull
	}
	setResult(s, datum.FromInt32(v.Int32()), false)
	if v.Int32() != 0 {
		return d.jumpdone
	}
	return pc + 1
}

func execRowCompareFinal(st *ExprState, s *Step, pc int) int {
	d := s.D.(*rowCompareFinalOp)
	cmp := s.ResValue.Int32()
	var b bool
	switch d.cmp {
	case expr.RowCompareLT:
		b = cmp < 0
	case expr.RowCompareLE:
		b = cmp <= 0
	case expr.RowCompareEQ:
		b = cmp == 0
	case expr.RowCompareGE:
		b = cmp >= 0
	case expr.RowCompareGT:
		b = cmp > 0
	case expr.RowCompareNE:
		b = cmp != 0
	default:
		return st.fail(pgerr.Invariant("unrecognized row comparison %d", d.cmp))
	}
	setBool(s, b)
	return pc + 1
}

func execFieldSelect(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		return pc + 1
	}
	d := s.D.(*fieldSelectOp)
	rec, err := datum.RecordOf(*s.ResValue)
	if err != nil {
		return st.fail(pgerr.Invariant("%v", err))
	}
	desc, _, err := d.cache.get(st.cat, rec.TypeID, rec.TypMod)
	if err != nil {
		return st.fail(err)
	}
	if d.fieldnum <= 0 || d.fieldnum > desc.NumAttrs() {
		return st.fail(pgerr.Invariant("attribute number %d exceeds number of columns %d", d.fieldnum, desc.NumAttrs()))
	}
	a := desc.Attr(d.fieldnum)
	if a.Dropped {
		setNull(s)
		return pc + 1
	}
	if a.Type != d.resultType {
		return st.fail(errors.WithDetailf(
			pgerr.Newf(pgerr.CodeDatatypeMismatch, "attribute %d has wrong type", d.fieldnum),
			"Table has type %s, but query expects %s.", expr.TypeName(a.Type), expr.TypeName(d.resultType)))
	}
	v, isnull := rec.Field(d.fieldnum - 1)
	setResult(s, v, isnull)
	return pc + 1
}

func execFieldStoreDeform(st *ExprState, s *Step, pc int) int {
	d := s.D.(*fieldStoreOp)
	desc, _, err := d.cache.get(st.cat, d.node.ResultType, -1)
	if err != nil {
		return st.fail(err)
	}
	if desc.NumAttrs() > len(d.values) {
		return st.fail(pgerr.Invariant("too many columns in composite type %s", expr.TypeName(d.node.ResultType)))
	}
	if *s.ResNull {
		for i := range d.values {
			d.values[i] = datum.Null
			d.nulls[i] = true
		}
		return pc + 1
	}
	rec, err := datum.RecordOf(*s.ResValue)
	if err != nil {
		return st.fail(pgerr.Invariant("%v", err))
	}
	for i := range d.values {
		d.values[i], d.nulls[i] = rec.Field(i)
	}
	return pc + 1
}

func execFieldStoreForm(st *ExprState, s *Step, pc int) int {
	d := s.D.(*fieldStoreOp)
	desc, _, err := d.cache.get(st.cat, d.node.ResultType, -1)
	if err != nil {
		return st.fail(err)
	}
	n := desc.NumAttrs()
	rec := datum.NewRecord(desc.TypeID, desc.TypMod, d.values[:n], d.nulls[:n])
	setResult(s, datum.FromRef(rec), false)
	return pc + 1
}

func execConvertRowtype(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		return pc + 1
	}
	d := s.D.(*convertRowtypeOp)
	rec, err := datum.RecordOf(*s.ResValue)
	if err != nil {
		return st.fail(pgerr.Invariant("%v", err))
	}
	in, inChanged, err := d.in.get(st.cat, d.inType, -1)
	if err != nil {
		return st.fail(err)
	}
	out, outChanged, err := d.out.get(st.cat, d.outType, -1)
	if err != nil {
		return st.fail(err)
	}
	if inChanged || outChanged || d.mapping == nil {
		d.mapping, err = convertMapping(in, out)
		if err != nil {
			return st.fail(err)
		}
	}
	values := make([]datum.Datum, out.NumAttrs())
	nulls := make([]bool, out.NumAttrs())
	for i, src := range d.mapping {
		if src < 0 {
			nulls[i] = true
			continue
		}
		values[i], nulls[i] = rec.Field(src)
	}
	setResult(s, datum.FromRef(datum.NewRecord(out.TypeID, out.TypMod, values, nulls)), false)
	return pc + 1
}

// convertMapping matches the live columns of
// out to the columns of in by name.
func convertMapping(in, out *tuple.Desc) ([]int, error) {
	m := make([]int, out.NumAttrs())
	for i := range out.Attrs {
		m[i] = -1
		oa := &out.Attrs[i]
		if oa.Dropped {
			continue
		}
		found := false
		for j := range in.Attrs {
			ia := &in.Attrs[j]
			if ia.Dropped || ia.Name != oa.Name {
				continue
			}
			if ia.Type != oa.Type {
				return nil, errors.WithDetailf(
					pgerr.Newf(pgerr.CodeDatatypeMismatch, "could not convert row type"),
					"Attribute %q of type %s does not match corresponding attribute of type %s.",
					oa.Name, expr.TypeName(in.TypeID), expr.TypeName(out.TypeID))
			}
			m[i] = j
			found = true
			break
		}
		if !found {
			return nil, errors.WithDetailf(
				pgerr.Newf(pgerr.CodeDatatypeMismatch, "could not convert row type"),
				"Attribute %q of type %s does not exist in type %s.",
				oa.Name, expr.TypeName(out.TypeID), expr.TypeName(in.TypeID))
		}
	}
	return m, nil
}
