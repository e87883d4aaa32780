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
	"math/bits"

	"golang.org/x/exp/slices"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
)

func execIOCoerce(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		return pc + 1
	}
	d := s.D.(*ioCoerceOp)
	v, isnull, err := ioCoerce(d, *s.ResValue)
	if err != nil {
		return st.fail(err)
	}
	setResult(s, v, isnull)
	return pc + 1
}

// execIOCoerceSafe is execIOCoerce with the input
// function called in soft-error mode.
func execIOCoerceSafe(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		return pc + 1
	}
	d := s.D.(*ioCoerceOp)
	v, isnull, err := ioCoerce(d, *s.ResValue)
	if err != nil {
		if err = st.softError(err); err != nil {
			return st.fail(err)
		}
		setNull(s)
		return pc + 1
	}
	if st.escontext.HasError() {
		isnull = true
	}
	setResult(s, v, isnull)
	return pc + 1
}

func ioCoerce(d *ioCoerceOp, v datum.Datum) (datum.Datum, bool, error) {
	d.out.Args[0] = datum.NullableDatum{Value: v}
	str, err := d.out.Invoke()
	if err != nil {
		return datum.Null, true, err
	}
	d.in.Args[0] = datum.NullableDatum{Value: str}
	d.in.Args[1] = datum.NullableDatum{Value: datum.FromOid(d.ioparam)}
	d.in.Args[2] = datum.NullableDatum{Value: datum.FromInt32(d.typmod)}
	res, err := d.in.Invoke()
	if err != nil {
		return datum.Null, true, err
	}
	return res, d.in.IsNull, nil
}

func errArrayDims() error {
	return pgerr.Newf(pgerr.CodeArraySubscript,
		"multidimensional arrays must have array expressions with matching dimensions")
}

func execArrayExpr(st *ExprState, s *Step, pc int) int {
	d := s.D.(*arrayExprOp)
	if !d.multiDims {
		arr := datum.NewArray(d.elemType, slices.Clone(d.values), slices.Clone(d.nulls))
		setResult(s, datum.FromRef(arr), false)
		return pc + 1
	}
	// every element is itself an array; null and
	// empty elements count as empty sub-arrays
	var (
		dims, lbs []int
		elems     []datum.Datum
		nulls     []bool
		nsub      int
		haveEmpty bool
	)
	for i := range d.values {
		if d.nulls[i] {
			haveEmpty = true
			continue
		}
		sub, err := datum.ArrayOf(d.values[i])
		if err != nil {
			return st.fail(pgerr.Invariant("%v", err))
		}
		if sub.NDim() == 0 {
			haveEmpty = true
			continue
		}
		if nsub == 0 {
			if sub.NDim()+1 > datum.MaxDims {
				return st.fail(pgerr.Newf(pgerr.CodeProgramLimitExceeded,
					"number of array dimensions (%d) exceeds the maximum allowed (%d)", sub.NDim()+1, datum.MaxDims))
			}
			dims, lbs = sub.Dims, sub.LBound
		} else if !slices.Equal(dims, sub.Dims) || !slices.Equal(lbs, sub.LBound) {
			return st.fail(errArrayDims())
		}
		elems = append(elems, sub.Elems...)
		for j := range sub.Elems {
			nulls = append(nulls, sub.IsNull(j))
		}
		nsub++
	}
	if nsub == 0 {
		setResult(s, datum.FromRef(datum.EmptyArray(d.elemType)), false)
		return pc + 1
	}
	if haveEmpty {
		return st.fail(errArrayDims())
	}
	arr := &datum.Array{
		ElemType: d.elemType,
		Dims:     append([]int{nsub}, dims...),
		LBound:   append([]int{1}, lbs...),
		Elems:    elems,
	}
	if slices.Contains(nulls, true) {
		arr.Nulls = nulls
	}
	setResult(s, datum.FromRef(arr), false)
	return pc + 1
}

func execArrayCoerce(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		return pc + 1
	}
	d := s.D.(*arrayCoerceOp)
	arr, err := datum.ArrayOf(*s.ResValue)
	if err != nil {
		return st.fail(pgerr.Invariant("%v", err))
	}
	out := arr.Copy()
	out.ElemType = d.resultElem
	if d.elem == nil {
		setResult(s, datum.FromRef(out), false)
		return pc + 1
	}
	nulls := make([]bool, len(out.Elems))
	for i := range out.Elems {
		d.value, d.isnull = arr.Elems[i], arr.IsNull(i)
		v, isnull, err := d.elem.Eval(st.ec)
		if err != nil {
			return st.fail(err)
		}
		out.Elems[i], nulls[i] = v, isnull
	}
	out.Nulls = nil
	if slices.Contains(nulls, true) {
		out.Nulls = nulls
	}
	setResult(s, datum.FromRef(out), false)
	return pc + 1
}

func execMinMax(st *ExprState, s *Step, pc int) int {
	d := s.D.(*minMaxOp)
	fc := d.fc
	setNull(s)
	for i := range d.values {
		if d.nulls[i] {
			continue
		}
		if *s.ResNull {
			setResult(s, d.values[i], false)
			continue
		}
		fc.Args[0] = datum.NullableDatum{Value: *s.ResValue}
		fc.Args[1] = datum.NullableDatum{Value: d.values[i]}
		cmp, err := fc.Invoke()
		if err != nil {
			return st.fail(err)
		}
		if fc.IsNull {
			continue
		}
		c := cmp.Int32()
		if (d.op == expr.IsGreatest && c < 0) || (d.op == expr.IsLeast && c > 0) {
			*s.ResValue = d.values[i]
		}
	}
	return pc + 1
}

func execSbsrefSubscripts(st *ExprState, s *Step, pc int) int {
	d := s.D.(*sbsrefSubscriptsOp)
	ok, err := d.check(d.state, s.ResValue, s.ResNull)
	if err != nil {
		return st.fail(err)
	}
	if !ok {
		return d.jumpdone
	}
	return pc + 1
}

// execSbsref runs SBSREF_OLD, SBSREF_ASSIGN
// and SBSREF_FETCH.
func execSbsref(st *ExprState, s *Step, pc int) int {
	d := s.D.(*sbsrefOp)
	if err := d.fn(d.state, s.ResValue, s.ResNull); err != nil {
		return st.fail(err)
	}
	return pc + 1
}

func execDomainNotNull(st *ExprState, s *Step, pc int) int {
	if !*s.ResNull {
		return pc + 1
	}
	d := s.D.(*domainNotNullOp)
	err := pgerr.Newf(pgerr.CodeNotNullViolation, "domain %s does not allow null values", d.name)
	if err = st.softError(err); err != nil {
		return st.fail(err)
	}
	return pc + 1
}

func execDomainCheck(st *ExprState, s *Step, pc int) int {
	d := s.D.(*domainCheckOp)
	if *d.checkNull || d.checkValue.Bool() {
		return pc + 1
	}
	err := pgerr.Newf(pgerr.CodeCheckViolation,
		"value for domain %s violates check constraint %q", d.name, d.constraint)
	if err = st.softError(err); err != nil {
		return st.fail(err)
	}
	setNull(s)
	return pc + 1
}

func execHashSetInitVal(st *ExprState, s *Step, pc int) int {
	setResult(s, datum.FromUint32(s.D.(*hashInitOp).init), false)
	return pc + 1
}

func hashArg(d *hashOp) (uint32, error) {
	d.fc.IsNull = false
	v, err := d.fn(d.fc)
	if err != nil {
		return 0, err
	}
	return v.Uint32(), nil
}

func execHashFirst(st *ExprState, s *Step, pc int) int {
	d := s.D.(*hashOp)
	var h uint32
	if !d.fc.Args[0].IsNull {
		var err error
		if h, err = hashArg(d); err != nil {
			return st.fail(err)
		}
	}
	setResult(s, datum.FromUint32(h), false)
	return pc + 1
}

// strictHashNull makes the whole hash
// expression null.
func strictHashNull(st *ExprState, s *Step) int {
	setNull(s)
	st.Result, st.ResultNull = datum.Null, true
	return s.D.(*hashOp).jumpdone
}

func execHashFirstStrict(st *ExprState, s *Step, pc int) int {
	d := s.D.(*hashOp)
	if d.fc.Args[0].IsNull {
		return strictHashNull(st, s)
	}
	h, err := hashArg(d)
	if err != nil {
		return st.fail(err)
	}
	setResult(s, datum.FromUint32(h), false)
	return pc + 1
}

func execHashNext32(st *ExprState, s *Step, pc int) int {
	d := s.D.(*hashOp)
	h := bits.RotateLeft32(d.iresult.Value.Uint32(), 1)
	if !d.fc.Args[0].IsNull {
		eh, err := hashArg(d)
		if err != nil {
			return st.fail(err)
		}
		h ^= eh
	}
	setResult(s, datum.FromUint32(h), false)
	return pc + 1
}

func execHashNext32Strict(st *ExprState, s *Step, pc int) int {
	d := s.D.(*hashOp)
	if d.fc.Args[0].IsNull {
		return strictHashNull(st, s)
	}
	h := bits.RotateLeft32(d.iresult.Value.Uint32(), 1)
	eh, err := hashArg(d)
	if err != nil {
		return st.fail(err)
	}
	setResult(s, datum.FromUint32(h^eh), false)
	return pc + 1
}

// execScalarArrayOp evaluates "scalar op ANY/ALL
// (array)" with the scalar in the first argument
// and the array in the step result.
func execScalarArrayOp(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		return pc + 1
	}
	d := s.D.(*scalarArrayOp)
	arr, err := datum.ArrayOf(*s.ResValue)
	if err != nil {
		return st.fail(pgerr.Invariant("%v", err))
	}
	if arr.Len() == 0 {
		setBool(s, !d.useOr)
		return pc + 1
	}
	fc := d.fc
	strict := fc.Flinfo.Strict
	if strict && fc.Args[0].IsNull {
		setNull(s)
		return pc + 1
	}
	result, resultNull := !d.useOr, false
	for i := range arr.Elems {
		fc.Args[1] = datum.NullableDatum{Value: arr.Elems[i], IsNull: arr.IsNull(i)}
		var this, thisNull bool
		if strict && fc.Args[1].IsNull {
			thisNull = true
		} else {
			fc.IsNull = false
			v, err := d.fn(fc)
			if err != nil {
				return st.fail(err)
			}
			this, thisNull = v.Bool(), fc.IsNull
		}
		if thisNull {
			resultNull = true
		} else if this == d.useOr {
			result, resultNull = d.useOr, false
			break
		}
	}
	setResult(s, datum.FromBool(result), resultNull)
	return pc + 1
}

// saopTable is the hash table of the elements
// of a constant IN list.
type saopTable struct {
	buckets  map[uint32][]datum.Datum
	hasNulls bool
}

func hashDatum(fc *fmgr.CallInfo, v datum.Datum) (uint32, error) {
	fc.Args[0] = datum.NullableDatum{Value: v}
	h, err := fc.Invoke()
	if err != nil {
		return 0, err
	}
	return h.Uint32(), nil
}

func (d *hashedScalarArrayOp) build(v datum.Datum) error {
	arr, err := datum.ArrayOf(v)
	if err != nil {
		return pgerr.Invariant("%v", err)
	}
	t := &saopTable{buckets: make(map[uint32][]datum.Datum, arr.Len())}
	for i := range arr.Elems {
		if arr.IsNull(i) {
			t.hasNulls = true
			continue
		}
		h, err := hashDatum(d.hash, arr.Elems[i])
		if err != nil {
			return err
		}
		t.buckets[h] = append(t.buckets[h], arr.Elems[i])
	}
	d.table = t
	return nil
}

func execHashedScalarArrayOp(st *ExprState, s *Step, pc int) int {
	d := s.D.(*hashedScalarArrayOp)
	if *s.ResNull {
		return pc + 1
	}
	if d.table == nil {
		if err := d.build(*s.ResValue); err != nil {
			return st.fail(err)
		}
	}
	fc := d.fc
	scalar := fc.Args[0]
	if scalar.IsNull {
		setNull(s)
		return pc + 1
	}
	h, err := hashDatum(d.hash, scalar.Value)
	if err != nil {
		return st.fail(err)
	}
	found := false
	for _, e := range d.table.buckets[h] {
		fc.Args[0] = scalar
		fc.Args[1] = datum.NullableDatum{Value: e}
		fc.IsNull = false
		eq, err := d.fn(fc)
		if err != nil {
			return st.fail(err)
		}
		if !fc.IsNull && eq.Bool() {
			found = true
			break
		}
	}
	fc.Args[0] = scalar
	if !found && d.table.hasNulls {
		setNull(s)
		return pc + 1
	}
	setBool(s, found == d.inClause)
	return pc + 1
}

func execAggref(st *ExprState, s *Step, pc int) int {
	d := s.D.(*aggrefOp)
	ec := st.ec
	if ec == nil || d.aggno >= len(ec.AggValues) {
		return st.fail(pgerr.Invariant("no value for aggregate %d", d.aggno))
	}
	setResult(s, ec.AggValues[d.aggno], ec.AggNulls[d.aggno])
	return pc + 1
}

func execGroupingFunc(st *ExprState, s *Step, pc int) int {
	d := s.D.(*groupingOp)
	var grouped []int
	if st.ec != nil {
		grouped = st.ec.GroupedCols
	}
	result := int32(0)
	for _, r := range d.refs {
		result <<= 1
		if !slices.Contains(grouped, r) {
			result |= 1
		}
	}
	setResult(s, datum.FromInt32(result), false)
	return pc + 1
}

func execWindowFunc(st *ExprState, s *Step, pc int) int {
	d := s.D.(*windowOp)
	ec := st.ec
	if ec == nil || d.wfuncno >= len(ec.AggValues) {
		return st.fail(pgerr.Invariant("no value for window function %d", d.wfuncno))
	}
	setResult(s, ec.AggValues[d.wfuncno], ec.AggNulls[d.wfuncno])
	return pc + 1
}
