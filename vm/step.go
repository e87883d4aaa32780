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

	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/tuple"
)

// Step is one instruction of a program.
//
// ResValue and ResNull name the cell the step
// writes. D points to the operand record of the
// opcode; operand records are allocated separately
// so that growing the step slice during compilation
// never moves them.
type Step struct {
	Op       Op
	fn       opfn
	ResValue *datum.Datum
	ResNull  *bool
	D        any
}

// unpatched is the placeholder of a jump target
// that has not been back-patched yet.
const unpatched = -1

// jumper is implemented by operand records
// holding jump targets.
type jumper interface {
	targets() []*int
}

// fetchOp: *_FETCHSOME
type fetchOp struct {
	last  int
	known bool
	desc  *tuple.Desc
	ops   tuple.SlotOps
}

// varOp: *_VAR, *_SYSVAR; attnum is 0-based
// for user columns and negative for system columns.
type varOp struct {
	attnum  int
	vartype oid.Oid
}

type wholeRowOp struct {
	v     *expr.Var
	first bool
	// keep is nil or selects the non-junk columns
	keep    []bool
	junk    []*expr.TargetEntry
	desc    *tuple.Desc
	dropped []bool
}

type assignVarOp struct {
	attnum    int
	resultnum int
}

type assignTmpOp struct {
	resultnum int
}

type constOp struct {
	value  datum.Datum
	isnull bool
}

type funcOp struct {
	fi    *fmgr.Info
	fc    *fmgr.CallInfo
	fn    fmgr.Function
	nargs int
}

type boolOp struct {
	anynull  *bool
	jumpdone int
}

func (b *boolOp) targets() []*int { return []*int{&b.jumpdone} }

type qualOp struct {
	jumpdone int
}

func (q *qualOp) targets() []*int { return []*int{&q.jumpdone} }

type jumpOp struct {
	target int
}

func (j *jumpOp) targets() []*int { return []*int{&j.target} }

type nullTestRowOp struct {
	cache rowTypeCache
}

type paramOp struct {
	id  int
	typ oid.Oid
}

type paramCallbackOp struct {
	fn  ParamCallback
	arg any
	id  int
	typ oid.Oid
}

// testValOp: CASE_TESTVAL, DOMAIN_TESTVAL and
// MAKE_READONLY; nil pointers read the value
// from the ExprContext.
type testValOp struct {
	value  *datum.Datum
	isnull *bool
}

type ioCoerceOp struct {
	out     *fmgr.CallInfo
	in      *fmgr.CallInfo
	ioparam oid.Oid
	typmod  int32
}

type arrayExprOp struct {
	values    []datum.Datum
	nulls     []bool
	elemType  oid.Oid
	multiDims bool
}

// arrayCoerceOp: elem reads each element
// through value and isnull; a nil elem only
// relabels the element type.
type arrayCoerceOp struct {
	elem       *ExprState
	resultElem oid.Oid
	value      datum.Datum
	isnull     bool
}

type rowOp struct {
	desc   *tuple.Desc
	values []datum.Datum
	nulls  []bool
}

type rowCompareStepOp struct {
	fc       *fmgr.CallInfo
	fn       fmgr.Function
	jumpnull int
	jumpdone int
}

func (r *rowCompareStepOp) targets() []*int { return []*int{&r.jumpnull, &r.jumpdone} }

type rowCompareFinalOp struct {
	cmp expr.RowCompareType
}

type minMaxOp struct {
	values []datum.Datum
	nulls  []bool
	op     expr.MinMaxOp
	fc     *fmgr.CallInfo
}

type fieldSelectOp struct {
	fieldnum   int
	resultType oid.Oid
	cache      rowTypeCache
}

type fieldStoreOp struct {
	node   *expr.FieldStore
	cache  *rowTypeCache
	values []datum.Datum
	nulls  []bool
}

type sbsrefSubscriptsOp struct {
	state    *catalog.SubscriptState
	check    func(st *catalog.SubscriptState, res *datum.Datum, isnull *bool) (bool, error)
	jumpdone int
}

func (s *sbsrefSubscriptsOp) targets() []*int { return []*int{&s.jumpdone} }

type sbsrefOp struct {
	state *catalog.SubscriptState
	fn    catalog.SubscriptFunc
}

type domainNotNullOp struct {
	typ  oid.Oid
	name string
}

type domainCheckOp struct {
	typ        oid.Oid
	name       string
	constraint string
	checkValue *datum.Datum
	checkNull  *bool
}

type hashInitOp struct {
	init uint32
}

type hashOp struct {
	fc       *fmgr.CallInfo
	fn       fmgr.Function
	iresult  *datum.NullableDatum
	jumpdone int
}

func (h *hashOp) targets() []*int {
	if h.jumpdone == noJump {
		return nil
	}
	return []*int{&h.jumpdone}
}

// noJump marks an optional jump that is absent.
const noJump = -2

type convertRowtypeOp struct {
	inType, outType oid.Oid
	in, out         rowTypeCache
	mapping         []int
}

type scalarArrayOp struct {
	fc    *fmgr.CallInfo
	fn    fmgr.Function
	useOr bool
}

type hashedScalarArrayOp struct {
	fc       *fmgr.CallInfo
	fn       fmgr.Function
	hash     *fmgr.CallInfo
	inClause bool
	table    *saopTable
}

type aggrefOp struct {
	aggno int
}

type groupingOp struct {
	refs []int
}

type windowOp struct {
	wfuncno int
}

type subPlanOp struct {
	sp     *expr.SubPlan
	runner SubPlanRunner
}

type paramSetOp struct {
	id int
}
