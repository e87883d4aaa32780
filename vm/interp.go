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

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

// handlers return the index of the next step;
// these values stop the program
const (
	stopReturn   = -1
	stopNoReturn = -2
)

func init() {
	opinfo[OpDone].fn = execDone
	opinfo[OpDoneNoReturn].fn = execDoneNoReturn
	opinfo[OpInnerFetchSome].fn = execInnerFetchSome
	opinfo[OpOuterFetchSome].fn = execOuterFetchSome
	opinfo[OpScanFetchSome].fn = execScanFetchSome
	opinfo[OpInnerVar].fn = execInnerVar
	opinfo[OpOuterVar].fn = execOuterVar
	opinfo[OpScanVar].fn = execScanVar
	opinfo[OpInnerSysVar].fn = execInnerSysVar
	opinfo[OpOuterSysVar].fn = execOuterSysVar
	opinfo[OpScanSysVar].fn = execScanSysVar
	opinfo[OpWholeRow].fn = execWholeRow
	opinfo[OpAssignInnerVar].fn = execAssignInnerVar
	opinfo[OpAssignOuterVar].fn = execAssignOuterVar
	opinfo[OpAssignScanVar].fn = execAssignScanVar
	opinfo[OpAssignTmp].fn = execAssignTmp
	opinfo[OpAssignTmpMakeRO].fn = execAssignTmpMakeRO
	opinfo[OpConst].fn = execConst
	opinfo[OpFuncExpr].fn = execFuncExpr
	opinfo[OpFuncExprStrict].fn = execFuncExprStrict
	opinfo[OpFuncExprFusage].fn = execFuncExprFusage
	opinfo[OpFuncExprStrictFusage].fn = execFuncExprStrictFusage
	opinfo[OpBoolAndStepFirst].fn = execBoolAndStepFirst
	opinfo[OpBoolAndStep].fn = execBoolAndStep
	opinfo[OpBoolAndStepLast].fn = execBoolAndStepLast
	opinfo[OpBoolOrStepFirst].fn = execBoolOrStepFirst
	opinfo[OpBoolOrStep].fn = execBoolOrStep
	opinfo[OpBoolOrStepLast].fn = execBoolOrStepLast
	opinfo[OpBoolNotStep].fn = execBoolNotStep
	opinfo[OpQual].fn = execQual
	opinfo[OpJump].fn = execJump
	opinfo[OpJumpIfNull].fn = execJumpIfNull
	opinfo[OpJumpIfNotNull].fn = execJumpIfNotNull
	opinfo[OpJumpIfNotTrue].fn = execJumpIfNotTrue
	opinfo[OpNullTestIsNull].fn = execNullTestIsNull
	opinfo[OpNullTestIsNotNull].fn = execNullTestIsNotNull
	opinfo[OpNullTestRowIsNull].fn = execNullTestRowIsNull
	opinfo[OpNullTestRowIsNotNull].fn = execNullTestRowIsNotNull
	opinfo[OpBoolTestIsTrue].fn = execBoolTestIsTrue
	opinfo[OpBoolTestIsNotTrue].fn = execBoolTestIsNotTrue
	opinfo[OpBoolTestIsFalse].fn = execBoolTestIsFalse
	opinfo[OpBoolTestIsNotFalse].fn = execBoolTestIsNotFalse
	opinfo[OpParamExec].fn = execParamExec
	opinfo[OpParamExtern].fn = execParamExtern
	opinfo[OpParamCallback].fn = execParamCallback
	opinfo[OpParamSet].fn = execParamSet
	opinfo[OpCaseTestVal].fn = execCaseTestVal
	opinfo[OpMakeReadOnly].fn = execMakeReadOnly
	opinfo[OpIOCoerce].fn = execIOCoerce
	opinfo[OpIOCoerceSafe].fn = execIOCoerceSafe
	opinfo[OpDistinct].fn = execDistinct
	opinfo[OpNotDistinct].fn = execNotDistinct
	opinfo[OpNullIf].fn = execNullIf
	opinfo[OpArrayExpr].fn = execArrayExpr
	opinfo[OpArrayCoerce].fn = execArrayCoerce
	opinfo[OpRow].fn = execRow
	opinfo[OpRowCompareStep].fn = execRowCompareStep
	opinfo[OpRowCompareFinal].fn = execRowCompareFinal
	opinfo[OpMinMax].fn = execMinMax
	opinfo[OpFieldSelect].fn = execFieldSelect
	opinfo[OpFieldStoreDeform].fn = execFieldStoreDeform
	opinfo[OpFieldStoreForm].fn = execFieldStoreForm
	opinfo[OpSbsrefSubscripts].fn = execSbsrefSubscripts
	opinfo[OpSbsrefOld].fn = execSbsref
	opinfo[OpSbsrefAssign].fn = execSbsref
	opinfo[OpSbsrefFetch].fn = execSbsref
	opinfo[OpDomainTestVal].fn = execDomainTestVal
	opinfo[OpDomainNotNull].fn = execDomainNotNull
	opinfo[OpDomainCheck].fn = execDomainCheck
	opinfo[OpHashDatumSetInitVal].fn = execHashSetInitVal
	opinfo[OpHashDatumFirst].fn = execHashFirst
	opinfo[OpHashDatumFirstStrict].fn = execHashFirstStrict
	opinfo[OpHashDatumNext32].fn = execHashNext32
	opinfo[OpHashDatumNext32Strict].fn = execHashNext32Strict
	opinfo[OpConvertRowtype].fn = execConvertRowtype
	opinfo[OpScalarArrayOp].fn = execScalarArrayOp
	opinfo[OpHashedScalarArrayOp].fn = execHashedScalarArrayOp
	opinfo[OpJSONConstructor].fn = execJSONConstructor
	opinfo[OpIsJSON].fn = execIsJSON
	opinfo[OpJSONExprPath].fn = execJSONExprPath
	opinfo[OpJSONExprCoercion].fn = execJSONExprCoercion
	opinfo[OpJSONExprCoercionFinish].fn = execJSONExprCoercionFinish
	opinfo[OpAggref].fn = execAggref
	opinfo[OpGroupingFunc].fn = execGroupingFunc
	opinfo[OpWindowFunc].fn = execWindowFunc
	opinfo[OpSubPlan].fn = execSubPlan
	opinfo[OpAggStrictDeserialize].fn = execAggStrictDeserialize
	opinfo[OpAggDeserialize].fn = execAggDeserialize
	opinfo[OpAggStrictInputCheckArgs].fn = execAggStrictInputCheckArgs
	opinfo[OpAggStrictInputCheckNulls].fn = execAggStrictInputCheckNulls
	opinfo[OpAggPlainPergroupNullCheck].fn = execAggPergroupNullCheck
	opinfo[OpAggPlainTransInitStrictByVal].fn = execAggTransInitStrictByVal
	opinfo[OpAggPlainTransStrictByVal].fn = execAggTransStrictByVal
	opinfo[OpAggPlainTransByVal].fn = execAggTransByVal
	opinfo[OpAggPlainTransInitStrictByRef].fn = execAggTransInitStrictByRef
	opinfo[OpAggPlainTransStrictByRef].fn = execAggTransStrictByRef
	opinfo[OpAggPlainTransByRef].fn = execAggTransByRef
	opinfo[OpAggPresortedDistinctSingle].fn = execAggPresortedDistinctSingle
	opinfo[OpAggPresortedDistinctMulti].fn = execAggPresortedDistinctMulti
	opinfo[OpAggOrderedTransDatum].fn = execAggOrderedTransDatum
	opinfo[OpAggOrderedTransTuple].fn = execAggOrderedTransTuple

	for i := range opinfo[:_maxop] {
		if opinfo[i].text == "" || opinfo[i].fn == nil {
			panic(fmt.Sprintf("vm: opcode %d is not fully defined", i))
		}
	}
}

// evalSteps is the interpreter loop.
func evalSteps(st *ExprState, ec *ExprContext) (datum.Datum, bool, error) {
	st.ec = ec
	st.err = nil
	steps := st.steps
	pc := 0
	if st.Flags&FlagDirectThreaded != 0 {
		for pc >= 0 {
			if interruptPending.Load() {
				if err := checkInterrupt(); err != nil {
					return datum.Null, true, err
				}
			}
			s := &steps[pc]
			pc = s.fn(st, s, pc)
		}
	} else {
		for pc >= 0 {
			if interruptPending.Load() {
				if err := checkInterrupt(); err != nil {
					return datum.Null, true, err
				}
			}
			s := &steps[pc]
			pc = opinfo[s.Op].fn(st, s, pc)
		}
	}
	return st.finish(pc)
}

func (st *ExprState) finish(pc int) (datum.Datum, bool, error) {
	if st.err != nil {
		err := st.err
		st.err = nil
		return datum.Null, true, err
	}
	if pc == stopNoReturn {
		return datum.Null, true, nil
	}
	return st.Result, st.ResultNull, nil
}

// fastPath returns a specialized evaluation
// function for the trivial program shapes, or
// the interpreter loop.
func (st *ExprState) fastPath() evalFunc {
	steps := st.steps
	var fetch *fetchOp
	if len(steps) == 3 {
		switch steps[0].Op {
		case OpInnerFetchSome, OpOuterFetchSome, OpScanFetchSome:
			fetch = steps[0].D.(*fetchOp)
			steps = steps[1:]
		default:
			return evalSteps
		}
	}
	if len(steps) != 2 {
		return evalSteps
	}
	switch steps[1].Op {
	case OpDone:
		switch steps[0].Op {
		case OpConst:
			if fetch != nil {
				break
			}
			d := steps[0].D.(*constOp)
			return func(st *ExprState, _ *ExprContext) (datum.Datum, bool, error) {
				st.Result, st.ResultNull = d.value, d.isnull
				return d.value, d.isnull, nil
			}
		case OpInnerVar, OpOuterVar, OpScanVar:
			src := varOpSource(steps[0].Op)
			d := steps[0].D.(*varOp)
			return func(st *ExprState, ec *ExprContext) (datum.Datum, bool, error) {
				slot, err := fastSlot(ec, src, fetch)
				if err != nil {
					return datum.Null, true, err
				}
				st.Result, st.ResultNull = slot.Values[d.attnum], slot.IsNull[d.attnum]
				return st.Result, st.ResultNull, nil
			}
		}
	case OpDoneNoReturn:
		switch steps[0].Op {
		case OpAssignInnerVar, OpAssignOuterVar, OpAssignScanVar:
			src := varOpSource(steps[0].Op)
			d := steps[0].D.(*assignVarOp)
			return func(st *ExprState, ec *ExprContext) (datum.Datum, bool, error) {
				slot, err := fastSlot(ec, src, fetch)
				if err != nil {
					return datum.Null, true, err
				}
				rs := st.ResultSlot
				rs.Values[d.resultnum] = slot.Values[d.attnum]
				rs.IsNull[d.resultnum] = slot.IsNull[d.attnum]
				return datum.Null, true, nil
			}
		}
	}
	return evalSteps
}

func fastSlot(ec *ExprContext, src expr.VarSource, fetch *fetchOp) (*tuple.Slot, error) {
	var slot *tuple.Slot
	if ec != nil {
		slot = ec.slot(src)
	}
	if slot == nil {
		return nil, errNoSlot(src)
	}
	if fetch != nil {
		if err := slot.GetSomeAttrs(fetch.last); err != nil {
			return nil, err
		}
	}
	return slot, nil
}

func varOpSource(op Op) expr.VarSource {
	switch op {
	case OpInnerVar, OpInnerSysVar, OpInnerFetchSome, OpAssignInnerVar:
		return expr.SourceInner
	case OpOuterVar, OpOuterSysVar, OpOuterFetchSome, OpAssignOuterVar:
		return expr.SourceOuter
	}
	return expr.SourceScan
}

func errNoSlot(src expr.VarSource) error {
	return pgerr.Invariant("no %s slot in expression context", src)
}

func (st *ExprState) slot(src expr.VarSource) *tuple.Slot {
	if st.ec == nil {
		return nil
	}
	return st.ec.slot(src)
}

func setResult(s *Step, v datum.Datum, isnull bool) {
	*s.ResValue = v
	*s.ResNull = isnull
}

func setBool(s *Step, b bool) {
	*s.ResValue = datum.FromBool(b)
	*s.ResNull = false
}

func setNull(s *Step) {
	*s.ResValue = datum.Null
	*s.ResNull = true
}

func execDone(st *ExprState, s *Step, pc int) int         { return stopReturn }
func execDoneNoReturn(st *ExprState, s *Step, pc int) int { return stopNoReturn }

func execInnerFetchSome(st *ExprState, s *Step, pc int) int {
	return fetchSome(st, s, expr.SourceInner, pc)
}

func execOuterFetchSome(st *ExprState, s *Step, pc int) int {
	return fetchSome(st, s, expr.SourceOuter, pc)
}

func execScanFetchSome(st *ExprState, s *Step, pc int) int {
	return fetchSome(st, s, expr.SourceScan, pc)
}

func fetchSome(st *ExprState, s *Step, src expr.VarSource, pc int) int {
	d := s.D.(*fetchOp)
	slot := st.slot(src)
	if slot == nil {
		return st.fail(errNoSlot(src))
	}
	if d.known && slot.Ops != d.ops {
		return st.fail(pgerr.Invariant("%s slot has %s ops, expected %s", src, slot.Ops.Name(), d.ops.Name()))
	}
	if err := slot.GetSomeAttrs(d.last); err != nil {
		return st.fail(err)
	}
	return pc + 1
}

func execInnerVar(st *ExprState, s *Step, pc int) int { return fetchVar(st, s, expr.SourceInner, pc) }
func execOuterVar(st *ExprState, s *Step, pc int) int { return fetchVar(st, s, expr.SourceOuter, pc) }
func execScanVar(st *ExprState, s *Step, pc int) int  { return fetchVar(st, s, expr.SourceScan, pc) }

func fetchVar(st *ExprState, s *Step, src expr.VarSource, pc int) int {
	d := s.D.(*varOp)
	slot := st.slot(src)
	if slot == nil {
		return st.fail(errNoSlot(src))
	}
	setResult(s, slot.Values[d.attnum], slot.IsNull[d.attnum])
	return pc + 1
}

func execInnerSysVar(st *ExprState, s *Step, pc int) int {
	return fetchSysVar(st, s, expr.SourceInner, pc)
}

func execOuterSysVar(st *ExprState, s *Step, pc int) int {
	return fetchSysVar(st, s, expr.SourceOuter, pc)
}

func execScanSysVar(st *ExprState, s *Step, pc int) int {
	return fetchSysVar(st, s, expr.SourceScan, pc)
}

func fetchSysVar(st *ExprState, s *Step, src expr.VarSource, pc int) int {
	d := s.D.(*varOp)
	slot := st.slot(src)
	if slot == nil {
		return st.fail(errNoSlot(src))
	}
	v, isnull, err := slot.GetAttr(d.attnum)
	if err != nil {
		return st.fail(err)
	}
	setResult(s, v, isnull)
	return pc + 1
}

func execAssignInnerVar(st *ExprState, s *Step, pc int) int {
	return assignVar(st, s, expr.SourceInner, pc)
}

func execAssignOuterVar(st *ExprState, s *Step, pc int) int {
	return assignVar(st, s, expr.SourceOuter, pc)
}

func execAssignScanVar(st *ExprState, s *Step, pc int) int {
	return assignVar(st, s, expr.SourceScan, pc)
}

func assignVar(st *ExprState, s *Step, src expr.VarSource, pc int) int {
	d := s.D.(*assignVarOp)
	slot := st.slot(src)
	if slot == nil {
		return st.fail(errNoSlot(src))
	}
	rs := st.ResultSlot
	if d.resultnum >= len(rs.Values) {
		return st.fail(pgerr.Invariant("result column %d out of range", d.resultnum))
	}
	rs.Values[d.resultnum] = slot.Values[d.attnum]
	rs.IsNull[d.resultnum] = slot.IsNull[d.attnum]
	return pc + 1
}

func execAssignTmp(st *ExprState, s *Step, pc int) int {
	d := s.D.(*assignTmpOp)
	rs := st.ResultSlot
	if d.resultnum >= len(rs.Values) {
		return st.fail(pgerr.Invariant("result column %d out of range", d.resultnum))
	}
	rs.Values[d.resultnum] = st.Result
	rs.IsNull[d.resultnum] = st.ResultNull
	return pc + 1
}

func execAssignTmpMakeRO(st *ExprState, s *Step, pc int) int {
	d := s.D.(*assignTmpOp)
	rs := st.ResultSlot
	if d.resultnum >= len(rs.Values) {
		return st.fail(pgerr.Invariant("result column %d out of range", d.resultnum))
	}
	rs.IsNull[d.resultnum] = st.ResultNull
	if st.ResultNull {
		rs.Values[d.resultnum] = datum.Null
	} else {
		rs.Values[d.resultnum] = datum.MakeReadOnly(st.Result)
	}
	return pc + 1
}

func execConst(st *ExprState, s *Step, pc int) int {
	d := s.D.(*constOp)
	setResult(s, d.value, d.isnull)
	return pc + 1
}

func execFuncExpr(st *ExprState, s *Step, pc int) int {
	d := s.D.(*funcOp)
	return callFunc(st, s, d, pc)
}

func execFuncExprStrict(st *ExprState, s *Step, pc int) int {
	d := s.D.(*funcOp)
	args := d.fc.Args
	for i := 0; i < d.nargs; i++ {
		if args[i].IsNull {
			setNull(s)
			return pc + 1
		}
	}
	return callFunc(st, s, d, pc)
}

func execFuncExprFusage(st *ExprState, s *Step, pc int) int {
	d := s.D.(*funcOp)
	u := fmgr.Stats.Start(d.fi)
	next := callFunc(st, s, d, pc)
	fmgr.Stats.End(u)
	return next
}

func execFuncExprStrictFusage(st *ExprState, s *Step, pc int) int {
	d := s.D.(*funcOp)
	args := d.fc.Args
	for i := 0; i < d.nargs; i++ {
		if args[i].IsNull {
			setNull(s)
			return pc + 1
		}
	}
	u := fmgr.Stats.Start(d.fi)
	next := callFunc(st, s, d, pc)
	fmgr.Stats.End(u)
	return next
}

func callFunc(st *ExprState, s *Step, d *funcOp, pc int) int {
	fc := d.fc
	fc.IsNull = false
	v, err := d.fn(fc)
	if err != nil {
		return st.fail(err)
	}
	setResult(s, v, fc.IsNull)
	return pc + 1
}

func execBoolAndStepFirst(st *ExprState, s *Step, pc int) int {
	*s.D.(*boolOp).anynull = false
	return execBoolAndStep(st, s, pc)
}

func execBoolAndStep(st *ExprState, s *Step, pc int) int {
	d := s.D.(*boolOp)
	if *s.ResNull {
		*d.anynull = true
	} else if !s.ResValue.Bool() {
		// result is already false
		return d.jumpdone
	}
	return pc + 1
}

func execBoolAndStepLast(st *ExprState, s *Step, pc int) int {
	d := s.D.(*boolOp)
	if *s.ResNull {
		// result is already null
		return pc + 1
	}
	if !s.ResValue.Bool() {
		return d.jumpdone
	}
	if *d.anynull {
		setNull(s)
	}
	return pc + 1
}

func execBoolOrStepFirst(st *ExprState, s *Step, pc int) int {
	*s.D.(*boolOp).anynull = false
	return execBoolOrStep(st, s, pc)
}

func execBoolOrStep(st *ExprState, s *Step, pc int) int {
	d := s.D.(*boolOp)
	if *s.ResNull {
		*d.anynull = true
	} else if s.ResValue.Bool() {
		// result is already true
		return d.jumpdone
	}
	return pc + 1
}

func execBoolOrStepLast(st *ExprState, s *Step, pc int) int {
	d := s.D.(*boolOp)
	if *s.ResNull {
		return pc + 1
	}
	if s.ResValue.Bool() {
		return d.jumpdone
	}
	if *d.anynull {
		setNull(s)
	}
	return pc + 1
}

func execBoolNotStep(st *ExprState, s *Step, pc int) int {
	if !*s.ResNull {
		*s.ResValue = datum.FromBool(!s.ResValue.Bool())
	}
	return pc + 1
}

func execQual(st *ExprState, s *Step, pc int) int {
	if *s.ResNull || !s.ResValue.Bool() {
		setBool(s, false)
		return s.D.(*qualOp).jumpdone
	}
	return pc + 1
}

func execJump(st *ExprState, s *Step, pc int) int {
	return s.D.(*jumpOp).target
}

func execJumpIfNull(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		return s.D.(*jumpOp).target
	}
	return pc + 1
}

func execJumpIfNotNull(st *ExprState, s *Step, pc int) int {
	if !*s.ResNull {
		return s.D.(*jumpOp).target
	}
	return pc + 1
}

func execJumpIfNotTrue(st *ExprState, s *Step, pc int) int {
	if *s.ResNull || !s.ResValue.Bool() {
		return s.D.(*jumpOp).target
	}
	return pc + 1
}

func execNullTestIsNull(st *ExprState, s *Step, pc int) int {
	setBool(s, *s.ResNull)
	return pc + 1
}

func execNullTestIsNotNull(st *ExprState, s *Step, pc int) int {
	setBool(s, !*s.ResNull)
	return pc + 1
}

func execNullTestRowIsNull(st *ExprState, s *Step, pc int) int {
	return rowNullTest(st, s, true, pc)
}

func execNullTestRowIsNotNull(st *ExprState, s *Step, pc int) int {
	return rowNullTest(st, s, false, pc)
}

// rowNullTest implements IS [NOT] NULL on a
// composite: every live field must be null
// (or non-null).
func rowNullTest(st *ExprState, s *Step, checkIsNull bool, pc int) int {
	if *s.ResNull {
		setBool(s, checkIsNull)
		return pc + 1
	}
	rec, err := datum.RecordOf(*s.ResValue)
	if err != nil {
		return st.fail(pgerr.Invariant("%v", err))
	}
	d := s.D.(*nullTestRowOp)
	desc, _, err := d.cache.get(st.cat, rec.TypeID, rec.TypMod)
	if err != nil {
		return st.fail(err)
	}
	for i := 0; i < rec.NumFields(); i++ {
		if i < desc.NumAttrs() && desc.Attr(i+1).Dropped {
			continue
		}
		if rec.Nulls[i] != checkIsNull {
			setBool(s, false)
			return pc + 1
		}
	}
	setBool(s, true)
	return pc + 1
}

func execBoolTestIsTrue(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		setBool(s, false)
	}
	return pc + 1
}

func execBoolTestIsNotTrue(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		setBool(s, true)
	} else {
		*s.ResValue = datum.FromBool(!s.ResValue.Bool())
	}
	return pc + 1
}

func execBoolTestIsFalse(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		setBool(s, false)
	} else {
		*s.ResValue = datum.FromBool(!s.ResValue.Bool())
	}
	return pc + 1
}

func execBoolTestIsNotFalse(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		setBool(s, true)
	}
	return pc + 1
}

func execParamExec(st *ExprState, s *Step, pc int) int {
	d := s.D.(*paramOp)
	ec := st.ec
	if ec == nil || d.id < 0 || d.id >= len(ec.ParamExec) {
		return st.fail(pgerr.Invariant("no value found for executor parameter %d", d.id))
	}
	p := &ec.ParamExec[d.id]
	if p.ExecPlan != nil {
		plan := p.ExecPlan
		p.ExecPlan = nil
		if err := plan.SetParams(ec); err != nil {
			return st.fail(err)
		}
	}
	setResult(s, p.Value, p.IsNull)
	return pc + 1
}

func execParamExtern(st *ExprState, s *Step, pc int) int {
	d := s.D.(*paramOp)
	pl := st.extParams
	if st.ec != nil && st.ec.Params != nil {
		pl = st.ec.Params
	}
	prm, ok := pl.lookup(d.id)
	if !ok || prm.Type == 0 {
		return st.fail(pgerr.Newf(pgerr.CodeUndefinedObject, "no value found for parameter %d", d.id))
	}
	if prm.Type != d.typ {
		return st.fail(pgerr.Newf(pgerr.CodeDatatypeMismatch,
			"type of parameter %d (%s) does not match that when preparing the plan (%s)",
			d.id, expr.TypeName(prm.Type), expr.TypeName(d.typ)))
	}
	setResult(s, prm.Value, prm.IsNull)
	return pc + 1
}

func execParamCallback(st *ExprState, s *Step, pc int) int {
	d := s.D.(*paramCallbackOp)
	if err := d.fn(st, st.ec, d.arg, s.ResValue, s.ResNull); err != nil {
		return st.fail(err)
	}
	return pc + 1
}

func execParamSet(st *ExprState, s *Step, pc int) int {
	d := s.D.(*paramSetOp)
	ec := st.ec
	if ec == nil {
		return st.fail(pgerr.Invariant("no expression context for executor parameter %d", d.id))
	}
	for len(ec.ParamExec) <= d.id {
		ec.ParamExec = append(ec.ParamExec, ParamExecData{IsNull: true})
	}
	ec.ParamExec[d.id] = ParamExecData{Value: *s.ResValue, IsNull: *s.ResNull}
	return pc + 1
}

func execCaseTestVal(st *ExprState, s *Step, pc int) int {
	d := s.D.(*testValOp)
	if d.value != nil {
		setResult(s, *d.value, *d.isnull)
	} else if st.ec != nil {
		setResult(s, st.ec.CaseValue, st.ec.CaseNull)
	} else {
		setNull(s)
	}
	return pc + 1
}

func execDomainTestVal(st *ExprState, s *Step, pc int) int {
	d := s.D.(*testValOp)
	if d.value != nil {
		setResult(s, *d.value, *d.isnull)
	} else if st.ec != nil {
		setResult(s, st.ec.DomainValue, st.ec.DomainNull)
	} else {
		setNull(s)
	}
	return pc + 1
}

func execMakeReadOnly(st *ExprState, s *Step, pc int) int {
	d := s.D.(*testValOp)
	if *d.isnull {
		setNull(s)
	} else {
		setResult(s, datum.MakeReadOnly(*d.value), false)
	}
	return pc + 1
}

func execDistinct(st *ExprState, s *Step, pc int) int {
	return distinct(st, s, true, pc)
}

func execNotDistinct(st *ExprState, s *Step, pc int) int {
	return distinct(st, s, false, pc)
}

// distinct implements IS [NOT] DISTINCT FROM
// through the equality function: two nulls are
// not distinct and a null is distinct from
// every value. A null from the function itself
// is the result.
func distinct(st *ExprState, s *Step, want bool, pc int) int {
	d := s.D.(*funcOp)
	args := d.fc.Args
	switch {
	case args[0].IsNull && args[1].IsNull:
		setBool(s, !want)
	case args[0].IsNull || args[1].IsNull:
		setBool(s, want)
	default:
		d.fc.IsNull = false
		eq, err := d.fn(d.fc)
		if err != nil {
			return st.fail(err)
		}
		setBool(s, eq.Bool() != want)
		*s.ResNull = d.fc.IsNull
	}
	return pc + 1
}

func execNullIf(st *ExprState, s *Step, pc int) int {
	d := s.D.(*funcOp)
	args := d.fc.Args
	if !args[0].IsNull && !args[1].IsNull {
		saved := args[0].Value
		args[0].Value = datum.MakeReadOnly(saved)
		d.fc.IsNull = false
		eq, err := d.fn(d.fc)
		args[0].Value = saved
		if err != nil {
			return st.fail(err)
		}
		if !d.fc.IsNull && eq.Bool() {
			setNull(s)
			return pc + 1
		}
	}
	setResult(s, args[0].Value, args[0].IsNull)
	return pc + 1
}

func execSubPlan(st *ExprState, s *Step, pc int) int {
	d := s.D.(*subPlanOp)
	v, isnull, err := d.runner.RunSubPlan(d.sp, st.ec)
	if err != nil {
		return st.fail(err)
	}
	setResult(s, v, isnull)
	return pc + 1
}
