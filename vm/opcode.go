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

import "fmt"

// Op is the opcode of a Step.
type Op uint16

const (
	OpDone Op = iota
	OpDoneNoReturn

	OpInnerFetchSome
	OpOuterFetchSome
	OpScanFetchSome

	OpInnerVar
	OpOuterVar
	OpScanVar

	OpInnerSysVar
	OpOuterSysVar
	OpScanSysVar

	OpWholeRow

	OpAssignInnerVar
	OpAssignOuterVar
	OpAssignScanVar
	OpAssignTmp
	OpAssignTmpMakeRO

	OpConst

	OpFuncExpr
	OpFuncExprStrict
	OpFuncExprFusage
	OpFuncExprStrictFusage

	OpBoolAndStepFirst
	OpBoolAndStep
	OpBoolAndStepLast
	OpBoolOrStepFirst
	OpBoolOrStep
	OpBoolOrStepLast
	OpBoolNotStep

	OpQual

	OpJump
	OpJumpIfNull
	OpJumpIfNotNull
	OpJumpIfNotTrue

	OpNullTestIsNull
	OpNullTestIsNotNull
	OpNullTestRowIsNull
	OpNullTestRowIsNotNull

	OpBoolTestIsTrue
	OpBoolTestIsNotTrue
	OpBoolTestIsFalse
	OpBoolTestIsNotFalse

	OpParamExec
	OpParamExtern
	OpParamCallback
	OpParamSet

	OpCaseTestVal
	OpMakeReadOnly

	OpIOCoerce
	OpIOCoerceSafe

	OpDistinct
	OpNotDistinct
	OpNullIf

	OpArrayExpr
	OpArrayCoerce
	OpRow

	OpRowCompareStep
	OpRowCompareFinal

	OpMinMax

	OpFieldSelect
	OpFieldStoreDeform
	OpFieldStoreForm

	OpSbsrefSubscripts
	OpSbsrefOld
	OpSbsrefAssign
	OpSbsrefFetch

	OpDomainTestVal
	OpDomainNotNull
	OpDomainCheck

	OpHashDatumSetInitVal
	OpHashDatumFirst
	OpHashDatumFirstStrict
	OpHashDatumNext32
	OpHashDatumNext32Strict

	OpConvertRowtype
	OpScalarArrayOp
	OpHashedScalarArrayOp

	OpJSONConstructor
	OpIsJSON
	OpJSONExprPath
	OpJSONExprCoercion
	OpJSONExprCoercionFinish

	OpAggref
	OpGroupingFunc
	OpWindowFunc
	OpSubPlan

	OpAggStrictDeserialize
	OpAggDeserialize
	OpAggStrictInputCheckArgs
	OpAggStrictInputCheckNulls
	OpAggPlainPergroupNullCheck
	OpAggPlainTransInitStrictByVal
	OpAggPlainTransStrictByVal
	OpAggPlainTransByVal
	OpAggPlainTransInitStrictByRef
	OpAggPlainTransStrictByRef
	OpAggPlainTransByRef
	OpAggPresortedDistinctSingle
	OpAggPresortedDistinctMulti
	OpAggOrderedTransDatum
	OpAggOrderedTransTuple

	_maxop
)

// opfn executes one step and returns the
// index of the next step, or -1 to stop.
type opfn func(st *ExprState, s *Step, pc int) int

type stepinfo struct {
	text string
	fn   opfn
}

// opinfo is filled with names here and with
// handlers by the interpreter's init.
var opinfo = makeopinfo()

func makeopinfo() [_maxop]stepinfo {
	// When adding a new entry, add its handler
	// to the init() in interp.go as well.
	return [_maxop]stepinfo{
		OpDone:         {text: "done"},
		OpDoneNoReturn: {text: "done.noreturn"},

		OpInnerFetchSome: {text: "fetchsome.inner"},
		OpOuterFetchSome: {text: "fetchsome.outer"},
		OpScanFetchSome:  {text: "fetchsome.scan"},

		OpInnerVar: {text: "var.inner"},
		OpOuterVar: {text: "var.outer"},
		OpScanVar:  {text: "var.scan"},

		OpInnerSysVar: {text: "sysvar.inner"},
		OpOuterSysVar: {text: "sysvar.outer"},
		OpScanSysVar:  {text: "sysvar.scan"},

		OpWholeRow: {text: "wholerow"},

		OpAssignInnerVar:  {text: "assign.var.inner"},
		OpAssignOuterVar:  {text: "assign.var.outer"},
		OpAssignScanVar:   {text: "assign.var.scan"},
		OpAssignTmp:       {text: "assign.tmp"},
		OpAssignTmpMakeRO: {text: "assign.tmp.makero"},

		OpConst: {text: "const"},

		OpFuncExpr:             {text: "func"},
		OpFuncExprStrict:       {text: "func.strict"},
		OpFuncExprFusage:       {text: "func.fusage"},
		OpFuncExprStrictFusage: {text: "func.strict.fusage"},

		OpBoolAndStepFirst: {text: "and.first"},
		OpBoolAndStep:      {text: "and"},
		OpBoolAndStepLast:  {text: "and.last"},
		OpBoolOrStepFirst:  {text: "or.first"},
		OpBoolOrStep:       {text: "or"},
		OpBoolOrStepLast:   {text: "or.last"},
		OpBoolNotStep:      {text: "not"},

		OpQual: {text: "qual"},

		OpJump:          {text: "jump"},
		OpJumpIfNull:    {text: "jump.null"},
		OpJumpIfNotNull: {text: "jump.notnull"},
		OpJumpIfNotTrue: {text: "jump.nottrue"},

		OpNullTestIsNull:       {text: "nulltest.isnull"},
		OpNullTestIsNotNull:    {text: "nulltest.isnotnull"},
		OpNullTestRowIsNull:    {text: "nulltest.row.isnull"},
		OpNullTestRowIsNotNull: {text: "nulltest.row.isnotnull"},

		OpBoolTestIsTrue:     {text: "booltest.istrue"},
		OpBoolTestIsNotTrue:  {text: "booltest.isnottrue"},
		OpBoolTestIsFalse:    {text: "booltest.isfalse"},
		OpBoolTestIsNotFalse: {text: "booltest.isnotfalse"},

		OpParamExec:     {text: "param.exec"},
		OpParamExtern:   {text: "param.extern"},
		OpParamCallback: {text: "param.callback"},
		OpParamSet:      {text: "param.set"},

		OpCaseTestVal:  {text: "case.testval"},
		OpMakeReadOnly: {text: "makereadonly"},

		OpIOCoerce:     {text: "iocoerce"},
		OpIOCoerceSafe: {text: "iocoerce.safe"},

		OpDistinct:    {text: "distinct"},
		OpNotDistinct: {text: "notdistinct"},
		OpNullIf:      {text: "nullif"},

		OpArrayExpr:   {text: "arrayexpr"},
		OpArrayCoerce: {text: "arraycoerce"},
		OpRow:         {text: "row"},

		OpRowCompareStep:  {text: "rowcompare.step"},
		OpRowCompareFinal: {text: "rowcompare.final"},

		OpMinMax: {text: "minmax"},

		OpFieldSelect:      {text: "fieldselect"},
		OpFieldStoreDeform: {text: "fieldstore.deform"},
		OpFieldStoreForm:   {text: "fieldstore.form"},

		OpSbsrefSubscripts: {text: "sbsref.subscripts"},
		OpSbsrefOld:        {text: "sbsref.old"},
		OpSbsrefAssign:     {text: "sbsref.assign"},
		OpSbsrefFetch:      {text: "sbsref.fetch"},

		OpDomainTestVal: {text: "domain.testval"},
		OpDomainNotNull: {text: "domain.notnull"},
		OpDomainCheck:   {text: "domain.check"},

		OpHashDatumSetInitVal:   {text: "hash.initval"},
		OpHashDatumFirst:        {text: "hash.first"},
		OpHashDatumFirstStrict:  {text: "hash.first.strict"},
		OpHashDatumNext32:       {text: "hash.next32"},
		OpHashDatumNext32Strict: {text: "hash.next32.strict"},

		OpConvertRowtype:      {text: "convertrowtype"},
		OpScalarArrayOp:       {text: "scalararrayop"},
		OpHashedScalarArrayOp: {text: "scalararrayop.hashed"},

		OpJSONConstructor:        {text: "json.constructor"},
		OpIsJSON:                 {text: "json.is"},
		OpJSONExprPath:           {text: "jsonexpr.path"},
		OpJSONExprCoercion:       {text: "jsonexpr.coercion"},
		OpJSONExprCoercionFinish: {text: "jsonexpr.coercion.finish"},

		OpAggref:       {text: "aggref"},
		OpGroupingFunc: {text: "groupingfunc"},
		OpWindowFunc:   {text: "windowfunc"},
		OpSubPlan:      {text: "subplan"},

		OpAggStrictDeserialize:         {text: "agg.deserialize.strict"},
		OpAggDeserialize:               {text: "agg.deserialize"},
		OpAggStrictInputCheckArgs:      {text: "agg.strictcheck.args"},
		OpAggStrictInputCheckNulls:     {text: "agg.strictcheck.nulls"},
		OpAggPlainPergroupNullCheck:    {text: "agg.pergroup.nullcheck"},
		OpAggPlainTransInitStrictByVal: {text: "agg.trans.initstrict.byval"},
		OpAggPlainTransStrictByVal:     {text: "agg.trans.strict.byval"},
		OpAggPlainTransByVal:           {text: "agg.trans.byval"},
		OpAggPlainTransInitStrictByRef: {text: "agg.trans.initstrict.byref"},
		OpAggPlainTransStrictByRef:     {text: "agg.trans.strict.byref"},
		OpAggPlainTransByRef:           {text: "agg.trans.byref"},
		OpAggPresortedDistinctSingle:   {text: "agg.presorted.distinct.single"},
		OpAggPresortedDistinctMulti:    {text: "agg.presorted.distinct.multi"},
		OpAggOrderedTransDatum:         {text: "agg.ordered.datum"},
		OpAggOrderedTransTuple:         {text: "agg.ordered.tuple"},
	}
}

func (op Op) String() string {
	if op < _maxop && opinfo[op].text != "" {
		return opinfo[op].text
	}
	return fmt.Sprintf("<op %d>", uint16(op))
}
