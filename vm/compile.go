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
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

// Compile compiles a scalar expression for
// evaluation in the context of parent. A nil
// node compiles to a nil program.
func Compile(node expr.Node, parent *Parent) (*ExprState, error) {
	return compileScalar(node, parent, nil)
}

// CompileWithParams compiles node outside of any
// plan, with external parameters taken from params.
func CompileWithParams(node expr.Node, cat catalog.Catalog, params *ParamListInfo) (*ExprState, error) {
	return compileScalar(node, NewParent(cat, WithParams(params)), nil)
}

// CompileSoft compiles node so that input coercion
// and domain errors are saved in es instead of
// being raised.
func CompileSoft(node expr.Node, parent *Parent, es *pgerr.ErrorSaveContext) (*ExprState, error) {
	return compileScalar(node, parent, es)
}

func compileScalar(node expr.Node, parent *Parent, es *pgerr.ErrorSaveContext) (*ExprState, error) {
	if node == nil {
		return nil, nil
	}
	st, err := startState(node, parent)
	if err != nil {
		return nil, err
	}
	st.escontext = es
	if err := st.setup([]expr.Node{node}); err != nil {
		return nil, err
	}
	if err := st.compile(node, &st.Result, &st.ResultNull); err != nil {
		return nil, err
	}
	st.push(Step{Op: OpDone})
	return st, st.Ready()
}

// CompileQual compiles an implicitly-ANDed list
// of conditions. The program stops at the first
// condition that is false or null. An empty list
// compiles to a nil program, which EvalQual
// treats as true.
func CompileQual(quals []expr.Node, parent *Parent) (*ExprState, error) {
	if len(quals) == 0 {
		return nil, nil
	}
	st, err := startState(expr.MakeAndsExplicit(quals), parent)
	if err != nil {
		return nil, err
	}
	st.Flags |= FlagIsQual
	if err := st.setup(quals); err != nil {
		return nil, err
	}
	var adjust []int
	for _, q := range quals {
		if err := st.compile(q, &st.Result, &st.ResultNull); err != nil {
			return nil, err
		}
		adjust = append(adjust, st.push(Step{Op: OpQual, D: &qualOp{jumpdone: unpatched}}))
	}
	st.patch(adjust)
	st.push(Step{Op: OpDone})
	return st, st.Ready()
}

// CompileCheck compiles a list of CHECK
// constraints; unlike a qual a null result
// passes. An empty list compiles to nil.
func CompileCheck(checks []expr.Node, parent *Parent) (*ExprState, error) {
	if len(checks) == 0 {
		return nil, nil
	}
	return Compile(expr.MakeAndsExplicit(checks), parent)
}

func startState(node expr.Node, parent *Parent) (*ExprState, error) {
	if parent == nil || parent.Catalog == nil {
		return nil, pgerr.Invariant("expression compiled without a catalog")
	}
	return newState(node, parent), nil
}

// compileSub compiles node into a separate
// program whose CaseTestExpr reads the given
// cells.
func (st *ExprState) compileSub(node expr.Node, caseValue *datum.Datum, caseNull *bool) (*ExprState, error) {
	sub := newState(node, st.parent)
	sub.escontext = st.escontext
	sub.caseValue, sub.caseNull = caseValue, caseNull
	if err := sub.setup([]expr.Node{node}); err != nil {
		return nil, err
	}
	if err := sub.compile(node, &sub.Result, &sub.ResultNull); err != nil {
		return nil, err
	}
	sub.push(Step{Op: OpDone})
	return sub, sub.Ready()
}

// lastAttnums is the result of the setup walk.
type lastAttnums struct {
	inner, outer, scan int
	multiexpr          []*expr.SubPlan
}

func (l *lastAttnums) note(src expr.VarSource, attno int) {
	p := &l.scan
	switch src {
	case expr.SourceInner:
		p = &l.inner
	case expr.SourceOuter:
		p = &l.outer
	}
	if attno > *p {
		*p = attno
	}
}

// walk records the highest attribute of each
// slot referenced below n. Aggregates and window
// functions are evaluated by their plan node
// and are not descended into.
func (l *lastAttnums) walk(n expr.Node) {
	expr.Walk(expr.WalkFunc(func(n expr.Node) bool {
		switch n := n.(type) {
		case *expr.Var:
			l.note(n.Source, n.AttNo)
		case *expr.Aggref, *expr.WindowFunc, *expr.GroupingFunc:
			return false
		case *expr.SubPlan:
			if n.Kind == expr.MultiExprSubLink {
				l.multiexpr = append(l.multiexpr, n)
			}
		}
		return true
	}), n)
}

// setup emits the steps that run before the
// expression proper: deforming the input slots
// and executing MULTIEXPR subplans.
func (st *ExprState) setup(nodes []expr.Node) error {
	var l lastAttnums
	for _, n := range nodes {
		l.walk(n)
	}
	return st.pushSetup(&l)
}

func (st *ExprState) pushSetup(l *lastAttnums) error {
	st.pushFetch(expr.SourceInner, l.inner, nil, nil)
	st.pushFetch(expr.SourceOuter, l.outer, nil, nil)
	st.pushFetch(expr.SourceScan, l.scan, nil, nil)
	for _, sp := range l.multiexpr {
		if err := st.compileSubPlan(sp, &st.Result, &st.ResultNull); err != nil {
			return err
		}
	}
	return nil
}

// pushFetch emits a FETCHSOME step for src
// unless the slot is known to be virtual, in
// which case its columns are always present.
// A nil desc takes the slot description from
// the parent.
func (st *ExprState) pushFetch(src expr.VarSource, last int, desc *tuple.Desc, ops tuple.SlotOps) {
	if last <= 0 {
		return
	}
	fixed := desc != nil && ops != nil
	if !fixed && st.parent != nil {
		info := st.parent.slotInfo(src)
		desc, ops, fixed = info.Desc, info.Ops, info.Fixed
	}
	if fixed && ops == tuple.Virtual {
		return
	}
	op := OpScanFetchSome
	switch src {
	case expr.SourceInner:
		op = OpInnerFetchSome
	case expr.SourceOuter:
		op = OpOuterFetchSome
	}
	st.push(Step{Op: op, D: &fetchOp{last: last, known: fixed && ops != nil, desc: desc, ops: ops}})
}

func varOpcode(src expr.VarSource, sys bool) Op {
	switch src {
	case expr.SourceInner:
		if sys {
			return OpInnerSysVar
		}
		return OpInnerVar
	case expr.SourceOuter:
		if sys {
			return OpOuterSysVar
		}
		return OpOuterVar
	}
	if sys {
		return OpScanSysVar
	}
	return OpScanVar
}

func assignOpcode(src expr.VarSource) Op {
	switch src {
	case expr.SourceInner:
		return OpAssignInnerVar
	case expr.SourceOuter:
		return OpAssignOuterVar
	}
	return OpAssignScanVar
}

// compile appends the steps evaluating node
// into *resv and *resnull.
func (st *ExprState) compile(node expr.Node, resv *datum.Datum, resnull *bool) error {
	res := Step{ResValue: resv, ResNull: resnull}
	switch n := node.(type) {
	case *expr.Var:
		return st.compileVar(n, res)
	case *expr.Const:
		res.Op = OpConst
		res.D = &constOp{value: n.Value, isnull: n.IsNull}
		st.push(res)
	case *expr.Param:
		return st.compileParam(n, res)
	case *expr.FuncExpr:
		return st.compileFuncExpr(n, n.FuncID, n.Args, n.InputCollation, n.RetSet, res)
	case *expr.OpExpr:
		return st.compileFuncExpr(n, n.FuncID, n.Args, n.InputCollation, n.RetSet, res)
	case *expr.DistinctExpr:
		return st.compileDistinct(n, res)
	case *expr.NullIfExpr:
		return st.compileNullIf(n, res)
	case *expr.ScalarArrayOpExpr:
		return st.compileScalarArrayOp(n, res)
	case *expr.BoolExpr:
		return st.compileBool(n, res)
	case *expr.CaseExpr:
		return st.compileCase(n, res)
	case *expr.CaseTestExpr:
		res.Op = OpCaseTestVal
		res.D = &testValOp{value: st.caseValue, isnull: st.caseNull}
		st.push(res)
	case *expr.CoalesceExpr:
		return st.compileCoalesce(n, res)
	case *expr.MinMaxExpr:
		return st.compileMinMax(n, res)
	case *expr.NullTest:
		return st.compileNullTest(n, res)
	case *expr.BooleanTest:
		return st.compileBooleanTest(n, res)
	case *expr.RelabelType:
		return st.compile(n.Arg, resv, resnull)
	case *expr.CollateExpr:
		return st.compile(n.Arg, resv, resnull)
	case *expr.PlaceHolderVar:
		return st.compile(n.Expr, resv, resnull)
	case *expr.CoerceViaIO:
		return st.compileCoerceViaIO(n, res)
	case *expr.ArrayCoerceExpr:
		return st.compileArrayCoerce(n, res)
	case *expr.ConvertRowtypeExpr:
		if err := st.compile(n.Arg, resv, resnull); err != nil {
			return err
		}
		res.Op = OpConvertRowtype
		res.D = &convertRowtypeOp{inType: n.Arg.Type(), outType: n.ResultType}
		st.push(res)
	case *expr.ArrayExpr:
		return st.compileArrayExpr(n, res)
	case *expr.RowExpr:
		return st.compileRow(n, res)
	case *expr.RowCompareExpr:
		return st.compileRowCompare(n, res)
	case *expr.FieldSelect:
		if err := st.compile(n.Arg, resv, resnull); err != nil {
			return err
		}
		res.Op = OpFieldSelect
		res.D = &fieldSelectOp{fieldnum: n.FieldNum, resultType: n.ResultType}
		st.push(res)
	case *expr.FieldStore:
		return st.compileFieldStore(n, res)
	case *expr.SubscriptingRef:
		return st.compileSubscriptingRef(n, res)
	case *expr.CoerceToDomain:
		return st.compileCoerceToDomain(n, res)
	case *expr.CoerceToDomainValue:
		res.Op = OpDomainTestVal
		res.D = &testValOp{value: st.domainValue, isnull: st.domainNull}
		st.push(res)
	case *expr.SubPlan:
		if n.Kind == expr.MultiExprSubLink {
			// already run by the setup steps; a
			// dummy null stands for its row
			res.Op = OpConst
			res.D = &constOp{isnull: true}
			st.push(res)
			return nil
		}
		return st.compileSubPlan(n, resv, resnull)
	case *expr.Aggref:
		if st.parent.Agg == nil {
			return pgerr.Invariant("Aggref found in non-Agg plan node")
		}
		st.parent.Agg.addAggref(n)
		res.Op = OpAggref
		res.D = &aggrefOp{aggno: n.AggNo}
		st.push(res)
	case *expr.GroupingFunc:
		if st.parent.Agg == nil {
			return pgerr.Invariant("GroupingFunc found in non-Agg plan node")
		}
		res.Op = OpGroupingFunc
		res.D = &groupingOp{refs: n.Refs}
		st.push(res)
	case *expr.WindowFunc:
		if !st.parent.Window {
			return pgerr.Invariant("WindowFunc found in non-WindowAgg plan node")
		}
		res.Op = OpWindowFunc
		res.D = &windowOp{wfuncno: n.WFuncNo}
		st.push(res)
	case *expr.JSONValueExpr:
		if n.FormattedExpr != nil {
			return st.compile(n.FormattedExpr, resv, resnull)
		}
		return st.compile(n.RawExpr, resv, resnull)
	case *expr.JSONConstructorExpr:
		return st.compileJSONConstructor(n, res)
	case *expr.JSONIsPredicate:
		if err := st.compile(n.Expr, resv, resnull); err != nil {
			return err
		}
		res.Op = OpIsJSON
		res.D = &isJSONOp{pred: n, typ: n.Expr.Type()}
		st.push(res)
	case *expr.JSONExpr:
		return st.compileJSONExpr(n, res)
	default:
		return pgerr.Newf(pgerr.CodeFeatureNotSupported, "unrecognized node type: %T", node)
	}
	return nil
}

func (st *ExprState) compileVar(v *expr.Var, res Step) error {
	switch {
	case v.AttNo == 0:
		d := &wholeRowOp{v: v, first: true}
		if v.Source == expr.SourceScan && st.parent != nil {
			d.junk = st.parent.SubqueryTargets
		}
		res.Op = OpWholeRow
		res.D = d
	case v.AttNo < 0:
		res.Op = varOpcode(v.Source, true)
		res.D = &varOp{attnum: v.AttNo, vartype: v.VarType}
	default:
		st.varChecks = append(st.varChecks, varCheck{source: v.Source, attnum: v.AttNo, typ: v.VarType})
		res.Op = varOpcode(v.Source, false)
		res.D = &varOp{attnum: v.AttNo - 1, vartype: v.VarType}
	}
	st.push(res)
	return nil
}

func (st *ExprState) compileParam(p *expr.Param, res Step) error {
	switch p.Kind {
	case expr.ParamExec:
		res.Op = OpParamExec
		res.D = &paramOp{id: p.ID, typ: p.ParamType}
	case expr.ParamExtern:
		if pl := st.extParams; pl != nil && pl.Compile != nil {
			if fn, arg, ok := pl.Compile(p); ok {
				res.Op = OpParamCallback
				res.D = &paramCallbackOp{fn: fn, arg: arg, id: p.ID, typ: p.ParamType}
				st.push(res)
				return nil
			}
		}
		res.Op = OpParamExtern
		res.D = &paramOp{id: p.ID, typ: p.ParamType}
	default:
		return pgerr.Invariant("unrecognized parameter kind %d", p.Kind)
	}
	st.push(res)
	return nil
}

// compileSubPlan evaluates the arguments of sp
// into its parameters before running it.
func (st *ExprState) compileSubPlan(sp *expr.SubPlan, resv *datum.Datum, resnull *bool) error {
	if st.parent == nil || st.parent.SubPlans == nil {
		return pgerr.Invariant("SubPlan found with no parent plan")
	}
	if len(sp.Args) != len(sp.ParParams) {
		return pgerr.Invariant("subplan %d has %d arguments for %d parameters", sp.PlanID, len(sp.Args), len(sp.ParParams))
	}
	for i, arg := range sp.Args {
		cell := new(datum.NullableDatum)
		if err := st.compile(arg, &cell.Value, &cell.IsNull); err != nil {
			return err
		}
		st.push(Step{Op: OpParamSet, ResValue: &cell.Value, ResNull: &cell.IsNull, D: &paramSetOp{id: sp.ParParams[i]}})
	}
	st.push(Step{Op: OpSubPlan, ResValue: resv, ResNull: resnull, D: &subPlanOp{sp: sp, runner: st.parent.SubPlans}})
	return nil
}

func (st *ExprState) compileCoerceViaIO(n *expr.CoerceViaIO, res Step) error {
	if err := st.compile(n.Arg, res.ResValue, res.ResNull); err != nil {
		return err
	}
	src, err := st.cat.Type(n.Arg.Type())
	if err != nil {
		return err
	}
	dst, err := st.cat.Type(n.ResultType)
	if err != nil {
		return err
	}
	out, err := st.cat.Func(src.Output)
	if err != nil {
		return err
	}
	in, err := st.cat.Func(dst.Input)
	if err != nil {
		return err
	}
	d := &ioCoerceOp{
		out:     fmgr.NewCallInfo(out, 1, 0, nil),
		in:      fmgr.NewCallInfo(in, 3, 0, nil),
		ioparam: dst.IOParam(),
		typmod:  -1,
	}
	res.Op = OpIOCoerce
	if st.escontext != nil {
		d.in.Context = st.escontext
		res.Op = OpIOCoerceSafe
	}
	res.D = d
	st.push(res)
	return nil
}

func (st *ExprState) compileArrayCoerce(n *expr.ArrayCoerceExpr, res Step) error {
	if err := st.compile(n.Arg, res.ResValue, res.ResNull); err != nil {
		return err
	}
	ti, err := st.cat.Type(n.ResultType)
	if err != nil {
		return err
	}
	d := &arrayCoerceOp{resultElem: ti.Elem}
	if _, relabel := n.ElemExpr.(*expr.CaseTestExpr); n.ElemExpr != nil && !relabel {
		d.elem, err = st.compileSub(n.ElemExpr, &d.value, &d.isnull)
		if err != nil {
			return err
		}
	}
	res.Op = OpArrayCoerce
	res.D = d
	st.push(res)
	return nil
}

func (st *ExprState) compileArrayExpr(n *expr.ArrayExpr, res Step) error {
	d := &arrayExprOp{
		values:    make([]datum.Datum, len(n.Elements)),
		nulls:     make([]bool, len(n.Elements)),
		elemType:  n.ElemType,
		multiDims: n.MultiDims,
	}
	for i, e := range n.Elements {
		if err := st.compile(e, &d.values[i], &d.nulls[i]); err != nil {
			return err
		}
	}
	res.Op = OpArrayExpr
	res.D = d
	st.push(res)
	return nil
}

// typeLen returns the storage length of typ;
// -1 is variable length.
func (st *ExprState) typeLen(typ oid.Oid) int16 {
	ti, err := st.cat.Type(typ)
	if err != nil {
		return -1
	}
	return ti.Len
}
