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
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
)

func (st *ExprState) compileBool(n *expr.BoolExpr, res Step) error {
	if n.Op == expr.NotExpr {
		if len(n.Args) != 1 {
			return pgerr.Invariant("NOT with %d arguments", len(n.Args))
		}
		if err := st.compile(n.Args[0], res.ResValue, res.ResNull); err != nil {
			return err
		}
		res.Op = OpBoolNotStep
		st.push(res)
		return nil
	}
	if len(n.Args) < 2 {
		return pgerr.Invariant("boolean expression with %d arguments", len(n.Args))
	}
	first, step, last := OpBoolAndStepFirst, OpBoolAndStep, OpBoolAndStepLast
	if n.Op == expr.OrExpr {
		first, step, last = OpBoolOrStepFirst, OpBoolOrStep, OpBoolOrStepLast
	}
	// shared by every step of this expression
	anynull := new(bool)
	var adjust []int
	for i, a := range n.Args {
		if err := st.compile(a, res.ResValue, res.ResNull); err != nil {
			return err
		}
		s := res
		switch i {
		case 0:
			s.Op = first
		case len(n.Args) - 1:
			s.Op = last
		default:
			s.Op = step
		}
		s.D = &boolOp{anynull: anynull, jumpdone: unpatched}
		adjust = append(adjust, st.push(s))
	}
	st.patch(adjust)
	return nil
}

func (st *ExprState) jump(op Op, resv *datum.Datum, resnull *bool) int {
	return st.push(Step{Op: op, ResValue: resv, ResNull: resnull, D: &jumpOp{target: unpatched}})
}

func (st *ExprState) compileCase(n *expr.CaseExpr, res Step) error {
	savedValue, savedNull := st.caseValue, st.caseNull
	defer func() { st.caseValue, st.caseNull = savedValue, savedNull }()

	if n.Arg != nil {
		v, isnull := new(datum.Datum), new(bool)
		if err := st.compile(n.Arg, v, isnull); err != nil {
			return err
		}
		// WHEN clauses must not modify the test value
		if st.typeLen(n.Arg.Type()) == -1 {
			st.push(Step{Op: OpMakeReadOnly, ResValue: v, ResNull: isnull, D: &testValOp{value: v, isnull: isnull}})
		}
		st.caseValue, st.caseNull = v, isnull
	}

	var adjust []int
	for i := range n.Whens {
		w := &n.Whens[i]
		cv, cnull := new(datum.Datum), new(bool)
		if err := st.compile(w.Expr, cv, cnull); err != nil {
			return err
		}
		next := st.jump(OpJumpIfNotTrue, cv, cnull)
		if err := st.compile(w.Result, res.ResValue, res.ResNull); err != nil {
			return err
		}
		adjust = append(adjust, st.jump(OpJump, nil, nil))
		st.patch([]int{next})
	}
	if n.Default != nil {
		if err := st.compile(n.Default, res.ResValue, res.ResNull); err != nil {
			return err
		}
	} else {
		s := res
		s.Op = OpConst
		s.D = &constOp{isnull: true}
		st.push(s)
	}
	st.patch(adjust)
	return nil
}

func (st *ExprState) compileCoalesce(n *expr.CoalesceExpr, res Step) error {
	if len(n.Args) == 0 {
		return pgerr.Invariant("COALESCE without arguments")
	}
	var adjust []int
	for _, a := range n.Args {
		if err := st.compile(a, res.ResValue, res.ResNull); err != nil {
			return err
		}
		adjust = append(adjust, st.jump(OpJumpIfNotNull, res.ResValue, res.ResNull))
	}
	st.patch(adjust)
	return nil
}

func (st *ExprState) compileMinMax(n *expr.MinMaxExpr, res Step) error {
	ti, err := st.cat.Type(n.MinMaxType)
	if err != nil {
		return err
	}
	if ti.CmpFunc == 0 {
		return pgerr.Newf(pgerr.CodeUndefinedFunction,
			"could not identify a comparison function for type %s", expr.TypeName(n.MinMaxType))
	}
	fi, err := st.cat.Func(ti.CmpFunc)
	if err != nil {
		return err
	}
	fi.Expr = n
	d := &minMaxOp{
		values: make([]datum.Datum, len(n.Args)),
		nulls:  make([]bool, len(n.Args)),
		op:     n.Op,
		fc:     fmgr.NewCallInfo(fi, 2, n.InputCollation, nil),
	}
	for i, a := range n.Args {
		if err := st.compile(a, &d.values[i], &d.nulls[i]); err != nil {
			return err
		}
	}
	res.Op = OpMinMax
	res.D = d
	st.push(res)
	return nil
}

func (st *ExprState) compileNullTest(n *expr.NullTest, res Step) error {
	if err := st.compile(n.Arg, res.ResValue, res.ResNull); err != nil {
		return err
	}
	switch {
	case n.Kind == expr.IsNull && n.ArgIsRow:
		res.Op = OpNullTestRowIsNull
		res.D = &nullTestRowOp{}
	case n.Kind == expr.IsNotNull && n.ArgIsRow:
		res.Op = OpNullTestRowIsNotNull
		res.D = &nullTestRowOp{}
	case n.Kind == expr.IsNull:
		res.Op = OpNullTestIsNull
	case n.Kind == expr.IsNotNull:
		res.Op = OpNullTestIsNotNull
	default:
		return pgerr.Invariant("unrecognized null test kind %d", n.Kind)
	}
	st.push(res)
	return nil
}

func (st *ExprState) compileBooleanTest(n *expr.BooleanTest, res Step) error {
	if err := st.compile(n.Arg, res.ResValue, res.ResNull); err != nil {
		return err
	}
	switch n.Kind {
	case expr.IsTrue:
		res.Op = OpBoolTestIsTrue
	case expr.IsNotTrue:
		res.Op = OpBoolTestIsNotTrue
	case expr.IsFalse:
		res.Op = OpBoolTestIsFalse
	case expr.IsNotFalse:
		res.Op = OpBoolTestIsNotFalse
	case expr.IsUnknown:
		res.Op = OpNullTestIsNull
	case expr.IsNotUnknown:
		res.Op = OpNullTestIsNotNull
	default:
		return pgerr.Invariant("unrecognized boolean test kind %d", n.Kind)
	}
	st.push(res)
	return nil
}
