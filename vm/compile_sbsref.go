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
	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/pgerr"
)

func (st *ExprState) compileSubscriptingRef(n *expr.SubscriptingRef, res Step) error {
	ti, err := st.cat.Type(n.ContainerType)
	if err != nil {
		return err
	}
	if ti.Subscript == nil || ti.Subscript.ExecSetup == nil {
		return pgerr.Newf(pgerr.CodeDatatypeMismatch,
			"cannot subscript type %s because it does not support subscripting", expr.TypeName(n.ContainerType))
	}
	state := catalog.NewSubscriptState(n)
	state.ErrorSave = st.escontext
	var m catalog.SubscriptExecSteps
	if err := ti.Subscript.ExecSetup(n, state, &m); err != nil {
		return err
	}
	isAssign := n.Assign != nil

	if err := st.compile(n.Expr, res.ResValue, res.ResNull); err != nil {
		return err
	}
	var adjust []int
	if !isAssign && ti.Subscript.FetchStrict {
		// a null container fetches null
		adjust = append(adjust, st.jump(OpJumpIfNull, res.ResValue, res.ResNull))
	}
	for i, e := range n.Upper {
		if e == nil {
			continue
		}
		state.UpperProvided[i] = true
		if err := st.compile(e, &state.UpperIndex[i], &state.UpperNull[i]); err != nil {
			return err
		}
	}
	for i, e := range n.Lower {
		if e == nil {
			continue
		}
		state.LowerProvided[i] = true
		if err := st.compile(e, &state.LowerIndex[i], &state.LowerNull[i]); err != nil {
			return err
		}
	}
	if m.CheckSubscripts != nil {
		s := res
		s.Op = OpSbsrefSubscripts
		s.D = &sbsrefSubscriptsOp{state: state, check: m.CheckSubscripts, jumpdone: unpatched}
		adjust = append(adjust, st.push(s))
	}

	if isAssign {
		if m.Assign == nil {
			return pgerr.Newf(pgerr.CodeFeatureNotSupported,
				"type %s does not support subscripted assignment", expr.TypeName(n.ContainerType))
		}
		savedValue, savedNull := st.caseValue, st.caseNull
		if isAssignmentIndirection(n.Assign) {
			if m.FetchOld == nil {
				return pgerr.Newf(pgerr.CodeFeatureNotSupported,
					"type %s does not support nested subscripted assignment", expr.TypeName(n.ContainerType))
			}
			s := res
			s.Op = OpSbsrefOld
			s.D = &sbsrefOp{state: state, fn: m.FetchOld}
			st.push(s)
			st.caseValue, st.caseNull = &state.PrevValue, &state.PrevNull
		}
		err := st.compile(n.Assign, &state.ReplaceValue, &state.ReplaceNull)
		st.caseValue, st.caseNull = savedValue, savedNull
		if err != nil {
			return err
		}
		s := res
		s.Op = OpSbsrefAssign
		s.D = &sbsrefOp{state: state, fn: m.Assign}
		st.push(s)
	} else {
		if m.Fetch == nil {
			return pgerr.Invariant("subscripting of type %s has no fetch method", expr.TypeName(n.ContainerType))
		}
		s := res
		s.Op = OpSbsrefFetch
		s.D = &sbsrefOp{state: state, fn: m.Fetch}
		st.push(s)
	}
	st.patch(adjust)
	return nil
}

// isAssignmentIndirection reports whether the
// source of an assignment reads the old element
// value, as nested field or element assignment
// does.
func isAssignmentIndirection(n expr.Node) bool {
	switch n := n.(type) {
	case *expr.FieldStore:
		_, ok := n.Arg.(*expr.CaseTestExpr)
		return ok
	case *expr.SubscriptingRef:
		_, ok := n.Expr.(*expr.CaseTestExpr)
		return ok
	case *expr.CoerceToDomain:
		return isAssignmentIndirection(n.Arg)
	}
	return false
}
