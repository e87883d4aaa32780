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

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

// Projection computes a target list into a
// result slot.
type Projection struct {
	st   *ExprState
	ec   *ExprContext
	slot *tuple.Slot
}

// State returns the compiled program.
func (p *Projection) State() *ExprState { return p.st }

// Project evaluates the target list against the
// slots of the projection's ExprContext and
// returns the filled result slot.
func (p *Projection) Project() (*tuple.Slot, error) {
	p.slot.Clear()
	if _, _, err := p.st.Eval(p.ec); err != nil {
		return nil, err
	}
	p.slot.ExecStoreVirtual()
	return p.slot, nil
}

// CompileProjection compiles targets into a
// program filling slot. Plain column references
// are copied directly when inputDesc shows them
// to be safe; inputDesc may be nil when the scan
// tuple is known to match.
func CompileProjection(targets []*expr.TargetEntry, ec *ExprContext, slot *tuple.Slot,
	parent *Parent, inputDesc *tuple.Desc) (*Projection, error) {
	st, err := startState(nil, parent)
	if err != nil {
		return nil, err
	}
	st.ResultSlot = slot
	nodes := make([]expr.Node, len(targets))
	for i, te := range targets {
		nodes[i] = te.Expr
	}
	if err := st.setup(nodes); err != nil {
		return nil, err
	}
	for i, te := range targets {
		resultnum := i
		if te.ResNo > 0 {
			resultnum = te.ResNo - 1
		}
		if v, ok := te.Expr.(*expr.Var); ok && v.AttNo > 0 && directAssignable(v, inputDesc) {
			st.push(Step{Op: assignOpcode(v.Source), D: &assignVarOp{attnum: v.AttNo - 1, resultnum: resultnum}})
			continue
		}
		if err := st.compile(te.Expr, &st.Result, &st.ResultNull); err != nil {
			return nil, err
		}
		op := OpAssignTmp
		if st.typeLen(te.Expr.Type()) == -1 {
			op = OpAssignTmpMakeRO
		}
		st.push(Step{Op: op, D: &assignTmpOp{resultnum: resultnum}})
	}
	st.push(Step{Op: OpDoneNoReturn})
	if err := st.Ready(); err != nil {
		return nil, err
	}
	return &Projection{st: st, ec: ec, slot: slot}, nil
}

// directAssignable reports whether v can be
// copied from its slot without a type check.
func directAssignable(v *expr.Var, inputDesc *tuple.Desc) bool {
	if v.Source != expr.SourceScan || inputDesc == nil {
		return true
	}
	if v.AttNo > inputDesc.NumAttrs() {
		return false
	}
	a := inputDesc.Attr(v.AttNo)
	return !a.Dropped && a.Type == v.VarType
}

// CompileUpdateProjection compiles the projection
// producing the new version of a row of relDesc.
// colnos lists the 1-based columns assigned by
// targets; the other columns are copied from the
// old row in the scan slot. With evalTargetList
// unset the new values are read from the outer
// slot at each target's ResNo instead of being
// evaluated.
func CompileUpdateProjection(targets []*expr.TargetEntry, evalTargetList bool, colnos []int,
	relDesc *tuple.Desc, ec *ExprContext, slot *tuple.Slot, parent *Parent) (*Projection, error) {
	if len(colnos) != len(targets) {
		return nil, pgerr.Invariant("update has %d target columns for %d targets", len(colnos), len(targets))
	}
	st, err := startState(nil, parent)
	if err != nil {
		return nil, err
	}
	st.ResultSlot = slot
	natts := relDesc.NumAttrs()
	assigned := make([]*expr.TargetEntry, natts)
	for i, c := range colnos {
		if c <= 0 || c > natts {
			return nil, pgerr.Invariant("invalid attribute number %d", c)
		}
		a := relDesc.Attr(c)
		if a.Dropped {
			return nil, errors.WithDetailf(
				pgerr.Newf(pgerr.CodeDatatypeMismatch, "table row type and query-specified row type do not match"),
				"Query provides a value for a dropped column at ordinal position %d.", c)
		}
		if t := targets[i].Expr.Type(); t != a.Type {
			return nil, errors.WithDetailf(
				pgerr.Newf(pgerr.CodeDatatypeMismatch, "attribute %d of type %s has wrong type", c, expr.TypeName(relDesc.TypeID)),
				"Table has type %s, but query expects %s.", expr.TypeName(a.Type), expr.TypeName(t))
		}
		assigned[c-1] = targets[i]
	}

	// the old row supplies every unassigned,
	// live column
	lastScan, lastOuter := 0, 0
	var nodes []expr.Node
	for c := 1; c <= natts; c++ {
		te := assigned[c-1]
		switch {
		case te == nil:
			if !relDesc.Attr(c).Dropped {
				lastScan = c
			}
		case evalTargetList:
			nodes = append(nodes, te.Expr)
		default:
			lastOuter = max(lastOuter, te.ResNo)
		}
	}
	if err := st.setup(nodes); err != nil {
		return nil, err
	}
	// setup has fetched what the expressions
	// need; these cover the direct copies
	st.pushFetch(expr.SourceScan, lastScan, nil, nil)
	st.pushFetch(expr.SourceOuter, lastOuter, nil, nil)

	for c := 1; c <= natts; c++ {
		te := assigned[c-1]
		switch {
		case te != nil && evalTargetList:
			if err := st.compile(te.Expr, &st.Result, &st.ResultNull); err != nil {
				return nil, err
			}
			op := OpAssignTmp
			if st.typeLen(te.Expr.Type()) == -1 {
				op = OpAssignTmpMakeRO
			}
			st.push(Step{Op: op, D: &assignTmpOp{resultnum: c - 1}})
		case te != nil:
			st.push(Step{Op: OpAssignOuterVar, D: &assignVarOp{attnum: te.ResNo - 1, resultnum: c - 1}})
		case relDesc.Attr(c).Dropped:
			st.push(Step{Op: OpConst, D: &constOp{value: datum.Null, isnull: true}})
			st.push(Step{Op: OpAssignTmp, D: &assignTmpOp{resultnum: c - 1}})
		default:
			st.push(Step{Op: OpAssignScanVar, D: &assignVarOp{attnum: c - 1, resultnum: c - 1}})
		}
	}
	st.push(Step{Op: OpDoneNoReturn})
	if err := st.Ready(); err != nil {
		return nil, err
	}
	return &Projection{st: st, ec: ec, slot: slot}, nil
}
