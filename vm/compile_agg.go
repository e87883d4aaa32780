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

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

// aggDeserializeOp: AGG_(STRICT_)DESERIALIZE
type aggDeserializeOp struct {
	agg      *AggState
	fc       *fmgr.CallInfo
	jumpnull int
}

func (d *aggDeserializeOp) targets() []*int { return []*int{&d.jumpnull} }

// aggStrictCheckOp: AGG_STRICT_INPUT_CHECK_*
type aggStrictCheckOp struct {
	args     []datum.NullableDatum
	nulls    []bool
	jumpnull int
}

func (d *aggStrictCheckOp) targets() []*int { return []*int{&d.jumpnull} }

// aggNullCheckOp: AGG_PLAIN_PERGROUP_NULLCHECK
type aggNullCheckOp struct {
	agg      *AggState
	setoff   int
	jumpnull int
}

func (d *aggNullCheckOp) targets() []*int { return []*int{&d.jumpnull} }

// aggTransOp: AGG_PLAIN_TRANS_*, AGG_ORDERED_TRANS_*
type aggTransOp struct {
	agg     *AggState
	pt      *aggTrans
	transno int
	setoff  int
}

// aggDistinctOp: AGG_PRESORTED_DISTINCT_*
type aggDistinctOp struct {
	pt           *aggTrans
	jumpdistinct int
}

func (d *aggDistinctOp) targets() []*int { return []*int{&d.jumpdistinct} }

// CompileAggTrans compiles the transition program
// of phase: each aggregate's filter and arguments
// are evaluated once and then its transition runs
// for every sort-based set (doSort) and for the
// hashed set (doHash). With nullCheck set the
// hashed transitions are skipped for rows whose
// group has no state.
//
// The target list and qual of the aggregation
// node must be compiled first, so that every
// Aggref is known.
func CompileAggTrans(agg *AggState, phase *AggPhase, doSort, doHash, nullCheck bool) (*ExprState, error) {
	if agg == nil || agg.parent == nil || agg.parent.Catalog == nil {
		return nil, pgerr.Invariant("aggregate transitions compiled without an aggregation node")
	}
	if !doSort && !doHash {
		return nil, pgerr.Invariant("aggregate phase without sorted or hashed transitions")
	}
	nsets := phase.numSets()
	if err := agg.prepare(nsets); err != nil {
		return nil, err
	}
	if doHash {
		for _, pt := range agg.trans {
			if pt != nil && pt.sorted {
				return nil, pgerr.Newf(pgerr.CodeFeatureNotSupported,
					"could not implement hashed aggregation of %s with ordered or DISTINCT input", pt.aggref.Name)
			}
		}
		if err := agg.compileHashing(phase); err != nil {
			return nil, err
		}
	}
	phase.doSort, phase.doHash = doSort, doHash
	agg.phase = phase

	st := newState(nil, agg.parent)
	var nodes []expr.Node
	for _, pt := range agg.trans {
		if pt == nil {
			continue
		}
		for _, te := range pt.aggref.Args {
			nodes = append(nodes, te.Expr)
		}
		if pt.aggref.Filter != nil {
			nodes = append(nodes, pt.aggref.Filter)
		}
	}
	if err := st.setup(nodes); err != nil {
		return nil, err
	}
	for transno, pt := range agg.trans {
		if pt == nil {
			continue
		}
		if err := st.compileTrans(agg, pt, transno, nsets, doSort, doHash, nullCheck); err != nil {
			return nil, err
		}
	}
	st.push(Step{Op: OpDoneNoReturn})
	if err := st.Ready(); err != nil {
		return nil, err
	}
	phase.trans = st
	return st, nil
}

func (st *ExprState) compileTrans(agg *AggState, pt *aggTrans, transno, nsets int, doSort, doHash, nullCheck bool) error {
	n := pt.aggref
	// every early exit skips this transition only
	var adjust []int
	if n.Filter != nil {
		cell := new(datum.NullableDatum)
		if err := st.compile(n.Filter, &cell.Value, &cell.IsNull); err != nil {
			return err
		}
		adjust = append(adjust, st.jump(OpJumpIfNotTrue, &cell.Value, &cell.IsNull))
	}

	switch {
	case agg.Combine:
		arg := n.Args[0].Expr
		if pt.deserial == nil {
			if err := st.compile(arg, &pt.fc.Args[1].Value, &pt.fc.Args[1].IsNull); err != nil {
				return err
			}
			break
		}
		ds := pt.deserial
		if err := st.compile(arg, &ds.Args[0].Value, &ds.Args[0].IsNull); err != nil {
			return err
		}
		ds.Args[1] = datum.NullableDatum{IsNull: true}
		op := OpAggDeserialize
		if ds.Flinfo.Strict {
			op = OpAggStrictDeserialize
		}
		adjust = append(adjust, st.push(Step{
			Op:       op,
			ResValue: &pt.fc.Args[1].Value,
			ResNull:  &pt.fc.Args[1].IsNull,
			D:        &aggDeserializeOp{agg: agg, fc: ds, jumpnull: unpatched},
		}))
	case !pt.sorted:
		i := 1
		for _, te := range n.Args {
			if te.Junk {
				continue
			}
			if err := st.compile(te.Expr, &pt.fc.Args[i].Value, &pt.fc.Args[i].IsNull); err != nil {
				return err
			}
			i++
		}
	case pt.numInputs == 1:
		if err := st.compile(n.Args[0].Expr, &pt.sortValues[0].Value, &pt.sortValues[0].IsNull); err != nil {
			return err
		}
	default:
		for i, te := range n.Args {
			if err := st.compile(te.Expr, &pt.sortVals[i], &pt.sortNulls[i]); err != nil {
				return err
			}
		}
	}

	if pt.fi.Strict && pt.numTransInputs > 0 {
		var s Step
		switch {
		case pt.sorted && pt.numInputs > 1:
			s = Step{Op: OpAggStrictInputCheckNulls,
				D: &aggStrictCheckOp{nulls: pt.sortNulls[:pt.numTransInputs], jumpnull: unpatched}}
		case pt.sorted:
			s = Step{Op: OpAggStrictInputCheckArgs,
				D: &aggStrictCheckOp{args: pt.sortValues[:pt.numTransInputs], jumpnull: unpatched}}
		default:
			s = Step{Op: OpAggStrictInputCheckArgs,
				D: &aggStrictCheckOp{args: pt.fc.Args[1 : 1+pt.numTransInputs], jumpnull: unpatched}}
		}
		adjust = append(adjust, st.push(s))
	}

	if n.Presorted && n.Distinct && !agg.Combine && pt.numTransInputs > 0 {
		op := OpAggPresortedDistinctMulti
		if pt.numTransInputs == 1 {
			op = OpAggPresortedDistinctSingle
		}
		adjust = append(adjust, st.push(Step{Op: op, D: &aggDistinctOp{pt: pt, jumpdistinct: unpatched}}))
	}

	if doSort {
		for set := 0; set < nsets; set++ {
			st.pushTrans(agg, pt, transno, set, false)
		}
	}
	if doHash {
		st.pushTrans(agg, pt, transno, nsets, nullCheck)
	}
	st.patch(adjust)
	return nil
}

func (st *ExprState) pushTrans(agg *AggState, pt *aggTrans, transno, setoff int, nullCheck bool) {
	var skip []int
	if nullCheck {
		skip = append(skip, st.push(Step{
			Op: OpAggPlainPergroupNullCheck,
			D:  &aggNullCheckOp{agg: agg, setoff: setoff, jumpnull: unpatched},
		}))
	}
	d := &aggTransOp{agg: agg, pt: pt, transno: transno, setoff: setoff}
	st.push(Step{Op: transOpcode(pt), D: d})
	st.patch(skip)
}

func transOpcode(pt *aggTrans) Op {
	switch {
	case pt.sorted && pt.numInputs == 1:
		return OpAggOrderedTransDatum
	case pt.sorted:
		return OpAggOrderedTransTuple
	}
	strict := pt.fi.Strict
	if pt.byval {
		switch {
		case strict && pt.initNull:
			return OpAggPlainTransInitStrictByVal
		case strict:
			return OpAggPlainTransStrictByVal
		}
		return OpAggPlainTransByVal
	}
	switch {
	case strict && pt.initNull:
		return OpAggPlainTransInitStrictByRef
	case strict:
		return OpAggPlainTransStrictByRef
	}
	return OpAggPlainTransByRef
}

// compileHashing builds the programs locating the
// hashed group of an outer row: a hash over the
// HashCols and an equality test of the outer row
// against a group's representative row, which is
// presented as the inner tuple.
func (a *AggState) compileHashing(ph *AggPhase) error {
	desc := a.parent.Outer.Desc
	if desc == nil {
		return pgerr.Invariant("hashed aggregation without an outer tuple descriptor")
	}
	if len(ph.HashCols) == 0 {
		return pgerr.Invariant("hashed aggregation without grouping columns")
	}
	cat := a.cat()
	n := len(ph.HashCols)
	exprs := make([]expr.Node, n)
	hashFuncs := make([]oid.Oid, n)
	eqFuncs := make([]oid.Oid, n)
	for i, c := range ph.HashCols {
		if c <= 0 || c > desc.NumAttrs() {
			return pgerr.Invariant("invalid grouping column %d", c)
		}
		typ := desc.Attr(c).Type
		ti, err := cat.Type(typ)
		if err != nil {
			return err
		}
		if ti.HashFunc == 0 || ti.EqFunc == 0 {
			return pgerr.Newf(pgerr.CodeUndefinedFunction,
				"could not identify a hash function for type %s", expr.TypeName(typ))
		}
		exprs[i] = &expr.Var{Source: expr.SourceOuter, AttNo: c, VarType: typ, TypMod: -1}
		hashFuncs[i], eqFuncs[i] = ti.HashFunc, ti.EqFunc
	}
	var err error
	ph.hashProg, err = CompileHash32(desc, a.parent.Outer.Ops, hashFuncs, nil, exprs, make([]bool, n), a.parent, 0, false)
	if err != nil {
		return err
	}
	ph.eqProg, err = CompileGroupingEqual(desc, desc, tuple.Virtual, a.parent.Outer.Ops, ph.HashCols, eqFuncs, nil, a.parent)
	return err
}
