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
	"github.com/postgres/postgres-sub049/pgerr"
)

func execAggStrictDeserialize(st *ExprState, s *Step, pc int) int {
	d := s.D.(*aggDeserializeOp)
	if d.fc.Args[0].IsNull {
		return d.jumpnull
	}
	return execAggDeserialize(st, s, pc)
}

func execAggDeserialize(st *ExprState, s *Step, pc int) int {
	d := s.D.(*aggDeserializeOp)
	v, err := d.fc.Invoke()
	if err != nil {
		return st.fail(err)
	}
	setResult(s, v, d.fc.IsNull)
	return pc + 1
}

func execAggStrictInputCheckArgs(st *ExprState, s *Step, pc int) int {
	d := s.D.(*aggStrictCheckOp)
	for i := range d.args {
		if d.args[i].IsNull {
			return d.jumpnull
		}
	}
	return pc + 1
}

func execAggStrictInputCheckNulls(st *ExprState, s *Step, pc int) int {
	d := s.D.(*aggStrictCheckOp)
	for _, isnull := range d.nulls {
		if isnull {
			return d.jumpnull
		}
	}
	return pc + 1
}

func execAggPergroupNullCheck(st *ExprState, s *Step, pc int) int {
	d := s.D.(*aggNullCheckOp)
	if d.agg.groupsFor(d.setoff) == nil {
		return d.jumpnull
	}
	return pc + 1
}

// group returns the state the step transitions.
func (d *aggTransOp) group() (*aggGroup, error) {
	groups := d.agg.groupsFor(d.setoff)
	if groups == nil {
		return nil, pgerr.Invariant("no per-group state for aggregate set %d", d.setoff)
	}
	return &groups[d.transno], nil
}

func advanceTrans(st *ExprState, s *Step, pc int, init, strict, byref bool) int {
	d := s.D.(*aggTransOp)
	g, err := d.group()
	if err != nil {
		return st.fail(err)
	}
	if init && g.noTransValue {
		d.agg.initGroup(d.pt, g, d.setoff)
		return pc + 1
	}
	if strict && g.transNull {
		return pc + 1
	}
	if err := d.agg.transition(d.pt, g, d.setoff, byref); err != nil {
		return st.fail(err)
	}
	return pc + 1
}

func execAggTransInitStrictByVal(st *ExprState, s *Step, pc int) int {
	return advanceTrans(st, s, pc, true, true, false)
}

func execAggTransStrictByVal(st *ExprState, s *Step, pc int) int {
	return advanceTrans(st, s, pc, false, true, false)
}

func execAggTransByVal(st *ExprState, s *Step, pc int) int {
	return advanceTrans(st, s, pc, false, false, false)
}

func execAggTransInitStrictByRef(st *ExprState, s *Step, pc int) int {
	return advanceTrans(st, s, pc, true, true, true)
}

func execAggTransStrictByRef(st *ExprState, s *Step, pc int) int {
	return advanceTrans(st, s, pc, false, true, true)
}

func execAggTransByRef(st *ExprState, s *Step, pc int) int {
	return advanceTrans(st, s, pc, false, false, true)
}

func execAggPresortedDistinctSingle(st *ExprState, s *Step, pc int) int {
	d := s.D.(*aggDistinctOp)
	pt := d.pt
	cur := pt.fc.Args[1]
	if pt.haveLast {
		same, err := equalDatums(pt.eqfns[0], pt.last[0], cur)
		if err != nil {
			return st.fail(err)
		}
		if same {
			return d.jumpdistinct
		}
	}
	pt.last[0], pt.haveLast = cur, true
	return pc + 1
}

func execAggPresortedDistinctMulti(st *ExprState, s *Step, pc int) int {
	d := s.D.(*aggDistinctOp)
	pt := d.pt
	cur := pt.fc.Args[1 : 1+pt.numTransInputs]
	if pt.haveLast {
		same, err := pt.sameInputs(pt.last, cur)
		if err != nil {
			return st.fail(err)
		}
		if same {
			return d.jumpdistinct
		}
	}
	copy(pt.last, cur)
	pt.haveLast = true
	return pc + 1
}

func execAggOrderedTransDatum(st *ExprState, s *Step, pc int) int {
	d := s.D.(*aggTransOp)
	v := d.pt.sortValues[0]
	if err := d.pt.sorts[d.setoff].PutDatum(v.Value, v.IsNull); err != nil {
		return st.fail(err)
	}
	return pc + 1
}

func execAggOrderedTransTuple(st *ExprState, s *Step, pc int) int {
	d := s.D.(*aggTransOp)
	pt := d.pt
	for i := range pt.sortRow {
		pt.sortRow[i].Value, pt.sortRow[i].IsNull = pt.sortVals[i], pt.sortNulls[i]
	}
	if err := pt.sorts[d.setoff].PutTuple(pt.sortRow); err != nil {
		return st.fail(err)
	}
	return pc + 1
}
