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
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

// Flags describe the state of a program.
type Flags uint32

const (
	// FlagIsQual marks a qual program.
	FlagIsQual Flags = 1 << iota
	// FlagInitialized is set by Ready.
	FlagInitialized
	// FlagChecked is set once the input slots
	// have been checked against the Vars.
	FlagChecked
	// FlagDirectThreaded means each step's handler
	// has been copied into the step.
	FlagDirectThreaded
	// FlagJIT means the program runs as compiled
	// closures.
	FlagJIT
)

type evalFunc func(st *ExprState, ec *ExprContext) (datum.Datum, bool, error)

// ExprState is a compiled expression.
//
// An ExprState is not safe for concurrent use;
// independent states compiled from the same tree are.
type ExprState struct {
	Flags      Flags
	Result     datum.Datum
	ResultNull bool
	// ResultSlot receives the columns of
	// projection programs.
	ResultSlot *tuple.Slot

	steps []Step
	expr  expr.Node

	parent    *Parent
	cat       catalog.Catalog
	extParams *ParamListInfo
	escontext *pgerr.ErrorSaveContext

	// innermost CASE and domain test values;
	// only meaningful during compilation
	caseValue   *datum.Datum
	caseNull    *bool
	domainValue *datum.Datum
	domainNull  *bool

	varChecks []varCheck

	evalfn evalFunc
	ec     *ExprContext
	err    error
	jit    atomic.Pointer[jitProgram]
}

type varCheck struct {
	source expr.VarSource
	attnum int
	typ    oid.Oid
}

func newState(node expr.Node, parent *Parent) *ExprState {
	st := &ExprState{expr: node, parent: parent}
	if parent != nil {
		st.cat = parent.Catalog
		st.extParams = parent.Params
	}
	return st
}

// Len returns the number of steps.
func (st *ExprState) Len() int { return len(st.steps) }

// Step returns step i.
func (st *ExprState) Step(i int) *Step { return &st.steps[i] }

// Ops returns the opcodes of the program.
func (st *ExprState) Ops() []Op {
	ops := make([]Op, len(st.steps))
	for i := range st.steps {
		ops[i] = st.steps[i].Op
	}
	return ops
}

// push appends s; missing result
// locations default to the state result.
func (st *ExprState) push(s Step) int {
	if s.ResValue == nil {
		s.ResValue = &st.Result
	}
	if s.ResNull == nil {
		s.ResNull = &st.ResultNull
	}
	st.steps = append(st.steps, s)
	return len(st.steps) - 1
}

// patch points every unpatched target of the
// listed steps at the next step to be emitted.
func (st *ExprState) patch(list []int) {
	here := len(st.steps)
	for _, i := range list {
		j, ok := st.steps[i].D.(jumper)
		if !ok {
			panic("vm: patching a step without jump targets")
		}
		for _, t := range j.targets() {
			if *t == unpatched {
				*t = here
			}
		}
	}
}

// fail records err and stops the program.
func (st *ExprState) fail(err error) int {
	st.err = err
	return -1
}

// softError routes err into the error-save
// context when there is one. It returns the
// error that must still be raised.
func (st *ExprState) softError(err error) error {
	return pgerr.Save(st.escontext, err)
}

// Validate checks the structural invariants of
// a program: result locations are set, jumps
// are in range and the last step terminates.
func (st *ExprState) Validate() error {
	n := len(st.steps)
	if n == 0 {
		return pgerr.Invariant("empty program")
	}
	if op := st.steps[n-1].Op; op != OpDone && op != OpDoneNoReturn {
		return pgerr.Invariant("program ends with %s", op)
	}
	for i := range st.steps {
		s := &st.steps[i]
		if s.Op >= _maxop {
			return pgerr.Invariant("step %d: unknown opcode %d", i, uint16(s.Op))
		}
		if s.ResValue == nil || s.ResNull == nil {
			return pgerr.Invariant("step %d (%s) has no result location", i, s.Op)
		}
		j, ok := s.D.(jumper)
		if !ok {
			continue
		}
		for _, t := range j.targets() {
			if *t < 0 || *t >= n {
				return pgerr.Invariant("step %d (%s) jumps to %d", i, s.Op, *t)
			}
		}
	}
	return nil
}

// Ready finishes a program for evaluation,
// choosing the dispatch strategy. It is
// called by Eval if necessary.
func (st *ExprState) Ready() error {
	if st.Flags&FlagInitialized != 0 {
		return nil
	}
	cfg := st.config()
	if cfg.Validate {
		if err := st.Validate(); err != nil {
			errorf("%s\n%s", err, st.Redacted())
			return err
		}
	}
	var run evalFunc
	switch st.dispatch(cfg) {
	case DispatchJIT:
		st.Flags |= FlagJIT
		run = evalJITStub
	case DispatchThreaded:
		for i := range st.steps {
			st.steps[i].fn = opinfo[st.steps[i].Op].fn
		}
		st.Flags |= FlagDirectThreaded
		run = st.fastPath()
	default:
		run = st.fastPath()
	}
	if len(st.varChecks) > 0 {
		st.evalfn = func(st *ExprState, ec *ExprContext) (datum.Datum, bool, error) {
			if err := st.checkSlots(ec); err != nil {
				return datum.Null, true, err
			}
			st.Flags |= FlagChecked
			st.evalfn = run
			return run(st, ec)
		}
	} else {
		st.Flags |= FlagChecked
		st.evalfn = run
	}
	st.Flags |= FlagInitialized
	return nil
}

func (st *ExprState) config() *Config {
	if st.parent != nil && st.parent.Config != nil {
		return st.parent.Config
	}
	return defaultConfig
}

func (st *ExprState) dispatch(cfg *Config) DispatchLevel {
	level := cfg.dispatchLevel()
	if level == DispatchJIT {
		cost := 0.0
		if st.parent != nil {
			cost = st.parent.Cost
		}
		if !cfg.JIT.Enabled || cost < cfg.JIT.AboveCost {
			level = DispatchThreaded
		}
	}
	return level
}

// Eval evaluates the program.
func (st *ExprState) Eval(ec *ExprContext) (datum.Datum, bool, error) {
	if st.evalfn == nil {
		if err := st.Ready(); err != nil {
			return datum.Null, true, err
		}
	}
	return st.evalfn(st, ec)
}

// EvalQual evaluates a qual program; a nil
// program is true and a null result false.
func EvalQual(st *ExprState, ec *ExprContext) (bool, error) {
	if st == nil {
		return true, nil
	}
	v, isnull, err := st.Eval(ec)
	if err != nil {
		return false, err
	}
	return !isnull && v.Bool(), nil
}

// EvalCheck evaluates a check-constraint program;
// a nil program and a null result are true.
func EvalCheck(st *ExprState, ec *ExprContext) (bool, error) {
	if st == nil {
		return true, nil
	}
	v, isnull, err := st.Eval(ec)
	if err != nil {
		return false, err
	}
	return isnull || v.Bool(), nil
}

// checkSlots verifies that the input slots
// match the types the Vars were compiled for.
func (st *ExprState) checkSlots(ec *ExprContext) error {
	for i := range st.varChecks {
		vc := &st.varChecks[i]
		slot := ec.slot(vc.source)
		if slot == nil {
			return pgerr.Invariant("no %s slot for attribute %d", vc.source, vc.attnum)
		}
		if slot.Desc == nil {
			continue
		}
		if vc.attnum > slot.Desc.NumAttrs() {
			return errors.WithDetailf(
				pgerr.Newf(pgerr.CodeDatatypeMismatch, "table row type and query-specified row type do not match"),
				"Table row contains %d attributes, but query expects more.", slot.Desc.NumAttrs())
		}
		a := slot.Desc.Attr(vc.attnum)
		if a.Dropped {
			continue
		}
		if a.Type != vc.typ {
			return errors.WithDetailf(
				pgerr.Newf(pgerr.CodeDatatypeMismatch, "attribute %d of type %s has wrong type", vc.attnum, expr.TypeName(slot.Desc.TypeID)),
				"Table has type %s, but query expects %s.", expr.TypeName(a.Type), expr.TypeName(vc.typ))
		}
	}
	return nil
}

var interruptPending atomic.Bool

// Interrupt requests that running programs stop
// at their next step with a cancellation error.
func Interrupt() { interruptPending.Store(true) }

// ClearInterrupt withdraws a pending interrupt.
func ClearInterrupt() { interruptPending.Store(false) }

func checkInterrupt() error {
	if interruptPending.CompareAndSwap(true, false) {
		return pgerr.Newf(pgerr.CodeQueryCanceled, "canceling statement due to user request")
	}
	return nil
}

// rowTypeCache remembers a row descriptor
// until its identifier changes.
type rowTypeCache struct {
	id   uint64
	desc *tuple.Desc
}

// get returns the current descriptor of typ and
// whether it differs from the cached one.
func (c *rowTypeCache) get(cat catalog.Catalog, typ oid.Oid, typmod int32) (*tuple.Desc, bool, error) {
	d, err := cat.RowDesc(typ, typmod)
	if err != nil {
		return nil, false, err
	}
	if c.desc != nil && c.id == d.ID {
		return c.desc, false, nil
	}
	c.id, c.desc = d.ID, d
	return d, true, nil
}
