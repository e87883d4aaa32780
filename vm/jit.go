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
	"github.com/postgres/postgres-sub049/fmgr"
)

// jitFunc runs one lowered step and returns
// the index of the next one.
type jitFunc func(st *ExprState) int

// jitProgram is a program lowered to one
// closure per step. Operand records and jump
// targets are bound when the closure is built.
type jitProgram struct {
	code    []jitFunc
	inlined int
}

// evalJITStub lowers the program on its
// first evaluation and then runs it.
func evalJITStub(st *ExprState, ec *ExprContext) (datum.Datum, bool, error) {
	if st.jit.Load() == nil {
		p := st.lower()
		if st.jit.CompareAndSwap(nil, p) && st.config().JIT.Debug {
			st.parent.logf("jit: lowered %d steps, %d calls inlined", len(p.code), p.inlined)
		}
	}
	st.evalfn = evalJIT
	return evalJIT(st, ec)
}

func evalJIT(st *ExprState, ec *ExprContext) (datum.Datum, bool, error) {
	st.ec = ec
	st.err = nil
	code := st.jit.Load().code
	pc := 0
	for pc >= 0 {
		if interruptPending.Load() {
			if err := checkInterrupt(); err != nil {
				return datum.Null, true, err
			}
		}
		pc = code[pc](st)
	}
	return st.finish(pc)
}

func (st *ExprState) lower() *jitProgram {
	cfg := st.config()
	inline := st.parent != nil && st.parent.Cost >= cfg.JIT.InlineAboveCost
	p := &jitProgram{code: make([]jitFunc, len(st.steps))}
	for pc := range st.steps {
		p.code[pc] = p.lowerStep(st, pc, inline)
	}
	return p
}

// lowerStep returns the closure of step pc.
// Opcodes without a specialized lowering call
// their interpreter handler.
func (p *jitProgram) lowerStep(st *ExprState, pc int, inline bool) jitFunc {
	s := &st.steps[pc]
	next := pc + 1
	resv, resn := s.ResValue, s.ResNull
	switch s.Op {
	case OpDone:
		return func(*ExprState) int { return stopReturn }
	case OpDoneNoReturn:
		return func(*ExprState) int { return stopNoReturn }
	case OpConst:
		d := s.D.(*constOp)
		v, isnull := d.value, d.isnull
		return func(*ExprState) int {
			*resv, *resn = v, isnull
			return next
		}
	case OpInnerVar, OpOuterVar, OpScanVar:
		src := varOpSource(s.Op)
		attnum := s.D.(*varOp).attnum
		return func(st *ExprState) int {
			slot := st.slot(src)
			if slot == nil {
				return st.fail(errNoSlot(src))
			}
			*resv, *resn = slot.Values[attnum], slot.IsNull[attnum]
			return next
		}
	case OpFuncExpr, OpFuncExprStrict:
		return p.lowerCall(s, next, s.Op == OpFuncExprStrict, inline)
	case OpQual:
		jumpdone := s.D.(*qualOp).jumpdone
		return func(*ExprState) int {
			if *resn || !resv.Bool() {
				*resv, *resn = datum.FromBool(false), false
				return jumpdone
			}
			return next
		}
	case OpJump:
		target := s.D.(*jumpOp).target
		return func(*ExprState) int { return target }
	case OpJumpIfNull:
		target := s.D.(*jumpOp).target
		return func(*ExprState) int {
			if *resn {
				return target
			}
			return next
		}
	case OpJumpIfNotNull:
		target := s.D.(*jumpOp).target
		return func(*ExprState) int {
			if !*resn {
				return target
			}
			return next
		}
	case OpJumpIfNotTrue:
		target := s.D.(*jumpOp).target
		return func(*ExprState) int {
			if *resn || !resv.Bool() {
				return target
			}
			return next
		}
	case OpNullTestIsNull:
		return func(*ExprState) int {
			*resv, *resn = datum.FromBool(*resn), false
			return next
		}
	case OpNullTestIsNotNull:
		return func(*ExprState) int {
			*resv, *resn = datum.FromBool(!*resn), false
			return next
		}
	}
	h := opinfo[s.Op].fn
	return func(st *ExprState) int { return h(st, s, pc) }
}

// lowerCall binds a function call. Strict
// two-argument calls of functions with an
// Inline2 form skip the call frame when
// inlining is enabled.
func (p *jitProgram) lowerCall(s *Step, next int, strict, inline bool) jitFunc {
	d := s.D.(*funcOp)
	resv, resn := s.ResValue, s.ResNull
	fc, fn, nargs := d.fc, d.fn, d.nargs
	if inline && strict && nargs == 2 && d.fi.Inline2 != nil {
		p.inlined++
		inl := d.fi.Inline2
		args := fc.Args
		return func(st *ExprState) int {
			if args[0].IsNull || args[1].IsNull {
				*resv, *resn = datum.Null, true
				return next
			}
			v, err := inl(args[0].Value, args[1].Value)
			if err != nil {
				return st.fail(err)
			}
			*resv, *resn = v, false
			return next
		}
	}
	return func(st *ExprState) int {
		if strict && anyNullArg(fc, nargs) {
			*resv, *resn = datum.Null, true
			return next
		}
		fc.IsNull = false
		v, err := fn(fc)
		if err != nil {
			return st.fail(err)
		}
		*resv, *resn = v, fc.IsNull
		return next
	}
}

func anyNullArg(fc *fmgr.CallInfo, nargs int) bool {
	for i := 0; i < nargs; i++ {
		if fc.Args[i].IsNull {
			return true
		}
	}
	return false
}

// Lowered reports whether the program
// has been lowered to closures.
func (st *ExprState) Lowered() bool { return st.jit.Load() != nil }
