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
)

func (st *ExprState) compileJSONConstructor(n *expr.JSONConstructorExpr, res Step) error {
	switch n.Kind {
	case expr.JSONObjectAggCtor, expr.JSONArrayAggCtor:
		if n.Func == nil {
			return pgerr.Invariant("JSON aggregate constructor without an aggregate")
		}
		if err := st.compile(n.Func, res.ResValue, res.ResNull); err != nil {
			return err
		}
	default:
		switch n.Kind {
		case expr.JSONParseCtor, expr.JSONScalarCtor, expr.JSONSerializeCtor:
			if len(n.Args) != 1 {
				return pgerr.Invariant("JSON constructor %d with %d arguments", n.Kind, len(n.Args))
			}
		}
		d := &jsonCtorOp{
			node:     n,
			values:   make([]datum.Datum, len(n.Args)),
			nulls:    make([]bool, len(n.Args)),
			argTypes: make([]oid.Oid, len(n.Args)),
		}
		for i, a := range n.Args {
			d.argTypes[i] = a.Type()
			if err := st.compile(a, &d.values[i], &d.nulls[i]); err != nil {
				return err
			}
		}
		s := res
		s.Op = OpJSONConstructor
		s.D = d
		st.push(s)
	}
	if n.Coercion != nil {
		savedValue, savedNull := st.caseValue, st.caseNull
		st.caseValue, st.caseNull = res.ResValue, res.ResNull
		err := st.compile(n.Coercion, res.ResValue, res.ResNull)
		st.caseValue, st.caseNull = savedValue, savedNull
		if err != nil {
			return err
		}
	}
	return nil
}

// jsonNeedsCoercion reports whether the raw
// result of n must be converted to its
// returning type.
func jsonNeedsCoercion(n *expr.JSONExpr) bool {
	typ := n.Returning.TypeID
	switch n.Op {
	case expr.JSONExistsOp:
		return typ != oid.T_bool
	case expr.JSONQueryOp:
		return (typ != oid.T_jsonb && typ != oid.T_json) || n.OmitQuotes
	}
	return typ != oid.T_text && typ != oid.T_varchar
}

// compileJSONExpr lays out JSON_EXISTS, JSON_QUERY
// and JSON_VALUE as
//
//	formatted, jump.null retnull
//	pathspec, jump.null retnull
//	passing values
//	jsonexpr.path
//	retnull: const null; jump end
//	coercion: coercion [finish]; jump end
//	onerror: jump.nottrue end; behavior; jump end
//	onempty: jump.nottrue end; behavior
//	end:
func (st *ExprState) compileJSONExpr(n *expr.JSONExpr, res Step) error {
	js := &jsonExprState{
		node:             n,
		formattedType:    n.FormattedExpr.Type(),
		jumpEvalCoercion: noJump,
		jumpError:        noJump,
		jumpEmpty:        noJump,
		jumpEnd:          unpatched,
	}
	if len(n.PassingNames) != len(n.PassingValues) {
		return pgerr.Invariant("JSON expression with %d names for %d passing values", len(n.PassingNames), len(n.PassingValues))
	}
	var toEnd, toNull []int

	if err := st.compile(n.FormattedExpr, &js.formatted.Value, &js.formatted.IsNull); err != nil {
		return err
	}
	toNull = append(toNull, st.jump(OpJumpIfNull, &js.formatted.Value, &js.formatted.IsNull))
	if err := st.compile(n.PathSpec, &js.pathspec.Value, &js.pathspec.IsNull); err != nil {
		return err
	}
	toNull = append(toNull, st.jump(OpJumpIfNull, &js.pathspec.Value, &js.pathspec.IsNull))
	js.passing = make([]datum.NullableDatum, len(n.PassingValues))
	js.passingTypes = make([]oid.Oid, len(n.PassingValues))
	for i, v := range n.PassingValues {
		js.passingTypes[i] = v.Type()
		if err := st.compile(v, &js.passing[i].Value, &js.passing[i].IsNull); err != nil {
			return err
		}
	}
	path := res
	path.Op = OpJSONExprPath
	path.D = js
	st.push(path)

	// a null input or path yields null
	st.patch(toNull)
	null := res
	null.Op = OpConst
	null.D = &constOp{isnull: true}
	st.push(null)
	toEnd = append(toEnd, st.jump(OpJump, nil, nil))

	soft := !js.throwsOnError()
	if jsonNeedsCoercion(n) {
		if err := st.jsonInput(js); err != nil {
			return err
		}
		js.jumpEvalCoercion = len(st.steps)
		c := res
		c.Op = OpJSONExprCoercion
		c.D = &jsonCoercionOp{js: js, soft: soft}
		st.push(c)
		if soft {
			f := res
			f.Op = OpJSONExprCoercionFinish
			f.D = js
			st.push(f)
		}
		toEnd = append(toEnd, st.jump(OpJump, nil, nil))
	}

	if b := n.OnError; b != nil && b.Kind != expr.BehaviorError {
		js.jumpError = len(st.steps)
		skip, err := st.compileJSONBehavior(js, b, &js.errorFlag, res)
		if err != nil {
			return err
		}
		toEnd = append(toEnd, skip, st.jump(OpJump, nil, nil))
	}
	if b := n.OnEmpty; b != nil && b.Kind != expr.BehaviorError {
		js.jumpEmpty = len(st.steps)
		skip, err := st.compileJSONBehavior(js, b, &js.emptyFlag, res)
		if err != nil {
			return err
		}
		toEnd = append(toEnd, skip)
	}

	js.jumpEnd = len(st.steps)
	st.patch(toEnd)
	return nil
}

// compileJSONBehavior emits an ON ERROR or ON EMPTY
// arm, entered only when flag is set. It returns
// the step that skips the arm, to be patched to
// the end of the expression.
func (st *ExprState) compileJSONBehavior(js *jsonExprState, b *expr.JSONBehavior, flag *datum.NullableDatum, res Step) (int, error) {
	skip := st.push(Step{Op: OpJumpIfNotTrue, ResValue: &flag.Value, ResNull: &flag.IsNull, D: &jumpOp{target: unpatched}})
	if b.Expr != nil {
		if err := st.compile(b.Expr, res.ResValue, res.ResNull); err != nil {
			return 0, err
		}
	} else {
		c := res
		c.Op = OpConst
		c.D = behaviorConst(b.Kind)
		st.push(c)
	}
	if b.Coerce {
		if js.input == nil && js.node.Returning.TypeID != oid.T_text && js.node.Returning.TypeID != oid.T_varchar {
			if err := st.jsonInput(js); err != nil {
				return 0, err
			}
		}
		c := res
		c.Op = OpJSONExprCoercion
		c.D = &jsonCoercionOp{js: js}
		st.push(c)
	}
	return skip, nil
}

func behaviorConst(k expr.JSONBehaviorKind) *constOp {
	switch k {
	case expr.BehaviorTrue:
		return &constOp{value: datum.FromBool(true)}
	case expr.BehaviorFalse:
		return &constOp{value: datum.FromBool(false)}
	}
	return &constOp{isnull: true}
}

// jsonInput sets up the input function of the
// returning type.
func (st *ExprState) jsonInput(js *jsonExprState) error {
	typ := js.node.Returning.TypeID
	switch typ {
	case oid.T_text, oid.T_varchar, oid.T_json:
		return nil
	}
	ti, err := st.cat.Type(typ)
	if err != nil {
		return err
	}
	fi, err := st.cat.Func(ti.Input)
	if err != nil {
		return err
	}
	js.input = fmgr.NewCallInfo(fi, 3, 0, nil)
	js.ioparam = ti.IOParam()
	return nil
}
