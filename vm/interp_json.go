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
	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/jsonpath"
	"github.com/postgres/postgres-sub049/pgerr"
)

type jsonCtorOp struct {
	node     *expr.JSONConstructorExpr
	values   []datum.Datum
	nulls    []bool
	argTypes []oid.Oid
}

type isJSONOp struct {
	pred *expr.JSONIsPredicate
	typ  oid.Oid
}

// jsonExprState is shared by every step of one
// JSON_EXISTS, JSON_QUERY or JSON_VALUE.
type jsonExprState struct {
	node *expr.JSONExpr

	formatted     datum.NullableDatum
	formattedType oid.Oid
	pathspec      datum.NullableDatum
	passing       []datum.NullableDatum
	passingTypes  []oid.Oid

	// flags read by JUMP_IF_NOT_TRUE
	errorFlag datum.NullableDatum
	emptyFlag datum.NullableDatum

	jumpEvalCoercion int
	jumpError        int
	jumpEmpty        int
	jumpEnd          int

	// input is the input function of the
	// returning type, used for I/O coercion
	input     *fmgr.CallInfo
	ioparam   oid.Oid
	escontext pgerr.ErrorSaveContext
}

func (j *jsonExprState) targets() []*int {
	var out []*int
	for _, p := range []*int{&j.jumpEvalCoercion, &j.jumpError, &j.jumpEmpty, &j.jumpEnd} {
		if *p != noJump {
			out = append(out, p)
		}
	}
	return out
}

type jsonCoercionOp struct {
	js   *jsonExprState
	soft bool
}

func execJSONConstructor(st *ExprState, s *Step, pc int) int {
	d := s.D.(*jsonCtorOp)
	n := d.node
	var (
		v   any
		err error
	)
	switch n.Kind {
	case expr.JSONObjectCtor:
		v, err = st.jsonBuildObject(d)
	case expr.JSONArrayCtor:
		v, err = st.jsonBuildArray(d)
	case expr.JSONScalarCtor:
		if d.nulls[0] {
			setNull(s)
			return pc + 1
		}
		v, err = st.toJSON(d.argTypes[0], d.values[0], false)
	case expr.JSONParseCtor:
		if d.nulls[0] {
			setNull(s)
			return pc + 1
		}
		var text string
		text, err = datum.TextOf(d.values[0])
		if err == nil {
			var j *datum.JSON
			j, err = datum.ParseJSON(text, n.Unique)
			if err != nil {
				err = jsonParseError(err)
			} else {
				v = j.V
			}
		}
	case expr.JSONSerializeCtor:
		if d.nulls[0] {
			setNull(s)
			return pc + 1
		}
		v, err = fromJSONDoc(d.argTypes[0], d.values[0])
		if err == nil {
			setResult(s, datum.FromText(jsonText(v)), false)
			return pc + 1
		}
	default:
		err = pgerr.Invariant("unexpected JSON constructor kind %d", n.Kind)
	}
	if err != nil {
		return st.fail(err)
	}
	setResult(s, jsonDatum(n.Returning.TypeID, v), false)
	return pc + 1
}

func (st *ExprState) jsonBuildObject(d *jsonCtorOp) (any, error) {
	if len(d.values)%2 != 0 {
		return nil, pgerr.Newf(pgerr.CodeInvalidParameter, "argument list must have even number of elements")
	}
	obj := make(map[string]any, len(d.values)/2)
	for i := 0; i < len(d.values); i += 2 {
		if d.nulls[i] {
			return nil, errors.WithDetail(
				pgerr.Newf(pgerr.CodeNullValueNotAllowed, "null value not allowed for object key"),
				"Object keys should be text.")
		}
		key, err := st.toJSON(d.argTypes[i], d.values[i], false)
		if err != nil {
			return nil, err
		}
		k := jsonScalarText(key)
		if d.nulls[i+1] && d.node.AbsentOnNull {
			continue
		}
		if _, dup := obj[k]; dup && d.node.Unique {
			return nil, pgerr.Newf(pgerr.CodeDuplicateJSONKey, "duplicate JSON object key value: %q", k)
		}
		val, err := st.toJSON(d.argTypes[i+1], d.values[i+1], d.nulls[i+1])
		if err != nil {
			return nil, err
		}
		obj[k] = val
	}
	return obj, nil
}

func (st *ExprState) jsonBuildArray(d *jsonCtorOp) (any, error) {
	arr := make([]any, 0, len(d.values))
	for i := range d.values {
		if d.nulls[i] && d.node.AbsentOnNull {
			continue
		}
		v, err := st.toJSON(d.argTypes[i], d.values[i], d.nulls[i])
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func execIsJSON(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		return pc + 1
	}
	d := s.D.(*isJSONOp)
	var doc any
	switch d.typ {
	case oid.T_jsonb:
		j, err := catalog.JSONBOf(*s.ResValue)
		if err != nil {
			return st.fail(err)
		}
		doc = j.V
	case oid.T_json, oid.T_text, oid.T_varchar, oid.T_bpchar:
		text, err := datum.TextOf(*s.ResValue)
		if err != nil {
			return st.fail(err)
		}
		j, err := datum.ParseJSON(text, d.pred.UniqueKeys)
		if err != nil {
			setBool(s, false)
			return pc + 1
		}
		doc = j.V
	default:
		return st.fail(pgerr.Invariant("IS JSON on unsupported type %d", d.typ))
	}
	var ok bool
	switch d.pred.ItemType {
	case expr.JSONTypeAny:
		ok = true
	case expr.JSONTypeObject:
		_, ok = doc.(map[string]any)
	case expr.JSONTypeArray:
		_, ok = doc.([]any)
	case expr.JSONTypeScalar:
		switch doc.(type) {
		case map[string]any, []any:
		default:
			ok = true
		}
	}
	setBool(s, ok)
	return pc + 1
}

// throwsOnError is false for the default
// behaviors: FALSE ON ERROR for JSON_EXISTS,
// NULL ON ERROR otherwise.
func (j *jsonExprState) throwsOnError() bool {
	return j.node.OnError != nil && j.node.OnError.Kind == expr.BehaviorError
}

// pathError routes err to the ON ERROR arm,
// or raises it.
func (j *jsonExprState) pathError(st *ExprState, s *Step, err error) int {
	if pgerr.IsInvariant(err) || j.throwsOnError() {
		return st.fail(err)
	}
	j.errorFlag = datum.NullableDatum{Value: datum.FromBool(true)}
	setNull(s)
	if j.jumpError == noJump {
		if j.node.Op == expr.JSONExistsOp {
			setBool(s, false)
		}
		return j.jumpEnd
	}
	return j.jumpError
}

func (j *jsonExprState) vars(st *ExprState) (jsonpath.Vars, error) {
	if len(j.passing) == 0 {
		return nil, nil
	}
	vars := make(jsonpath.Vars, len(j.passing))
	for i, name := range j.node.PassingNames {
		v, err := st.toJSON(j.passingTypes[i], j.passing[i].Value, j.passing[i].IsNull)
		if err != nil {
			return nil, err
		}
		vars[name] = v
	}
	return vars, nil
}

func (j *jsonExprState) next() int {
	if j.jumpEvalCoercion != noJump {
		return j.jumpEvalCoercion
	}
	return j.jumpEnd
}

func execJSONExprPath(st *ExprState, s *Step, pc int) int {
	d := s.D.(*jsonExprState)
	n := d.node
	d.errorFlag = datum.NullableDatum{Value: datum.FromBool(false)}
	d.emptyFlag = datum.NullableDatum{Value: datum.FromBool(false)}
	d.escontext.Reset()

	doc, err := fromJSONDoc(d.formattedType, d.formatted.Value)
	if err != nil {
		return d.pathError(st, s, err)
	}
	path, err := catalog.PathOf(d.pathspec.Value)
	if err != nil {
		return st.fail(pgerr.Invariant("%v", err))
	}
	vars, err := d.vars(st)
	if err != nil {
		return st.fail(err)
	}
	items, err := path.Query(doc, vars)
	if err != nil {
		return d.pathError(st, s, err)
	}

	switch n.Op {
	case expr.JSONExistsOp:
		setBool(s, len(items) > 0)
		return d.next()
	case expr.JSONQueryOp:
		if len(items) == 0 {
			break
		}
		wrap := false
		switch n.Wrapper {
		case expr.WrapperUnconditional:
			wrap = true
		case expr.WrapperConditional:
			wrap = len(items) > 1
		}
		if !wrap && len(items) > 1 {
			return d.pathError(st, s, errors.WithHint(
				pgerr.Newf(pgerr.CodeSQLJSONMoreItems, "JSON path expression in JSON_QUERY should return single item without wrapper"),
				"Use the WITH WRAPPER clause to wrap SQL/JSON items into an array."))
		}
		var v any
		if wrap {
			v = items
		} else {
			v = items[0]
		}
		if d.jumpEvalCoercion == noJump {
			setResult(s, jsonDatum(n.Returning.TypeID, v), false)
			return d.jumpEnd
		}
		setResult(s, catalog.JSONB(v), false)
		return d.jumpEvalCoercion
	case expr.JSONValueOp:
		if len(items) == 0 {
			break
		}
		if len(items) > 1 {
			return d.pathError(st, s, pgerr.Newf(pgerr.CodeSQLJSONMoreItems,
				"JSON path expression in JSON_VALUE should return single scalar item"))
		}
		switch items[0].(type) {
		case map[string]any, []any:
			return d.pathError(st, s, pgerr.Newf(pgerr.CodeSQLJSONScalar,
				"JSON path expression in JSON_VALUE should return single scalar item"))
		case nil:
			setNull(s)
			return d.jumpEnd
		}
		setResult(s, datum.FromText(jsonScalarText(items[0])), false)
		return d.next()
	}

	// no items
	if n.OnEmpty != nil && n.OnEmpty.Kind == expr.BehaviorError {
		return d.pathError(st, s, pgerr.Newf(pgerr.CodeSQLJSONNoItem, "no SQL/JSON item found for specified path"))
	}
	setNull(s)
	if d.jumpEmpty == noJump {
		return d.jumpEnd
	}
	d.emptyFlag = datum.NullableDatum{Value: datum.FromBool(true)}
	return d.jumpEmpty
}

// execJSONExprCoercion converts the raw path
// result in the step's cell to the returning type.
func execJSONExprCoercion(st *ExprState, s *Step, pc int) int {
	if *s.ResNull {
		return pc + 1
	}
	c := s.D.(*jsonCoercionOp)
	d := c.js
	n := d.node
	v := *s.ResValue
	var text string
	switch ref := v.Ref().(type) {
	case *datum.JSON:
		if n.OmitQuotes {
			if str, ok := ref.V.(string); ok {
				text = str
				break
			}
		}
		if n.UseJSONCoercion || n.Returning.TypeID == oid.T_jsonb {
			setResult(s, jsonDatum(n.Returning.TypeID, ref.V), false)
			return pc + 1
		}
		text = jsonText(ref.V)
	case nil:
		if n.Op == expr.JSONExistsOp {
			text = existsText(n.Returning.TypeID, v.Bool())
		}
	default:
		var err error
		text, err = datum.TextOf(v)
		if err != nil {
			return st.fail(err)
		}
	}
	switch n.Returning.TypeID {
	case oid.T_text, oid.T_varchar, oid.T_json:
		if d.input == nil {
			setResult(s, datum.FromText(text), false)
			return pc + 1
		}
	}
	if d.input == nil {
		return st.fail(pgerr.Invariant("no coercion to type %d", n.Returning.TypeID))
	}
	in := d.input
	if c.soft {
		in.Context = &d.escontext
	} else {
		in.Context = nil
	}
	in.Args[0] = datum.NullableDatum{Value: datum.FromText(text)}
	in.Args[1] = datum.NullableDatum{Value: datum.FromOid(d.ioparam)}
	in.Args[2] = datum.NullableDatum{Value: datum.FromInt32(n.Returning.TypMod)}
	res, err := in.Invoke()
	if err != nil {
		if c.soft {
			err = pgerr.Save(&d.escontext, err)
		}
		if err != nil {
			return st.fail(err)
		}
	}
	if c.soft && d.escontext.HasError() {
		setNull(s)
		return pc + 1
	}
	setResult(s, res, in.IsNull)
	return pc + 1
}

func execJSONExprCoercionFinish(st *ExprState, s *Step, pc int) int {
	d := s.D.(*jsonExprState)
	if !d.escontext.HasError() {
		return pc + 1
	}
	if d.throwsOnError() {
		return st.fail(d.escontext.Err())
	}
	d.errorFlag = datum.NullableDatum{Value: datum.FromBool(true)}
	setNull(s)
	if d.jumpError == noJump {
		return d.jumpEnd
	}
	return d.jumpError
}

func existsText(typ oid.Oid, b bool) string {
	switch typ {
	case oid.T_int2, oid.T_int4, oid.T_int8:
		if b {
			return "1"
		}
		return "0"
	}
	return jsonScalarText(b)
}
