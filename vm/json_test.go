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
	"testing"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/jsonpath"
	"github.com/postgres/postgres-sub049/pgerr"
)

func pathConst(t *testing.T, s string) *expr.Const {
	t.Helper()
	p, err := jsonpath.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return expr.NewConst(catalog.TypeJSONPath, datum.FromRef(p))
}

func TestJSONConstructor(t *testing.T) {
	cat := catalog.NewMemory()
	object := func(absent, unique bool, args ...expr.Node) *expr.JSONConstructorExpr {
		return &expr.JSONConstructorExpr{
			Kind:         expr.JSONObjectCtor,
			Args:         args,
			Returning:    expr.JSONReturning{TypeID: oid.T_json, TypMod: -1},
			AbsentOnNull: absent,
			Unique:       unique,
		}
	}
	array := func(absent bool, args ...expr.Node) *expr.JSONConstructorExpr {
		return &expr.JSONConstructorExpr{
			Kind:         expr.JSONArrayCtor,
			Args:         args,
			Returning:    expr.JSONReturning{TypeID: oid.T_json, TypMod: -1},
			AbsentOnNull: absent,
		}
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkText(t, evalNode(t, object(false, false, expr.Text("b"), int4Null(), expr.Text("a"), expr.Int4(1)), p, nil),
			`{"a": 1, "b": null}`)
		checkText(t, evalNode(t, object(true, false, expr.Text("b"), int4Null(), expr.Text("a"), expr.Int4(1)), p, nil),
			`{"a": 1}`)
		checkText(t, evalNode(t, object(false, false), p, nil), `{}`)
		checkCode(t, evalErr(t, object(false, true, expr.Text("a"), expr.Int4(1), expr.Text("a"), expr.Int4(2)), p, nil),
			pgerr.CodeDuplicateJSONKey)
		checkCode(t, evalErr(t, object(false, false, expr.NullConst(oid.T_text), expr.Int4(1)), p, nil),
			pgerr.CodeNullValueNotAllowed)

		checkText(t, evalNode(t, array(false, expr.Int4(1), expr.Text("x"), int4Null(), expr.Bool(true)), p, nil),
			`[1, "x", null, true]`)
		checkText(t, evalNode(t, array(true, expr.Int4(1), expr.Text("x"), int4Null()), p, nil), `[1, "x"]`)
		checkText(t, evalNode(t, array(false, int4Array(1, 2)), p, nil), `[[1, 2]]`)
	})
}

func TestJSONParseAndScalar(t *testing.T) {
	cat := catalog.NewMemory()
	ctor := func(kind expr.JSONCtorKind, unique bool, arg expr.Node) *expr.JSONConstructorExpr {
		return &expr.JSONConstructorExpr{
			Kind:      kind,
			Args:      []expr.Node{arg},
			Returning: expr.JSONReturning{TypeID: oid.T_json, TypMod: -1},
			Unique:    unique,
		}
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkText(t, evalNode(t, ctor(expr.JSONParseCtor, false, expr.Text(`{"k":[1,2]}`)), p, nil), `{"k": [1, 2]}`)
		checkCode(t, evalErr(t, ctor(expr.JSONParseCtor, true, expr.Text(`{"k":1,"k":2}`)), p, nil), pgerr.CodeDuplicateJSONKey)
		checkCode(t, evalErr(t, ctor(expr.JSONParseCtor, false, expr.Text(`{"k":`)), p, nil), pgerr.CodeInvalidJSONText)
		checkNull(t, evalNode(t, ctor(expr.JSONParseCtor, false, expr.NullConst(oid.T_text)), p, nil))
		checkText(t, evalNode(t, ctor(expr.JSONScalarCtor, false, expr.Int4(5)), p, nil), `5`)
		checkText(t, evalNode(t, ctor(expr.JSONScalarCtor, false, expr.Text(`a"b`)), p, nil), `"a\"b"`)
	})
}

func TestIsJSON(t *testing.T) {
	cat := catalog.NewMemory()
	is := func(s expr.Node, item expr.JSONItemType, unique bool) *expr.JSONIsPredicate {
		return &expr.JSONIsPredicate{Expr: s, ItemType: item, UniqueKeys: unique}
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		for _, tc := range []struct {
			doc    string
			item   expr.JSONItemType
			unique bool
			want   bool
		}{
			{`{"a": 1}`, expr.JSONTypeAny, false, true},
			{`{"a": 1}`, expr.JSONTypeObject, false, true},
			{`[1]`, expr.JSONTypeObject, false, false},
			{`[1]`, expr.JSONTypeArray, false, true},
			{`"s"`, expr.JSONTypeScalar, false, true},
			{`[1]`, expr.JSONTypeScalar, false, false},
			{`{"a":`, expr.JSONTypeAny, false, false},
			{`{"a": 1, "a": 2}`, expr.JSONTypeObject, false, true},
			{`{"a": 1, "a": 2}`, expr.JSONTypeObject, true, false},
		} {
			got := evalNode(t, is(expr.Text(tc.doc), tc.item, tc.unique), p, nil)
			if got.isnull || got.v.Bool() != tc.want {
				t.Errorf("%s IS JSON %d (unique %v): got %s", tc.doc, tc.item, tc.unique, got)
			}
		}
		checkNull(t, evalNode(t, is(expr.NullConst(oid.T_text), expr.JSONTypeAny, false), p, nil))
	})
}

const testDoc = `{"a": 5, "b": [1, 2], "s": "abc"}`

func jsonExpr(t *testing.T, op expr.JSONExprOp, path string, typ oid.Oid) *expr.JSONExpr {
	return &expr.JSONExpr{
		Op:            op,
		FormattedExpr: expr.Text(testDoc),
		PathSpec:      pathConst(t, path),
		Returning:     expr.JSONReturning{TypeID: typ, TypMod: -1},
	}
}

func TestJSONValue(t *testing.T) {
	cat := catalog.NewMemory()
	onError := func(n *expr.JSONExpr) *expr.JSONExpr {
		n.OnError = &expr.JSONBehavior{Kind: expr.BehaviorError}
		return n
	}
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkText(t, evalNode(t, jsonExpr(t, expr.JSONValueOp, "$.a", oid.T_text), p, nil), "5")
		checkText(t, evalNode(t, jsonExpr(t, expr.JSONValueOp, "$.s", oid.T_text), p, nil), "abc")
		checkInt(t, evalNode(t, jsonExpr(t, expr.JSONValueOp, "$.a", oid.T_int4), p, nil), 5)
		checkInt(t, evalNode(t, jsonExpr(t, expr.JSONValueOp, "$.b[1]", oid.T_int4), p, nil), 2)

		// errors default to NULL ON ERROR
		checkNull(t, evalNode(t, jsonExpr(t, expr.JSONValueOp, "$.b", oid.T_text), p, nil))
		checkNull(t, evalNode(t, jsonExpr(t, expr.JSONValueOp, "$.s", oid.T_int4), p, nil))
		checkCode(t, evalErr(t, onError(jsonExpr(t, expr.JSONValueOp, "$.b", oid.T_text)), p, nil), pgerr.CodeSQLJSONScalar)
		checkCode(t, evalErr(t, onError(jsonExpr(t, expr.JSONValueOp, "$.s", oid.T_int4)), p, nil), pgerr.CodeInvalidTextRep)

		// no item
		checkNull(t, evalNode(t, jsonExpr(t, expr.JSONValueOp, "$.z", oid.T_text), p, nil))
		dflt := jsonExpr(t, expr.JSONValueOp, "$.z", oid.T_text)
		dflt.OnEmpty = &expr.JSONBehavior{Kind: expr.BehaviorDefault, Expr: expr.Text("none")}
		checkText(t, evalNode(t, dflt, p, nil), "none")
		empty := onError(jsonExpr(t, expr.JSONValueOp, "$.z", oid.T_text))
		empty.OnEmpty = &expr.JSONBehavior{Kind: expr.BehaviorError}
		checkCode(t, evalErr(t, empty, p, nil), pgerr.CodeSQLJSONNoItem)

		// null input or path
		nullDoc := jsonExpr(t, expr.JSONValueOp, "$.a", oid.T_text)
		nullDoc.FormattedExpr = expr.NullConst(oid.T_text)
		checkNull(t, evalNode(t, nullDoc, p, nil))

		passing := jsonExpr(t, expr.JSONValueOp, "$x", oid.T_text)
		passing.PassingNames = []string{"x"}
		passing.PassingValues = []expr.Node{expr.Int4(3)}
		checkText(t, evalNode(t, passing, p, nil), "3")
	})
}

func TestJSONExists(t *testing.T) {
	cat := catalog.NewMemory()
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkBool(t, evalNode(t, jsonExpr(t, expr.JSONExistsOp, "$.a", oid.T_bool), p, nil), true)
		checkBool(t, evalNode(t, jsonExpr(t, expr.JSONExistsOp, "$.z", oid.T_bool), p, nil), false)
		// strict mode errors are FALSE ON ERROR
		checkBool(t, evalNode(t, jsonExpr(t, expr.JSONExistsOp, "strict $.z", oid.T_bool), p, nil), false)

		raise := jsonExpr(t, expr.JSONExistsOp, "strict $.z", oid.T_bool)
		raise.OnError = &expr.JSONBehavior{Kind: expr.BehaviorError}
		checkCode(t, evalErr(t, raise, p, nil), pgerr.CodeSQLJSONMemberNotFound)

		unknown := jsonExpr(t, expr.JSONExistsOp, "strict $.z", oid.T_bool)
		unknown.OnError = &expr.JSONBehavior{Kind: expr.BehaviorUnknown}
		checkNull(t, evalNode(t, unknown, p, nil))
	})
}

func TestJSONQuery(t *testing.T) {
	cat := catalog.NewMemory()
	eachMode(t, func(t *testing.T, m evalMode) {
		p := m.parent(cat)
		checkText(t, evalNode(t, jsonExpr(t, expr.JSONQueryOp, "$.b", oid.T_json), p, nil), "[1, 2]")

		// more than one item needs a wrapper
		checkNull(t, evalNode(t, jsonExpr(t, expr.JSONQueryOp, "$.b[*]", oid.T_json), p, nil))
		wrapped := jsonExpr(t, expr.JSONQueryOp, "$.b[*]", oid.T_json)
		wrapped.Wrapper = expr.WrapperUnconditional
		checkText(t, evalNode(t, wrapped, p, nil), "[1, 2]")
		cond := jsonExpr(t, expr.JSONQueryOp, "$.a", oid.T_json)
		cond.Wrapper = expr.WrapperConditional
		checkText(t, evalNode(t, cond, p, nil), "5")

		raise := jsonExpr(t, expr.JSONQueryOp, "$.b[*]", oid.T_json)
		raise.OnError = &expr.JSONBehavior{Kind: expr.BehaviorError}
		checkCode(t, evalErr(t, raise, p, nil), pgerr.CodeSQLJSONMoreItems)

		quoted := jsonExpr(t, expr.JSONQueryOp, "$.s", oid.T_text)
		checkText(t, evalNode(t, quoted, p, nil), `"abc"`)
		quoted.OmitQuotes = true
		checkText(t, evalNode(t, quoted, p, nil), "abc")
	})
}
