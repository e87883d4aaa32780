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

package expr

import (
	"strings"

	"github.com/lib/pq/oid"
)

// JSONFormat is the representation of a JSON value.
type JSONFormat uint8

const (
	FormatDefault JSONFormat = iota
	FormatJSON
	FormatJSONB
)

// JSONReturning describes the RETURNING clause.
type JSONReturning struct {
	Format JSONFormat
	TypeID oid.Oid
	TypMod int32
}

// JSONValueExpr is a value with a FORMAT clause.
// FormattedExpr is the value converted to json.
type JSONValueExpr struct {
	RawExpr       Node
	FormattedExpr Node
	Format        JSONFormat
}

func (j *JSONValueExpr) Type() oid.Oid { return j.FormattedExpr.Type() }
func (j *JSONValueExpr) walk(v Visitor) {
	Walk(v, j.RawExpr)
	Walk(v, j.FormattedExpr)
}
func (j *JSONValueExpr) text(dst *strings.Builder, redact bool) {
	j.RawExpr.text(dst, redact)
}

// JSONCtorKind is the kind of JSON constructor.
type JSONCtorKind uint8

const (
	JSONObjectCtor JSONCtorKind = iota + 1
	JSONArrayCtor
	JSONObjectAggCtor
	JSONArrayAggCtor
	JSONParseCtor
	JSONScalarCtor
	JSONSerializeCtor
)

var jsonCtorNames = [...]string{"", "JSON_OBJECT", "JSON_ARRAY", "JSON_OBJECTAGG", "JSON_ARRAYAGG", "JSON", "JSON_SCALAR", "JSON_SERIALIZE"}

// JSONConstructorExpr builds a JSON value.
// JSON_OBJECT arguments alternate key, value.
// Aggregate constructors evaluate Func instead
// of Args. Coercion, if set, converts the result
// to the RETURNING type, reading it through a
// CaseTestExpr.
type JSONConstructorExpr struct {
	Kind         JSONCtorKind
	Args         []Node
	Func         Node
	Coercion     Node
	Returning    JSONReturning
	AbsentOnNull bool
	Unique       bool
}

func (j *JSONConstructorExpr) Type() oid.Oid { return j.Returning.TypeID }
func (j *JSONConstructorExpr) walk(v Visitor) {
	walkList(v, j.Args)
	if j.Func != nil {
		Walk(v, j.Func)
	}
	if j.Coercion != nil {
		Walk(v, j.Coercion)
	}
}
func (j *JSONConstructorExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteString(jsonCtorNames[j.Kind])
	dst.WriteByte('(')
	if j.Func != nil {
		j.Func.text(dst, redact)
	} else {
		listText(dst, j.Args, redact)
	}
	if j.AbsentOnNull {
		dst.WriteString(" ABSENT ON NULL")
	}
	if j.Unique {
		dst.WriteString(" WITH UNIQUE KEYS")
	}
	dst.WriteByte(')')
}

// JSONItemType is the item type tested by IS JSON.
type JSONItemType uint8

const (
	JSONTypeAny JSONItemType = iota
	JSONTypeObject
	JSONTypeArray
	JSONTypeScalar
)

var jsonItemNames = [...]string{"", " OBJECT", " ARRAY", " SCALAR"}

// JSONIsPredicate is "expr IS JSON [type] [WITH UNIQUE KEYS]".
type JSONIsPredicate struct {
	Expr       Node
	ItemType   JSONItemType
	UniqueKeys bool
}

func (j *JSONIsPredicate) Type() oid.Oid  { return oid.T_bool }
func (j *JSONIsPredicate) walk(v Visitor) { Walk(v, j.Expr) }
func (j *JSONIsPredicate) text(dst *strings.Builder, redact bool) {
	j.Expr.text(dst, redact)
	dst.WriteString(" IS JSON")
	dst.WriteString(jsonItemNames[j.ItemType])
	if j.UniqueKeys {
		dst.WriteString(" WITH UNIQUE KEYS")
	}
}

// JSONBehaviorKind is an ON EMPTY / ON ERROR behavior.
type JSONBehaviorKind uint8

const (
	BehaviorNull JSONBehaviorKind = iota
	BehaviorError
	BehaviorEmpty
	BehaviorTrue
	BehaviorFalse
	BehaviorUnknown
	BehaviorEmptyArray
	BehaviorEmptyObject
	BehaviorDefault
)

// JSONBehavior is the value to produce for ON EMPTY
// or ON ERROR. Expr is set for every kind except
// BehaviorError; Coerce requests conversion of
// Expr to the RETURNING type.
type JSONBehavior struct {
	Kind   JSONBehaviorKind
	Expr   Node
	Coerce bool
}

// JSONExprOp is the SQL/JSON query function.
type JSONExprOp uint8

const (
	JSONExistsOp JSONExprOp = iota
	JSONQueryOp
	JSONValueOp
)

var jsonOpNames = [...]string{"JSON_EXISTS", "JSON_QUERY", "JSON_VALUE"}

// JSONWrapper is the wrapper behavior of JSON_QUERY.
type JSONWrapper uint8

const (
	WrapperUnspec JSONWrapper = iota
	WrapperNone
	WrapperConditional
	WrapperUnconditional
)

// JSONExpr is JSON_EXISTS, JSON_QUERY or JSON_VALUE.
// PathSpec evaluates to a compiled path. When
// UseIOCoercion is set the result is converted to
// the RETURNING type through its input function;
// UseJSONCoercion converts the json result directly.
type JSONExpr struct {
	Op              JSONExprOp
	FormattedExpr   Node
	PathSpec        Node
	PassingNames    []string
	PassingValues   []Node
	Returning       JSONReturning
	OnEmpty         *JSONBehavior
	OnError         *JSONBehavior
	UseIOCoercion   bool
	UseJSONCoercion bool
	Wrapper         JSONWrapper
	OmitQuotes      bool
	Collation       oid.Oid
}

func (j *JSONExpr) Type() oid.Oid { return j.Returning.TypeID }
func (j *JSONExpr) walk(v Visitor) {
	Walk(v, j.FormattedExpr)
	Walk(v, j.PathSpec)
	walkList(v, j.PassingValues)
	if j.OnEmpty != nil && j.OnEmpty.Expr != nil {
		Walk(v, j.OnEmpty.Expr)
	}
	if j.OnError != nil && j.OnError.Expr != nil {
		Walk(v, j.OnError.Expr)
	}
}
func (j *JSONExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteString(jsonOpNames[j.Op])
	dst.WriteByte('(')
	j.FormattedExpr.text(dst, redact)
	dst.WriteString(", ")
	j.PathSpec.text(dst, redact)
	if len(j.PassingValues) > 0 {
		dst.WriteString(" PASSING ")
		for i := range j.PassingValues {
			if i > 0 {
				dst.WriteString(", ")
			}
			j.PassingValues[i].text(dst, redact)
			dst.WriteString(" AS ")
			dst.WriteString(j.PassingNames[i])
		}
	}
	dst.WriteString(" RETURNING ")
	dst.WriteString(TypeName(j.Returning.TypeID))
	dst.WriteByte(')')
}
