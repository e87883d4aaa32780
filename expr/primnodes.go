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
	"strconv"
	"strings"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
)

// VarSource identifies the slot a Var reads from.
type VarSource uint8

const (
	SourceScan VarSource = iota
	SourceInner
	SourceOuter
)

func (s VarSource) String() string {
	switch s {
	case SourceInner:
		return "inner"
	case SourceOuter:
		return "outer"
	default:
		return "scan"
	}
}

// Var references column AttNo (1-based) of one of
// the input slots. AttNo 0 references the whole row
// and negative numbers reference system columns.
type Var struct {
	Source    VarSource
	AttNo     int
	VarType   oid.Oid
	TypMod    int32
	Collation oid.Oid
}

func (v *Var) Type() oid.Oid { return v.VarType }
func (v *Var) walk(Visitor)  {}
func (v *Var) text(dst *strings.Builder, redact bool) {
	dst.WriteString(v.Source.String())
	dst.WriteByte('.')
	if v.AttNo == 0 {
		dst.WriteByte('*')
		return
	}
	dst.WriteString(strconv.Itoa(v.AttNo))
}

// Const is a literal value.
type Const struct {
	ConstType oid.Oid
	TypMod    int32
	Value     datum.Datum
	IsNull    bool
}

// NewConst returns a non-null constant.
func NewConst(typ oid.Oid, v datum.Datum) *Const {
	return &Const{ConstType: typ, TypMod: -1, Value: v}
}

// NullConst returns a null constant of type typ.
func NullConst(typ oid.Oid) *Const {
	return &Const{ConstType: typ, TypMod: -1, IsNull: true}
}

// Int4 returns an int4 constant.
func Int4(v int32) *Const { return NewConst(oid.T_int4, datum.FromInt32(v)) }

// Bool returns a bool constant.
func Bool(b bool) *Const { return NewConst(oid.T_bool, datum.FromBool(b)) }

// Text returns a text constant.
func Text(s string) *Const { return NewConst(oid.T_text, datum.FromText(s)) }

func (c *Const) Type() oid.Oid { return c.ConstType }
func (c *Const) walk(Visitor)  {}
func (c *Const) text(dst *strings.Builder, redact bool) {
	switch {
	case c.IsNull:
		dst.WriteString("NULL")
	case redact:
		dst.WriteString(RedactDatum(c.ConstType, c.Value))
	default:
		dst.WriteString(FormatDatum(c.ConstType, c.Value))
	}
	dst.WriteString("::")
	dst.WriteString(TypeName(c.ConstType))
}

// FormatDatum formats a non-null value of type typ.
func FormatDatum(typ oid.Oid, d datum.Datum) string {
	switch typ {
	case oid.T_bool:
		return strconv.FormatBool(d.Bool())
	case oid.T_int2, oid.T_int4, oid.T_int8:
		return strconv.FormatInt(d.Int64(), 10)
	case oid.T_oid:
		return strconv.FormatUint(uint64(d.Uint32()), 10)
	case oid.T_float8:
		return strconv.FormatFloat(d.Float64(), 'g', -1, 64)
	case oid.T_text, oid.T_varchar, oid.T_bpchar, oid.T_name:
		s, err := datum.TextOf(d)
		if err != nil {
			return d.String()
		}
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return d.String()
}

// ParamKind distinguishes parameter sources.
type ParamKind uint8

const (
	// ParamExtern is a value supplied from
	// outside the plan ($1, $2, ...).
	ParamExtern ParamKind = iota
	// ParamExec is a value computed during
	// execution, such as a subplan output.
	ParamExec
)

// Param references a numbered parameter.
type Param struct {
	Kind      ParamKind
	ID        int
	ParamType oid.Oid
	TypMod    int32
}

func (p *Param) Type() oid.Oid { return p.ParamType }
func (p *Param) walk(Visitor)  {}
func (p *Param) text(dst *strings.Builder, redact bool) {
	if p.Kind == ParamExtern {
		dst.WriteByte('$')
	} else {
		dst.WriteString("$exec")
	}
	dst.WriteString(strconv.Itoa(p.ID))
}

// FuncExpr is a call of a scalar function.
type FuncExpr struct {
	FuncID         oid.Oid
	Name           string
	ResultType     oid.Oid
	RetSet         bool
	Args           []Node
	InputCollation oid.Oid
}

func (f *FuncExpr) Type() oid.Oid  { return f.ResultType }
func (f *FuncExpr) walk(v Visitor) { walkList(v, f.Args) }
func (f *FuncExpr) text(dst *strings.Builder, redact bool) {
	if f.Name != "" {
		dst.WriteString(f.Name)
	} else {
		dst.WriteString("func#")
		dst.WriteString(strconv.Itoa(int(f.FuncID)))
	}
	dst.WriteByte('(')
	listText(dst, f.Args, redact)
	dst.WriteByte(')')
}

// OpExpr is an operator invocation. FuncID
// is the function implementing the operator.
type OpExpr struct {
	OpNo           oid.Oid
	FuncID         oid.Oid
	Name           string
	ResultType     oid.Oid
	RetSet         bool
	Args           []Node
	InputCollation oid.Oid
}

func (o *OpExpr) Type() oid.Oid  { return o.ResultType }
func (o *OpExpr) walk(v Visitor) { walkList(v, o.Args) }
func (o *OpExpr) text(dst *strings.Builder, redact bool) {
	name := o.Name
	if name == "" {
		name = "op#" + strconv.Itoa(int(o.OpNo))
	}
	if len(o.Args) != 2 {
		dst.WriteString(name)
		dst.WriteByte('(')
		listText(dst, o.Args, redact)
		dst.WriteByte(')')
		return
	}
	dst.WriteByte('(')
	o.Args[0].text(dst, redact)
	dst.WriteByte(' ')
	dst.WriteString(name)
	dst.WriteByte(' ')
	o.Args[1].text(dst, redact)
	dst.WriteByte(')')
}

// DistinctExpr is "a IS DISTINCT FROM b";
// FuncID is the equality function.
type DistinctExpr struct {
	OpExpr
}

func (d *DistinctExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteByte('(')
	d.Args[0].text(dst, redact)
	dst.WriteString(" IS DISTINCT FROM ")
	d.Args[1].text(dst, redact)
	dst.WriteByte(')')
}

// NullIfExpr is NULLIF(a, b); FuncID is
// the equality function.
type NullIfExpr struct {
	OpExpr
}

func (n *NullIfExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteString("NULLIF(")
	listText(dst, n.Args, redact)
	dst.WriteByte(')')
}

// ScalarArrayOpExpr is "scalar op ANY/ALL (array)".
// When HashFuncID is set the array is a constant
// and membership is tested through a hash table;
// for NOT IN, NegFuncID is the equality function.
type ScalarArrayOpExpr struct {
	OpNo           oid.Oid
	FuncID         oid.Oid
	HashFuncID     oid.Oid
	NegFuncID      oid.Oid
	Name           string
	UseOr          bool
	InputCollation oid.Oid
	Args           []Node
}

func (s *ScalarArrayOpExpr) Type() oid.Oid  { return oid.T_bool }
func (s *ScalarArrayOpExpr) walk(v Visitor) { walkList(v, s.Args) }
func (s *ScalarArrayOpExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteByte('(')
	s.Args[0].text(dst, redact)
	dst.WriteByte(' ')
	dst.WriteString(s.Name)
	if s.UseOr {
		dst.WriteString(" ANY(")
	} else {
		dst.WriteString(" ALL(")
	}
	s.Args[1].text(dst, redact)
	dst.WriteString("))")
}

// BoolOp is the operator of a BoolExpr.
type BoolOp uint8

const (
	AndExpr BoolOp = iota
	OrExpr
	NotExpr
)

// BoolExpr is AND, OR or NOT over boolean arguments.
type BoolExpr struct {
	Op   BoolOp
	Args []Node
}

// And returns the conjunction of args.
func And(args ...Node) *BoolExpr { return &BoolExpr{Op: AndExpr, Args: args} }

// Or returns the disjunction of args.
func Or(args ...Node) *BoolExpr { return &BoolExpr{Op: OrExpr, Args: args} }

// Not returns the negation of arg.
func Not(arg Node) *BoolExpr { return &BoolExpr{Op: NotExpr, Args: []Node{arg}} }

func (b *BoolExpr) Type() oid.Oid  { return oid.T_bool }
func (b *BoolExpr) walk(v Visitor) { walkList(v, b.Args) }
func (b *BoolExpr) text(dst *strings.Builder, redact bool) {
	if b.Op == NotExpr {
		dst.WriteString("NOT ")
		b.Args[0].text(dst, redact)
		return
	}
	sep := " AND "
	if b.Op == OrExpr {
		sep = " OR "
	}
	dst.WriteByte('(')
	for i := range b.Args {
		if i > 0 {
			dst.WriteString(sep)
		}
		b.Args[i].text(dst, redact)
	}
	dst.WriteByte(')')
}

// MakeAndsExplicit converts an implicitly-ANDed
// list into a single expression.
func MakeAndsExplicit(lst []Node) Node {
	switch len(lst) {
	case 0:
		return Bool(true)
	case 1:
		return lst[0]
	}
	return And(lst...)
}

// SubLinkKind is the kind of a subplan.
type SubLinkKind uint8

const (
	ExprSubLink SubLinkKind = iota
	ExistsSubLink
	MultiExprSubLink
)

// SubPlan is a reference to a subquery plan.
// ParParams are the exec parameters the subplan
// reads, filled from Args before each call.
// A MultiExprSubLink subplan sets SetParams.
type SubPlan struct {
	PlanID     int
	Name       string
	Kind       SubLinkKind
	ParParams  []int
	Args       []Node
	SetParams  []int
	ResultType oid.Oid
}

func (s *SubPlan) Type() oid.Oid  { return s.ResultType }
func (s *SubPlan) walk(v Visitor) { walkList(v, s.Args) }
func (s *SubPlan) text(dst *strings.Builder, redact bool) {
	dst.WriteString("(SubPlan ")
	dst.WriteString(strconv.Itoa(s.PlanID))
	dst.WriteByte(')')
}

// FieldSelect extracts field FieldNum (1-based)
// of a composite value.
type FieldSelect struct {
	Arg        Node
	FieldNum   int
	ResultType oid.Oid
	TypMod     int32
}

func (f *FieldSelect) Type() oid.Oid  { return f.ResultType }
func (f *FieldSelect) walk(v Visitor) { Walk(v, f.Arg) }
func (f *FieldSelect) text(dst *strings.Builder, redact bool) {
	dst.WriteByte('(')
	f.Arg.text(dst, redact)
	dst.WriteString(").f")
	dst.WriteString(strconv.Itoa(f.FieldNum))
}

// FieldStore produces a copy of a composite
// value with the listed fields replaced.
type FieldStore struct {
	Arg        Node
	NewVals    []Node
	FieldNums  []int
	ResultType oid.Oid
}

func (f *FieldStore) Type() oid.Oid { return f.ResultType }
func (f *FieldStore) walk(v Visitor) {
	Walk(v, f.Arg)
	walkList(v, f.NewVals)
}
func (f *FieldStore) text(dst *strings.Builder, redact bool) {
	dst.WriteString("FIELDSTORE(")
	f.Arg.text(dst, redact)
	for i := range f.NewVals {
		dst.WriteString(", f")
		dst.WriteString(strconv.Itoa(f.FieldNums[i]))
		dst.WriteString(" := ")
		f.NewVals[i].text(dst, redact)
	}
	dst.WriteByte(')')
}

// RelabelType is a binary-compatible type change.
type RelabelType struct {
	Arg        Node
	ResultType oid.Oid
	TypMod     int32
}

func (r *RelabelType) Type() oid.Oid  { return r.ResultType }
func (r *RelabelType) walk(v Visitor) { Walk(v, r.Arg) }
func (r *RelabelType) text(dst *strings.Builder, redact bool) {
	r.Arg.text(dst, redact)
	dst.WriteString("::")
	dst.WriteString(TypeName(r.ResultType))
}

// CoerceViaIO converts through the text
// output and input functions.
type CoerceViaIO struct {
	Arg        Node
	ResultType oid.Oid
}

func (c *CoerceViaIO) Type() oid.Oid  { return c.ResultType }
func (c *CoerceViaIO) walk(v Visitor) { Walk(v, c.Arg) }
func (c *CoerceViaIO) text(dst *strings.Builder, redact bool) {
	dst.WriteString("CAST(")
	c.Arg.text(dst, redact)
	dst.WriteString(" AS ")
	dst.WriteString(TypeName(c.ResultType))
	dst.WriteByte(')')
}

// ArrayCoerceExpr applies ElemExpr to each
// element of an array. ElemExpr reads the
// element through a CaseTestExpr.
type ArrayCoerceExpr struct {
	Arg        Node
	ElemExpr   Node
	ResultType oid.Oid
}

func (a *ArrayCoerceExpr) Type() oid.Oid { return a.ResultType }
func (a *ArrayCoerceExpr) walk(v Visitor) {
	Walk(v, a.Arg)
	Walk(v, a.ElemExpr)
}
func (a *ArrayCoerceExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteString("ARRAYCOERCE(")
	a.Arg.text(dst, redact)
	dst.WriteString(", ")
	a.ElemExpr.text(dst, redact)
	dst.WriteByte(')')
}

// ConvertRowtypeExpr converts a composite value
// to another row type, matching fields by name.
type ConvertRowtypeExpr struct {
	Arg        Node
	ResultType oid.Oid
}

func (c *ConvertRowtypeExpr) Type() oid.Oid  { return c.ResultType }
func (c *ConvertRowtypeExpr) walk(v Visitor) { Walk(v, c.Arg) }
func (c *ConvertRowtypeExpr) text(dst *strings.Builder, redact bool) {
	c.Arg.text(dst, redact)
	dst.WriteString("::")
	dst.WriteString(TypeName(c.ResultType))
}

// CollateExpr attaches a collation.
type CollateExpr struct {
	Arg       Node
	Collation oid.Oid
}

func (c *CollateExpr) Type() oid.Oid  { return c.Arg.Type() }
func (c *CollateExpr) walk(v Visitor) { Walk(v, c.Arg) }
func (c *CollateExpr) text(dst *strings.Builder, redact bool) {
	c.Arg.text(dst, redact)
	dst.WriteString(" COLLATE ")
	dst.WriteString(strconv.Itoa(int(c.Collation)))
}

// CaseWhen is one arm of a CaseExpr.
type CaseWhen struct {
	Expr   Node
	Result Node
}

// CaseExpr is CASE [Arg] WHEN ... THEN ... ELSE Default END.
// When Arg is set, each When.Expr compares a
// CaseTestExpr against a value.
type CaseExpr struct {
	CaseType oid.Oid
	Arg      Node
	Whens    []CaseWhen
	Default  Node
}

func (c *CaseExpr) Type() oid.Oid { return c.CaseType }
func (c *CaseExpr) walk(v Visitor) {
	if c.Arg != nil {
		Walk(v, c.Arg)
	}
	for i := range c.Whens {
		Walk(v, c.Whens[i].Expr)
		Walk(v, c.Whens[i].Result)
	}
	if c.Default != nil {
		Walk(v, c.Default)
	}
}
func (c *CaseExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteString("CASE")
	if c.Arg != nil {
		dst.WriteByte(' ')
		c.Arg.text(dst, redact)
	}
	for i := range c.Whens {
		dst.WriteString(" WHEN ")
		c.Whens[i].Expr.text(dst, redact)
		dst.WriteString(" THEN ")
		c.Whens[i].Result.text(dst, redact)
	}
	if c.Default != nil {
		dst.WriteString(" ELSE ")
		c.Default.text(dst, redact)
	}
	dst.WriteString(" END")
}

// CaseTestExpr is a placeholder for the value
// being tested by the innermost CASE, array
// coercion, field store or subscripted assignment.
type CaseTestExpr struct {
	TypeID oid.Oid
	TypMod int32
}

func (c *CaseTestExpr) Type() oid.Oid { return c.TypeID }
func (c *CaseTestExpr) walk(Visitor)  {}
func (c *CaseTestExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteString("CASE_TEST")
}

// ArrayExpr is ARRAY[...]. With MultiDims set
// each element is itself an array.
type ArrayExpr struct {
	ArrayType oid.Oid
	ElemType  oid.Oid
	Elements  []Node
	MultiDims bool
}

func (a *ArrayExpr) Type() oid.Oid  { return a.ArrayType }
func (a *ArrayExpr) walk(v Visitor) { walkList(v, a.Elements) }
func (a *ArrayExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteString("ARRAY[")
	listText(dst, a.Elements, redact)
	dst.WriteByte(']')
}

// RowExpr is ROW(...). RowType is T_record for
// an anonymous row type.
type RowExpr struct {
	Args     []Node
	RowType  oid.Oid
	ColNames []string
}

func (r *RowExpr) Type() oid.Oid  { return r.RowType }
func (r *RowExpr) walk(v Visitor) { walkList(v, r.Args) }
func (r *RowExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteString("ROW(")
	listText(dst, r.Args, redact)
	dst.WriteByte(')')
}

// RowCompareType is the ordering of a row comparison.
type RowCompareType uint8

const (
	RowCompareLT RowCompareType = iota + 1
	RowCompareLE
	RowCompareEQ
	RowCompareGE
	RowCompareGT
	RowCompareNE
)

var rowCompareNames = [...]string{"", "<", "<=", "=", ">=", ">", "<>"}

func (r RowCompareType) String() string { return rowCompareNames[r] }

// RowCompareExpr is (a, b, ...) op (x, y, ...).
// CmpFuncs are the per-column btree comparison
// functions returning <0, 0 or >0.
type RowCompareExpr struct {
	Cmp        RowCompareType
	CmpFuncs   []oid.Oid
	Collations []oid.Oid
	LArgs      []Node
	RArgs      []Node
}

func (r *RowCompareExpr) Type() oid.Oid { return oid.T_bool }
func (r *RowCompareExpr) walk(v Visitor) {
	walkList(v, r.LArgs)
	walkList(v, r.RArgs)
}
func (r *RowCompareExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteString("ROW(")
	listText(dst, r.LArgs, redact)
	dst.WriteString(") ")
	dst.WriteString(r.Cmp.String())
	dst.WriteString(" ROW(")
	listText(dst, r.RArgs, redact)
	dst.WriteByte(')')
}

// CoalesceExpr is COALESCE(...).
type CoalesceExpr struct {
	CoalesceType oid.Oid
	Args         []Node
}

func (c *CoalesceExpr) Type() oid.Oid  { return c.CoalesceType }
func (c *CoalesceExpr) walk(v Visitor) { walkList(v, c.Args) }
func (c *CoalesceExpr) text(dst *strings.Builder, redact bool) {
	dst.WriteString("COALESCE(")
	listText(dst, c.Args, redact)
	dst.WriteByte(')')
}

// MinMaxOp selects GREATEST or LEAST.
type MinMaxOp uint8

const (
	IsGreatest MinMaxOp = iota
	IsLeast
)

// MinMaxExpr is GREATEST(...) or LEAST(...).
type MinMaxExpr struct {
	MinMaxType     oid.Oid
	Op             MinMaxOp
	Args           []Node
	InputCollation oid.Oid
}

func (m *MinMaxExpr) Type() oid.Oid  { return m.MinMaxType }
func (m *MinMaxExpr) walk(v Visitor) { walkList(v, m.Args) }
func (m *MinMaxExpr) text(dst *strings.Builder, redact bool) {
	if m.Op == IsGreatest {
		dst.WriteString("GREATEST(")
	} else {
		dst.WriteString("LEAST(")
	}
	listText(dst, m.Args, redact)
	dst.WriteByte(')')
}

// NullTestKind is IS NULL or IS NOT NULL.
type NullTestKind uint8

const (
	IsNull NullTestKind = iota
	IsNotNull
)

// NullTest is "arg IS [NOT] NULL". When ArgIsRow
// is set the test applies to each field of a
// composite value.
type NullTest struct {
	Arg      Node
	Kind     NullTestKind
	ArgIsRow bool
}

func (n *NullTest) Type() oid.Oid  { return oid.T_bool }
func (n *NullTest) walk(v Visitor) { Walk(v, n.Arg) }
func (n *NullTest) text(dst *strings.Builder, redact bool) {
	n.Arg.text(dst, redact)
	if n.Kind == IsNull {
		dst.WriteString(" IS NULL")
	} else {
		dst.WriteString(" IS NOT NULL")
	}
}

// BoolTestKind is the test of a BooleanTest.
type BoolTestKind uint8

const (
	IsTrue BoolTestKind = iota
	IsNotTrue
	IsFalse
	IsNotFalse
	IsUnknown
	IsNotUnknown
)

var boolTestNames = [...]string{"IS TRUE", "IS NOT TRUE", "IS FALSE", "IS NOT FALSE", "IS UNKNOWN", "IS NOT UNKNOWN"}

// BooleanTest is "arg IS [NOT] {TRUE|FALSE|UNKNOWN}".
type BooleanTest struct {
	Arg  Node
	Kind BoolTestKind
}

func (b *BooleanTest) Type() oid.Oid  { return oid.T_bool }
func (b *BooleanTest) walk(v Visitor) { Walk(v, b.Arg) }
func (b *BooleanTest) text(dst *strings.Builder, redact bool) {
	b.Arg.text(dst, redact)
	dst.WriteByte(' ')
	dst.WriteString(boolTestNames[b.Kind])
}

// CoerceToDomain checks a value against the
// constraints of domain ResultType.
type CoerceToDomain struct {
	Arg        Node
	ResultType oid.Oid
	TypMod     int32
}

func (c *CoerceToDomain) Type() oid.Oid  { return c.ResultType }
func (c *CoerceToDomain) walk(v Visitor) { Walk(v, c.Arg) }
func (c *CoerceToDomain) text(dst *strings.Builder, redact bool) {
	c.Arg.text(dst, redact)
	dst.WriteString("::")
	dst.WriteString(TypeName(c.ResultType))
}

// CoerceToDomainValue is the placeholder for the
// value being checked in a domain CHECK expression.
type CoerceToDomainValue struct {
	TypeID oid.Oid
	TypMod int32
}

func (c *CoerceToDomainValue) Type() oid.Oid { return c.TypeID }
func (c *CoerceToDomainValue) walk(Visitor)  {}
func (c *CoerceToDomainValue) text(dst *strings.Builder, redact bool) {
	dst.WriteString("VALUE")
}

// SubscriptingRef is container[...] (a fetch) or,
// with Assign set, the container after assigning
// Assign to the subscripted position. Lower is
// nil unless the reference is a slice; omitted
// slice bounds are nil entries.
type SubscriptingRef struct {
	ContainerType oid.Oid
	ElemType      oid.Oid
	RefType       oid.Oid
	TypMod        int32
	Upper         []Node
	Lower         []Node
	Expr          Node
	Assign        Node
}

// IsSlice reports whether the reference is a slice.
func (s *SubscriptingRef) IsSlice() bool { return s.Lower != nil }

func (s *SubscriptingRef) Type() oid.Oid { return s.RefType }
func (s *SubscriptingRef) walk(v Visitor) {
	Walk(v, s.Expr)
	walkList(v, s.Upper)
	walkList(v, s.Lower)
	if s.Assign != nil {
		Walk(v, s.Assign)
	}
}
func (s *SubscriptingRef) text(dst *strings.Builder, redact bool) {
	s.Expr.text(dst, redact)
	for i := range s.Upper {
		dst.WriteByte('[')
		if s.Lower != nil {
			if s.Lower[i] != nil {
				s.Lower[i].text(dst, redact)
			}
			dst.WriteByte(':')
		}
		if s.Upper[i] != nil {
			s.Upper[i].text(dst, redact)
		}
		dst.WriteByte(']')
	}
	if s.Assign != nil {
		dst.WriteString(" := ")
		s.Assign.text(dst, redact)
	}
}

// PlaceHolderVar wraps an expression evaluated
// below an outer join.
type PlaceHolderVar struct {
	Expr Node
}

func (p *PlaceHolderVar) Type() oid.Oid  { return p.Expr.Type() }
func (p *PlaceHolderVar) walk(v Visitor) { Walk(v, p.Expr) }
func (p *PlaceHolderVar) text(dst *strings.Builder, redact bool) {
	p.Expr.text(dst, redact)
}

// TargetEntry is one column of a target list.
// ResNo is 1-based.
type TargetEntry struct {
	Expr  Node
	ResNo int
	Name  string
	Junk  bool
}

func (t *TargetEntry) Type() oid.Oid  { return t.Expr.Type() }
func (t *TargetEntry) walk(v Visitor) { Walk(v, t.Expr) }
func (t *TargetEntry) text(dst *strings.Builder, redact bool) {
	t.Expr.text(dst, redact)
	if t.Name != "" {
		dst.WriteString(" AS ")
		dst.WriteString(t.Name)
	}
}
